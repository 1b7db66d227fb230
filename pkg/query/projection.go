// Package query builds parameterized SELECT statements over a single
// projected table. Field names resolve to alias-qualified columns.
package query

import "strings"

// Projection maps field names to the columns of one aliased table.
// Columns are selected in the order they were projected.
type Projection struct {
	from    string
	alias   string
	columns []string
	lookup  map[string]string
}

// NewProjection starts a projection over schema.table. An empty schema
// leaves the table unqualified.
func NewProjection(schema, table, alias string) *Projection {
	from := table + " " + alias
	if schema != "" {
		from = schema + "." + from
	}
	return &Projection{
		from:   from,
		alias:  alias,
		lookup: make(map[string]string),
	}
}

// Project adds column under field. Lookups accept the field name or the
// column name in any letter case, so "UploadedAt", "uploadedat", and
// "uploaded_at" all resolve to the same column.
func (p *Projection) Project(column, field string) *Projection {
	qualified := p.alias + "." + column
	p.columns = append(p.columns, qualified)
	p.lookup[strings.ToLower(field)] = qualified
	p.lookup[strings.ToLower(column)] = qualified
	return p
}

// Column resolves a field to its qualified column.
func (p *Projection) Column(field string) (string, bool) {
	col, ok := p.lookup[strings.ToLower(field)]
	return col, ok
}

func (p *Projection) From() string {
	return p.from
}

// Select returns the projected columns as a select list.
func (p *Projection) Select() string {
	return strings.Join(p.columns, ", ")
}

func (p *Projection) mustColumn(field string) string {
	col, ok := p.Column(field)
	if !ok {
		panic("query: field " + field + " is not projected on " + p.from)
	}
	return col
}
