package query

import (
	"reflect"
	"strconv"
	"strings"
)

// Builder accumulates WHERE conditions and ordering for one projection.
// Arguments are bound as they are added, so placeholders are numbered
// in call order starting at $1.
//
// Filter fields are chosen by code, not clients, and an unprojected
// filter field panics. Sort fields come from clients and are dropped
// when unknown.
type Builder struct {
	proj     *Projection
	where    []string
	args     []any
	sort     []SortField
	fallback []SortField
}

// NewBuilder returns a Builder that orders by fallback unless OrderBy
// supplies at least one known field.
func NewBuilder(proj *Projection, fallback ...SortField) *Builder {
	return &Builder{proj: proj, fallback: fallback}
}

// WhereEquals adds column = value. Nil values, including typed nil
// pointers, add nothing.
func (b *Builder) WhereEquals(field string, value any) *Builder {
	return b.compare(field, "=", value)
}

// WhereAfter adds column >= value.
func (b *Builder) WhereAfter(field string, value any) *Builder {
	return b.compare(field, ">=", value)
}

// WhereBefore adds column < value.
func (b *Builder) WhereBefore(field string, value any) *Builder {
	return b.compare(field, "<", value)
}

// WhereContains adds a case-insensitive substring match. Nil or empty
// values add nothing.
func (b *Builder) WhereContains(field string, value *string) *Builder {
	if value == nil || *value == "" {
		return b
	}
	b.where = append(b.where, b.proj.mustColumn(field)+" ILIKE "+b.bind(like(*value)))
	return b
}

// WhereSearch matches term as a substring of any of fields.
func (b *Builder) WhereSearch(term *string, fields ...string) *Builder {
	if term == nil || *term == "" || len(fields) == 0 {
		return b
	}
	pattern := like(*term)
	ors := make([]string, len(fields))
	for i, f := range fields {
		ors[i] = b.proj.mustColumn(f) + " ILIKE " + b.bind(pattern)
	}
	b.where = append(b.where, "("+strings.Join(ors, " OR ")+")")
	return b
}

// OrderBy replaces the fallback ordering.
func (b *Builder) OrderBy(fields []SortField) *Builder {
	b.sort = fields
	return b
}

// Select returns the full filtered and ordered query.
func (b *Builder) Select() (string, []any) {
	return "SELECT " + b.proj.Select() + " FROM " + b.proj.From() + b.whereClause() + b.orderClause(), b.args
}

// Count returns a COUNT(*) over the filtered rows.
func (b *Builder) Count() (string, []any) {
	return "SELECT COUNT(*) FROM " + b.proj.From() + b.whereClause(), b.args
}

// Page returns the query for one 1-based page.
func (b *Builder) Page(page, size int) (string, []any) {
	q, args := b.Select()
	offset := max(page-1, 0) * size
	return q + " LIMIT " + strconv.Itoa(size) + " OFFSET " + strconv.Itoa(offset), args
}

// Single selects the row whose field equals value. Conditions already
// on the builder are ignored.
func (b *Builder) Single(field string, value any) (string, []any) {
	return "SELECT " + b.proj.Select() + " FROM " + b.proj.From() +
		" WHERE " + b.proj.mustColumn(field) + " = $1", []any{value}
}

func (b *Builder) compare(field, op string, value any) *Builder {
	if isNil(value) {
		return b
	}
	b.where = append(b.where, b.proj.mustColumn(field)+" "+op+" "+b.bind(value))
	return b
}

func (b *Builder) bind(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *Builder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *Builder) orderClause() string {
	terms := b.terms(b.sort)
	if len(terms) == 0 {
		terms = b.terms(b.fallback)
	}
	if len(terms) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

func (b *Builder) terms(fields []SortField) []string {
	var out []string
	for _, f := range fields {
		if t, ok := f.term(b.proj); ok {
			out = append(out, t)
		}
	}
	return out
}

// like escapes LIKE metacharacters and wraps s for a substring match.
func like(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
