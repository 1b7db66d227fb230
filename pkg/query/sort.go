package query

import "strings"

// SortField is one ORDER BY term. Field goes through the projection, so
// unknown fields are ignored rather than interpolated.
type SortField struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// ParseSortFields reads a comma-separated list such as "name,-created_at".
// A leading "-" sorts descending. Blank entries are skipped.
func ParseSortFields(s string) []SortField {
	var fields []SortField
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		name, desc := strings.CutPrefix(part, "-")
		if name == "" {
			continue
		}
		fields = append(fields, SortField{Field: name, Descending: desc})
	}
	return fields
}

func (s SortField) term(p *Projection) (string, bool) {
	col, ok := p.Column(s.Field)
	if !ok {
		return "", false
	}
	if s.Descending {
		return col + " DESC", true
	}
	return col + " ASC", true
}
