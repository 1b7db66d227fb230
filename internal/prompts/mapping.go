package prompts

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/JaimeStill/receipts/pkg/query"
	"github.com/JaimeStill/receipts/pkg/repository"
)

const columns = "id, name, stage, instructions, description, active, created_at, updated_at"

var projection = query.
	NewProjection("public", "prompts", "p").
	Project("id", "ID").
	Project("name", "Name").
	Project("stage", "Stage").
	Project("instructions", "Instructions").
	Project("description", "Description").
	Project("active", "Active").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var defaultSort = query.SortField{Field: "Name"}

// Filters narrows a prompt listing. Nil fields do not filter.
// Name matches case-insensitively as a substring.
type Filters struct {
	Stage  *Stage  `json:"stage,omitempty"`
	Name   *string `json:"name,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Stage", f.Stage).
		WhereContains("Name", f.Name).
		WhereEquals("Active", f.Active)
}

// FiltersFromQuery reads stage, name, and active from URL query values.
// A malformed stage or active value is an ErrInvalidFilter.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	if s := values.Get("stage"); s != "" {
		stage, err := ParseStage(s)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: stage %q", ErrInvalidFilter, s)
		}
		f.Stage = &stage
	}

	if n := values.Get("name"); n != "" {
		f.Name = &n
	}

	if a := values.Get("active"); a != "" {
		v, err := strconv.ParseBool(a)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: active %q", ErrInvalidFilter, a)
		}
		f.Active = &v
	}

	return f, nil
}

func scanPrompt(s repository.Scanner) (Prompt, error) {
	var p Prompt
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Stage,
		&p.Instructions,
		&p.Description,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}
