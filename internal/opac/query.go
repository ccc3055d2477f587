package opac

import (
	"errors"
	"fmt"
	"strings"

	"opacbridge/internal/i18n"
)

// SearchQuery is the value a user entered into one search field.
type SearchQuery struct {
	Field SearchField
	Value string
}

func NewQuery(field SearchField, value string) SearchQuery {
	return SearchQuery{Field: field, Value: value}
}

func (q SearchQuery) Key() string {
	return q.Field.ID
}

func (q SearchQuery) Kind() FieldKind {
	return q.Field.Kind
}

// Blank reports whether the query carries no input. An unchecked checkbox is
// blank, a dropdown is blank when no option key is set.
func (q SearchQuery) Blank() bool {
	value := strings.TrimSpace(q.Value)
	if q.Field.Kind == FieldCheckbox {
		return value == "" || value == "false"
	}
	return value == ""
}

// Checked is the value of a checkbox query.
func (q SearchQuery) Checked() bool {
	return q.Field.Kind == FieldCheckbox && !q.Blank()
}

// ValidateQueries rejects query sets that submit the same field twice.
func ValidateQueries(queries []SearchQuery) error {
	seen := make(map[string]struct{}, len(queries))
	for _, q := range queries {
		if q.Key() == "" {
			return invalidQuery(errors.New("query without field id"))
		}
		if _, ok := seen[q.Key()]; ok {
			return invalidQuery(fmt.Errorf("field '%s' submitted twice", q.Key()))
		}
		seen[q.Key()] = struct{}{}
	}
	return nil
}

func invalidQuery(err error) *Error {
	return &Error{Kind: KindValidation, Key: i18n.KeyInvalidQuery, Err: err}
}

// Populated drops blank queries, the order of the rest is kept.
func Populated(queries []SearchQuery) []SearchQuery {
	out := make([]SearchQuery, 0, len(queries))
	for _, q := range queries {
		if !q.Blank() {
			out = append(out, q)
		}
	}
	return out
}

// CountKind counts populated queries of a kind.
func CountKind(queries []SearchQuery, kind FieldKind) int {
	n := 0
	for _, q := range Populated(queries) {
		if q.Kind() == kind {
			n++
		}
	}
	return n
}
