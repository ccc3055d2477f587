package commands

import (
	"fmt"
	"strings"

	"opacbridge/internal/opac"
)

// parseQueries turns "field=value" arguments into queries. Arguments
// without a known field prefix are joined into one free search. Dropdown
// values may name an option by key or by its label.
func parseQueries(fields []opac.SearchField, args []string) ([]opac.SearchQuery, error) {
	var queries []opac.SearchQuery
	var free []string
	for _, arg := range args {
		id, value, found := strings.Cut(arg, "=")
		field, known := opac.FieldByID(fields, id)
		if !found || !known {
			free = append(free, arg)
			continue
		}

		switch field.Kind {
		case opac.FieldDropdown:
			option, ok := dropdownOption(field, value)
			if !ok {
				return nil, fmt.Errorf("'%s' is not an option of %s", value, field.DisplayName)
			}
			value = option.Key
		case opac.FieldCheckbox:
			switch strings.ToLower(value) {
			case "", "1", "yes", "true":
				value = "true"
			default:
				value = "false"
			}
		}
		queries = append(queries, opac.NewQuery(field, value))
	}

	if len(free) > 0 {
		field, ok := freeSearchField(fields)
		if !ok {
			return nil, fmt.Errorf("this library has no free search field, use field=value")
		}
		queries = append(queries, opac.NewQuery(field, strings.Join(free, " ")))
	}
	return queries, nil
}

func dropdownOption(field opac.SearchField, value string) (opac.DropdownOption, bool) {
	if option, ok := field.Option(value); ok {
		return option, true
	}
	for _, o := range field.Options {
		if strings.EqualFold(o.Value, value) {
			return o, true
		}
	}
	return opac.DropdownOption{}, false
}

// freeSearchField is the free search field, or else the first text field.
func freeSearchField(fields []opac.SearchField) (opac.SearchField, bool) {
	for _, f := range fields {
		if f.FreeSearch {
			return f, true
		}
	}
	for _, f := range fields {
		if f.Kind == opac.FieldText {
			return f, true
		}
	}
	return opac.SearchField{}, false
}
