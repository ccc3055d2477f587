package opac

import (
	"encoding/json"
	"fmt"
	"strings"
)

type FieldKind int

const (
	FieldText FieldKind = iota
	FieldDropdown
	FieldCheckbox
)

var fieldKindNames = map[FieldKind]string{
	FieldText:     "text",
	FieldDropdown: "select",
	FieldCheckbox: "checkbox",
}

func (k FieldKind) String() string {
	return fieldKindNames[k]
}

func (k FieldKind) MarshalText() ([]byte, error) {
	name, ok := fieldKindNames[k]
	if !ok {
		return nil, fmt.Errorf("unknown field kind %d", int(k))
	}
	return []byte(name), nil
}

func (k *FieldKind) UnmarshalText(text []byte) error {
	for kind, name := range fieldKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown field kind '%s'", text)
}

// Meaning tells the caller what a search field is about so it can be shown
// with a matching icon or keyboard.
type Meaning string

const (
	MeaningNone       Meaning = ""
	MeaningFree       Meaning = "FREE"
	MeaningTitle      Meaning = "TITLE"
	MeaningAuthor     Meaning = "AUTHOR"
	MeaningDigital    Meaning = "DIGITAL"
	MeaningAvailable  Meaning = "AVAILABLE"
	MeaningISBN       Meaning = "ISBN"
	MeaningBarcode    Meaning = "BARCODE"
	MeaningYear       Meaning = "YEAR"
	MeaningBranch     Meaning = "BRANCH"
	MeaningHomeBranch Meaning = "HOME_BRANCH"
	MeaningCategory   Meaning = "CATEGORY"
	MeaningPublisher  Meaning = "PUBLISHER"
	MeaningKeyword    Meaning = "KEYWORD"
	MeaningSystem     Meaning = "SYSTEM"
	MeaningAudience   Meaning = "AUDIENCE"
	MeaningLocation   Meaning = "LOCATION"
	MeaningOrder      Meaning = "ORDER"
)

type DropdownOption struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SearchField describes one input a backend accepts. Data is a small table
// private to the adapter that produced the field, it carries whatever the
// adapter needs to encode the field into its own request later.
type SearchField struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"displayName"`
	Kind        FieldKind         `json:"type"`
	Advanced    bool              `json:"advanced"`
	Visible     bool              `json:"visible"`
	Meaning     Meaning           `json:"meaning,omitempty"`
	Hint        string            `json:"hint,omitempty"`
	HalfWidth   bool              `json:"halfWidth,omitempty"`
	FreeSearch  bool              `json:"freeSearch,omitempty"`
	Number      bool              `json:"number,omitempty"`
	Options     []DropdownOption  `json:"dropdownValues,omitempty"`
	Data        map[string]string `json:"data,omitempty"`
}

func TextField(id, displayName string) SearchField {
	return SearchField{ID: id, DisplayName: displayName, Kind: FieldText, Visible: true}
}

func DropdownField(id, displayName string, options []DropdownOption) SearchField {
	return SearchField{ID: id, DisplayName: displayName, Kind: FieldDropdown, Visible: true, Options: options}
}

func CheckboxField(id, displayName string) SearchField {
	return SearchField{ID: id, DisplayName: displayName, Kind: FieldCheckbox, Visible: true}
}

// WithData returns a copy of f with the given key set in its private data.
func (f SearchField) WithData(key, value string) SearchField {
	data := make(map[string]string, len(f.Data)+1)
	for k, v := range f.Data {
		data[k] = v
	}
	data[key] = value
	f.Data = data
	return f
}

// Datum reads a key of the private data, missing keys give "".
func (f SearchField) Datum(key string) string {
	return f.Data[key]
}

// Option returns the dropdown option with the given key.
func (f SearchField) Option(key string) (DropdownOption, bool) {
	for _, o := range f.Options {
		if o.Key == key {
			return o, true
		}
	}
	return DropdownOption{}, false
}

func EncodeFields(fields []SearchField) ([]byte, error) {
	return json.Marshal(fields)
}

func DecodeFields(buf []byte) ([]SearchField, error) {
	var fields []SearchField
	err := json.Unmarshal(buf, &fields)
	if err != nil {
		return nil, fmt.Errorf("decode search fields: %w", err)
	}
	return fields, nil
}

// FieldByID looks up a field by id, ignoring case.
func FieldByID(fields []SearchField, id string) (SearchField, bool) {
	for _, f := range fields {
		if strings.EqualFold(f.ID, id) {
			return f, true
		}
	}
	return SearchField{}, false
}
