package slub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// flexString accepts json strings, numbers and booleans.
type flexString string

func (s *flexString) UnmarshalJSON(buf []byte) error {
	buf = bytes.TrimSpace(buf)
	if len(buf) == 0 || bytes.Equal(buf, []byte("null")) {
		*s = ""
		return nil
	}
	if buf[0] == '"' {
		var str string
		err := json.Unmarshal(buf, &str)
		if err != nil {
			return err
		}
		*s = flexString(str)
		return nil
	}
	*s = flexString(buf)
	return nil
}

// flexInt accepts json numbers and numeric strings, anything else is 0.
type flexInt int

func (n *flexInt) UnmarshalJSON(buf []byte) error {
	var s flexString
	err := s.UnmarshalJSON(buf)
	if err != nil {
		return err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(s)))
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexInt(v)
	return nil
}

type member struct {
	Key   string
	Value json.RawMessage
}

// orderedObject is a json object that keeps the order of its members.
type orderedObject []member

func (o *orderedObject) UnmarshalJSON(buf []byte) error {
	dec := json.NewDecoder(bytes.NewReader(buf))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	*o = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		err = dec.Decode(&value)
		if err != nil {
			return err
		}
		*o = append(*o, member{Key: key, Value: value})
	}
	return nil
}

// display renders a record value: strings as is, numbers as text and
// arrays joined with "; ", objects in arrays by their title.
func display(value json.RawMessage) string {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return ""
	}
	switch value[0] {
	case '"':
		var s string
		if json.Unmarshal(value, &s) == nil {
			return s
		}
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(value, &items) != nil {
			return ""
		}
		var parts []string
		for _, item := range items {
			item = bytes.TrimSpace(item)
			if len(item) == 0 {
				continue
			}
			switch item[0] {
			case '"':
				var s string
				if json.Unmarshal(item, &s) == nil && s != "" {
					parts = append(parts, s)
				}
			case '{':
				var titled struct {
					Title string `json:"title"`
				}
				if json.Unmarshal(item, &titled) == nil && titled.Title != "" {
					parts = append(parts, titled.Title)
				}
			}
		}
		return strings.Join(parts, "; ")
	case '{', 'n', 't', 'f':
		return ""
	default:
		return string(value)
	}
	return ""
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
