package transport

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", UTF8, "UTF8":
		return unicode.UTF8, nil
	case ISO88591, "LATIN1":
		// htmlindex maps latin1 to windows-1252, the backends mean the real thing.
		return charmap.ISO8859_1, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset '%s': %w", name, err)
	}
	return enc, nil
}

func decodeBody(body []byte, name string) ([]byte, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc == unicode.UTF8 {
		return body, nil
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s body: %w", name, err)
	}
	return out, nil
}

// encodeForm url-encodes form with the bytes of the given charset, keys are
// sorted like url.Values.Encode does.
func encodeForm(form url.Values, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == unicode.UTF8 {
		return form.Encode(), nil
	}
	encoder := enc.NewEncoder()
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out strings.Builder
	for _, k := range keys {
		ek, err := encoder.String(k)
		if err != nil {
			return "", fmt.Errorf("encode form key '%s': %w", k, err)
		}
		for _, v := range form[k] {
			ev, err := encoder.String(v)
			if err != nil {
				return "", fmt.Errorf("encode form value of '%s': %w", k, err)
			}
			if out.Len() > 0 {
				out.WriteByte('&')
			}
			out.WriteString(url.QueryEscape(ek))
			out.WriteByte('=')
			out.WriteString(url.QueryEscape(ev))
		}
	}
	return out.String(), nil
}
