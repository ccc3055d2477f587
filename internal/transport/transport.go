// Package transport is the http collaborator of the adapters. It keeps the
// cookies of one session and converts between the backend charset and utf-8.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Transport is what adapters use to talk to their backend. Bodies are
// returned as utf-8, enc names the charset of the backend ("" is utf-8).
type Transport interface {
	Get(ctx context.Context, url string, enc string) ([]byte, error)
	Post(ctx context.Context, url string, form url.Values, enc string) ([]byte, error)
}

const (
	UTF8     = "UTF-8"
	ISO88591 = "ISO-8859-1"
)

// StatusError is returned for non 2xx responses.
type StatusError struct {
	Method string
	URL    string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
}

// IsNotFound reports whether err is a 404 or 410 response.
func IsNotFound(err error) bool {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code == http.StatusNotFound || status.Code == http.StatusGone
	}
	return false
}
