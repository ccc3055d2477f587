// Package transporttest provides a scripted Transport for adapter tests.
package transporttest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	"opacbridge/internal/transport"
)

type Call struct {
	Method   string
	URL      string
	Form     url.Values
	Encoding string
}

type response struct {
	body []byte
	err  error
}

type route struct {
	method    string
	prefix    string
	responses []response
}

// Scripted answers requests from canned responses. A route matches when the
// method is equal and the url starts with its prefix, the first matching
// route wins. A route with several responses returns them in order and
// repeats the last one.
type Scripted struct {
	mu     sync.Mutex
	routes []*route
	calls  []Call
}

func New() *Scripted {
	return &Scripted{}
}

func (s *Scripted) add(method, prefix string, res response) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.routes {
		if r.method == method && r.prefix == prefix {
			r.responses = append(r.responses, res)
			return s
		}
	}
	s.routes = append(s.routes, &route{method: method, prefix: prefix, responses: []response{res}})
	return s
}

func (s *Scripted) On(method, prefix, body string) *Scripted {
	return s.add(method, prefix, response{body: []byte(body)})
}

// OnFile answers with the contents of a fixture file.
func (s *Scripted) OnFile(t testing.TB, method, prefix, path string) *Scripted {
	t.Helper()
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return s.add(method, prefix, response{body: body})
}

// OnStatus answers with a transport.StatusError.
func (s *Scripted) OnStatus(method, prefix string, code int) *Scripted {
	return s.add(method, prefix, response{err: &transport.StatusError{Method: method, URL: prefix, Code: code}})
}

func (s *Scripted) OnError(method, prefix string, err error) *Scripted {
	return s.add(method, prefix, response{err: err})
}

func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount counts the requests made so far.
func (s *Scripted) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// LastCall returns the most recent request to a url with the given prefix.
func (s *Scripted) LastCall(prefix string) (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if strings.HasPrefix(s.calls[i].URL, prefix) {
			return s.calls[i], true
		}
	}
	return Call{}, false
}

func (s *Scripted) respond(call Call) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	for _, r := range s.routes {
		if r.method != call.Method || !strings.HasPrefix(call.URL, r.prefix) {
			continue
		}
		res := r.responses[0]
		if len(r.responses) > 1 {
			r.responses = r.responses[1:]
		}
		return res.body, res.err
	}
	return nil, fmt.Errorf("no scripted response for %s %s", call.Method, call.URL)
}

func (s *Scripted) Get(_ context.Context, url string, enc string) ([]byte, error) {
	return s.respond(Call{Method: http.MethodGet, URL: url, Encoding: enc})
}

func (s *Scripted) Post(_ context.Context, url string, form url.Values, enc string) ([]byte, error) {
	return s.respond(Call{Method: http.MethodPost, URL: url, Form: form, Encoding: enc})
}

var _ transport.Transport = (*Scripted)(nil)
