package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"opacbridge/internal/components/telemetry"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	c, err := New(Options{RequestsPerSecond: 100}, telemetry.NewRecorder())
	require.NoError(t, err)
	return c
}

func TestClientKeepsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s3cr3t", Path: "/"})
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/account", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil {
			http.Error(w, "logged out", http.StatusUnauthorized)
			return
		}
		w.Write([]byte("hello " + cookie.Value))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.Get(ctx, srv.URL+"/account", "")
	var status *StatusError
	require.ErrorAs(t, err, &status)
	require.Equal(t, http.StatusUnauthorized, status.Code)

	_, err = c.Post(ctx, srv.URL+"/login", url.Values{"user": {"a"}}, "")
	require.NoError(t, err)

	body, err := c.Get(ctx, srv.URL+"/account", "")
	require.NoError(t, err)
	require.Equal(t, "hello s3cr3t", string(body))

	require.NoError(t, c.ResetSession())
	_, err = c.Get(ctx, srv.URL+"/account", "")
	require.ErrorAs(t, err, &status)
}

func TestClientLatin1(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		latin1, _ := charmap.ISO8859_1.NewEncoder().String("Bücher für Groß und Klein")
		w.Write([]byte(latin1))
	}))
	defer srv.Close()

	c := newTestClient(t)
	body, err := c.Post(context.Background(), srv.URL, url.Values{"q": {"Märchen"}, "a": {"1"}}, ISO88591)
	require.NoError(t, err)
	require.Equal(t, "Bücher für Groß und Klein", string(body))
	require.Equal(t, "a=1&q=M%E4rchen", string(received))
}

func TestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := newTestClient(t).Get(context.Background(), srv.URL+"/gone", "")
	require.True(t, IsNotFound(err))
	require.False(t, IsNotFound(io.EOF))
}

func TestEncodeFormUTF8(t *testing.T) {
	got, err := encodeForm(url.Values{"b": {"ü"}, "a": {"x y"}}, "")
	require.NoError(t, err)
	require.Equal(t, "a=x+y&b=%C3%BC", got)

	_, err = encodeForm(url.Values{"a": {"1"}}, "no-such-charset")
	require.Error(t, err)
}

func TestClientDumpsResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>" + r.URL.Path + "</html>"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "dump")
	c, err := New(Options{RequestsPerSecond: 100, DumpDir: dir}, telemetry.NewRecorder())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = c.Get(ctx, srv.URL+"/first", "")
	require.NoError(t, err)
	_, err = c.Get(ctx, srv.URL+"/second", "")
	require.NoError(t, err)

	second, err := os.ReadFile(filepath.Join(dir, "0002.txt"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(second), "GET "+srv.URL+"/second\n200\n"))
	require.True(t, strings.HasSuffix(string(second), "<html>/second</html>"))
}
