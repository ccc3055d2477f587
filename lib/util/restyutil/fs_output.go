package restyutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// FilesystemOutput writes one file per message into a directory, it is used
// to capture backend pages as test fixtures.
type FilesystemOutput struct {
	directory string
	counter   *uint64
}

// NewFilesystemOutput empties dir (creating it when needed).
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	var counter uint64
	return FilesystemOutput{directory: dir, counter: &counter}, nil
}

func (o FilesystemOutput) Write(id string, contents []byte) {
	err := os.WriteFile(filepath.Join(o.directory, id), contents, 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}

// Dump writes every response of client into o, the files are numbered in
// the order the responses arrive and start with the request line.
func (o FilesystemOutput) Dump(client *resty.Client) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		n := atomic.AddUint64(o.counter, 1)
		header := fmt.Sprintf("%s %s\n%d\n\n", res.Request.Method, res.Request.URL, res.StatusCode())
		o.Write(fmt.Sprintf("%04d.txt", n), append([]byte(header), res.Body()...))
		return nil
	})
}
