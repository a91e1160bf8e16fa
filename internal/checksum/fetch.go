package checksum

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ralt/aurbuild/internal/srcinfo"
)

// Fetcher opens the content of a source declared by the package in dir.
type Fetcher interface {
	Open(ctx context.Context, dir string, src srcinfo.Source) (io.ReadCloser, error)
}

// HTTPFetcher reads local sources from the package directory and downloads
// http and https sources. Other protocols are not supported.
type HTTPFetcher struct {
	Client *http.Client
}

// Open implements Fetcher.
func (f *HTTPFetcher) Open(ctx context.Context, dir string, src srcinfo.Source) (io.ReadCloser, error) {
	switch src.Protocol {
	case "local":
		return os.Open(filepath.Join(dir, src.Location))

	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
		if err != nil {
			return nil, err
		}
		client := f.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s: %s", src.Location, resp.Status)
		}
		return resp.Body, nil

	default:
		return nil, fmt.Errorf("cannot fetch %s: unsupported protocol %q", src.Filename, src.Protocol)
	}
}
