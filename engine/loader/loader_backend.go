package loader

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// loaderBackend defines the interface for fetching encoded image bytes from one kind of
// location. Concrete implementations (httpLoaderBackend, fileLoaderBackend) handle the
// transport.
type loaderBackend interface {
	// Open opens the encoded image at location.
	//
	// Parameters:
	//   - ctx: bounds the request
	//   - location: the URL or path
	//
	// Returns:
	//   - io.ReadCloser: the encoded bytes, closed by the caller
	//   - error: error if the location cannot be opened
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// httpLoaderBackend fetches http and https URLs.
type httpLoaderBackend struct {
	client *http.Client
}

var _ loaderBackend = &httpLoaderBackend{}

func (b *httpLoaderBackend) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("fetch: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// fileLoaderBackend opens file:// URLs and plain paths.
type fileLoaderBackend struct{}

var _ loaderBackend = &fileLoaderBackend{}

func (b *fileLoaderBackend) Open(_ context.Context, location string) (io.ReadCloser, error) {
	path := location
	if strings.HasPrefix(location, "file://") {
		u, err := url.Parse(location)
		if err != nil {
			return nil, errors.Wrap(err, "parse file url")
		}
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	return f, nil
}
