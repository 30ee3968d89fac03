package loader

import (
	"context"
	"sync"

	"github.com/Carmen-Shannon/oxy-compute/common"
)

// imageFuture is the implementation of the Image interface. It resolves exactly once.
type imageFuture struct {
	url  string
	once sync.Once
	done chan struct{}

	tex common.TextureStagingData
	err error
}

// Image is an image being loaded in the background. It satisfies the binding compiler's
// ImageSource, so it can be handed to an ImageRef input before the load completes.
type Image interface {
	// URL returns the location the image is loaded from.
	//
	// Returns:
	//   - string: the URL or path passed to Load
	URL() string

	// Done returns a channel closed once the image has resolved, successfully or not.
	//
	// Returns:
	//   - <-chan struct{}: the completion channel
	Done() <-chan struct{}

	// Wait blocks until the image resolves or ctx is done. Cancelling ctx abandons the wait,
	// not the load.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - common.TextureStagingData: tightly packed non-premultiplied RGBA8 pixels
	//   - error: *ImageLoadError, or ctx.Err()
	Wait(ctx context.Context) (common.TextureStagingData, error)

	// Size blocks like Wait and returns the image dimensions. Dimensions are only published
	// after decoding finished and the loader's settle delay elapsed.
	//
	// Parameters:
	//   - ctx: bounds the wait
	//
	// Returns:
	//   - int: the width in pixels
	//   - int: the height in pixels
	//   - error: *ImageLoadError, or ctx.Err()
	Size(ctx context.Context) (int, int, error)
}

var _ Image = &imageFuture{}

func newImageFuture(url string) *imageFuture {
	return &imageFuture{url: url, done: make(chan struct{})}
}

// resolve publishes the result. Later calls are ignored.
func (f *imageFuture) resolve(tex common.TextureStagingData, err error) {
	f.once.Do(func() {
		f.tex, f.err = tex, err
		close(f.done)
	})
}

func (f *imageFuture) URL() string {
	return f.url
}

func (f *imageFuture) Done() <-chan struct{} {
	return f.done
}

func (f *imageFuture) Wait(ctx context.Context) (common.TextureStagingData, error) {
	select {
	case <-f.done:
		return f.tex, f.err
	case <-ctx.Done():
		return common.TextureStagingData{}, ctx.Err()
	}
}

func (f *imageFuture) Size(ctx context.Context) (int, int, error) {
	tex, err := f.Wait(ctx)
	if err != nil {
		return 0, 0, err
	}
	return int(tex.Width), int(tex.Height), nil
}
