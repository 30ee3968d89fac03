package loader

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	defaultSettleDelay = 300 * time.Millisecond
	defaultTimeout     = 30 * time.Second
	poolQueueSize      = 256
)

// errLoaderReleased resolves images still waiting for a worker when the loader is released.
var errLoaderReleased = errors.New("loader released")

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	settleDelay time.Duration
	timeout     time.Duration
	workers     int
	client      *http.Client

	imageCache map[string]*imageFuture

	pool   worker.DynamicWorkerPool
	taskID atomic.Int64

	// pending holds tasks not yet handed to the pool. The pool blocks once its queue is full, so
	// a single submitter goroutine feeds it and Load never waits. futures holds every image no
	// worker has claimed yet.
	pending   []worker.Task
	futures   map[int]*imageFuture
	wake      chan struct{}
	quit      chan struct{}
	quitOnce  sync.Once
	submitted sync.WaitGroup

	httpBackend loaderBackend
	fileBackend loaderBackend
}

// Loader loads images in the background and caches them by location. Fetching and decoding run
// on a worker pool; callers receive an Image future immediately.
type Loader interface {
	// Load starts loading the image at location, or returns the cached future for it. The
	// location is an http(s):// URL, a file:// URL or a plain path. PNG, JPEG, GIF, BMP, TIFF
	// and WebP are decoded. ctx supplies request values; cancelling it does not cancel the load.
	//
	// Parameters:
	//   - ctx: request scoped values for the fetch
	//   - location: where to load the image from
	//
	// Returns:
	//   - Image: the image future
	Load(ctx context.Context, location string) Image

	// Get retrieves a cached image future by location.
	//
	// Parameters:
	//   - location: the location passed to Load
	//
	// Returns:
	//   - Image: the cached future
	//   - bool: false if the location was never loaded
	Get(location string) (Image, bool)

	// Release stops the worker pool. Images already resolved stay readable; images that never
	// reached a worker resolve with *ImageLoadError.
	Release()
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		imageCache: make(map[string]*imageFuture),
	}
	for _, option := range options {
		option(l)
	}

	l.settleDelay = common.Coalesce(l.settleDelay, defaultSettleDelay)
	l.timeout = common.Coalesce(l.timeout, defaultTimeout)
	l.workers = common.Coalesce(l.workers, runtime.NumCPU())
	if l.client == nil {
		l.client = &http.Client{Timeout: l.timeout}
	}

	l.httpBackend = &httpLoaderBackend{client: l.client}
	l.fileBackend = &fileLoaderBackend{}
	l.pool = worker.NewDynamicWorkerPool(l.workers, poolQueueSize, 1*time.Second)
	l.futures = make(map[int]*imageFuture)
	l.wake = make(chan struct{}, 1)
	l.quit = make(chan struct{})
	l.submitted.Add(1)
	go l.submit()
	return l
}

func (l *loader) Load(ctx context.Context, location string) Image {
	l.mu.Lock()
	if cached, ok := l.imageCache[location]; ok {
		l.mu.Unlock()
		return cached
	}
	f := newImageFuture(location)
	l.imageCache[location] = f
	l.mu.Unlock()

	loadCtx := context.WithoutCancel(ctx)
	id := int(l.taskID.Add(1))
	task := worker.Task{
		ID:      id,
		Payload: location,
		Do: func() (any, error) {
			if !l.claim(id) {
				return nil, errLoaderReleased
			}
			start := time.Now()
			tex, err := l.decode(loadCtx, location)
			if err != nil {
				err = &ImageLoadError{URL: location, Err: err}
				common.Logger().Warn("image load failed", "url", location, "err", err)
				f.resolve(common.TextureStagingData{}, err)
				return nil, err
			}
			common.Logger().Debug("image decoded", "url", location, "width", tex.Width, "height", tex.Height, "elapsed", time.Since(start))
			if l.settleDelay <= 0 {
				f.resolve(tex, nil)
			} else {
				time.AfterFunc(l.settleDelay, func() { f.resolve(tex, nil) })
			}
			return tex, nil
		},
	}

	l.mu.Lock()
	l.pending = append(l.pending, task)
	l.futures[id] = f
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return f
}

func (l *loader) Get(location string) (Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	f, ok := l.imageCache[location]
	if !ok {
		return nil, false
	}
	return f, true
}

// submit hands pending tasks to the pool in order until the loader is released.
func (l *loader) submit() {
	defer l.submitted.Done()
	for {
		select {
		case <-l.quit:
			return
		case <-l.wake:
		}
		for {
			l.mu.Lock()
			if len(l.pending) == 0 {
				l.mu.Unlock()
				break
			}
			task := l.pending[0]
			l.pending = l.pending[1:]
			l.mu.Unlock()

			if !l.submitTask(task) {
				return
			}
		}
	}
}

// submitTask blocks until the pool accepts task or the loader is released. A submission still
// blocked on release is abandoned; its future is resolved by Release.
func (l *loader) submitTask(task worker.Task) bool {
	accepted := make(chan struct{})
	go func() {
		l.pool.SubmitTask(task)
		close(accepted)
	}()
	select {
	case <-accepted:
		return true
	case <-l.quit:
		return false
	}
}

// claim removes the future of task id so Release no longer resolves it.
//
// Returns:
//   - bool: false when Release already resolved the future
func (l *loader) claim(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.futures[id]; !ok {
		return false
	}
	delete(l.futures, id)
	return true
}

func (l *loader) Release() {
	l.quitOnce.Do(func() {
		close(l.quit)
		l.submitted.Wait()
		l.pool.Stop()

		l.mu.Lock()
		for _, f := range l.futures {
			f.resolve(common.TextureStagingData{}, &ImageLoadError{URL: f.url, Err: errLoaderReleased})
		}
		l.pending = nil
		l.futures = make(map[int]*imageFuture)
		l.mu.Unlock()
	})
}

// resolveBackend picks the backend serving a location by its scheme.
func (l *loader) resolveBackend(location string) (loaderBackend, error) {
	scheme, _, ok := strings.Cut(location, "://")
	if !ok {
		return l.fileBackend, nil
	}
	switch strings.ToLower(scheme) {
	case "http", "https":
		return l.httpBackend, nil
	case "file":
		return l.fileBackend, nil
	default:
		return nil, errors.Errorf("unsupported scheme %q", scheme)
	}
}

// decode fetches and decodes the image at location into tightly packed non-premultiplied RGBA8.
func (l *loader) decode(ctx context.Context, location string) (common.TextureStagingData, error) {
	backend, err := l.resolveBackend(location)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	rc, err := backend.Open(ctx, location)
	if err != nil {
		return common.TextureStagingData{}, err
	}
	defer rc.Close()

	img, format, err := image.Decode(rc)
	if err != nil {
		return common.TextureStagingData{}, errors.Wrap(err, "decode")
	}
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	if b.Empty() {
		return common.TextureStagingData{}, errors.Errorf("decode: empty %s image", format)
	}
	return common.TextureStagingData{
		Pixels: nrgba.Pix,
		Width:  uint32(b.Dx()),
		Height: uint32(b.Dy()),
	}, nil
}
