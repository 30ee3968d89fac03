package loader

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeTestPNG returns a w x h PNG whose pixel (x, y) is (x, y, 7, 255).
func encodeTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 7, A: 255})
		}
	}
	var buf bytes.Buffer
	must.M(png.Encode(&buf, img))
	return buf.Bytes()
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLoadHTTP(t *testing.T) {
	payload := encodeTestPNG(t, 3, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	l := NewLoader(WithSettleDelay(-1))
	defer l.Release()

	img := l.Load(context.Background(), srv.URL+"/img.png")
	tex, err := img.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), tex.Width)
	assert.Equal(t, uint32(2), tex.Height)
	require.Len(t, tex.Pixels, 3*2*4)
	// pixel (2, 1)
	assert.Equal(t, []byte{2, 1, 7, 255}, tex.Pixels[(1*3+2)*4:(1*3+2)*4+4])

	w, h, err := img.Size(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)

	t.Run("not found", func(t *testing.T) {
		_, err := l.Load(context.Background(), srv.URL+"/missing.png").Wait(waitCtx(t))
		var loadErr *ImageLoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, srv.URL+"/missing.png", loadErr.URL)
		assert.Contains(t, loadErr.Error(), "404")
	})
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.png")
	must.M(os.WriteFile(path, encodeTestPNG(t, 4, 4), 0o644))

	l := NewLoader(WithSettleDelay(-1), WithWorkers(2))
	defer l.Release()

	for _, location := range []string{path, "file://" + path} {
		tex, err := l.Load(context.Background(), location).Wait(waitCtx(t))
		require.NoError(t, err, location)
		assert.True(t, tex.Valid())
		assert.Equal(t, uint32(4), tex.Width)
	}

	_, err := l.Load(context.Background(), filepath.Join(dir, "absent.png")).Wait(waitCtx(t))
	var loadErr *ImageLoadError
	assert.True(t, errors.As(err, &loadErr))

	must.M(os.WriteFile(filepath.Join(dir, "junk.png"), []byte("not an image"), 0o644))
	_, err = l.Load(context.Background(), filepath.Join(dir, "junk.png")).Wait(waitCtx(t))
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, loadErr.Error(), "decode")
}

func TestLoadUnsupportedScheme(t *testing.T) {
	l := NewLoader(WithSettleDelay(-1))
	defer l.Release()
	_, err := l.Load(context.Background(), "ftp://example.com/a.png").Wait(waitCtx(t))
	var loadErr *ImageLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, loadErr.Error(), "unsupported scheme")
}

func TestLoadCachesFutures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	must.M(os.WriteFile(path, encodeTestPNG(t, 1, 1), 0o644))

	l := NewLoader(WithSettleDelay(-1))
	defer l.Release()

	first := l.Load(context.Background(), path)
	assert.Same(t, first, l.Load(context.Background(), path))
	cached, ok := l.Get(path)
	require.True(t, ok)
	assert.Same(t, first, cached)
	_, ok = l.Get("elsewhere.png")
	assert.False(t, ok)
}

func TestLoadReturnsWhileWorkersAreBusy(t *testing.T) {
	payload := encodeTestPNG(t, 1, 1)
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-unblock:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()
	defer close(unblock)

	l := NewLoader(WithSettleDelay(-1), WithWorkers(1))
	n := poolQueueSize + 8
	images := make([]Image, n)
	start := time.Now()
	for i := range images {
		images[i] = l.Load(context.Background(), fmt.Sprintf("%s/%d.png", srv.URL, i))
	}
	assert.Less(t, time.Since(start), time.Second, "Load waited for the busy pool")

	l.Release()
	for _, img := range []Image{images[1], images[n-1]} {
		_, err := img.Wait(waitCtx(t))
		var loadErr *ImageLoadError
		require.True(t, errors.As(err, &loadErr), "%s: %v", img.URL(), err)
		assert.Equal(t, img.URL(), loadErr.URL)
		assert.True(t, errors.Is(err, errLoaderReleased))
	}
}

func TestSettleDelayHoldsDimensions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "img.png")
	must.M(os.WriteFile(path, encodeTestPNG(t, 2, 2), 0o644))

	const delay = 200 * time.Millisecond
	l := NewLoader(WithSettleDelay(delay))
	defer l.Release()

	start := time.Now()
	img := l.Load(context.Background(), path)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := img.Size(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	w, h, err := img.Size(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
	assert.GreaterOrEqual(t, time.Since(start), delay)

	select {
	case <-img.Done():
	default:
		t.Fatal("Done not closed after Size returned")
	}
}
