package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/Carmen-Shannon/oxy-compute/engine/window"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewT(t *testing.T) {
	v := newView(defaultMaxIterations)
	assert.Equal(t, float32(0), v.t())
	v.advance()
	assert.InDelta(t, 0.0009, v.t(), 1e-5)

	v.handleKey(window.KeySpace)
	v.advance()
	assert.Equal(t, 1, v.step, "paused views keep their step")
}

func TestViewControls(t *testing.T) {
	v := newView(defaultMaxIterations)
	v.handleKey(window.KeyD)
	assert.InDelta(t, 0.4, v.centerX, 1e-6)
	v.handleKey(window.KeyUp)
	assert.InDelta(t, 0.4, v.centerY, 1e-6)

	v.zoom(1)
	assert.InDelta(t, 3.6, v.size, 1e-5)
	v.handleKey(window.KeyE)
	assert.InDelta(t, 4.0, v.size, 1e-5)

	v.step = 7
	v.handleKey(window.KeyR)
	assert.Zero(t, v.centerX)
	assert.Zero(t, v.centerY)
	assert.Equal(t, float32(defaultZoomSize), v.size)
	assert.Equal(t, 7, v.step)
}

func TestViewProgram(t *testing.T) {
	v := newView(250)
	desc := must.M1(v.program(64, 32))
	assert.Equal(t, "fractal", desc.Key())
	assert.Equal(t, 64, desc.Output().Width)
	assert.Equal(t, result.Uint8, desc.Output().Type)
	require.Len(t, desc.Inputs(), 5)
	assert.Equal(t, "max_iterations", desc.Inputs()[3].BindingName())
}

func TestWriteFrame(t *testing.T) {
	dir := t.TempDir()
	raw := []byte{255, 0, 0, 255, 0, 255, 0, 255}
	buf := must.M1(result.Decode(raw, result.Uint8))

	path, err := writeFrame(dir, 3, 2, 1, buf)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "frame_00003.png"), path)

	f := must.M1(os.Open(path))
	defer f.Close()
	img := must.M1(png.Decode(f))
	assert.Equal(t, 2, img.Bounds().Dx())
	r, g, _, _ := img.At(1, 0).RGBA()
	assert.Zero(t, r)
	assert.Equal(t, uint32(0xffff), g)

	_, err = writeFrame(dir, 4, 3, 1, buf)
	assert.Error(t, err)
}
