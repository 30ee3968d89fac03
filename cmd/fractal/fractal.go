package main

import (
	_ "embed"
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/Carmen-Shannon/oxy-compute/engine/window"
	"github.com/pkg/errors"
)

//go:embed fractal.wgsl
var fractalFragment string

const (
	defaultZoomSize      = 4.0
	defaultMaxIterations = 500

	// panFraction is how far one key press pans, relative to the visible size.
	panFraction = 0.1
	// zoomStep scales the visible size per scroll notch or Q/E press.
	zoomStep = 0.9
)

// view is the part of the fractal the animation shows. Preview input mutates it between frames.
type view struct {
	centerX, centerY float32
	size             float32
	maxIterations    int

	// step drives t; it does not advance while paused.
	step   int
	paused bool
}

func newView(maxIterations int) *view {
	return &view{size: defaultZoomSize, maxIterations: maxIterations}
}

// t returns the morph parameter sin(step*0.03)^2.
func (v *view) t() float32 {
	s := math.Sin(float64(v.step) * 0.03)
	return float32(s * s)
}

// advance moves to the next animation step unless paused.
func (v *view) advance() {
	if !v.paused {
		v.step++
	}
}

func (v *view) zoom(notches float32) {
	v.size *= float32(math.Pow(zoomStep, float64(notches)))
}

func (v *view) handleKey(code uint32) {
	pan := v.size * panFraction
	switch code {
	case window.KeyA, window.KeyLeft:
		v.centerX -= pan
	case window.KeyD, window.KeyRight:
		v.centerX += pan
	case window.KeyW, window.KeyUp:
		v.centerY += pan
	case window.KeyS, window.KeyDown:
		v.centerY -= pan
	case window.KeyQ:
		v.zoom(1)
	case window.KeyE:
		v.zoom(-1)
	case window.KeySpace:
		v.paused = !v.paused
	case window.KeyR:
		*v = view{size: defaultZoomSize, maxIterations: v.maxIterations, step: v.step, paused: v.paused}
	}
}

// program builds the descriptor of the current frame.
func (v *view) program(width, height int) (*pipeline.ProgramDescriptor, error) {
	return pipeline.NewProgram("fractal",
		pipeline.WithFragmentShader(fractalFragment),
		pipeline.WithOutput(result.Uint8, width, height),
		pipeline.WithInputs(
			bind_group_provider.Scalar{Name: "zoom_center_x", Value: v.centerX},
			bind_group_provider.Scalar{Name: "zoom_center_y", Value: v.centerY},
			bind_group_provider.Scalar{Name: "zoom_size", Value: v.size},
			bind_group_provider.Scalar{Name: "max_iterations", Value: float32(v.maxIterations)},
			bind_group_provider.Scalar{Name: "t", Value: v.t()},
		),
	)
}

// writeFrame encodes an RGBA8 frame as dir/frame_NNNNN.png.
func writeFrame(dir string, i, width, height int, buf result.TypedBuffer) (string, error) {
	pix := buf.Uint8()
	if len(pix) != width*height*4 {
		return "", errors.Errorf("frame %d has %d bytes, want %d", i, len(pix), width*height*4)
	}
	img := &image.NRGBA{Pix: pix, Stride: width * 4, Rect: image.Rect(0, 0, width, height)}

	path := filepath.Join(dir, fmt.Sprintf("frame_%05d.png", i))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "encode %s", path)
	}
	return path, errors.Wrapf(f.Close(), "close %s", path)
}
