// Package window provides the optional GLFW preview window an execution's surface can be
// presented to.
package window

import (
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// Window is a preview window the renderer presents frames into. The engine polls it once per
// animation frame.
type Window interface {
	// SetScrollCallback sets the callback for mouse scroll wheel events.
	//
	// Parameters:
	//   - callback: function receiving the vertical scroll delta, positive when scrolling up
	SetScrollCallback(callback func(delta float32))

	// SetKeyDownCallback sets the callback for key presses and repeats.
	//
	// Parameters:
	//   - callback: function receiving the key code, see the Key constants
	SetKeyDownCallback(callback func(keyCode uint32))

	// SurfaceDescriptor describes the window's native surface for wgpu.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil once the window is closed
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// PollEvents dispatches pending input events without blocking.
	//
	// Returns:
	//   - bool: false once the window has been closed by the user or by Close
	PollEvents() bool

	// Close destroys the window. Later calls are no-ops.
	//
	// Returns:
	//   - error: always nil for GLFW windows
	Close() error
}

type windowConfig struct {
	title         string
	width, height int
	resizable     bool
}

// NewWindow creates and shows a preview window. It must be called from the main goroutine, which
// GLFW requires for every later window call too.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: an error if the size is invalid or GLFW cannot create the window
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	cfg := windowConfig{
		title:  "oxy-compute",
		width:  800,
		height: 800,
	}
	for _, opt := range options {
		opt(&cfg)
	}
	if cfg.width <= 0 || cfg.height <= 0 {
		return nil, errors.Errorf("invalid window size %dx%d", cfg.width, cfg.height)
	}
	w, err := openGLFWWindow(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create platform window")
	}
	return w, nil
}
