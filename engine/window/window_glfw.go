package window

import (
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
)

// glfwWindow is a GLFW window without a client API; wgpu renders into its native surface.
type glfwWindow struct {
	handle    *glfw.Window
	closed    bool
	onScroll  func(delta float32)
	onKeyDown func(keyCode uint32)
}

var _ Window = &glfwWindow{}

func openGLFWWindow(cfg windowConfig) (*glfwWindow, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize GLFW")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfwBool(cfg.resizable))
	handle, err := glfw.CreateWindow(cfg.width, cfg.height, cfg.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "failed to create GLFW window")
	}

	w := &glfwWindow{handle: handle}
	handle.SetKeyCallback(w.handleKey)
	handle.SetScrollCallback(func(_ *glfw.Window, _, yoff float64) {
		if w.onScroll != nil {
			w.onScroll(float32(yoff))
		}
	})
	return w, nil
}

// handleKey closes the window on Escape and forwards every other press or repeat.
func (w *glfwWindow) handleKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action == glfw.Release {
		return
	}
	if key == glfw.KeyEscape {
		w.handle.SetShouldClose(true)
		return
	}
	if w.onKeyDown != nil {
		w.onKeyDown(uint32(key))
	}
}

func (w *glfwWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *glfwWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *glfwWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if w.closed {
		return nil
	}
	return wgpuglfw.GetSurfaceDescriptor(w.handle)
}

func (w *glfwWindow) running() bool {
	return !w.closed && !w.handle.ShouldClose()
}

func (w *glfwWindow) PollEvents() bool {
	if w.closed {
		return false
	}
	glfw.PollEvents()
	return w.running()
}

func (w *glfwWindow) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.handle.Destroy()
	glfw.Terminate()
	return nil
}

func glfwBool(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}
