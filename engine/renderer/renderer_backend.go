package renderer

import (
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
)

// RendererBackendType identifies the GPU backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota
)

// PresentMode controls how preview frames are presented to the window surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping the preview
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	PresentModeUncapped
)

// QuadVertices is the full-surface quad drawn by every execution, as a 4 vertex triangle strip
// of vec2<f32> positions. The order covers every pixel of the surface exactly once.
var QuadVertices = []float32{
	-1, 1,
	1, 1,
	-1, -1,
	1, -1,
}

// Program is a compiled and linked vertex/fragment pair living on a backend. Inputs are bound
// to it through the bind_group_provider.Target methods.
type Program interface {
	bind_group_provider.Target

	// Key returns the program key.
	//
	// Returns:
	//   - string: the key of the descriptor the program was compiled from
	Key() string

	// Release releases every GPU object owned by the program: pipeline, layouts, uniform
	// buffers, textures and samplers.
	Release()
}

// RendererBackend is the capability interface the Renderer drives. It owns the device, the
// off-screen render target and every GPU object it allocates. Backends are not safe for
// concurrent use; the Renderer serializes access.
type RendererBackend interface {
	// Acquire allocates, or resizes, the off-screen RGBA8 render target and its readback buffer.
	// Any previously drawn pixels are discarded.
	//
	// Parameters:
	//   - width: the surface width in pixels
	//   - height: the surface height in pixels
	//
	// Returns:
	//   - error: *ContextUnavailable if no device exists or the size is invalid for the device
	Acquire(width, height int) error

	// CompileProgram creates the device-side pipeline for a linked program.
	//
	// Parameters:
	//   - linked: the reflected and linked shader stages
	//   - desc: the descriptor supplying the blend state
	//
	// Returns:
	//   - Program: the compiled program
	//   - error: *shader.ShaderCompileError or *shader.ProgramLinkError carrying the device diagnostics
	CompileProgram(linked *shader.Linked, desc *pipeline.ProgramDescriptor) (Program, error)

	// UploadQuad uploads QuadVertices into a static vertex buffer. Later calls are no-ops.
	//
	// Returns:
	//   - error: an error if the buffer cannot be created
	UploadQuad() error

	// Draw clears the render target to opaque black, draws the quad once with the program and
	// copies the target into the readback buffer. It blocks until the GPU work completes.
	//
	// Parameters:
	//   - p: a program compiled by this backend
	//
	// Returns:
	//   - error: *SurfaceNotReady if no surface was acquired, or a device error
	Draw(p Program) error

	// ReadPixels returns the last drawn surface as width*height*4 tightly packed RGBA bytes,
	// row 0 first.
	//
	// Returns:
	//   - []byte: the pixels
	//   - error: *SurfaceNotReady before the first draw after Acquire, or after Release
	ReadPixels() ([]byte, error)

	// Present shows the last drawn surface in the preview window. Backends without a window
	// return nil.
	//
	// Returns:
	//   - error: an error if the window surface cannot be acquired
	Present() error

	// Release releases the render target, the quad and the device.
	Release()
}
