package renderer

import (
	"github.com/Carmen-Shannon/oxy-compute/engine/profiler"
	"github.com/Carmen-Shannon/oxy-compute/engine/window"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithBackend supplies the backend instead of creating a wgpu one.
//
// Parameters:
//   - b: the backend; the renderer takes ownership and releases it
//
// Returns:
//   - RendererBuilderOption: a function that applies the backend option to a renderer
func WithBackend(b RendererBackend) RendererBuilderOption {
	return func(r *renderer) {
		r.backend = b
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithLenientCompile logs WGSL front-end parse failures and lets the device compiler decide
// instead of failing the execution.
//
// Parameters:
//   - lenient: true to log and continue
//
// Returns:
//   - RendererBuilderOption: a function that applies the lenient compile option to a renderer
func WithLenientCompile(lenient bool) RendererBuilderOption {
	return func(r *renderer) {
		r.lenientCompile = lenient
	}
}

// WithIgnoreUnknownUniforms logs and skips inputs the program does not declare instead of
// failing the execution.
//
// Parameters:
//   - ignore: true to skip unknown inputs
//
// Returns:
//   - RendererBuilderOption: a function that applies the unknown uniform policy to a renderer
func WithIgnoreUnknownUniforms(ignore bool) RendererBuilderOption {
	return func(r *renderer) {
		r.ignoreUnknown = ignore
	}
}

// WithWindow attaches a preview window. Renderer.Present copies the latest surface into it.
//
// Parameters:
//   - w: an initialized window
//
// Returns:
//   - RendererBuilderOption: a function that applies the window option to a renderer
func WithWindow(w window.Window) RendererBuilderOption {
	return func(r *renderer) {
		r.window = w
	}
}

// WithPresentMode sets the preview window present mode.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.presentMode = mode
	}
}

// WithProfiler records executions into an existing profiler instead of a new one.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - RendererBuilderOption: a function that applies the profiler option to a renderer
func WithProfiler(p *profiler.Profiler) RendererBuilderOption {
	return func(r *renderer) {
		r.profiler = p
	}
}
