// Package renderer executes program descriptors on a GPU backend: one full-surface draw per
// execution, read back and decoded into typed numeric results.
package renderer

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/profiler"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-compute/engine/window"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ReadFn reads back and decodes the output of one execution. The pixels are read from the
// device on the first call and cached, so every call for the same execution returns the same
// values. Once a later execution starts, or the renderer is released, it fails with
// *SurfaceNotReady.
type ReadFn func() (result.TypedBuffer, error)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend
	profiler    *profiler.Profiler

	// program is the program of the latest execution, released when the next one starts.
	program    Program
	generation uint64
	released   bool

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	lenientCompile       bool
	ignoreUnknown        bool
	window               window.Window
	presentMode          PresentMode
}

// Renderer defines the interface for the execution harness.
//
// A Renderer owns one GPU surface. Each Execute acquires the surface at the output size, compiles
// and links the descriptor's shaders, binds its inputs in order, clears to opaque black, issues
// exactly one draw of the full-surface quad and hands back a ReadFn for the result. Executions on
// one Renderer are serialized; independent Renderers may run in parallel.
type Renderer interface {
	// Execute runs one program descriptor.
	//
	// Parameters:
	//   - ctx: bounds waits on ImageRef inputs
	//   - desc: the program to run
	//
	// Returns:
	//   - ReadFn: reads the decoded result of this execution
	//   - error: *ContextUnavailable, *shader.ShaderCompileError, *shader.ProgramLinkError,
	//     *bind_group_provider.UnknownUniform, *bind_group_provider.UnitMismatch or
	//     *loader.ImageLoadError; nothing is drawn when an error is returned
	Execute(ctx context.Context, desc *pipeline.ProgramDescriptor) (ReadFn, error)

	// Present shows the latest execution's surface in the preview window, if one was configured.
	//
	// Returns:
	//   - error: an error if presenting fails
	Present() error

	// Profiler returns the profiler every execution is recorded into.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// Release releases the latest program and the backend. Any ReadFn still held fails afterwards.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer. Without WithBackend a wgpu backend is created, rendering
// headless unless WithWindow supplies a preview window.
//
// Parameters:
//   - options: a variadic list of RendererBuilderOption functions to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: *ContextUnavailable if no GPU backend can be created
func NewRenderer(options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: BackendTypeWGPU,
		presentMode: PresentModeVSync,
	}
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		opts := WGPUBackendOptions{
			ForceFallbackAdapter: r.forceFallbackAdapter,
			PresentMode:          r.presentMode,
		}
		if r.window != nil {
			opts.SurfaceDescriptor = r.window.SurfaceDescriptor()
		}
		b, err := NewWGPUBackend(opts)
		if err != nil {
			return nil, err
		}
		r.backend = b
	}
	if r.profiler == nil {
		r.profiler = profiler.NewProfiler()
	}
	return r, nil
}

// compileStages reflects both stages of a descriptor, validates them, and links them.
//
// Parameters:
//   - desc: the descriptor supplying the sources
//   - lenient: log WGSL parse failures instead of returning them
//
// Returns:
//   - *shader.Linked: the linked program description
//   - error: *shader.ShaderCompileError or *shader.ProgramLinkError
func compileStages(desc *pipeline.ProgramDescriptor, lenient bool) (*shader.Linked, error) {
	pair := desc.Shaders()
	vs, err := shader.NewShader(desc.Key(), shader.ShaderTypeVertex, pair.Vertex)
	if err != nil {
		return nil, err
	}
	fs, err := shader.NewShader(desc.Key(), shader.ShaderTypeFragment, pair.Fragment)
	if err != nil {
		return nil, err
	}
	for _, s := range []shader.Shader{vs, fs} {
		if err := shader.Validate(s, lenient); err != nil {
			return nil, err
		}
	}
	return shader.Link(desc.Key(), vs, fs)
}

func (r *renderer) Execute(ctx context.Context, desc *pipeline.ProgramDescriptor) (ReadFn, error) {
	if desc == nil {
		return nil, errors.Wrap(pipeline.ErrInvalidDescriptor, "nil descriptor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return nil, &ContextUnavailable{Reason: "renderer released"}
	}
	r.releaseProgram()
	r.generation++
	gen := r.generation

	stats := profiler.RunStats{Key: desc.Key(), ID: uuid.NewString()}
	log := common.Logger().With("program", desc.Key(), "id", stats.ID)
	start := time.Now()
	out := desc.Output()

	if err := r.backend.Acquire(out.Width, out.Height); err != nil {
		return nil, err
	}

	linked, err := compileStages(desc, r.lenientCompile)
	if err != nil {
		return nil, err
	}
	prog, err := r.backend.CompileProgram(linked, desc)
	if err != nil {
		return nil, err
	}
	r.program = prog
	stats.Compile = time.Since(start)

	if err := r.backend.UploadQuad(); err != nil {
		return nil, err
	}

	uploadStart := time.Now()
	bindOpts := []bind_group_provider.BindOption{bind_group_provider.WithLabel(desc.Key())}
	if r.ignoreUnknown {
		bindOpts = append(bindOpts, bind_group_provider.WithIgnoreUnknownUniforms())
	}
	bound, err := bind_group_provider.Bind(ctx, prog, desc.Inputs(), bindOpts...)
	if err != nil {
		return nil, err
	}
	stats.Upload = time.Since(uploadStart)

	drawStart := time.Now()
	if err := r.backend.Draw(prog); err != nil {
		return nil, err
	}
	stats.Draw = time.Since(drawStart)
	stats.Total = time.Since(start)
	stats.Pixels = out.Width * out.Height
	r.profiler.Record(stats)

	log.Debug("program executed", "width", out.Width, "height", out.Height,
		"units", bound.Units(), "skipped", len(bound.Skipped()), "total", stats.Total)
	return r.readFn(gen, out.Type), nil
}

// readFn returns the ReadFn of execution gen.
func (r *renderer) readFn(gen uint64, t result.NumericType) ReadFn {
	var cached []byte
	return func() (result.TypedBuffer, error) {
		r.mu.Lock()
		defer r.mu.Unlock()

		if r.released {
			return result.TypedBuffer{}, &SurfaceNotReady{Reason: "renderer released"}
		}
		if r.generation != gen {
			return result.TypedBuffer{}, &SurfaceNotReady{Reason: "a newer execution replaced the surface"}
		}
		if cached == nil {
			raw, err := r.backend.ReadPixels()
			if err != nil {
				return result.TypedBuffer{}, err
			}
			cached = raw
		}
		return result.Decode(slices.Clone(cached), t)
	}
}

func (r *renderer) Present() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return &ContextUnavailable{Reason: "renderer released"}
	}
	return r.backend.Present()
}

func (r *renderer) Profiler() *profiler.Profiler {
	return r.profiler
}

// releaseProgram releases the program of the previous execution.
func (r *renderer) releaseProgram() {
	if r.program != nil {
		r.program.Release()
		r.program = nil
	}
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.releaseProgram()
	r.backend.Release()
	r.released = true
}
