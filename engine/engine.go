// Package engine is the entry point of the compute harness. It owns a Renderer, runs single
// executions and drives frame-by-frame animations, optionally previewed in a window.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/profiler"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/Carmen-Shannon/oxy-compute/engine/window"
	"github.com/pkg/errors"
)

// FrameFunc builds the program descriptor of animation frame i.
type FrameFunc func(i int) (*pipeline.ProgramDescriptor, error)

// ResultFunc receives the decoded result of animation frame i.
type ResultFunc func(i int, buf result.TypedBuffer) error

// engine implements the Engine interface.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	mu      sync.Mutex

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer

	rendererOptions  []renderer.RendererBuilderOption
	profilingEnabled bool
	engineTickRate   time.Duration
}

// Engine is the main entry point for the harness.
type Engine interface {
	// Renderer returns the renderer executions run on.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// Window returns the preview window, or nil when running headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Profiler returns the profiler every execution is recorded into.
	//
	// Returns:
	//   - *profiler.Profiler: the profiler
	Profiler() *profiler.Profiler

	// Execute runs one program and reads back its decoded result.
	//
	// Parameters:
	//   - ctx: bounds waits on image inputs
	//   - desc: the program to run
	//
	// Returns:
	//   - result.TypedBuffer: the decoded output
	//   - error: any execution or readback error
	Execute(ctx context.Context, desc *pipeline.ProgramDescriptor) (result.TypedBuffer, error)

	// Animate runs one execution per tick. Frame i is built by frame, executed, presented to the
	// preview window when one is configured, and handed to onFrame. It returns when frames frames
	// have run (frames <= 0 runs until stopped), the context is done, Quit is called or the
	// preview window is closed.
	//
	// Parameters:
	//   - ctx: cancels the animation between frames
	//   - frames: the number of frames to run, or <= 0 for no limit
	//   - frame: builds each frame's program descriptor
	//   - onFrame: receives each frame's result (may be nil)
	//
	// Returns:
	//   - error: the first error of frame, an execution or onFrame; ctx.Err() on cancellation
	Animate(ctx context.Context, frames int, frame FrameFunc, onFrame ResultFunc) error

	// EnableProfiler enables periodic frame rate and memory logging while animating.
	EnableProfiler()

	// DisableProfiler disables periodic profiling output.
	DisableProfiler()

	// SetTickRate sets the animation tick rate in frames per second.
	// A running animation picks the new rate up on its next tick.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 30 if <= 0)
	SetTickRate(fps float64)

	// Quit stops a running animation. Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Release releases the renderer and closes the preview window.
	Release()
}

var _ Engine = &engine{}

// DefaultTickRate is the animation tick used when none is configured, roughly 30 frames per second.
const DefaultTickRate = 33 * time.Millisecond

// NewEngine creates a new Engine instance with the provided options.
// Without WithRenderer a renderer is created from the WithRendererOptions options, presenting to
// the WithWindow window when one is set.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the renderer cannot be created
func NewEngine(options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		engineTickRate:  DefaultTickRate,
	}
	for _, opt := range options {
		opt(e)
	}

	if e.renderer == nil {
		opts := e.rendererOptions
		if e.window != nil {
			opts = append(opts, renderer.WithWindow(e.window))
		}
		r, err := renderer.NewRenderer(opts...)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create renderer")
		}
		e.renderer = r
	}
	return e, nil
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.renderer.Profiler()
}

func (e *engine) Execute(ctx context.Context, desc *pipeline.ProgramDescriptor) (result.TypedBuffer, error) {
	read, err := e.renderer.Execute(ctx, desc)
	if err != nil {
		return result.TypedBuffer{}, err
	}
	return read()
}

func (e *engine) Animate(ctx context.Context, frames int, frame FrameFunc, onFrame ResultFunc) error {
	if frame == nil {
		return errors.New("animate requires a frame function")
	}
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return errors.New("an animation is already running")
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	ticker := time.NewTicker(e.tickRate())
	defer ticker.Stop()

	p := e.Profiler()
	for i := 0; frames <= 0 || i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 {
			if quit, err := e.awaitTick(ctx, ticker); quit || err != nil {
				return err
			}
		}
		if e.quitting() {
			return nil
		}

		desc, err := frame(i)
		if err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}
		buf, err := e.Execute(ctx, desc)
		if err != nil {
			return errors.Wrapf(err, "frame %d", i)
		}

		if e.window != nil {
			if err := e.renderer.Present(); err != nil {
				return errors.Wrapf(err, "present frame %d", i)
			}
			if !e.window.PollEvents() {
				common.Logger().Info("preview window closed", "frame", i)
				return nil
			}
		}

		if onFrame != nil {
			if err := onFrame(i, buf); err != nil {
				return errors.Wrapf(err, "frame %d", i)
			}
		}
		if e.profilingEnabled {
			p.Tick()
		}
	}
	return nil
}

// awaitTick blocks until the next tick. A tick rate change resets the ticker and keeps waiting,
// so cancellation and Quit are observed during the new interval too.
//
// Returns:
//   - bool: true when the animation must stop
//   - error: the context error when ctx is done
func (e *engine) awaitTick(ctx context.Context, ticker *time.Ticker) (bool, error) {
	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case <-e.quitChannel:
			return true, nil
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.setTickRate(newRate)
		case <-ticker.C:
			return false, nil
		}
	}
}

// quitting reports whether Quit has been called.
func (e *engine) quitting() bool {
	select {
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

// Quit signals a running animation to stop.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) Release() {
	e.Quit()
	e.renderer.Release()
	if e.window != nil {
		if err := e.window.Close(); err != nil {
			common.Logger().Warn("failed to close preview window", "error", err)
		}
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the animation tick rate in frames per second.
// If an animation is running, the change takes effect on its next tick.
func (e *engine) SetTickRate(fps float64) {
	newRate := tickInterval(fps)

	e.mu.Lock()
	running := e.running
	e.mu.Unlock()

	if !running {
		e.setTickRate(newRate)
		return
	}
	// Non-blocking send - if channel is full, replace the pending value
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

func (e *engine) tickRate() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.engineTickRate
}

func (e *engine) setTickRate(d time.Duration) {
	e.mu.Lock()
	e.engineTickRate = d
	e.mu.Unlock()
}

// tickInterval converts a rate in frames per second to a tick interval.
func tickInterval(fps float64) time.Duration {
	if fps <= 0 {
		return DefaultTickRate
	}
	return time.Duration(float64(time.Second) / fps)
}
