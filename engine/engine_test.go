package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-compute/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timeFragment = `//@oxy:include pack_f32
struct Frame {
    t: f32,
};

@group(0) @binding(0) var<uniform> frame: Frame;

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return pack_f32(frame.t);
}
`

// echoProgram keeps its uniform buffer in memory.
type echoProgram struct {
	linked *shader.Linked
	buffer []byte
}

func (p *echoProgram) Key() string { return "echo" }
func (p *echoProgram) Release()    {}

func (p *echoProgram) Uniform(name string) (shader.UniformSlot, bool) {
	return p.linked.Uniform(name)
}

func (p *echoProgram) WriteBuffer(w bind_group_provider.BufferWrite) error {
	if w.Offset+uint64(len(w.Data)) > uint64(len(p.buffer)) {
		return errors.New("write out of range")
	}
	copy(p.buffer[w.Offset:], w.Data)
	return nil
}

func (p *echoProgram) Texture(string) bool { return false }

func (p *echoProgram) BindTexture(int, string, common.TextureStagingData, common.SamplerStagingData) error {
	return errors.New("no textures")
}

func (p *echoProgram) DeclaredUnits() map[string]int { return nil }

// echoBackend "draws" by copying the first four bytes of the uniform buffer into every pixel.
type echoBackend struct {
	width, height int
	pixels        []byte
	presents      int
	released      bool
}

func (b *echoBackend) Acquire(width, height int) error {
	b.width, b.height = width, height
	return nil
}

func (b *echoBackend) CompileProgram(linked *shader.Linked, _ *pipeline.ProgramDescriptor) (renderer.Program, error) {
	return &echoProgram{linked: linked, buffer: make([]byte, 16)}, nil
}

func (b *echoBackend) UploadQuad() error { return nil }

func (b *echoBackend) Draw(p renderer.Program) error {
	src := p.(*echoProgram).buffer[:4]
	b.pixels = make([]byte, 0, b.width*b.height*4)
	for range b.width * b.height {
		b.pixels = append(b.pixels, src...)
	}
	return nil
}

func (b *echoBackend) ReadPixels() ([]byte, error) { return b.pixels, nil }

func (b *echoBackend) Present() error {
	b.presents++
	return nil
}

func (b *echoBackend) Release() { b.released = true }

// scriptedWindow is a preview window that the user closes after openFor polls.
type scriptedWindow struct {
	openFor int
	polls   int
	closes  int
}

var _ window.Window = &scriptedWindow{}

func (w *scriptedWindow) SetScrollCallback(func(float32))            {}
func (w *scriptedWindow) SetKeyDownCallback(func(uint32))            {}
func (w *scriptedWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor { return nil }
func (w *scriptedWindow) Close() error                               { w.closes++; return nil }
func (w *scriptedWindow) PollEvents() bool {
	w.polls++
	return w.polls < w.openFor
}

func newEchoEngine(t *testing.T, opts ...EngineBuilderOption) (Engine, *echoBackend) {
	t.Helper()
	b := &echoBackend{}
	r := must.M1(renderer.NewRenderer(renderer.WithBackend(b)))
	e, err := NewEngine(append([]EngineBuilderOption{WithRenderer(r), WithTickInterval(time.Millisecond)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e, b
}

func frameAt(v float32) (*pipeline.ProgramDescriptor, error) {
	return pipeline.NewProgram("echo",
		pipeline.WithFragmentShader(timeFragment),
		pipeline.WithOutput(result.Float32, 2, 1),
		pipeline.WithInputs(bind_group_provider.Scalar{Name: "t", Value: v}),
	)
}

func TestEngineExecute(t *testing.T) {
	e, _ := newEchoEngine(t)
	buf, err := e.Execute(context.Background(), must.M1(frameAt(0.25)))
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.25}, buf.Float32())
	assert.Equal(t, 1, e.Profiler().Summary().Runs)
}

func TestEngineAnimate(t *testing.T) {
	e, b := newEchoEngine(t)

	var got []float32
	err := e.Animate(context.Background(), 4,
		func(i int) (*pipeline.ProgramDescriptor, error) {
			s := math.Sin(float64(i) * 0.03)
			return frameAt(float32(s * s))
		},
		func(i int, buf result.TypedBuffer) error {
			got = append(got, buf.Float32()[0])
			return nil
		})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, float32(0), got[0])
	for i := 1; i < 4; i++ {
		assert.Greater(t, got[i], got[i-1])
	}
	assert.Zero(t, b.presents, "headless animations never present")
	assert.Equal(t, 4, e.Profiler().Summary().Runs)
}

func TestEngineAnimatePreview(t *testing.T) {
	win := &scriptedWindow{openFor: 3}
	e, b := newEchoEngine(t, WithWindow(win))

	n := 0
	err := e.Animate(context.Background(), 10, func(int) (*pipeline.ProgramDescriptor, error) {
		return frameAt(1)
	}, func(int, result.TypedBuffer) error {
		n++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, b.presents)
	assert.Equal(t, 3, win.polls)
	assert.Equal(t, 2, n, "the frame that saw the window close is not delivered")

	e.Release()
	assert.Equal(t, 1, win.closes, "release closes a window the user already closed")
}

func TestEngineAnimateStops(t *testing.T) {
	t.Run("frame error", func(t *testing.T) {
		e, _ := newEchoEngine(t)
		boom := errors.New("boom")
		err := e.Animate(context.Background(), 5, func(i int) (*pipeline.ProgramDescriptor, error) {
			if i == 2 {
				return nil, boom
			}
			return frameAt(1)
		}, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, e.Profiler().Summary().Runs)
	})

	t.Run("result error", func(t *testing.T) {
		e, _ := newEchoEngine(t)
		boom := errors.New("boom")
		err := e.Animate(context.Background(), 5, func(int) (*pipeline.ProgramDescriptor, error) {
			return frameAt(1)
		}, func(i int, _ result.TypedBuffer) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("context", func(t *testing.T) {
		e, _ := newEchoEngine(t)
		ctx, cancel := context.WithCancel(context.Background())
		n := 0
		err := e.Animate(ctx, 0, func(int) (*pipeline.ProgramDescriptor, error) {
			return frameAt(1)
		}, func(i int, _ result.TypedBuffer) error {
			n++
			if i == 2 {
				cancel()
			}
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 3, n)
	})

	t.Run("quit", func(t *testing.T) {
		e, _ := newEchoEngine(t)
		n := 0
		err := e.Animate(context.Background(), 0, func(int) (*pipeline.ProgramDescriptor, error) {
			return frameAt(1)
		}, func(i int, _ result.TypedBuffer) error {
			n++
			if i == 1 {
				e.Quit()
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("context during slowed tick", func(t *testing.T) {
		e, _ := newEchoEngine(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		start := time.Now()
		err := e.Animate(ctx, 0, func(int) (*pipeline.ProgramDescriptor, error) {
			return frameAt(1)
		}, func(i int, _ result.TypedBuffer) error {
			if i == 0 {
				e.SetTickRate(0.01)
				time.AfterFunc(20*time.Millisecond, cancel)
			}
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("quit during slowed tick", func(t *testing.T) {
		e, _ := newEchoEngine(t)
		start := time.Now()
		err := e.Animate(context.Background(), 0, func(int) (*pipeline.ProgramDescriptor, error) {
			return frameAt(1)
		}, func(i int, _ result.TypedBuffer) error {
			if i == 0 {
				e.SetTickRate(0.01)
				time.AfterFunc(20*time.Millisecond, e.Quit)
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestEngineTickRate(t *testing.T) {
	assert.Equal(t, DefaultTickRate, tickInterval(0))
	assert.Equal(t, 100*time.Millisecond, tickInterval(10))

	e, _ := newEchoEngine(t, WithTickRate(20))
	assert.Equal(t, 50*time.Millisecond, e.(*engine).tickRate())
	e.SetTickRate(-1)
	assert.Equal(t, DefaultTickRate, e.(*engine).tickRate())
}

func TestEngineReleaseReleasesRenderer(t *testing.T) {
	e, b := newEchoEngine(t)
	e.Release()
	assert.True(t, b.released)
	_, err := e.Execute(context.Background(), must.M1(frameAt(1)))
	var unavailable *renderer.ContextUnavailable
	assert.True(t, errors.As(err, &unavailable))
}
