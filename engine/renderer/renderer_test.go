package renderer

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	redFragment = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

	copyFragment = `
@group(0) @binding(0) var src: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return textureLoad(src, vec2<i32>(pos.xy), 0);
}
`

	paramsFragment = `//@oxy:include pack_f32
struct Params {
    gain: f32,
    steps: i32,
};

@group(0) @binding(0) var<uniform> params: Params;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return pack_f32(params.gain * f32(params.steps));
}
`
)

func redShade(*fakeProgram, int, int) [4]byte {
	return [4]byte{255, 0, 0, 255}
}

func copyShade(p *fakeProgram, x, y int) [4]byte {
	return p.texel("src", x, y)
}

func paramsShade(p *fakeProgram, _, _ int) [4]byte {
	var px [4]byte
	binary.NativeEndian.PutUint32(px[:], math.Float32bits(p.f32("gain")*float32(p.i32("steps"))))
	return px
}

func newFakeRenderer(t *testing.T, opts ...RendererBuilderOption) (Renderer, *fakeBackend) {
	t.Helper()
	b := newFakeBackend(map[string]fakeShade{
		"red":    redShade,
		"copy":   copyShade,
		"params": paramsShade,
	})
	r, err := NewRenderer(append([]RendererBuilderOption{WithBackend(b)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r, b
}

func program(t *testing.T, key, fragment string, t8 result.NumericType, w, h int, inputs ...bind_group_provider.Binding) *pipeline.ProgramDescriptor {
	t.Helper()
	return must.M1(pipeline.NewProgram(key,
		pipeline.WithFragmentShader(fragment),
		pipeline.WithOutput(t8, w, h),
		pipeline.WithInputs(inputs...),
	))
}

func TestExecuteConstantRed(t *testing.T) {
	r, b := newFakeRenderer(t)
	read, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 2, 2))
	require.NoError(t, err)

	buf := must.M1(read())
	assert.Equal(t, []uint8{
		255, 0, 0, 255, 255, 0, 0, 255,
		255, 0, 0, 255, 255, 0, 0, 255,
	}, buf.Uint8())
	assert.Equal(t, 1, b.draws)
	assert.True(t, b.quad)
	assert.Equal(t, 1, r.Profiler().Summary().Runs)
	assert.Equal(t, int64(4), r.Profiler().Summary().Pixels)
}

func TestExecuteIdentityCopy(t *testing.T) {
	r, _ := newFakeRenderer(t)
	data := []byte{10, 20, 30, 40}
	read, err := r.Execute(context.Background(), program(t, "copy", copyFragment, result.Uint8, 1, 1,
		bind_group_provider.Array2D{Name: "src", Width: 1, Height: 1, Data: data}))
	require.NoError(t, err)
	assert.Equal(t, data, must.M1(read()).Uint8())
}

func TestExecuteWritesUniformsAndDecodesFloat32(t *testing.T) {
	r, _ := newFakeRenderer(t)
	read, err := r.Execute(context.Background(), program(t, "params", paramsFragment, result.Float32, 3, 2,
		bind_group_provider.Scalar{Name: "gain", Value: 1.5},
		bind_group_provider.Scalar{Name: "steps", Value: 4},
	))
	require.NoError(t, err)

	buf := must.M1(read())
	require.Equal(t, 6, buf.Len())
	for _, v := range buf.Float32() {
		assert.Equal(t, float32(6), v)
	}
}

func TestExecuteUnknownUniform(t *testing.T) {
	r, b := newFakeRenderer(t)
	_, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 1, 1,
		bind_group_provider.Scalar{Name: "missing", Value: 1}))

	var unknown *bind_group_provider.UnknownUniform
	require.True(t, errors.As(err, &unknown), "got %v", err)
	assert.Equal(t, "missing", unknown.Name)
	assert.Zero(t, b.draws)

	// the renderer keeps working after a failed execution
	read, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0, 0, 255}, must.M1(read()).Uint8())
}

func TestExecuteIgnoresUnknownUniforms(t *testing.T) {
	r, b := newFakeRenderer(t, WithIgnoreUnknownUniforms(true))
	_, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 1, 1,
		bind_group_provider.Scalar{Name: "missing", Value: 1},
		bind_group_provider.Array2D{Name: "nope", Width: 1, Height: 1, Data: make([]byte, 4)},
	))
	require.NoError(t, err)
	assert.Equal(t, 1, b.draws)
}

func TestReadFnCachesAndExpires(t *testing.T) {
	r, b := newFakeRenderer(t)
	first, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 1, 1))
	require.NoError(t, err)

	a := must.M1(first())
	a.Uint8()[0] = 7
	assert.Equal(t, []uint8{255, 0, 0, 255}, must.M1(first()).Uint8())

	second, err := r.Execute(context.Background(), program(t, "copy", copyFragment, result.Uint8, 1, 1,
		bind_group_provider.Array2D{Name: "src", Width: 1, Height: 1, Data: []byte{1, 2, 3, 4}}))
	require.NoError(t, err)
	assert.True(t, b.programs[0].released)

	_, err = first()
	var notReady *SurfaceNotReady
	assert.True(t, errors.As(err, &notReady))
	assert.Equal(t, []uint8{1, 2, 3, 4}, must.M1(second()).Uint8())

	r.Release()
	_, err = second()
	assert.True(t, errors.As(err, &notReady))

	_, err = r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 1, 1))
	var unavailable *ContextUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestFailedExecutionExpiresPreviousRead(t *testing.T) {
	r, _ := newFakeRenderer(t)
	read, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 1, 1))
	require.NoError(t, err)

	_, err = r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 1, 1,
		bind_group_provider.Scalar{Name: "missing"}))
	require.Error(t, err)

	_, err = read()
	var notReady *SurfaceNotReady
	assert.True(t, errors.As(err, &notReady))
}

func TestExecuteCompileErrors(t *testing.T) {
	r, b := newFakeRenderer(t)

	_, err := r.Execute(context.Background(), program(t, "red", "fn helper() {}", result.Uint8, 1, 1))
	var compileErr *shader.ShaderCompileError
	require.True(t, errors.As(err, &compileErr), "got %v", err)
	assert.Equal(t, shader.ShaderTypeFragment, compileErr.Stage)

	broken := "@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(1.0 }"
	_, err = r.Execute(context.Background(), program(t, "red", broken, result.Uint8, 1, 1))
	require.True(t, errors.As(err, &compileErr), "got %v", err)
	assert.NotEmpty(t, compileErr.Log)

	mismatched := `
@fragment
fn fs_main(@location(3) v: vec4<f32>) -> @location(0) vec4<f32> {
    return v;
}
`
	_, err = r.Execute(context.Background(), program(t, "red", mismatched, result.Uint8, 1, 1))
	var linkErr *shader.ProgramLinkError
	require.True(t, errors.As(err, &linkErr), "got %v", err)

	assert.Zero(t, b.draws)
}

func TestExecuteSurfaceTooLarge(t *testing.T) {
	r, b := newFakeRenderer(t)
	b.maxDimension = 4
	_, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 5, 1))
	var unavailable *ContextUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestExecuteUnitOrder(t *testing.T) {
	r, b := newFakeRenderer(t)
	fragment := `
@group(0) @binding(0) var a: texture_2d<f32>;
@group(0) @binding(1) var b: texture_2d<f32>;
@group(0) @binding(2) var c: texture_2d<f32>;
@group(1) @binding(0) var<uniform> s: f32;
@group(1) @binding(1) var<uniform> u: f32;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    let p = vec2<i32>(pos.xy);
    return textureLoad(a, p, 0) + textureLoad(b, p, 0) + textureLoad(c, p, 0) * s * u;
}
`
	img := staticImage{w: 1, h: 1}
	_, err := r.Execute(context.Background(), program(t, "units", fragment, result.Uint8, 1, 1,
		bind_group_provider.Scalar{Name: "s", Value: 1},
		bind_group_provider.Array2D{Name: "a", Width: 1, Height: 1, Data: make([]byte, 4)},
		bind_group_provider.ImageRef{Name: "b", Image: img},
		bind_group_provider.Scalar{Name: "u", Value: 1},
		bind_group_provider.Array2D{Name: "c", Width: 1, Height: 1, Data: make([]byte, 4)},
	))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 0, "b": 1, "c": 2}, b.programs[0].units)
}

func TestExecuteIsSerialized(t *testing.T) {
	r, b := newFakeRenderer(t)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			read, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 2, 2))
			if err != nil {
				t.Error(err)
				return
			}
			// a later execution may already have replaced this one
			_, _ = read()
		}()
	}
	wg.Wait()
	assert.False(t, b.overlap.Load())
	assert.Equal(t, 8, b.draws)
}
