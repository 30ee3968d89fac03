package renderer

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGPURenderer returns a renderer on the wgpu backend, skipping the test when the machine has
// no usable adapter.
func newGPURenderer(t *testing.T, opts ...RendererBuilderOption) Renderer {
	t.Helper()
	b, err := NewWGPUBackend(WGPUBackendOptions{})
	var unavailable *ContextUnavailable
	if errors.As(err, &unavailable) {
		t.Skipf("no GPU adapter: %v", err)
	}
	require.NoError(t, err)
	r, err := NewRenderer(append([]RendererBuilderOption{WithBackend(b)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func TestAlignedBytesPerRow(t *testing.T) {
	assert.Equal(t, uint32(256), alignedBytesPerRow(1))
	assert.Equal(t, uint32(256), alignedBytesPerRow(64))
	assert.Equal(t, uint32(512), alignedBytesPerRow(65))
	assert.Equal(t, uint32(3328), alignedBytesPerRow(800))
}

func TestStripRowPadding(t *testing.T) {
	padded := make([]byte, 256*2)
	copy(padded[0:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(padded[256:], []byte{9, 10, 11, 12, 13, 14, 15, 16})
	assert.Equal(t,
		[]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		stripRowPadding(padded, 2, 2, 256))
}

func TestQuadPipelineStateDrawsEveryPixelAndChannel(t *testing.T) {
	prim := quadPrimitiveState()
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleStrip, prim.Topology)
	assert.Equal(t, wgpu.CullModeNone, prim.CullMode)

	target := colorTargetState(nil)
	assert.Equal(t, targetFormat, target.Format)
	assert.Equal(t, wgpu.ColorWriteMaskAll, target.WriteMask)
	assert.Nil(t, target.Blend)

	blend := &wgpu.BlendState{Color: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd}}
	assert.Same(t, blend, colorTargetState(blend).Blend)
}

func TestCheckQuadLayout(t *testing.T) {
	vs := must.M1(shader.NewShader("q", shader.ShaderTypeVertex, "//@oxy:include quad_vertex\n"))
	assert.NoError(t, checkQuadLayout(vs.VertexLayouts()))
	assert.NoError(t, checkQuadLayout(nil))

	vs = must.M1(shader.NewShader("q", shader.ShaderTypeVertex, `
@vertex
fn vs_main(@location(0) p: vec3<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(p, 1.0);
}
`))
	assert.Error(t, checkQuadLayout(vs.VertexLayouts()))
}

func TestGPUConstantRed(t *testing.T) {
	r := newGPURenderer(t)
	read, err := r.Execute(context.Background(), program(t, "red", redFragment, result.Uint8, 2, 2))
	require.NoError(t, err)
	assert.Equal(t, []uint8{
		255, 0, 0, 255, 255, 0, 0, 255,
		255, 0, 0, 255, 255, 0, 0, 255,
	}, must.M1(read()).Uint8())
}

func TestGPUIdentityCopy(t *testing.T) {
	r := newGPURenderer(t)

	read, err := r.Execute(context.Background(), program(t, "copy", copyFragment, result.Uint8, 1, 1,
		bind_group_provider.Array2D{Name: "src", Width: 1, Height: 1, Data: []byte{10, 20, 30, 40}}))
	require.NoError(t, err)
	assert.Equal(t, []uint8{10, 20, 30, 40}, must.M1(read()).Uint8())

	// 70 pixels wide needs row padding on readback
	const w, h = 70, 3
	data := make([]byte, w*h*4)
	for i := range data {
		data[i] = byte(i * 7)
	}
	read, err = r.Execute(context.Background(), program(t, "copy", copyFragment, result.Uint8, w, h,
		bind_group_provider.Array2D{Name: "src", Width: w, Height: h, Data: data}))
	require.NoError(t, err)
	assert.Equal(t, data, must.M1(read()).Uint8())
}

func TestGPUUniformsAndFloat32(t *testing.T) {
	r := newGPURenderer(t)
	read, err := r.Execute(context.Background(), program(t, "params", paramsFragment, result.Float32, 4, 4,
		bind_group_provider.Scalar{Name: "gain", Value: 1.5},
		bind_group_provider.Scalar{Name: "steps", Value: 4},
	))
	require.NoError(t, err)
	buf := must.M1(read())
	require.Equal(t, 16, buf.Len())
	for _, v := range buf.Float32() {
		assert.Equal(t, float32(6), v)
	}
}
