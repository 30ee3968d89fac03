package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const redFragment = `
@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 0.0, 0.0, 1.0);
}
`

func TestNewProgramDefaults(t *testing.T) {
	d, err := NewProgram("red",
		WithFragmentShader(redFragment),
		WithOutput(result.Uint8, 2, 2),
	)
	require.NoError(t, err)
	assert.Equal(t, "red", d.Key())
	assert.Equal(t, DefaultVertexShader, d.Shaders().Vertex)
	assert.Equal(t, 16, d.Output().ByteSize())
	assert.Nil(t, d.BlendState())
	assert.Empty(t, d.Inputs())
}

func TestNewProgramInputsAreCopied(t *testing.T) {
	d, err := NewProgram("p",
		WithShaders(ShaderPair{Vertex: DefaultVertexShader, Fragment: redFragment}),
		WithOutput(result.Float32, 4, 1),
		WithInputs(bind_group_provider.Scalar{Name: "a", Value: 1}),
		WithInputs(bind_group_provider.Scalar{Name: "b", Value: 2}),
	)
	require.NoError(t, err)

	in := d.Inputs()
	require.Len(t, in, 2)
	in[0] = bind_group_provider.Scalar{Name: "changed"}
	assert.Equal(t, "a", d.Inputs()[0].BindingName())
}

func TestNewProgramCopiesArrayPayloads(t *testing.T) {
	data := []byte{10, 20, 30, 40}
	d, err := NewProgram("copy",
		WithFragmentShader(redFragment),
		WithOutput(result.Uint8, 1, 1),
		WithInputs(bind_group_provider.Array2D{Name: "src", Width: 1, Height: 1, Data: data}),
	)
	require.NoError(t, err)

	data[0] = 99
	got := d.Inputs()[0].(bind_group_provider.Array2D)
	assert.Equal(t, []byte{10, 20, 30, 40}, got.Data)

	got.Data[1] = 99
	assert.Equal(t, []byte{10, 20, 30, 40}, d.Inputs()[0].(bind_group_provider.Array2D).Data)
}

func TestNewProgramValidation(t *testing.T) {
	valid := []ProgramBuilderOption{WithFragmentShader(redFragment), WithOutput(result.Uint8, 1, 1)}

	tests := map[string]struct {
		key  string
		opts []ProgramBuilderOption
	}{
		"empty key":      {"", valid},
		"no fragment":    {"p", []ProgramBuilderOption{WithOutput(result.Uint8, 1, 1)}},
		"no vertex":      {"p", append(valid, WithVertexShader(""))},
		"zero width":     {"p", append(valid, WithOutput(result.Uint8, 0, 1))},
		"negative":       {"p", append(valid, WithOutput(result.Int32, 1, -3))},
		"unknown type":   {"p", append(valid, WithOutput(result.NumericType(9), 1, 1))},
		"duplicate name": {"p", append(valid, WithInputs(bind_group_provider.Scalar{Name: "x"}, bind_group_provider.Scalar{Name: "x"}))},
		"bad array": {"p", append(valid, WithInputs(bind_group_provider.Array2D{
			Name: "a", Width: 2, Height: 2, Data: make([]byte, 15),
		}))},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewProgram(tt.key, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidDescriptor))
		})
	}
}

func TestBlendStateIsCopied(t *testing.T) {
	bs := &wgpu.BlendState{Color: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd}}
	d, err := NewProgram("p", WithFragmentShader(redFragment), WithOutput(result.Uint8, 1, 1), WithBlendState(bs))
	require.NoError(t, err)
	got := d.BlendState()
	require.NotNil(t, got)
	got.Color.Operation = wgpu.BlendOperationMax
	assert.Equal(t, wgpu.BlendOperationAdd, d.BlendState().Color.Operation)
}
