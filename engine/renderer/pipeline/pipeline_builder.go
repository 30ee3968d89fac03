package pipeline

import (
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/cogentcore/webgpu/wgpu"
)

// ProgramBuilderOption is a functional option used to configure a ProgramDescriptor during construction.
type ProgramBuilderOption func(*ProgramDescriptor)

// WithShaders sets both WGSL stages.
//
// Parameters:
//   - pair: the vertex and fragment sources
//
// Returns:
//   - ProgramBuilderOption: a function that sets the shader sources
func WithShaders(pair ShaderPair) ProgramBuilderOption {
	return func(d *ProgramDescriptor) {
		d.shaders = pair
	}
}

// WithVertexShader sets the vertex stage source, replacing DefaultVertexShader.
//
// Parameters:
//   - source: the WGSL vertex source
//
// Returns:
//   - ProgramBuilderOption: a function that sets the vertex source
func WithVertexShader(source string) ProgramBuilderOption {
	return func(d *ProgramDescriptor) {
		d.shaders.Vertex = source
	}
}

// WithFragmentShader sets the fragment stage source.
//
// Parameters:
//   - source: the WGSL fragment source
//
// Returns:
//   - ProgramBuilderOption: a function that sets the fragment source
func WithFragmentShader(source string) ProgramBuilderOption {
	return func(d *ProgramDescriptor) {
		d.shaders.Fragment = source
	}
}

// WithOutput sets the render target size and the type its bytes are decoded as.
//
// Parameters:
//   - t: the numeric type of the result
//   - width: the surface width in pixels
//   - height: the surface height in pixels
//
// Returns:
//   - ProgramBuilderOption: a function that sets the output specification
func WithOutput(t result.NumericType, width, height int) ProgramBuilderOption {
	return func(d *ProgramDescriptor) {
		d.output = OutputSpec{Type: t, Width: width, Height: height}
	}
}

// WithInputs appends inputs in binding order. The order fixes each texture input's unit.
// Array2D payloads are copied, so the caller may reuse its buffers afterwards.
//
// Parameters:
//   - inputs: the inputs to append
//
// Returns:
//   - ProgramBuilderOption: a function that appends the inputs
func WithInputs(inputs ...bind_group_provider.Binding) ProgramBuilderOption {
	return func(d *ProgramDescriptor) {
		for _, in := range inputs {
			d.inputs = append(d.inputs, cloneBinding(in))
		}
	}
}

// WithBlendState enables blending against the opaque black clear colour with the given state.
// Numeric outputs should leave blending disabled.
//
// Parameters:
//   - blendState: the blend state, nil disables blending
//
// Returns:
//   - ProgramBuilderOption: a function that sets the blend state
func WithBlendState(blendState *wgpu.BlendState) ProgramBuilderOption {
	return func(d *ProgramDescriptor) {
		d.blendState = blendState
	}
}
