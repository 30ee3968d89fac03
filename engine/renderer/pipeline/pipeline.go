// Package pipeline describes one full-surface compute run: a vertex/fragment WGSL pair, the
// typed output surface, and the named inputs bound before the draw.
package pipeline

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/result"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// ErrInvalidDescriptor is wrapped by every error NewProgram returns.
var ErrInvalidDescriptor = errors.New("invalid program descriptor")

// DefaultVertexShader is the stock vertex stage: it draws the full-surface quad from
// @location(0) and passes a uv varying. Programs that only supply a fragment stage use it.
const DefaultVertexShader = "//@oxy:include quad_vertex\n"

// ShaderPair holds the WGSL sources of a program's two stages.
type ShaderPair struct {
	Vertex   string
	Fragment string
}

// OutputSpec describes the render target a program draws into and how its bytes are decoded.
type OutputSpec struct {
	Type          result.NumericType
	Width, Height int
}

// ByteSize returns the size of the raw RGBA readback, Width*Height*4.
func (o OutputSpec) ByteSize() int {
	return o.Width * o.Height * 4
}

// ProgramDescriptor is a validated, immutable description of one run. Build it with NewProgram.
type ProgramDescriptor struct {
	key     string
	shaders ShaderPair
	output  OutputSpec
	inputs  []bind_group_provider.Binding

	// blendState is the only configurable raster state. Culling and write masks are fixed so the
	// quad covers every pixel and every channel the fragment stage writes.
	blendState *wgpu.BlendState
}

// NewProgram builds and validates a ProgramDescriptor. The vertex stage defaults to
// DefaultVertexShader and the output type to result.Uint8.
//
// Parameters:
//   - key: an identifier for the program, used for labels and error reports
//   - opts: a variadic list of ProgramBuilderOption functions to configure the descriptor
//
// Returns:
//   - *ProgramDescriptor: the descriptor
//   - error: an error wrapping ErrInvalidDescriptor if the descriptor is incomplete or inconsistent
func NewProgram(key string, opts ...ProgramBuilderOption) (*ProgramDescriptor, error) {
	d := &ProgramDescriptor{
		key:     key,
		shaders: ShaderPair{Vertex: DefaultVertexShader},
		output:  OutputSpec{Type: result.Uint8},
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *ProgramDescriptor) validate() error {
	if d.key == "" {
		return errors.Wrap(ErrInvalidDescriptor, "empty key")
	}
	if d.shaders.Vertex == "" {
		return errors.Wrapf(ErrInvalidDescriptor, "program %q: empty vertex source", d.key)
	}
	if d.shaders.Fragment == "" {
		return errors.Wrapf(ErrInvalidDescriptor, "program %q: empty fragment source", d.key)
	}
	if d.output.Width <= 0 || d.output.Height <= 0 {
		return errors.Wrapf(ErrInvalidDescriptor, "program %q: invalid output size %dx%d", d.key, d.output.Width, d.output.Height)
	}
	if d.output.Type.ElementSize() == 0 {
		return errors.Wrapf(ErrInvalidDescriptor, "program %q: unknown output type %s", d.key, d.output.Type)
	}
	if err := bind_group_provider.Validate(d.inputs); err != nil {
		return errors.Wrapf(ErrInvalidDescriptor, "program %q: %v", d.key, err)
	}
	return nil
}

// Key returns the program key.
func (d *ProgramDescriptor) Key() string {
	return d.key
}

// Shaders returns the WGSL sources.
func (d *ProgramDescriptor) Shaders() ShaderPair {
	return d.shaders
}

// Output returns the output surface specification.
func (d *ProgramDescriptor) Output() OutputSpec {
	return d.output
}

// Inputs returns a copy of the inputs in binding order, Array2D payloads included.
func (d *ProgramDescriptor) Inputs() []bind_group_provider.Binding {
	inputs := make([]bind_group_provider.Binding, len(d.inputs))
	for i, in := range d.inputs {
		inputs[i] = cloneBinding(in)
	}
	return inputs
}

// cloneBinding copies the payload of an Array2D; other inputs are plain values or refer to
// images owned by the loader.
func cloneBinding(b bind_group_provider.Binding) bind_group_provider.Binding {
	if a, ok := b.(bind_group_provider.Array2D); ok {
		a.Data = slices.Clone(a.Data)
		return a
	}
	return b
}

// BlendState returns a copy of the blend state, or nil when blending is disabled.
func (d *ProgramDescriptor) BlendState() *wgpu.BlendState {
	if d.blendState == nil {
		return nil
	}
	bs := *d.blendState
	return &bs
}
