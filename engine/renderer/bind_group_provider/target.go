package bind_group_provider

import (
	"github.com/Carmen-Shannon/oxy-compute/common"
	"github.com/Carmen-Shannon/oxy-compute/engine/renderer/shader"
)

// Target is a compiled program that inputs can be bound to. The renderer's programs implement
// it; the binding compiler never touches GPU objects directly.
type Target interface {
	// Uniform looks up a named uniform scalar.
	//
	// Parameters:
	//   - name: the scalar name
	//
	// Returns:
	//   - shader.UniformSlot: the buffer location of the scalar
	//   - bool: false if the program declares no such scalar
	Uniform(name string) (shader.UniformSlot, bool)

	// WriteBuffer writes bytes into a uniform buffer of the program.
	//
	// Parameters:
	//   - w: the write, addressed by group and binding
	//
	// Returns:
	//   - error: an error if the buffer does not exist or the write is out of range
	WriteBuffer(w BufferWrite) error

	// Texture reports whether the program declares a texture with the given name.
	//
	// Parameters:
	//   - name: the texture variable name
	//
	// Returns:
	//   - bool: true if declared
	Texture(name string) bool

	// BindTexture uploads pixels into a new texture and binds it, with a sampler built from
	// sampler, to the texture variable name and its name+"_sampler" companion when declared.
	//
	// Parameters:
	//   - unit: the sequential texture unit assigned to the input
	//   - name: the texture variable name
	//   - tex: the pixels, plus the mip chain when present
	//   - sampler: the sampler configuration
	//
	// Returns:
	//   - error: an error if the upload fails
	BindTexture(unit int, name string, tex common.TextureStagingData, sampler common.SamplerStagingData) error

	// DeclaredUnits returns the units texture names were declared on with //@oxy:unit.
	//
	// Returns:
	//   - map[string]int: declared unit per texture name
	DeclaredUnits() map[string]int
}
