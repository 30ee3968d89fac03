// package common contains plain data types and small generic helpers shared by the harness packages.
// They are not interface-wrapped structs, just plain structs and functions.
package common

import "github.com/cogentcore/webgpu/wgpu"

// TextureStagingData holds RGBA pixel data for a texture binding pending GPU upload.
// Rows are tightly packed: row r starts at byte r*Width*4 with no alignment padding.
type TextureStagingData struct {
	// Pixels is the base level pixel data, 4 bytes per pixel in R, G, B, A order.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// MipLevels holds pre-generated levels 1..n-1, each level half the size of the previous one
	// (rounded down, minimum 1). Empty when the texture is uploaded without mipmaps.
	MipLevels [][]byte
}

// MipLevelSize returns the pixel dimensions of the given mip level.
//
// Parameters:
//   - level: the mip level, 0 being the base level
//
// Returns:
//   - uint32: the level width
//   - uint32: the level height
func (t TextureStagingData) MipLevelSize(level int) (uint32, uint32) {
	return max(t.Width>>level, 1), max(t.Height>>level, 1)
}

// Valid reports whether the staging data holds exactly Width*Height*4 bytes.
//
// Returns:
//   - bool: true if the pixel buffer matches the declared dimensions
func (t TextureStagingData) Valid() bool {
	return t.Width > 0 && t.Height > 0 && len(t.Pixels) == int(t.Width)*int(t.Height)*4
}

// SamplerStagingData holds the configuration for a sampler binding pending GPU creation.
// Zero fields fall back to the backend defaults (repeat addressing, linear filtering).
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range.
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level.
	MaxAnisotropy uint16
}

// NearestClampSampler is the sampler used for exact numeric payloads: no filtering between texels
// and no wrapping past the edges.
var NearestClampSampler = SamplerStagingData{
	AddressModeU: wgpu.AddressModeClampToEdge,
	AddressModeV: wgpu.AddressModeClampToEdge,
	AddressModeW: wgpu.AddressModeClampToEdge,
	MagFilter:    wgpu.FilterModeNearest,
	MinFilter:    wgpu.FilterModeNearest,
	MipmapFilter: wgpu.MipmapFilterModeNearest,
	LodMaxClamp:  1,
}

// LinearClampSampler is the sampler used for images without a mip chain.
var LinearClampSampler = SamplerStagingData{
	AddressModeU: wgpu.AddressModeClampToEdge,
	AddressModeV: wgpu.AddressModeClampToEdge,
	AddressModeW: wgpu.AddressModeClampToEdge,
	MagFilter:    wgpu.FilterModeLinear,
	MinFilter:    wgpu.FilterModeLinear,
	MipmapFilter: wgpu.MipmapFilterModeNearest,
	LodMaxClamp:  1,
}

// MipmappedRepeatSampler is the sampler used for power-of-two images uploaded with a full mip chain.
var MipmappedRepeatSampler = SamplerStagingData{
	AddressModeU: wgpu.AddressModeRepeat,
	AddressModeV: wgpu.AddressModeRepeat,
	AddressModeW: wgpu.AddressModeRepeat,
	MagFilter:    wgpu.FilterModeLinear,
	MinFilter:    wgpu.FilterModeLinear,
	MipmapFilter: wgpu.MipmapFilterModeLinear,
	LodMaxClamp:  32,
}
