package shader

import _ "embed"

// QuadVertexSource is a complete vertex stage drawing the full-surface quad. It reads the quad
// corner from @location(0) and passes a uv varying whose row 0 is the first readback row.
//
//go:embed assets/quad_vertex.wgsl
var QuadVertexSource string

// QuadVaryingsSource declares the VertexOutput struct written by QuadVertexSource, for fragment
// stages that read the uv varying.
//
//go:embed assets/quad_varyings.wgsl
var QuadVaryingsSource string

// LuminanceSource declares grey(rgb), a Rec. 709 style luminance with weights 0.2125, 0.7154
// and 0.0721.
//
//go:embed assets/luminance.wgsl
var LuminanceSource string

//go:embed assets/pack_bytes.wgsl
var packBytesSource string

// PackF32Source declares pack_f32(v), which spreads the bits of v over an RGBA8 colour so that
// a Float32 readback recovers v exactly.
//
//go:embed assets/pack_f32.wgsl
var PackF32Source string

// PackI32Source declares pack_i32(v), the Int32 counterpart of pack_f32.
//
//go:embed assets/pack_i32.wgsl
var PackI32Source string

// PaletteSource declares palette(t, a, b, c, d), a cosine colour palette.
//
//go:embed assets/palette.wgsl
var PaletteSource string
