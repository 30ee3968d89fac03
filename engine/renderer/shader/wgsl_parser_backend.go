package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslPrimitiveLayouts maps WGSL scalar, vector and matrix types to their size and alignment.
//
// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
var wgslPrimitiveLayouts = map[string]wgslTypeLayout{
	"f32":  {4, 4},
	"i32":  {4, 4},
	"u32":  {4, 4},
	"f16":  {2, 2},
	"bool": {4, 4},

	"vec2<f32>": {8, 8},
	"vec3<f32>": {12, 16},
	"vec4<f32>": {16, 16},
	"vec2<i32>": {8, 8},
	"vec3<i32>": {12, 16},
	"vec4<i32>": {16, 16},
	"vec2<u32>": {8, 8},
	"vec3<u32>": {12, 16},
	"vec4<u32>": {16, 16},
	"vec2<f16>": {4, 4},
	"vec4<f16>": {8, 8},

	"mat2x2<f32>": {16, 8},
	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},
}

// wgslShorthandTypes expands the predeclared aliases (vec4f, vec2i, ...) to their long form so
// every lookup table only needs the long spelling.
var wgslShorthandTypes = map[string]string{
	"vec2f": "vec2<f32>", "vec3f": "vec3<f32>", "vec4f": "vec4<f32>",
	"vec2i": "vec2<i32>", "vec3i": "vec3<i32>", "vec4i": "vec4<i32>",
	"vec2u": "vec2<u32>", "vec3u": "vec3<u32>", "vec4u": "vec4<u32>",
	"vec2h": "vec2<f16>", "vec4h": "vec4<f16>",
	"mat2x2f": "mat2x2<f32>", "mat3x3f": "mat3x3<f32>", "mat4x4f": "mat4x4<f32>",
}

// wgslVertexFormats maps vertex attribute types to wgpu vertex formats.
var wgslVertexFormats = map[string]vertexFormatInfo{
	"f32":       {wgpu.VertexFormatFloat32, 4},
	"vec2<f32>": {wgpu.VertexFormatFloat32x2, 8},
	"vec3<f32>": {wgpu.VertexFormatFloat32x3, 12},
	"vec4<f32>": {wgpu.VertexFormatFloat32x4, 16},
	"i32":       {wgpu.VertexFormatSint32, 4},
	"vec2<i32>": {wgpu.VertexFormatSint32x2, 8},
	"vec4<i32>": {wgpu.VertexFormatSint32x4, 16},
	"u32":       {wgpu.VertexFormatUint32, 4},
	"vec2<u32>": {wgpu.VertexFormatUint32x2, 8},
	"vec4<u32>": {wgpu.VertexFormatUint32x4, 16},
}

// wgslScalarKinds maps the scalar types a uniform slot can hold.
var wgslScalarKinds = map[string]ScalarKind{
	"f32": ScalarF32,
	"i32": ScalarI32,
	"u32": ScalarU32,
}

// wgslSampleTypes maps a sampled texture's component type to its sample type.
var wgslSampleTypes = map[string]wgpu.TextureSampleType{
	"f32": wgpu.TextureSampleTypeFloat,
	"i32": wgpu.TextureSampleTypeSint,
	"u32": wgpu.TextureSampleTypeUint,
}

// wgslTextureDimensions maps texture base type names to view dimensions.
var wgslTextureDimensions = map[string]wgpu.TextureViewDimension{
	"texture_1d":               wgpu.TextureViewDimension1D,
	"texture_2d":               wgpu.TextureViewDimension2D,
	"texture_2d_array":         wgpu.TextureViewDimension2DArray,
	"texture_3d":               wgpu.TextureViewDimension3D,
	"texture_cube":             wgpu.TextureViewDimensionCube,
	"texture_storage_2d":       wgpu.TextureViewDimension2D,
	"texture_storage_2d_array": wgpu.TextureViewDimension2DArray,
}

// normalizeType trims a WGSL type name and expands shorthand aliases.
func normalizeType(typeName string) string {
	t := strings.Join(strings.Fields(typeName), "")
	if long, ok := wgslShorthandTypes[t]; ok {
		return long
	}
	return t
}

// roundUpAlign rounds value up to the next multiple of alignment, which must be a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a type to its size and alignment from the primitive table, the
// structs resolved so far, or a fixed-size array of either. Runtime-sized arrays do not resolve.
//
// Parameters:
//   - typeName: the normalized WGSL type name
//   - known: struct layouts resolved so far
//
// Returns:
//   - wgslTypeLayout: the layout
//   - bool: false if the type cannot be resolved
func resolveTypeLayout(typeName string, known map[string]structLayout) (wgslTypeLayout, bool) {
	if l, ok := wgslPrimitiveLayouts[typeName]; ok {
		return l, true
	}
	if s, ok := known[typeName]; ok {
		return s.layout, true
	}

	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return wgslTypeLayout{}, false
	}
	elemType, countStr, fixed := strings.Cut(strings.TrimSuffix(inner, ">"), ",")
	if !fixed {
		return wgslTypeLayout{}, false
	}
	elem, ok := resolveTypeLayout(normalizeType(elemType), known)
	if !ok {
		return wgslTypeLayout{}, false
	}
	count, err := strconv.ParseUint(strings.TrimSpace(countStr), 10, 64)
	if err != nil {
		return wgslTypeLayout{}, false
	}
	// uniform-space arrays use a 16-byte element stride
	align := roundUpAlign(16, elem.align)
	stride := roundUpAlign(align, elem.size)
	return wgslTypeLayout{count * stride, align}, true
}

// structLayout is a resolved struct: its own layout plus the byte offset of every member.
type structLayout struct {
	layout  wgslTypeLayout
	offsets map[string]uint64
	types   map[string]string
}

// computeStructLayout lays out a struct with WGSL member placement rules. Members typed as other
// structs are aligned to 16 bytes as the uniform address space requires.
//
// Parameters:
//   - ps: the struct to lay out
//   - known: struct layouts resolved so far
//
// Returns:
//   - structLayout: the layout and member offsets
//   - bool: false if a member type is not resolvable yet
func computeStructLayout(ps parsedStruct, known map[string]structLayout) (structLayout, bool) {
	out := structLayout{
		offsets: make(map[string]uint64, len(ps.fields)),
		types:   make(map[string]string, len(ps.fields)),
	}
	var offset uint64
	maxAlign := uint64(1)

	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		fl, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return structLayout{}, false
		}
		if _, nested := known[f.typeName]; nested {
			fl.align = roundUpAlign(16, fl.align)
		}
		offset = roundUpAlign(fl.align, offset)
		out.offsets[f.name] = offset
		out.types[f.name] = f.typeName
		offset += fl.size
		maxAlign = max(maxAlign, fl.align)
	}

	out.layout = wgslTypeLayout{roundUpAlign(maxAlign, offset), maxAlign}
	return out, true
}

// computeStructLayouts resolves every struct, repeating passes until no further struct
// resolves so declaration order does not matter.
func computeStructLayouts(structs []parsedStruct) map[string]structLayout {
	resolved := make(map[string]structLayout, len(structs))
	pending := append([]parsedStruct(nil), structs...)

	for len(pending) > 0 {
		next := pending[:0]
		for _, ps := range pending {
			if sl, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = sl
			} else {
				next = append(next, ps)
			}
		}
		if len(next) == len(pending) {
			break
		}
		pending = next
	}
	return resolved
}

// classifyResource builds the layout entry for one declaration from its address space and type.
//
// Parameters:
//   - binding: the @binding index
//   - visibility: the declaring stage
//   - addressSpace: the var<...> qualifier, empty for handle types
//   - typeName: the normalized WGSL type
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the layout entry
//   - ResourceKind: the resource classification
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) (wgpu.BindGroupLayoutEntry, ResourceKind) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	switch {
	case addressSpace == "uniform":
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		return entry, ResourceKindBuffer
	case strings.HasPrefix(addressSpace, "storage"):
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		if strings.Contains(addressSpace, "read_write") {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
		return entry, ResourceKindBuffer
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		return entry, ResourceKindSampler
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		return entry, ResourceKindSampler
	case strings.HasPrefix(typeName, "texture_storage_"):
		base, _ := splitTypeParams(typeName)
		entry.StorageTexture.ViewDimension = wgslTextureDimensions[base]
		entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
		entry.StorageTexture.Format = wgpu.TextureFormatRGBA8Unorm
		return entry, ResourceKindStorageTexture
	default:
		base, param := splitTypeParams(typeName)
		entry.Texture.ViewDimension = defaultTo2D(wgslTextureDimensions[base])
		entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
		if st, ok := wgslSampleTypes[param]; ok {
			entry.Texture.SampleType = st
		}
		return entry, ResourceKindTexture
	}
}

// defaultTo2D defaults an unknown view dimension to 2D, the only dimension the harness uploads.
func defaultTo2D(d wgpu.TextureViewDimension) wgpu.TextureViewDimension {
	if d == wgpu.TextureViewDimensionUndefined {
		return wgpu.TextureViewDimension2D
	}
	return d
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32").
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// stripComments removes line comments and (nested) block comments from WGSL source.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes // comments, keeping line structure intact.
func stripLineComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes /* */ comments, which WGSL allows to nest.
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// isVertexInputStruct reports whether a struct only carries @location members, which tells a
// vertex input struct apart from an output struct that also holds @builtin(position).
func isVertexInputStruct(ps parsedStruct) bool {
	hasLocation := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		if f.location >= 0 {
			hasLocation = true
		}
	}
	return hasLocation
}

// buildVertexBufferLayout packs @location attributes tightly in declaration order into one
// vertex buffer layout. Returns false if an attribute type has no vertex format.
func buildVertexBufferLayout(fields []parsedField) (wgpu.VertexBufferLayout, bool) {
	attrs := make([]wgpu.VertexAttribute, 0, len(fields))
	var offset uint64
	for _, f := range fields {
		if f.location < 0 {
			continue
		}
		info, ok := wgslVertexFormats[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         offset,
			ShaderLocation: uint32(f.location),
		})
		offset += info.size
	}
	if len(attrs) == 0 {
		return wgpu.VertexBufferLayout{}, false
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: offset,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

// splitAtTopLevelCommas splits at commas outside of <> and () nesting, so array<T, N> and
// attribute arguments stay intact.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
