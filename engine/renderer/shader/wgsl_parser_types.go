package shader

import "github.com/cogentcore/webgpu/wgpu"

// vertexFormatInfo pairs a wgpu vertex format with its byte size for offset calculation.
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// wgslTypeLayout holds the byte size and alignment of a WGSL type in the uniform address space.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField is a single struct member or entry point parameter.
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct is a WGSL struct block.
type parsedStruct struct {
	name   string
	fields []parsedField
}

// parsedEntry is an entry point signature: its parameters and, for the return value, either the
// @location of a bare return or the struct type name.
type parsedEntry struct {
	name           string
	params         []parsedField
	returnType     string
	returnLocation int
	returnBuiltin  bool
}

// ResourceKind classifies a declared @group/@binding variable.
type ResourceKind int

const (
	// ResourceKindBuffer is a var<uniform> or var<storage> declaration.
	ResourceKindBuffer ResourceKind = iota

	// ResourceKindTexture is a sampled texture declaration (texture_2d<f32> and friends).
	ResourceKindTexture

	// ResourceKindSampler is a sampler or sampler_comparison declaration.
	ResourceKindSampler

	// ResourceKindStorageTexture is a texture_storage_* declaration.
	ResourceKindStorageTexture
)

// Resource is one @group(G) @binding(B) variable declared by a shader stage.
type Resource struct {
	// Name is the WGSL variable name.
	Name string
	// Group is the @group index.
	Group int
	// Binding is the @binding index within the group.
	Binding int
	// Kind classifies the resource.
	Kind ResourceKind
	// TypeName is the declared WGSL type, e.g. "f32", "Params" or "texture_2d<f32>".
	TypeName string
	// Entry is the layout entry generated for the declaration.
	Entry wgpu.BindGroupLayoutEntry
}

// ScalarKind is the WGSL scalar type a uniform slot holds.
type ScalarKind int

const (
	// ScalarF32 is a 32-bit float slot.
	ScalarF32 ScalarKind = iota
	// ScalarI32 is a signed 32-bit integer slot.
	ScalarI32
	// ScalarU32 is an unsigned 32-bit integer slot.
	ScalarU32
)

// UniformSlot locates a named scalar inside a uniform buffer: either the whole buffer
// (var<uniform> name: f32) or one member of a uniform struct (var<uniform> p: Params, with
// Params containing name).
type UniformSlot struct {
	// Name is the name the slot is looked up by.
	Name string
	// Group and Binding identify the uniform buffer holding the slot.
	Group, Binding int
	// Offset is the byte offset of the scalar within the buffer.
	Offset uint64
	// BufferSize is the size in bytes of the whole uniform buffer.
	BufferSize uint64
	// Kind is the scalar type stored at Offset.
	Kind ScalarKind
}
