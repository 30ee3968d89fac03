package shader

import (
	"os"
	"sort"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// ShaderType identifies the pipeline stage a shader implements.
type ShaderType int

const (
	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex ShaderType = iota

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return "unknown"
	}
}

// Visibility returns the wgpu stage flag for the shader type.
func (t ShaderType) Visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	default:
		return wgpu.ShaderStageNone
	}
}

// shader is the implementation of the Shader interface.
// It holds all of the persistent shader data required for pipeline creation and input binding.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	resources                  []Resource
	uniforms                   map[string]UniformSlot
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	vertexLayouts              []wgpu.VertexBufferLayout
	entryPoint                 string
	module                     *wgpu.ShaderModuleDescriptor

	pp PreProcessor
}

// Shader defines the interface for a pre-processed and reflected WGSL shader stage. It exposes
// the shader's key, processed source, entry point, the resources it declares, the named scalar
// slots inside its uniform buffers, and the layouts needed to build a render pipeline.
type Shader interface {
	// Key retrieves the identifier for this shader, used for labels and error reports.
	//
	// Returns:
	//   - string: the shader's key
	Key() string

	// Source retrieves the pre-processed WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source with every @oxy:include expanded
	Source() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex or ShaderTypeFragment
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "fs_main")
	EntryPoint() string

	// Module returns the wgpu.ShaderModuleDescriptor for this shader, which is built from the NewShader function.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the shader module descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor

	// BindGroupLayoutDescriptors retrieves all parsed bind group layout descriptors.
	// These are the CPU-side descriptors extracted from the shader source which can be
	// used by the renderer to create the actual wgpu.BindGroupLayout GPU objects.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index, if it exists.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name associated with the group and binding, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// Resource looks up a declared @group/@binding variable by its WGSL name.
	//
	// Parameters:
	//   - name: the variable name
	//
	// Returns:
	//   - Resource: the declaration
	//   - bool: false if the shader declares no such variable
	Resource(name string) (Resource, bool)

	// Resources returns every declared resource sorted by group then binding.
	//
	// Returns:
	//   - []Resource: the declarations
	Resources() []Resource

	// Uniform looks up a named scalar inside the shader's uniform buffers.
	//
	// Parameters:
	//   - name: a top-level scalar uniform name or a uniform struct member name
	//
	// Returns:
	//   - UniformSlot: the buffer location of the scalar
	//   - bool: false if no uniform scalar has that name
	Uniform(name string) (UniformSlot, bool)

	// VertexLayouts returns the vertex buffer layouts consumed by a vertex shader.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: nil for fragment shaders and vertex shaders without inputs
	VertexLayouts() []wgpu.VertexBufferLayout

	// Declarations returns the @oxy:unit annotations parsed from the shader source.
	//
	// Returns:
	//   - []Annotation: the unit declarations in source order
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes and reflects WGSL source. It does not validate the WGSL beyond
// finding the entry point; see Validate.
//
// Parameters:
//   - key: an identifier for the shader, used for labels and error reports
//   - shaderType: the stage the source implements
//   - source: the WGSL source, optionally carrying @oxy: annotations
//
// Returns:
//   - Shader: the reflected shader
//   - error: *ShaderCompileError if pre-processing fails or no entry point for the stage exists
func NewShader(key string, shaderType ShaderType, source string) (Shader, error) {
	s := &shader{
		key:        key,
		shaderType: shaderType,
		pp:         NewPreProcessor(),
	}
	if err := s.parseSource(source); err != nil {
		return nil, err
	}
	return s, nil
}

// NewShaderFromFile reads WGSL source from path and calls NewShader.
//
// Parameters:
//   - key: an identifier for the shader
//   - shaderType: the stage the source implements
//   - path: the file path to read WGSL source from
//
// Returns:
//   - Shader: the reflected shader
//   - error: an error if the file cannot be read or NewShader fails
func NewShaderFromFile(key string, shaderType ShaderType, path string) (Shader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "shader: failed to read source file %q", path)
	}
	return NewShader(key, shaderType, string(data))
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	for _, r := range s.resources {
		if r.Group == group && r.Binding == binding {
			return r.Name
		}
	}
	return ""
}

func (s *shader) Resource(name string) (Resource, bool) {
	for _, r := range s.resources {
		if r.Name == name {
			return r, true
		}
	}
	return Resource{}, false
}

func (s *shader) Resources() []Resource {
	return s.resources
}

func (s *shader) Uniform(name string) (UniformSlot, bool) {
	slot, ok := s.uniforms[name]
	return slot, ok
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

// parseSource pre-processes the WGSL source, builds the shader module descriptor, parses the
// entry point name, and extracts the resources, uniform slots and layouts.
func (s *shader) parseSource(raw string) error {
	var err error
	s.source, err = s.pp.Process(raw)
	if err != nil {
		return &ShaderCompileError{Stage: s.shaderType, Key: s.key, Log: err.Error()}
	}
	s.entryPoint = parseEntryPoint(s.source, s.shaderType)
	if s.entryPoint == "" {
		return &ShaderCompileError{Stage: s.shaderType, Key: s.key, Log: "no @" + s.shaderType.String() + " entry point"}
	}
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: s.key,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: s.source,
		},
	}
	if s.shaderType == ShaderTypeVertex {
		s.vertexLayouts = parseVertexLayouts(s.source)
	}
	s.resources = parseResources(s.source, s.shaderType.Visibility())
	s.uniforms = parseUniformSlots(s.source, s.resources)
	s.bindGroupLayoutDescriptors = groupLayouts(s.key, s.resources)
	return nil
}

// groupLayouts collects resource entries into one descriptor per group, sorted by binding.
func groupLayouts(label string, resources []Resource) map[int]wgpu.BindGroupLayoutDescriptor {
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)
	for _, r := range resources {
		groups[r.Group] = append(groups[r.Group], r.Entry)
	}
	result := make(map[int]wgpu.BindGroupLayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = wgpu.BindGroupLayoutDescriptor{
			Label:   label,
			Entries: entries,
		}
	}
	return result
}
