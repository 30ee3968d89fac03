package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// structBlockRegex captures a struct's name and body.
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// locationRegex captures the index of a @location(N) attribute.
	locationRegex = regexp.MustCompile(`@location\(\s*(\d+)\s*\)`)

	// builtinRegex matches a @builtin(...) attribute.
	builtinRegex = regexp.MustCompile(`@builtin\(\s*\w+\s*\)`)

	// attributeRegex matches any attribute with optional arguments, e.g. @interpolate(flat).
	attributeRegex = regexp.MustCompile(`@\w+(?:\([^)]*\))?`)

	// vertexEntryRegex, fragmentEntryRegex capture the function name that follows the stage attribute.
	vertexEntryRegex   = regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)\s*\(`)
	fragmentEntryRegex = regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)\s*\(`)

	// bindGroupDeclRegex captures group, binding, optional address space, name and type from
	// declarations like "@group(0) @binding(1) var<uniform> params: Params;" and
	// "@group(1) @binding(0) var fixed_tex: texture_2d<f32>;".
	bindGroupDeclRegex = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// parseStructBlocks finds every struct block in comment-free source.
func parseStructBlocks(source string) []parsedStruct {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]parsedStruct, 0, len(matches))
	for _, m := range matches {
		structs = append(structs, parsedStruct{name: m[1], fields: parseFieldList(m[2])})
	}
	return structs
}

// parseFieldList parses a comma separated member or parameter list, keeping attributes.
func parseFieldList(body string) []parsedField {
	parts := splitAtTopLevelCommas(body)
	fields := make([]parsedField, 0, len(parts))
	for _, part := range parts {
		if f, ok := parseField(part); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// parseField parses one "@attr(...) name: type" declaration.
func parseField(decl string) (parsedField, bool) {
	decl = strings.TrimSpace(decl)
	if decl == "" {
		return parsedField{}, false
	}
	f := parsedField{location: -1, isBuiltin: builtinRegex.MatchString(decl)}
	if m := locationRegex.FindStringSubmatch(decl); m != nil {
		f.location, _ = strconv.Atoi(m[1])
	}

	name, typeName, ok := strings.Cut(attributeRegex.ReplaceAllString(decl, ""), ":")
	if !ok {
		return parsedField{}, false
	}
	f.name = strings.TrimSpace(name)
	f.typeName = normalizeType(typeName)
	if f.name == "" || f.typeName == "" {
		return parsedField{}, false
	}
	return f, true
}

// parseEntryPoint returns the entry point function name for the stage, or "" if none is declared.
func parseEntryPoint(source string, shaderType ShaderType) string {
	entry, ok := parseEntrySignature(stripComments(source), shaderType)
	if !ok {
		return ""
	}
	return entry.name
}

// parseEntrySignature extracts the parameter list and return declaration of the stage's entry
// point from comment-free source.
//
// Parameters:
//   - source: WGSL source with comments removed
//   - shaderType: the stage whose entry point to find
//
// Returns:
//   - parsedEntry: the entry point signature
//   - bool: false if the stage has no entry point
func parseEntrySignature(source string, shaderType ShaderType) (parsedEntry, bool) {
	re := vertexEntryRegex
	if shaderType == ShaderTypeFragment {
		re = fragmentEntryRegex
	}
	loc := re.FindStringSubmatchIndex(source)
	if loc == nil {
		return parsedEntry{}, false
	}
	entry := parsedEntry{name: source[loc[2]:loc[3]], returnLocation: -1}

	// loc[1] sits just past the opening parenthesis; find its partner.
	depth := 1
	end := loc[1]
	for ; end < len(source) && depth > 0; end++ {
		switch source[end] {
		case '(':
			depth++
		case ')':
			depth--
		}
	}
	if depth != 0 {
		return parsedEntry{}, false
	}
	entry.params = parseFieldList(source[loc[1] : end-1])

	rest := source[end:]
	if brace := strings.IndexByte(rest, '{'); brace >= 0 {
		rest = rest[:brace]
	}
	if ret, ok := strings.CutPrefix(strings.TrimSpace(rest), "->"); ok {
		entry.returnBuiltin = builtinRegex.MatchString(ret)
		if m := locationRegex.FindStringSubmatch(ret); m != nil {
			entry.returnLocation, _ = strconv.Atoi(m[1])
		}
		entry.returnType = normalizeType(attributeRegex.ReplaceAllString(ret, ""))
	}
	return entry, true
}

// parseVertexLayouts builds the vertex buffer layout consumed by the vertex entry point. Inputs
// come either from @location parameters or from a parameter typed as a vertex input struct.
// Shaders that only use @builtin(vertex_index) return nil.
//
// Parameters:
//   - source: the raw WGSL source
//
// Returns:
//   - []wgpu.VertexBufferLayout: zero or one layout
func parseVertexLayouts(source string) []wgpu.VertexBufferLayout {
	cleaned := stripComments(source)
	entry, ok := parseEntrySignature(cleaned, ShaderTypeVertex)
	if !ok {
		return nil
	}
	structs := make(map[string]parsedStruct)
	for _, ps := range parseStructBlocks(cleaned) {
		structs[ps.name] = ps
	}

	var inputs []parsedField
	for _, p := range entry.params {
		if p.location >= 0 {
			inputs = append(inputs, p)
			continue
		}
		if ps, ok := structs[p.typeName]; ok && isVertexInputStruct(ps) {
			inputs = append(inputs, ps.fields...)
		}
	}
	sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].location < inputs[j].location })

	layout, ok := buildVertexBufferLayout(inputs)
	if !ok {
		return nil
	}
	return []wgpu.VertexBufferLayout{layout}
}

// parseResources extracts every @group/@binding declaration from WGSL source, sorted by group
// then binding. Uniform and storage buffers get MinBindingSize from the resolved type size.
//
// Parameters:
//   - source: the raw WGSL source
//   - visibility: the stage visibility applied to every entry
//
// Returns:
//   - []Resource: the declared resources
func parseResources(source string, visibility wgpu.ShaderStage) []Resource {
	cleaned := stripComments(source)
	layouts := computeStructLayouts(parseStructBlocks(cleaned))

	matches := bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1)
	resources := make([]Resource, 0, len(matches))
	for _, m := range matches {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		addressSpace := strings.Join(strings.Fields(m[3]), " ")
		typeName := normalizeType(m[5])

		entry, kind := classifyResource(uint32(binding), visibility, addressSpace, typeName)
		if kind == ResourceKindBuffer {
			if l, ok := resolveTypeLayout(typeName, layouts); ok && l.size > 0 {
				entry.Buffer.MinBindingSize = roundUpAlign(16, l.size)
			}
		}
		resources = append(resources, Resource{
			Name:     strings.TrimSpace(m[4]),
			Group:    group,
			Binding:  binding,
			Kind:     kind,
			TypeName: typeName,
			Entry:    entry,
		})
	}

	sort.SliceStable(resources, func(i, j int) bool {
		if resources[i].Group != resources[j].Group {
			return resources[i].Group < resources[j].Group
		}
		return resources[i].Binding < resources[j].Binding
	})
	return resources
}

// parseUniformSlots indexes every scalar reachable by name in the uniform buffers: top-level
// scalar uniforms by their variable name, and scalar members of uniform structs by member name.
// A top-level name wins over a member of the same name; between two members the first
// declaration wins.
//
// Parameters:
//   - source: the raw WGSL source
//   - resources: the resources parsed from the same source
//
// Returns:
//   - map[string]UniformSlot: slots keyed by lookup name
func parseUniformSlots(source string, resources []Resource) map[string]UniformSlot {
	layouts := computeStructLayouts(parseStructBlocks(stripComments(source)))
	slots := make(map[string]UniformSlot)

	for _, r := range resources {
		if r.Kind != ResourceKindBuffer || r.Entry.Buffer.Type != wgpu.BufferBindingTypeUniform {
			continue
		}
		if kind, ok := wgslScalarKinds[r.TypeName]; ok {
			slots[r.Name] = UniformSlot{
				Name: r.Name, Group: r.Group, Binding: r.Binding,
				Offset: 0, BufferSize: r.Entry.Buffer.MinBindingSize, Kind: kind,
			}
		}
	}
	for _, r := range resources {
		if r.Kind != ResourceKindBuffer || r.Entry.Buffer.Type != wgpu.BufferBindingTypeUniform {
			continue
		}
		sl, ok := layouts[r.TypeName]
		if !ok {
			continue
		}
		members := make([]string, 0, len(sl.offsets))
		for name := range sl.offsets {
			members = append(members, name)
		}
		sort.Slice(members, func(i, j int) bool { return sl.offsets[members[i]] < sl.offsets[members[j]] })
		for _, name := range members {
			kind, ok := wgslScalarKinds[sl.types[name]]
			if !ok {
				continue
			}
			if _, taken := slots[name]; taken {
				continue
			}
			slots[name] = UniformSlot{
				Name: name, Group: r.Group, Binding: r.Binding,
				Offset: sl.offsets[name], BufferSize: r.Entry.Buffer.MinBindingSize, Kind: kind,
			}
		}
	}
	return slots
}

// stageLocations collects the @location slots a stage reads (inputs) or writes (outputs) at its
// entry point, mapped to their WGSL types. Locations inside structs are flattened.
//
// Parameters:
//   - source: the raw WGSL source
//   - shaderType: the stage
//   - outputs: true for the entry point's return value, false for its parameters
//
// Returns:
//   - map[int]string: location index to normalized type
func stageLocations(source string, shaderType ShaderType, outputs bool) map[int]string {
	cleaned := stripComments(source)
	entry, ok := parseEntrySignature(cleaned, shaderType)
	if !ok {
		return nil
	}
	structs := make(map[string]parsedStruct)
	for _, ps := range parseStructBlocks(cleaned) {
		structs[ps.name] = ps
	}

	locs := make(map[int]string)
	collect := func(f parsedField) {
		if f.location >= 0 {
			locs[f.location] = f.typeName
			return
		}
		if ps, ok := structs[f.typeName]; ok {
			for _, sf := range ps.fields {
				if sf.location >= 0 {
					locs[sf.location] = sf.typeName
				}
			}
		}
	}

	if !outputs {
		for _, p := range entry.params {
			collect(p)
		}
		return locs
	}
	if entry.returnType != "" && !entry.returnBuiltin {
		collect(parsedField{typeName: entry.returnType, location: entry.returnLocation})
	}
	return locs
}
