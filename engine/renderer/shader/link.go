package shader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// Linked is a vertex/fragment pair whose stage interfaces and resource declarations agree.
type Linked struct {
	// Key identifies the program, used for labels and error reports.
	Key string
	// Vertex and Fragment are the two reflected stages.
	Vertex, Fragment Shader
	// Layouts holds one descriptor per bind group index, contiguous from 0. Groups neither
	// stage declares get an empty descriptor.
	Layouts []wgpu.BindGroupLayoutDescriptor
	// Units maps texture names to the unit declared with @oxy:unit in either stage.
	Units map[string]int
}

// Link checks that a vertex and fragment stage form a program and merges their bind group
// layouts. Every @location the fragment stage reads must be written by the vertex stage with
// the same type, a @group/@binding slot declared by both stages must name the same variable
// with the same type, and an @oxy:unit declared in both stages must agree.
//
// Parameters:
//   - key: the program key
//   - vertex: the vertex stage
//   - fragment: the fragment stage
//
// Returns:
//   - *Linked: the merged program description
//   - error: *ProgramLinkError describing every mismatch found
func Link(key string, vertex, fragment Shader) (*Linked, error) {
	var problems []string

	outputs := stageLocations(vertex.Source(), ShaderTypeVertex, true)
	inputs := stageLocations(fragment.Source(), ShaderTypeFragment, false)
	locs := make([]int, 0, len(inputs))
	for loc := range inputs {
		locs = append(locs, loc)
	}
	sort.Ints(locs)
	for _, loc := range locs {
		out, ok := outputs[loc]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("fragment input @location(%d) is not written by the vertex stage", loc))
		case out != inputs[loc]:
			problems = append(problems, fmt.Sprintf("@location(%d) is %s in the vertex stage but %s in the fragment stage", loc, out, inputs[loc]))
		}
	}

	layouts, layoutProblems := mergeLayouts(vertex.Resources(), fragment.Resources())
	problems = append(problems, layoutProblems...)

	units := make(map[string]int)
	for _, s := range []Shader{vertex, fragment} {
		for _, a := range s.Declarations() {
			if a.Type != AnnotationTypeUnit {
				continue
			}
			name := string(a.Args[0])
			if prev, ok := units[name]; ok && prev != *a.Unit {
				problems = append(problems, fmt.Sprintf("texture %q declared on unit %d and unit %d", name, prev, *a.Unit))
				continue
			}
			units[name] = *a.Unit
		}
	}

	if len(problems) > 0 {
		return nil, &ProgramLinkError{Key: key, Log: strings.Join(problems, "; ")}
	}
	for i := range layouts {
		layouts[i].Label = fmt.Sprintf("%s group %d", key, i)
	}
	return &Linked{Key: key, Vertex: vertex, Fragment: fragment, Layouts: layouts, Units: units}, nil
}

// Resource looks up a declared variable in either stage, vertex first.
func (l *Linked) Resource(name string) (Resource, bool) {
	if r, ok := l.Vertex.Resource(name); ok {
		return r, true
	}
	return l.Fragment.Resource(name)
}

// Uniform looks up a named uniform scalar in either stage, vertex first.
func (l *Linked) Uniform(name string) (UniformSlot, bool) {
	if slot, ok := l.Vertex.Uniform(name); ok {
		return slot, true
	}
	return l.Fragment.Uniform(name)
}

// Resources returns the declarations of both stages with shared slots reported once, sorted by
// group then binding.
func (l *Linked) Resources() []Resource {
	seen := make(map[[2]int]bool)
	var out []Resource
	for _, r := range append(append([]Resource{}, l.Vertex.Resources()...), l.Fragment.Resources()...) {
		k := [2]int{r.Group, r.Binding}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Group != out[j].Group {
			return out[i].Group < out[j].Group
		}
		return out[i].Binding < out[j].Binding
	})
	return out
}

// mergeLayouts combines the resources of both stages into contiguous per-group descriptors. A
// slot declared by both stages gets both visibility flags.
func mergeLayouts(vertex, fragment []Resource) ([]wgpu.BindGroupLayoutDescriptor, []string) {
	type slot struct{ group, binding int }
	merged := make(map[slot]Resource)
	var problems []string
	maxGroup := -1

	for _, r := range append(append([]Resource{}, vertex...), fragment...) {
		k := slot{r.Group, r.Binding}
		prev, ok := merged[k]
		if !ok {
			merged[k] = r
			maxGroup = max(maxGroup, r.Group)
			continue
		}
		if prev.Name != r.Name || prev.TypeName != r.TypeName {
			problems = append(problems, fmt.Sprintf("@group(%d) @binding(%d) is %s: %s in one stage and %s: %s in the other",
				r.Group, r.Binding, prev.Name, prev.TypeName, r.Name, r.TypeName))
			continue
		}
		prev.Entry.Visibility |= r.Entry.Visibility
		merged[k] = prev
	}

	layouts := make([]wgpu.BindGroupLayoutDescriptor, maxGroup+1)
	for k, r := range merged {
		layouts[k.group].Entries = append(layouts[k.group].Entries, r.Entry)
	}
	for i := range layouts {
		entries := layouts[i].Entries
		sort.Slice(entries, func(a, b int) bool { return entries[a].Binding < entries[b].Binding })
	}
	return layouts, problems
}
