// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source code
// for @oxy: annotations, replaces include annotations with embedded snippet source, and
// collects unit declarations that the binding compiler checks against its unit assignment.
package shader

import (
	"fmt"
	"strings"
)

// registryEntry pairs an embedded WGSL snippet with the snippets it calls into.
type registryEntry struct {
	// Source is the raw WGSL text injected by @oxy:include.
	Source string

	// Requires lists snippets injected before this one.
	Requires []AnnotationArg
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// snippetRegistry maps snippet argument keys to their embedded WGSL source.
	snippetRegistry map[AnnotationArg]registryEntry

	// declarations accumulates AnnotationTypeUnit annotations during a Process call. Reset at
	// the start of each Process invocation.
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations, replacing
// them with embedded snippets while collecting a declarations list for the binding compiler.
type PreProcessor interface {
	// Process takes raw WGSL shader source code and pre-processes it. @oxy:include annotations
	// are replaced with embedded snippet text, each snippet at most once. @oxy:unit annotations
	// produce no WGSL output but are recorded in the declarations list.
	//
	// The declarations list is reset at the start of each call and can be retrieved
	// via Declarations() after Process returns.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed, unknown, or declared twice
	Process(source string) (string, error)

	// Declarations returns the AnnotationTypeUnit annotations collected during the most recent
	// call to Process, in source order. Returns nil if Process has not been called.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with every embedded snippet registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		snippetRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgQuadVertex:   {Source: QuadVertexSource},
			AnnotationArgQuadVaryings: {Source: QuadVaryingsSource},
			AnnotationArgLuminance:    {Source: LuminanceSource},
			annotationArgPackBytes:    {Source: packBytesSource},
			AnnotationArgPackF32:      {Source: PackF32Source, Requires: []AnnotationArg{annotationArgPackBytes}},
			AnnotationArgPackI32:      {Source: PackI32Source, Requires: []AnnotationArg{annotationArgPackBytes}},
			AnnotationArgPalette:      {Source: PaletteSource},
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	included := make(map[AnnotationArg]bool)
	units := make(map[string]int)

	var include func(arg AnnotationArg, line int) error
	include = func(arg AnnotationArg, line int) error {
		if included[arg] {
			return nil
		}
		entry, ok := p.snippetRegistry[arg]
		if !ok {
			return fmt.Errorf("line %d: unknown @oxy:include argument %q", line, arg)
		}
		included[arg] = true
		for _, dep := range entry.Requires {
			if err := include(dep, line); err != nil {
				return err
			}
		}
		out = append(out, strings.TrimRight(entry.Source, "\n"))
		return nil
	}

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if err := include(a.Args[0], i+1); err != nil {
				return "", err
			}
		case AnnotationTypeUnit:
			name := string(a.Args[0])
			if prev, ok := units[name]; ok && prev != *a.Unit {
				return "", fmt.Errorf("line %d: texture %q already declared on unit %d", i+1, name, prev)
			}
			units[name] = *a.Unit
			p.declarations = append(p.declarations, *a)
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}
