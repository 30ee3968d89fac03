// annotations.go defines the annotation types, argument constants, and parser for the Oxy WGSL
// pre-processor. Annotations are single-line WGSL comments prefixed with @oxy: that inject
// embedded snippets or declare which texture unit a texture variable expects.
package shader

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered snippet at the annotation
	// site. Each snippet is injected at most once per shader, after the snippets it depends on.
	// This annotation does not produce a declaration.
	//
	// Syntax: //@oxy:include <snippet>
	//
	// Example: //@oxy:include pack_f32
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeUnit declares the texture unit a texture variable must be bound to. The
	// binding compiler checks it against the unit assigned from the input order.
	//
	// Syntax: //@oxy:unit <unit> <texture_name>
	//
	// Example: //@oxy:unit 0 fixed_tex
	AnnotationTypeUnit AnnotationType = "unit"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = snippet key (e.g. "luminance")
	//   - unit:    [0] = texture variable name
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Unit is the declared texture unit for unit annotations. Nil for include annotations.
	Unit *int
}

// AnnotationArg is a typed string used as an argument in annotations.
type AnnotationArg string

// ── Snippet arguments ──────────────────────────────────────────────────────────
// These identify embedded WGSL snippets that @oxy:include can inject.

const (
	// AnnotationArgQuadVertex identifies the full-surface quad vertex stage.
	// Source: engine/renderer/shader/assets/quad_vertex.wgsl
	AnnotationArgQuadVertex AnnotationArg = "quad_vertex"

	// AnnotationArgQuadVaryings identifies the VertexOutput struct of the quad vertex stage.
	// Source: engine/renderer/shader/assets/quad_varyings.wgsl
	AnnotationArgQuadVaryings AnnotationArg = "quad_varyings"

	// AnnotationArgLuminance identifies the grey(rgb) helper.
	// Source: engine/renderer/shader/assets/luminance.wgsl
	AnnotationArgLuminance AnnotationArg = "luminance"

	// annotationArgPackBytes identifies pack_u32, shared by the pack_f32 and pack_i32 snippets.
	// Source: engine/renderer/shader/assets/pack_bytes.wgsl
	annotationArgPackBytes AnnotationArg = "pack_bytes"

	// AnnotationArgPackF32 identifies the pack_f32(v) helper.
	// Source: engine/renderer/shader/assets/pack_f32.wgsl
	AnnotationArgPackF32 AnnotationArg = "pack_f32"

	// AnnotationArgPackI32 identifies the pack_i32(v) helper.
	// Source: engine/renderer/shader/assets/pack_i32.wgsl
	AnnotationArgPackI32 AnnotationArg = "pack_i32"

	// AnnotationArgPalette identifies the palette(t, a, b, c, d) helper.
	// Source: engine/renderer/shader/assets/palette.wgsl
	AnnotationArgPalette AnnotationArg = "palette"
)

// validSnippets lists all AnnotationArg values accepted by @oxy:include. Each entry must have a
// corresponding registryEntry in the PreProcessor's snippet registry.
var validSnippets = []AnnotationArg{
	AnnotationArgQuadVertex,
	AnnotationArgQuadVaryings,
	AnnotationArgLuminance,
	annotationArgPackBytes,
	AnnotationArgPackF32,
	AnnotationArgPackI32,
	AnnotationArgPalette,
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Returns
// a populated Annotation for valid annotations, or an error describing the problem for
// malformed annotations with correct prefix but invalid syntax or unknown arguments.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch args[0] {
	case string(annotationTypeInclude):
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validSnippets, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown snippet %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case string(AnnotationTypeUnit):
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy unit annotation requires exactly two arguments (unit, texture name)", lineNum)
		}
		unit, err := strconv.Atoi(args[1])
		if err != nil || unit < 0 {
			return nil, fmt.Errorf("line %d: invalid unit %q in @oxy unit annotation", lineNum, args[1])
		}
		return &Annotation{
			Type: AnnotationTypeUnit,
			Args: []AnnotationArg{AnnotationArg(args[2])},
			Line: lineNum,
			Unit: &unit,
		}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
