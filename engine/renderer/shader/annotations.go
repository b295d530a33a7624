// annotations.go defines the annotation types and parser for the Oxy WGSL pre-processor. Annotations are single-line
// WGSL comments prefixed with @oxy: that inject registered source chunks, generate bind group declarations, emit
// compile-time constants and guard blocks behind feature flags. The parsed results are stored as Annotation values and
// consumed by the PreProcessor.
//
// Syntax:
//
//	//@oxy:include <chunk>
//	//@oxy:group <group> <binding> <address_space> <var_name> <chunk_type>
//	//@oxy:define <NAME> <wgsl_type>
//	//@oxy:if <FLAG>   //@oxy:if !<FLAG>
//	//@oxy:else
//	//@oxy:endif
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
	// annotationTypeInclude injects a registered WGSL chunk (a struct declaration or a function library) at the
	// annotation site.
	//
	// Example: //@oxy:include formula
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration whose type is the struct
	// declared by a registered chunk, and records the declaration for bind group wiring.
	//
	// Example: //@oxy:group 0 0 uniform u frame
	AnnotationTypeBindingGroup AnnotationType = "group"

	// annotationTypeDefine emits a WGSL const whose value comes from the program's compile-time constants.
	//
	// Example: //@oxy:define MAX_STEPS i32
	annotationTypeDefine AnnotationType = "define"

	// annotationTypeIf starts a block that is kept only when the named feature flag is set (or unset with !).
	annotationTypeIf AnnotationType = "if"

	// annotationTypeElse flips the innermost if block.
	annotationTypeElse AnnotationType = "else"

	// annotationTypeEndIf closes the innermost if block.
	annotationTypeEndIf AnnotationType = "endif"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed.
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = chunk name
	//   - group:   [0] = address space, [1] = var name, [2] = chunk type
	//   - define:  [0] = constant name, [1] = WGSL type
	//   - if:      [0] = flag name, with a leading ! for negation
	Args []AnnotationArg

	// Line is the 1-based source line number.
	Line int

	// Group is the bind group index for group annotations.
	Group *int

	// Binding is the binding index for group annotations.
	Binding *int
}

// AnnotationArg is a single annotation argument.
type AnnotationArg string

const (
	// AnnotationArgFrame is the per-frame uniform block.
	AnnotationArgFrame AnnotationArg = "frame"
	// AnnotationArgCamera is the camera block embedded in the frame uniforms.
	AnnotationArgCamera AnnotationArg = "camera"
	// AnnotationArgFormula is the distance estimator library for the selected formula.
	AnnotationArgFormula AnnotationArg = "formula"
	// AnnotationArgProbe is the convergence probe uniform block.
	AnnotationArgProbe AnnotationArg = "probe"
	// AnnotationArgNoise is the shared hash / random number library.
	AnnotationArgNoise AnnotationArg = "noise"
	// AnnotationArgTonemap is the display tone mapping library.
	AnnotationArgTonemap AnnotationArg = "tonemap"
)

const (
	annotationArgStorageTypeUniform   AnnotationArg = "uniform"
	annotationArgStorageTypeRead      AnnotationArg = "storage_read"
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

var validChunks = []AnnotationArg{
	AnnotationArgFrame,
	AnnotationArgCamera,
	AnnotationArgFormula,
	AnnotationArgProbe,
	AnnotationArgNoise,
	AnnotationArgTonemap,
}

var validAddressSpaces = []AnnotationArg{
	annotationArgStorageTypeUniform,
	annotationArgStorageTypeRead,
	annotationArgStorageTypeReadWrite,
}

var validDefineTypes = []string{"i32", "u32", "f32", "bool"}

// parseAnnotation parses one source line. Lines without the annotation prefix return nil, nil.
//
// Parameters:
//   - line: the raw source line
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

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		if !slices.Contains(validChunks, AnnotationArg(args[1])) {
			return nil, fmt.Errorf("line %d: unknown chunk %q in @oxy include annotation", lineNum, args[1])
		}
		return &Annotation{Type: annotationTypeInclude, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil
	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires group, binding, address space, var name and chunk type", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q: %v", lineNum, args[1], err)
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q: %v", lineNum, args[2], err)
		}
		if !slices.Contains(validAddressSpaces, AnnotationArg(args[3])) {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		if !slices.Contains(validChunks, AnnotationArg(args[5])) {
			return nil, fmt.Errorf("line %d: unknown chunk type %q in @oxy group annotation", lineNum, args[5])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil
	case annotationTypeDefine:
		if len(args) != 3 {
			return nil, fmt.Errorf("line %d: @oxy define annotation requires a name and a type", lineNum)
		}
		if !slices.Contains(validDefineTypes, args[2]) {
			return nil, fmt.Errorf("line %d: unsupported @oxy define type %q", lineNum, args[2])
		}
		return &Annotation{Type: annotationTypeDefine, Args: []AnnotationArg{AnnotationArg(args[1]), AnnotationArg(args[2])}, Line: lineNum}, nil
	case annotationTypeIf:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy if annotation requires exactly one flag", lineNum)
		}
		return &Annotation{Type: annotationTypeIf, Args: []AnnotationArg{AnnotationArg(args[1])}, Line: lineNum}, nil
	case annotationTypeElse, annotationTypeEndIf:
		if len(args) != 1 {
			return nil, fmt.Errorf("line %d: @oxy %s takes no arguments", lineNum, args[0])
		}
		return &Annotation{Type: AnnotationType(args[0]), Line: lineNum}, nil
	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
