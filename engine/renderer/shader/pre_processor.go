// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source code for @oxy: annotations,
// replaces them with injected chunk source, generated binding declarations or constants, drops blocks whose feature
// flag does not hold, and collects the binding declarations for the backend that wires bind groups.
//
// The pre-processor maintains two registries:
//   - chunkRegistry: maps AnnotationArg keys to WGSL source and the WGSL type name declared by that source. The
//     formula chunk is resolved per call from the Definitions because the estimator is fixed per program.
//   - addressSpaceRegistry: maps address space argument keys to WGSL var<> syntax strings.
package shader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-fractal/engine/camera"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/pkg/errors"
)

// registryEntry pairs a WGSL source chunk with the type name it declares, if any.
type registryEntry struct {
	// Source is the WGSL text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations.
	Type string
}

// Definitions carries the per-program inputs of a Process call.
type Definitions struct {
	// Formula selects the estimator library injected by //@oxy:include formula.
	Formula formula.Kind

	// Flags holds the feature flags tested by //@oxy:if.
	Flags map[string]bool

	// Constants holds the values emitted by //@oxy:define, already formatted for their WGSL type.
	Constants map[string]string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	chunkRegistry        map[AnnotationArg]registryEntry
	addressSpaceRegistry map[AnnotationArg]string

	// declarations accumulates group annotations during a Process call. Reset at the start of each call.
	declarations []Annotation
}

// PreProcessor expands @oxy: annotations in WGSL source.
type PreProcessor interface {
	// Process expands every annotation in source. Include annotations are replaced with registered chunk source,
	// group annotations with @group/@binding declarations, define annotations with WGSL consts, and if / else /
	// endif blocks are kept or dropped according to defs.Flags. Unknown flags read as false.
	//
	// Parameters:
	//   - source: raw WGSL containing annotations
	//   - defs: per-program formula, flags and constants
	//
	// Returns:
	//   - string: the processed WGSL source
	//   - error: a malformed annotation, a missing constant or an unbalanced if block
	Process(source string, defs Definitions) (string, error)

	// Declarations returns the group annotations collected during the most recent Process call in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a PreProcessor with the engine's WGSL chunks registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		chunkRegistry: map[AnnotationArg]registryEntry{
			AnnotationArgCamera:  {Source: camera.GPUCameraSource, Type: "CameraUniform"},
			AnnotationArgFrame:   {Source: GPUFrameUniformsSource, Type: "FrameUniforms"},
			AnnotationArgProbe:   {Source: GPUProbeUniformsSource, Type: "ProbeUniforms"},
			AnnotationArgNoise:   {Source: noiseSource},
			AnnotationArgTonemap: {Source: tonemapSource},
		},
		addressSpaceRegistry: map[AnnotationArg]string{
			annotationArgStorageTypeUniform:   "var<uniform>",
			annotationArgStorageTypeRead:      "var<storage, read>",
			annotationArgStorageTypeReadWrite: "var<storage, read_write>",
		},
	}
}

// condFrame is one level of the //@oxy:if stack.
type condFrame struct {
	parentActive bool
	taken        bool
	seenElse     bool
	line         int
}

func (p *preProcessor) Process(source string, defs Definitions) (string, error) {
	p.declarations = p.declarations[:0]

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	var stack []condFrame
	active := true

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			if active {
				out = append(out, line)
			}
			continue
		}

		switch a.Type {
		case annotationTypeIf:
			flag, negate := strings.CutPrefix(string(a.Args[0]), "!")
			cond := defs.Flags[flag] != negate
			stack = append(stack, condFrame{parentActive: active, taken: cond, line: i + 1})
			active = active && cond
			continue
		case annotationTypeElse:
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: @oxy else without if", i+1)
			}
			top := &stack[len(stack)-1]
			if top.seenElse {
				return "", fmt.Errorf("line %d: duplicate @oxy else for if on line %d", i+1, top.line)
			}
			top.seenElse = true
			active = top.parentActive && !top.taken
			continue
		case annotationTypeEndIf:
			if len(stack) == 0 {
				return "", fmt.Errorf("line %d: @oxy endif without if", i+1)
			}
			active = stack[len(stack)-1].parentActive
			stack = stack[:len(stack)-1]
			continue
		}

		if !active {
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			if a.Args[0] == AnnotationArgFormula {
				out = append(out, formula.Library(defs.Formula))
				continue
			}
			entry, ok := p.chunkRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, a.Args[0])
			}
			out = append(out, entry.Source)
		case AnnotationTypeBindingGroup:
			entry, ok := p.chunkRegistry[a.Args[2]]
			if !ok || entry.Type == "" {
				return "", fmt.Errorf("line %d: chunk %q declares no bindable type", i+1, a.Args[2])
			}
			addrSpace := p.addressSpaceRegistry[a.Args[0]]
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addrSpace, a.Args[1], entry.Type))
			p.declarations = append(p.declarations, *a)
		case annotationTypeDefine:
			name, typ := string(a.Args[0]), string(a.Args[1])
			value, ok := defs.Constants[name]
			if !ok {
				return "", fmt.Errorf("line %d: no value for @oxy define %s", i+1, name)
			}
			lit, err := formatConstant(typ, value)
			if err != nil {
				return "", errors.Wrapf(err, "line %d: @oxy define %s", i+1, name)
			}
			out = append(out, fmt.Sprintf("const %s: %s = %s;", name, typ, lit))
		default:
			return "", fmt.Errorf("line %d: unknown annotation type %q", i+1, a.Type)
		}
	}
	if len(stack) > 0 {
		return "", fmt.Errorf("line %d: unterminated @oxy if", stack[len(stack)-1].line)
	}
	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// formatConstant validates value against the WGSL type and returns its literal form.
func formatConstant(typ, value string) (string, error) {
	switch typ {
	case "i32":
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return "", errors.Wrap(err, "parse i32")
		}
		return strconv.FormatInt(v, 10), nil
	case "u32":
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return "", errors.Wrap(err, "parse u32")
		}
		return strconv.FormatUint(v, 10) + "u", nil
	case "f32":
		v, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return "", errors.Wrap(err, "parse f32")
		}
		s := strconv.FormatFloat(v, 'g', -1, 32)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s, nil
	case "bool":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return "", errors.Wrap(err, "parse bool")
		}
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("unsupported type %q", typ)
	}
}
