package shader

import (
	_ "embed"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pkg/errors"
)

// ShaderType identifies the pipeline a program is built for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a program containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex stage of a render program.
	ShaderTypeVertex

	// ShaderTypeFragment is a render program with both a @vertex and a @fragment entry point.
	ShaderTypeFragment
)

//go:embed assets/raymarch.wgsl
var raymarchTemplate string

//go:embed assets/convergence.wgsl
var convergenceTemplate string

//go:embed assets/present.wgsl
var presentTemplate string

// shader is the implementation of the Shader interface.
type shader struct {
	key                        string
	source                     string
	shaderType                 ShaderType
	features                   Features
	bindGroupLayoutDescriptors map[int]wgpu.BindGroupLayoutDescriptor
	bindingVarNames            map[int]map[int]string
	entryPoints                map[ShaderType]string
	workGroupSize              [3]uint32
	module                     *wgpu.ShaderModuleDescriptor
	declarations               []Annotation
}

// Shader is an assembled WGSL program together with the reflection data a backend needs to build a pipeline.
type Shader interface {
	// Key retrieves the unique identifier for this program, used for caching and pipeline labels.
	//
	// Returns:
	//   - string: the program key
	Key() string

	// Source retrieves the assembled WGSL, annotations expanded.
	//
	// Returns:
	//   - string: the WGSL source code of the program
	Source() string

	// Features returns the compile-time features the program was built with. Zero for utility programs.
	Features() Features

	// BindGroupLayoutDescriptors retrieves the bind group layouts reflected from the source, keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name bound at group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName retrieves the binding index of a variable within group.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name within the group
	//
	// Returns:
	//   - int: the binding index, or -1 if not found
	//   - bool: true if the variable name was found
	BindGroupFromVarName(group int, varName string) (int, bool)

	// EntryPoint returns the entry point of the program's primary stage: fragment for render programs and
	// compute for compute programs.
	EntryPoint() string

	// StageEntryPoint returns the entry point of the given stage, or an empty string.
	StageEntryPoint(t ShaderType) string

	// WorkgroupSize returns the workgroup size of compute programs and [0, 0, 0] otherwise.
	WorkgroupSize() [3]uint32

	// Module returns the shader module descriptor for the assembled source.
	Module() *wgpu.ShaderModuleDescriptor

	// ShaderType returns the pipeline kind of the program.
	ShaderType() ShaderType

	// Declarations returns the group annotations expanded while assembling the program.
	Declarations() []Annotation
}

var _ Shader = &shader{}

// NewShader pre-processes source with defs and reflects the result.
//
// Parameters:
//   - key: a unique identifier for the program
//   - shaderType: ShaderTypeFragment for render programs, ShaderTypeCompute for compute programs
//   - source: WGSL containing @oxy annotations
//   - defs: the pre-processor inputs
//
// Returns:
//   - Shader: the assembled program
//   - error: a pre-processing failure or a missing entry point
func NewShader(key string, shaderType ShaderType, source string, defs Definitions) (Shader, error) {
	pp := NewPreProcessor()
	processed, err := pp.Process(source, defs)
	if err != nil {
		return nil, errors.Wrapf(err, "shader: pre-process %s", key)
	}
	s := &shader{
		key:          key,
		source:       processed,
		shaderType:   shaderType,
		entryPoints:  make(map[ShaderType]string, 2),
		declarations: append([]Annotation(nil), pp.Declarations()...),
		module: &wgpu.ShaderModuleDescriptor{
			Label:          key,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: processed},
		},
	}

	var visibility wgpu.ShaderStage
	switch shaderType {
	case ShaderTypeCompute:
		visibility = wgpu.ShaderStageCompute
		s.workGroupSize = parseWorkgroupSize(processed)
		s.entryPoints[ShaderTypeCompute] = parseEntryPoint(processed, ShaderTypeCompute)
	default:
		visibility = wgpu.ShaderStageFragment
		s.entryPoints[ShaderTypeVertex] = parseEntryPoint(processed, ShaderTypeVertex)
		s.entryPoints[ShaderTypeFragment] = parseEntryPoint(processed, ShaderTypeFragment)
		if s.entryPoints[ShaderTypeVertex] == "" {
			return nil, errors.Errorf("shader: %s has no @vertex entry point", key)
		}
	}
	if s.EntryPoint() == "" {
		return nil, errors.Errorf("shader: %s has no entry point for its stage", key)
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = parseBindGroupLayouts(processed, visibility)
	return s, nil
}

// NewRaymarchShader assembles the progressive raymarch program for f.
//
// Parameters:
//   - f: compile-time features
//
// Returns:
//   - Shader: the render program
//   - error: an assembly failure
func NewRaymarchShader(f Features) (Shader, error) {
	f = f.Normalized()
	s, err := NewShader("raymarch/"+f.Key(), ShaderTypeFragment, raymarchTemplate, f.Definitions())
	if err != nil {
		return nil, err
	}
	s.(*shader).features = f
	return s, nil
}

// NewConvergenceShader assembles the compute program of the convergence probe.
func NewConvergenceShader() (Shader, error) {
	return NewShader("convergence", ShaderTypeCompute, convergenceTemplate, DefaultFeatures().Definitions())
}

// NewPresentShader assembles the program that displays a target on the window surface.
func NewPresentShader() (Shader, error) {
	return NewShader("present", ShaderTypeFragment, presentTemplate, Definitions{})
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Features() Features {
	return s.features
}

func (s *shader) EntryPoint() string {
	if s.shaderType == ShaderTypeCompute {
		return s.entryPoints[ShaderTypeCompute]
	}
	return s.entryPoints[ShaderTypeFragment]
}

func (s *shader) StageEntryPoint(t ShaderType) string {
	return s.entryPoints[t]
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindGroupVarName(group, binding int) string {
	if s.bindingVarNames[group] == nil {
		return ""
	}
	return s.bindingVarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.bindingVarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) Declarations() []Annotation {
	return s.declarations
}
