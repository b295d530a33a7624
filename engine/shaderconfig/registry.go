// Package shaderconfig owns the canonical shader configuration. It classifies partial updates into program
// rebuilds, uniform pushes or no-ops, fills the frame uniform block from the live values and drives the
// step-wise recompilation of the raymarch program.
package shaderconfig

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
)

// UpdateClass tells the manager what a parameter change costs.
type UpdateClass int

const (
	// UpdateRuntime changes are pushed through the frame uniforms.
	UpdateRuntime UpdateClass = iota

	// UpdateCompile changes alter the program source and need a rebuild.
	UpdateCompile
)

func (c UpdateClass) String() string {
	if c == UpdateCompile {
		return "compile"
	}
	return "runtime"
}

// ValueKind is the Go type a parameter value is decoded into.
type ValueKind int

const (
	KindFloat ValueKind = iota
	KindInt
	KindBool
	KindString
	KindVec3
	KindVec4
)

// ParamSpec declares one configurable parameter.
type ParamSpec struct {
	// Name is unique within its feature.
	Name string

	// Kind selects the decoded value type.
	Kind ValueKind

	// Default is the value used until the parameter is configured. It must already have the Go type of Kind.
	Default any

	// Uniform names the frame uniform slot fed by the parameter. Empty means the value never reaches the GPU.
	Uniform string

	// Update classifies changes to the parameter.
	Update UpdateClass

	// Tolerance is the largest difference of float values still considered equal.
	Tolerance float64
}

// FeatureSpec groups the parameters of one feature.
type FeatureSpec struct {
	ID     string
	Params []ParamSpec
}

// Param returns the spec called name.
func (f FeatureSpec) Param(name string) (ParamSpec, bool) {
	i := slices.IndexFunc(f.Params, func(p ParamSpec) bool { return p.Name == name })
	if i < 0 {
		return ParamSpec{}, false
	}
	return f.Params[i], true
}

// Registry is the set of features a Manager accepts.
type Registry struct {
	features []FeatureSpec
}

// Feature ids of the default registry.
const (
	FeatureFormula  = "formula"
	FeatureQuality  = "quality"
	FeatureLighting = "lighting"
	FeatureColoring = "coloring"
	FeatureRender   = "render"
)

// Parameter names that the manager treats specially.
const (
	ParamFormulaType  = "type"
	ParamIterations   = "iterations"
	ParamMaxSteps     = "maxSteps"
	ParamRenderMode   = "mode"
	ParamAccumulation = "accumulation"
	ParamSampleCap    = "sampleCap"
)

const defaultTolerance = 1e-6

// NewRegistry builds a registry from features. Later features with a duplicate id replace earlier ones.
//
// Parameters:
//   - features: the feature specs
//
// Returns:
//   - *Registry: the registry
func NewRegistry(features ...FeatureSpec) *Registry {
	r := &Registry{}
	for _, f := range features {
		if i := slices.IndexFunc(r.features, func(e FeatureSpec) bool { return e.ID == f.ID }); i >= 0 {
			r.features[i] = f
			continue
		}
		r.features = append(r.features, f)
	}
	return r
}

// Feature returns the feature with id.
func (r *Registry) Feature(id string) (FeatureSpec, bool) {
	i := slices.IndexFunc(r.features, func(f FeatureSpec) bool { return f.ID == id })
	if i < 0 {
		return FeatureSpec{}, false
	}
	return r.features[i], true
}

// Features returns every feature in registration order.
func (r *Registry) Features() []FeatureSpec {
	return slices.Clone(r.features)
}

// Defaults returns a complete configuration holding every default value.
func (r *Registry) Defaults() Config {
	c := make(Config, len(r.features))
	for _, f := range r.features {
		group := make(map[string]any, len(f.Params))
		for _, p := range f.Params {
			group[p.Name] = p.Default
		}
		c[f.ID] = group
	}
	return c
}

// DefaultRegistry returns the features of the raymarch program.
func DefaultRegistry() *Registry {
	fp := formula.DefaultParams(formula.KindMandelbulb)
	df := shader.DefaultFeatures()
	return NewRegistry(
		FeatureSpec{ID: FeatureFormula, Params: []ParamSpec{
			{Name: ParamFormulaType, Kind: KindString, Default: formula.KindMandelbulb.String(), Update: UpdateCompile},
			{Name: ParamIterations, Kind: KindInt, Default: fp.Iterations, Uniform: "formula.b.y", Update: UpdateCompile},
			{Name: "power", Kind: KindFloat, Default: fp.Power, Uniform: "formula.a.x", Tolerance: defaultTolerance},
			{Name: "scale", Kind: KindFloat, Default: fp.Scale, Uniform: "formula.a.y", Tolerance: defaultTolerance},
			{Name: "minRadius", Kind: KindFloat, Default: fp.MinRadius, Uniform: "formula.a.z", Tolerance: defaultTolerance},
			{Name: "foldLimit", Kind: KindFloat, Default: fp.FoldLimit, Uniform: "formula.a.w", Tolerance: defaultTolerance},
			{Name: "bailout", Kind: KindFloat, Default: fp.Bailout, Uniform: "formula.b.x", Tolerance: defaultTolerance},
			{Name: "julia", Kind: KindVec4, Default: fp.Julia, Uniform: "formula.julia", Tolerance: defaultTolerance},
			{Name: "offset", Kind: KindVec3, Default: fp.Offset, Uniform: "formula.offset", Tolerance: defaultTolerance},
		}},
		FeatureSpec{ID: FeatureQuality, Params: []ParamSpec{
			{Name: ParamMaxSteps, Kind: KindInt, Default: df.MaxSteps, Update: UpdateCompile},
			{Name: "epsilon", Kind: KindFloat, Default: float32(1e-4), Uniform: "quality.x", Tolerance: 1e-9},
			{Name: "maxDistance", Kind: KindFloat, Default: float32(20), Uniform: "quality.y", Tolerance: defaultTolerance},
			{Name: "stepFactor", Kind: KindFloat, Default: float32(0.9), Uniform: "quality.z", Tolerance: defaultTolerance},
			{Name: "pixelAngle", Kind: KindFloat, Default: float32(0.0005), Uniform: "quality.w", Tolerance: 1e-9},
		}},
		FeatureSpec{ID: FeatureLighting, Params: []ParamSpec{
			{Name: "shadows", Kind: KindBool, Default: df.Shadows, Update: UpdateCompile},
			{Name: "ambientOcclusion", Kind: KindBool, Default: df.AmbientOcclusion, Update: UpdateCompile},
			{Name: "fog", Kind: KindBool, Default: df.Fog, Update: UpdateCompile},
			{Name: "direction", Kind: KindVec3, Default: [3]float32{0.577, 0.577, 0.577}, Uniform: "light.xyz", Tolerance: defaultTolerance},
			{Name: "intensity", Kind: KindFloat, Default: float32(1), Uniform: "light.w", Tolerance: defaultTolerance},
			{Name: "ambient", Kind: KindFloat, Default: float32(0.15), Uniform: "shading.x", Tolerance: defaultTolerance},
			{Name: "shadowSoftness", Kind: KindFloat, Default: float32(16), Uniform: "shading.y", Tolerance: defaultTolerance},
			{Name: "aoStrength", Kind: KindFloat, Default: float32(0.6), Uniform: "shading.z", Tolerance: defaultTolerance},
			{Name: "fogDensity", Kind: KindFloat, Default: float32(0.05), Uniform: "shading.w", Tolerance: defaultTolerance},
		}},
		FeatureSpec{ID: FeatureColoring, Params: []ParamSpec{
			{Name: "gradient", Kind: KindBool, Default: df.Gradient, Update: UpdateCompile},
			{Name: "surface", Kind: KindVec3, Default: [3]float32{0.8, 0.75, 0.7}, Uniform: "surface.xyz", Tolerance: defaultTolerance},
			{Name: "gradientMix", Kind: KindFloat, Default: float32(1), Uniform: "surface.w", Tolerance: defaultTolerance},
			{Name: "gradientScale", Kind: KindFloat, Default: float32(1), Uniform: "gradient_info.z", Tolerance: defaultTolerance},
			{Name: "layerMix", Kind: KindFloat, Default: float32(0.5), Uniform: "gradient_info.w", Tolerance: defaultTolerance},
			{Name: "background", Kind: KindVec3, Default: [3]float32{0.05, 0.06, 0.08}, Uniform: "background.xyz", Tolerance: defaultTolerance},
			{Name: "exposure", Kind: KindFloat, Default: float32(1), Uniform: "background.w", Tolerance: defaultTolerance},
		}},
		FeatureSpec{ID: FeatureRender, Params: []ParamSpec{
			{Name: ParamRenderMode, Kind: KindString, Default: df.Mode.String(), Update: UpdateCompile},
			{Name: "bounces", Kind: KindInt, Default: df.Bounces, Update: UpdateCompile},
			{Name: ParamAccumulation, Kind: KindBool, Default: true},
			{Name: ParamSampleCap, Kind: KindInt, Default: 0},
		}},
	)
}
