package formula

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Params holds every tunable value a formula may read. Formulas ignore the fields they do not use.
type Params struct {
	// Power is the exponent of the Mandelbulb style formulas.
	Power float32 `mapstructure:"power" json:"power"`

	// Scale is the fold scale of Mandelbox, Sierpinski and the inversion radius of the Kleinian.
	Scale float32 `mapstructure:"scale" json:"scale"`

	// MinRadius is the inner sphere fold radius.
	MinRadius float32 `mapstructure:"minRadius" json:"minRadius"`

	// FoldLimit is the box fold half extent.
	FoldLimit float32 `mapstructure:"foldLimit" json:"foldLimit"`

	// Bailout is the escape radius.
	Bailout float32 `mapstructure:"bailout" json:"bailout"`

	// Iterations is the per-config iteration count, clamped to [1, MaxIterations].
	Iterations int `mapstructure:"iterations" json:"iterations"`

	// Julia is the quaternion constant c of the Julia formula.
	Julia [4]float32 `mapstructure:"julia" json:"julia"`

	// Offset is the fold centre of the IFS formulas.
	Offset [3]float32 `mapstructure:"offset" json:"offset"`
}

// DefaultParams returns the documented defaults for k.
//
// Parameters:
//   - k: formula kind
//
// Returns:
//   - Params: default parameters
func DefaultParams(k Kind) Params {
	p := Params{
		Power:      8,
		Scale:      2,
		MinRadius:  0.5,
		FoldLimit:  1,
		Bailout:    2,
		Iterations: 8,
		Julia:      [4]float32{-0.2, 0.6, 0.2, 0},
		Offset:     [3]float32{1, 1, 1},
	}
	switch k {
	case KindMandelbox:
		p.Scale = -1.8
		p.Bailout = 100
		p.Iterations = 12
	case KindMengerSponge:
		p.Scale = 3
		p.Iterations = 5
	case KindSierpinski:
		p.Bailout = 1000
		p.Iterations = 12
	case KindQuaternionJulia:
		p.Bailout = 4
		p.Iterations = 12
	case KindKleinian:
		p.Scale = 1
		p.FoldLimit = 0.8
		p.Iterations = 10
		p.Bailout = 1000
	}
	return p
}

// DecodeParams overlays the generic parameter map raw onto the defaults for k.
// Keys that do not correspond to a field are reported as an error but the decoded values are still returned.
//
// Parameters:
//   - k: formula kind
//   - raw: parameter map, typically from a preset or a config update
//
// Returns:
//   - Params: decoded parameters, normalized
//   - error: error if raw contained values that could not be decoded
func DecodeParams(k Kind, raw map[string]any) (Params, error) {
	p := DefaultParams(k)
	if len(raw) == 0 {
		return p, nil
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Metadata:         &md,
		Result:           &p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return DefaultParams(k), errors.Wrap(err, "create params decoder")
	}
	if err := dec.Decode(raw); err != nil {
		return DefaultParams(k), errors.Wrapf(err, "decode %s params", k)
	}

	p = p.Normalized(k)
	if len(md.Unused) > 0 {
		return p, errors.Errorf("unknown %s params: %v", k, md.Unused)
	}
	return p, nil
}

// Normalized clamps the parameters into the ranges every estimator relies on.
// Zero values are replaced by the defaults for k.
//
// Parameters:
//   - k: formula kind
//
// Returns:
//   - Params: normalized copy
func (p Params) Normalized(k Kind) Params {
	def := DefaultParams(k)
	if p.Iterations <= 0 {
		p.Iterations = def.Iterations
	}
	p.Iterations = min(p.Iterations, MaxIterations)
	if p.Bailout <= 0 {
		p.Bailout = def.Bailout
	}
	if p.Power == 0 {
		p.Power = def.Power
	}
	if p.Scale == 0 {
		p.Scale = def.Scale
	}
	if p.FoldLimit <= 0 {
		p.FoldLimit = def.FoldLimit
	}
	if p.MinRadius <= 0 {
		p.MinRadius = def.MinRadius
	}
	return p
}

func (p Params) iterations() int {
	if p.Iterations <= 0 {
		return 1
	}
	return min(p.Iterations, MaxIterations)
}

// GPUParams is the WGSL FormulaParams struct layout. Every member is a vec4<f32>.
type GPUParams struct {
	// A packs power, scale, minRadius and foldLimit.
	A [4]float32
	// B packs bailout and iteration count.
	B [4]float32
	// Julia is the quaternion constant.
	Julia [4]float32
	// Offset is the IFS fold centre in xyz.
	Offset [4]float32
}

// GPU packs p into the uniform layout.
//
// Returns:
//   - GPUParams: the packed parameters
func (p Params) GPU() GPUParams {
	return GPUParams{
		A:      [4]float32{p.Power, p.Scale, p.MinRadius, p.FoldLimit},
		B:      [4]float32{p.Bailout, float32(p.iterations()), 0, 0},
		Julia:  p.Julia,
		Offset: [4]float32{p.Offset[0], p.Offset[1], p.Offset[2], 0},
	}
}

// ParamsFromGPU unpacks a uniform block. It is the inverse of Params.GPU for normalized params.
func ParamsFromGPU(g GPUParams) Params {
	return Params{
		Power:      g.A[0],
		Scale:      g.A[1],
		MinRadius:  g.A[2],
		FoldLimit:  g.A[3],
		Bailout:    g.B[0],
		Iterations: int(g.B[1]),
		Julia:      g.Julia,
		Offset:     [3]float32{g.Offset[0], g.Offset[1], g.Offset[2]},
	}
}

// ToMap converts p into the generic parameter map used by configs and presets.
func (p Params) ToMap() map[string]any {
	return map[string]any{
		"power":      p.Power,
		"scale":      p.Scale,
		"minRadius":  p.MinRadius,
		"foldLimit":  p.FoldLimit,
		"bailout":    p.Bailout,
		"iterations": p.Iterations,
		"julia":      p.Julia,
		"offset":     p.Offset,
	}
}
