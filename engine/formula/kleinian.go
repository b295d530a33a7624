package formula

import (
	"github.com/go-gl/mathgl/mgl32"
)

// kleinian folds space into a box and inverts it through a sphere of radius sqrt(scale) each iteration.
// The estimate measures the slab around the y = 0 plane of the folded space.
type kleinian struct{}

func (kleinian) Kind() Kind           { return KindKleinian }
func (kleinian) FunctionName() string { return "de_kleinian" }

func (kleinian) Estimate(pos mgl32.Vec3, params Params) (float32, float32) {
	z := pos
	dr := float32(1)
	for i := 0; i < params.iterations(); i++ {
		for c := range 3 {
			z[c] = clampf(z[c], -params.FoldLimit, params.FoldLimit)*2 - z[c]
		}
		r2 := max(z.Dot(z), MinDerivative)
		k := max(params.Scale/r2, 1)
		z = z.Mul(k)
		dr *= k
		if r2 > params.Bailout {
			break
		}
	}
	dr = max(dr, MinDerivative)
	return 0.25 * absf(z[1]) / dr, dr
}

func (kleinian) AppendWGSL(dst []byte) []byte {
	return append(dst, `fn de_kleinian(pos: vec3<f32>, fp: FormulaParams) -> vec2<f32> {
    var z = pos;
    var dr = 1.0;
    let iterations = i32(fp.b.y);
    for (var i = 0; i < DE_MAX_ITERATIONS; i = i + 1) {
        if (i >= iterations) { break; }
        z = de_box_fold(z, fp.a.w);
        let r2 = max(dot(z, z), DE_MIN_DR);
        let k = max(fp.a.y / r2, 1.0);
        z = z * k;
        dr = dr * k;
        if (r2 > fp.b.x) { break; }
    }
    dr = max(dr, DE_MIN_DR);
    return vec2<f32>(0.25 * abs(z.y) / dr, dr);
}
`...)
}
