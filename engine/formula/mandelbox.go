package formula

import (
	"github.com/go-gl/mathgl/mgl32"
)

type mandelbox struct{}

func (mandelbox) Kind() Kind           { return KindMandelbox }
func (mandelbox) FunctionName() string { return "de_mandelbox" }

func (mandelbox) Estimate(pos mgl32.Vec3, params Params) (float32, float32) {
	const fixedR2 = 1
	z := pos
	dr := float32(1)
	minR2 := params.MinRadius * params.MinRadius
	bail2 := params.Bailout * params.Bailout
	for i := 0; i < params.iterations(); i++ {
		for c := range 3 {
			z[c] = clampf(z[c], -params.FoldLimit, params.FoldLimit)*2 - z[c]
		}
		r2 := z.Dot(z)
		if r2 < minR2 {
			t := fixedR2 / minR2
			z = z.Mul(t)
			dr *= t
		} else if r2 < fixedR2 {
			t := fixedR2 / r2
			z = z.Mul(t)
			dr *= t
		}
		z = z.Mul(params.Scale).Add(pos)
		dr = dr*absf(params.Scale) + 1
		if z.Dot(z) > bail2 {
			break
		}
	}
	return linearDistance(z.Len(), dr)
}

func (mandelbox) AppendWGSL(dst []byte) []byte {
	return append(dst, `fn de_mandelbox(pos: vec3<f32>, fp: FormulaParams) -> vec2<f32> {
    var z = pos;
    var dr = 1.0;
    let scale = fp.a.y;
    let min_r2 = fp.a.z * fp.a.z;
    let bail2 = fp.b.x * fp.b.x;
    let iterations = i32(fp.b.y);
    for (var i = 0; i < DE_MAX_ITERATIONS; i = i + 1) {
        if (i >= iterations) { break; }
        z = de_box_fold(z, fp.a.w);
        let r2 = dot(z, z);
        if (r2 < min_r2) {
            let t = 1.0 / min_r2;
            z = z * t;
            dr = dr * t;
        } else if (r2 < 1.0) {
            let t = 1.0 / r2;
            z = z * t;
            dr = dr * t;
        }
        z = z * scale + pos;
        dr = dr * abs(scale) + 1.0;
        if (dot(z, z) > bail2) { break; }
    }
    return de_linear(length(z), dr);
}
`...)
}
