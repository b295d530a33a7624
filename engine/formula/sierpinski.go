package formula

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type sierpinski struct{}

func (sierpinski) Kind() Kind           { return KindSierpinski }
func (sierpinski) FunctionName() string { return "de_sierpinski" }

func (sierpinski) Estimate(pos mgl32.Vec3, params Params) (float32, float32) {
	z := pos
	scale := params.Scale
	offset := mgl32.Vec3(params.Offset).Mul(scale - 1)
	bail2 := params.Bailout * params.Bailout
	n := 0
	for n < params.iterations() {
		if z[0]+z[1] < 0 {
			z[0], z[1] = -z[1], -z[0]
		}
		if z[0]+z[2] < 0 {
			z[0], z[2] = -z[2], -z[0]
		}
		if z[1]+z[2] < 0 {
			z[2], z[1] = -z[1], -z[2]
		}
		z = z.Mul(scale).Sub(offset)
		n++
		if z.Dot(z) > bail2 {
			break
		}
	}
	dr := max(math32.Pow(absf(scale), float32(n)), MinDerivative)
	return z.Len() / dr, dr
}

func (sierpinski) AppendWGSL(dst []byte) []byte {
	return append(dst, `fn de_sierpinski(pos: vec3<f32>, fp: FormulaParams) -> vec2<f32> {
    var z = pos;
    let scale = fp.a.y;
    let offset = fp.offset.xyz * (scale - 1.0);
    let bail2 = fp.b.x * fp.b.x;
    let iterations = i32(fp.b.y);
    var n = 0;
    for (var i = 0; i < DE_MAX_ITERATIONS; i = i + 1) {
        if (n >= iterations) { break; }
        if (z.x + z.y < 0.0) { z = vec3<f32>(-z.y, -z.x, z.z); }
        if (z.x + z.z < 0.0) { z = vec3<f32>(-z.z, z.y, -z.x); }
        if (z.y + z.z < 0.0) { z = vec3<f32>(z.x, -z.z, -z.y); }
        z = z * scale - offset;
        n = n + 1;
        if (dot(z, z) > bail2) { break; }
    }
    let dr = max(pow(abs(scale), f32(n)), DE_MIN_DR);
    return vec2<f32>(length(z) / dr, dr);
}
`...)
}
