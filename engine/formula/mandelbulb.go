package formula

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

type mandelbulb struct{}

func (mandelbulb) Kind() Kind           { return KindMandelbulb }
func (mandelbulb) FunctionName() string { return "de_mandelbulb" }

func (mandelbulb) Estimate(pos mgl32.Vec3, params Params) (float32, float32) {
	z := pos
	dr := float32(1)
	r := z.Len()
	power := params.Power
	for i := 0; i < params.iterations(); i++ {
		r = z.Len()
		if r > params.Bailout {
			break
		}
		var theta, phi float32
		if r > 0 {
			theta = math32.Acos(clampf(z[2]/r, -1, 1))
			phi = math32.Atan2(z[1], z[0])
		}
		dr = math32.Pow(r, power-1)*power*dr + 1
		zr := math32.Pow(r, power)
		theta *= power
		phi *= power
		st := math32.Sin(theta)
		z = mgl32.Vec3{st * math32.Cos(phi), st * math32.Sin(phi), math32.Cos(theta)}.Mul(zr).Add(pos)
	}
	return escapeDistance(r, dr)
}

func (mandelbulb) AppendWGSL(dst []byte) []byte {
	return append(dst, `fn de_mandelbulb(pos: vec3<f32>, fp: FormulaParams) -> vec2<f32> {
    var z = pos;
    var dr = 1.0;
    var r = length(z);
    let power = fp.a.x;
    let iterations = i32(fp.b.y);
    for (var i = 0; i < DE_MAX_ITERATIONS; i = i + 1) {
        if (i >= iterations) { break; }
        r = length(z);
        if (r > fp.b.x) { break; }
        var theta = 0.0;
        var phi = 0.0;
        if (r > 0.0) {
            theta = acos(clamp(z.z / r, -1.0, 1.0));
            phi = atan2(z.y, z.x);
        }
        dr = pow(r, power - 1.0) * power * dr + 1.0;
        let zr = pow(r, power);
        theta = theta * power;
        phi = phi * power;
        z = zr * vec3<f32>(sin(theta) * cos(phi), sin(theta) * sin(phi), cos(theta)) + pos;
    }
    return de_escape(r, dr);
}
`...)
}
