package formula

import (
	"github.com/go-gl/mathgl/mgl32"
)

type quaternionJulia struct{}

func (quaternionJulia) Kind() Kind           { return KindQuaternionJulia }
func (quaternionJulia) FunctionName() string { return "de_julia" }

func qmul(a, b mgl32.Vec4) mgl32.Vec4 {
	return mgl32.Vec4{
		a[0]*b[0] - a[1]*b[1] - a[2]*b[2] - a[3]*b[3],
		a[0]*b[1] + a[1]*b[0] + a[2]*b[3] - a[3]*b[2],
		a[0]*b[2] - a[1]*b[3] + a[2]*b[0] + a[3]*b[1],
		a[0]*b[3] + a[1]*b[2] - a[2]*b[1] + a[3]*b[0],
	}
}

func (quaternionJulia) Estimate(pos mgl32.Vec3, params Params) (float32, float32) {
	z := mgl32.Vec4{pos[0], pos[1], pos[2], 0}
	dz := mgl32.Vec4{1, 0, 0, 0}
	c := mgl32.Vec4(params.Julia)
	bail2 := params.Bailout * params.Bailout
	for i := 0; i < params.iterations(); i++ {
		dz = qmul(z, dz).Mul(2)
		z = qmul(z, z).Add(c)
		if z.Dot(z) > bail2 {
			break
		}
	}
	return escapeDistance(z.Len(), dz.Len())
}

func (quaternionJulia) AppendWGSL(dst []byte) []byte {
	return append(dst, `fn de_qmul(a: vec4<f32>, b: vec4<f32>) -> vec4<f32> {
    return vec4<f32>(
        a.x * b.x - a.y * b.y - a.z * b.z - a.w * b.w,
        a.x * b.y + a.y * b.x + a.z * b.w - a.w * b.z,
        a.x * b.z - a.y * b.w + a.z * b.x + a.w * b.y,
        a.x * b.w + a.y * b.z - a.z * b.y + a.w * b.x,
    );
}

fn de_julia(pos: vec3<f32>, fp: FormulaParams) -> vec2<f32> {
    var z = vec4<f32>(pos, 0.0);
    var dz = vec4<f32>(1.0, 0.0, 0.0, 0.0);
    let bail2 = fp.b.x * fp.b.x;
    let iterations = i32(fp.b.y);
    for (var i = 0; i < DE_MAX_ITERATIONS; i = i + 1) {
        if (i >= iterations) { break; }
        dz = 2.0 * de_qmul(z, dz);
        z = de_qmul(z, z) + fp.julia;
        if (dot(z, z) > bail2) { break; }
    }
    return de_escape(length(z), length(dz));
}
`...)
}
