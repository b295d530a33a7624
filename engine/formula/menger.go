package formula

import (
	"github.com/go-gl/mathgl/mgl32"
)

// menger is the Menger sponge as an IFS. The estimate is the direct geometric distance to the carved box,
// not an escape-time bound.
type menger struct{}

func (menger) Kind() Kind           { return KindMengerSponge }
func (menger) FunctionName() string { return "de_menger" }

func (menger) Estimate(pos mgl32.Vec3, params Params) (float32, float32) {
	q := mgl32.Vec3{absf(pos[0]) - 1, absf(pos[1]) - 1, absf(pos[2]) - 1}
	outside := mgl32.Vec3{max(q[0], 0), max(q[1], 0), max(q[2], 0)}
	d := outside.Len() + min(max(q[0], max(q[1], q[2])), 0)

	s := float32(1)
	for i := 0; i < params.iterations(); i++ {
		var r mgl32.Vec3
		for c := range 3 {
			a := fmodf(pos[c]*s, 2) - 1
			r[c] = absf(1 - 3*absf(a))
		}
		s *= params.Scale
		da := max(r[0], r[1])
		db := max(r[1], r[2])
		dc := max(r[2], r[0])
		c := (min(da, min(db, dc)) - 1) / s
		d = max(d, c)
	}
	return d, max(s, MinDerivative)
}

func (menger) AppendWGSL(dst []byte) []byte {
	return append(dst, `fn de_menger(pos: vec3<f32>, fp: FormulaParams) -> vec2<f32> {
    let q = abs(pos) - vec3<f32>(1.0);
    var d = length(max(q, vec3<f32>(0.0))) + min(max(q.x, max(q.y, q.z)), 0.0);
    var s = 1.0;
    let iterations = i32(fp.b.y);
    for (var i = 0; i < DE_MAX_ITERATIONS; i = i + 1) {
        if (i >= iterations) { break; }
        let a = de_fmod(pos * s, 2.0) - vec3<f32>(1.0);
        let r = abs(vec3<f32>(1.0) - 3.0 * abs(a));
        s = s * fp.a.y;
        let da = max(r.x, r.y);
        let db = max(r.y, r.z);
        let dc = max(r.z, r.x);
        let c = (min(da, min(db, dc)) - 1.0) / s;
        d = max(d, c);
    }
    return vec2<f32>(d, max(s, DE_MIN_DR));
}
`...)
}
