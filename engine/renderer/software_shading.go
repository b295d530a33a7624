package renderer

import (
	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Shadow march bounds, equal to the constants of the raymarch program.
const (
	shadowSteps   = 64
	shadowMinStep = float32(0.001)
	shadowMaxStep = float32(0.2)
	tau           = float32(6.28318530718)
)

// pixelShader evaluates the raymarch program for one draw on the CPU. It follows the WGSL control flow statement
// for statement so both backends converge to the same image.
type pixelShader struct {
	u        *shader.FrameUniforms
	features shader.Features
	est      formula.Estimator
	params   formula.Params
	march    formula.MarchSettings
	frustum  common.TileFrustum

	hi, lo, right, up, forward mgl32.Vec3
	tanHalf, aspect            float32
}

func newPixelShader(u *shader.FrameUniforms, f shader.Features, est formula.Estimator) *pixelShader {
	return &pixelShader{
		u:        u,
		features: f,
		est:      est,
		params:   formula.ParamsFromGPU(u.Formula),
		march: formula.MarchSettings{
			MaxSteps:    f.MaxSteps,
			Epsilon:     u.Quality[0],
			MaxDistance: u.Quality[1],
			StepFactor:  u.Quality[2],
			PixelAngle:  u.Quality[3],
		},
		frustum: common.TileFrustum{
			FullWidth:  int(u.Resolution[0]),
			FullHeight: int(u.Resolution[1]),
			Offset:     [2]int{int(u.Resolution[2]), int(u.Resolution[3])},
		},
		hi:      vec3(u.Camera.High),
		lo:      vec3(u.Camera.Low),
		right:   vec3(u.Camera.Right),
		up:      vec3(u.Camera.Up),
		forward: vec3(u.Camera.Forward),
		tanHalf: u.Camera.High[3],
		aspect:  u.Camera.Low[3],
	}
}

// shade returns the linear colour of target pixel (x, y) for this sample.
func (s *pixelShader) shade(x, y int) mgl32.Vec3 {
	ndcX, ndcY := s.frustum.ScreenUV(x, y, s.u.Accum[0], s.u.Accum[1])
	rd := s.forward.
		Add(s.right.Mul(ndcX * s.tanHalf * s.aspect)).
		Add(s.up.Mul(ndcY * s.tanHalf)).
		Normalize()
	if s.features.Mode == shader.RenderModePathTraced {
		seed := shader.PixelSeed(uint32(x+s.frustum.Offset[0]), uint32(y+s.frustum.Offset[1]), uint32(s.u.Accum[3]))
		return s.shadePath(s.hi, s.lo, rd, &seed)
	}
	return s.shadeDirect(s.hi, s.lo, rd)
}

func (s *pixelShader) de(p mgl32.Vec3) float32 {
	d, _ := s.est.Estimate(p, s.params)
	return d
}

func (s *pixelShader) trace(hi, lo, rd mgl32.Vec3) formula.Hit {
	return formula.March(s.est, s.params, formula.Ray{Origin: hi.Add(lo), Direction: rd}, s.march)
}

func (s *pixelShader) hitEpsilon(t float32) float32 {
	return s.u.Quality[0] + s.u.Quality[3]*t
}

func (s *pixelShader) softShadow(p, l mgl32.Vec3) float32 {
	res := float32(1)
	t := shadowMinStep
	for range shadowSteps {
		h := s.de(p.Add(l.Mul(t)))
		if h < s.u.Quality[0] {
			return 0
		}
		res = min(res, s.u.Shading[1]*h/t)
		t += common.Clamp(h, shadowMinStep, shadowMaxStep)
		if t > s.u.Quality[1] {
			break
		}
	}
	return common.Clamp(res, 0, 1)
}

func (s *pixelShader) gradientLayer(layer int, x float32) mgl32.Vec3 {
	count := int(s.u.GradientInfo[layer])
	base := layer * common.MaxGradientStops
	if count <= 0 {
		return vec3(s.u.Surface)
	}
	count = min(count, common.MaxGradientStops)
	g := s.u.Gradient[base : base+count]
	t := x - math32.Floor(x)
	if count == 1 || t <= g[0][3] {
		return vec3(g[0])
	}
	for i := 1; i < count; i++ {
		a, b := g[i-1], g[i]
		if t <= b[3] {
			f := (t - a[3]) / max(b[3]-a[3], 1e-6)
			return mix3(vec3(a), vec3(b), f)
		}
	}
	return vec3(g[count-1])
}

func (s *pixelShader) albedo(p, n mgl32.Vec3) mgl32.Vec3 {
	c := vec3(s.u.Surface)
	if s.features.Gradient {
		radial := s.gradientLayer(0, p.Len()*s.u.GradientInfo[2])
		facing := s.gradientLayer(1, n[1]*0.5+0.5)
		c = mix3(c, mix3(radial, facing, s.u.GradientInfo[3]), s.u.Surface[3])
	}
	return c
}

func (s *pixelShader) shadeDirect(hi, lo, rd mgl32.Vec3) mgl32.Vec3 {
	m := s.trace(hi, lo, rd)
	bg := vec3(s.u.Background)
	if !m.Hit {
		return bg
	}
	eps := s.hitEpsilon(m.T)
	n := formula.Normal(s.est, s.params, m.Position, eps)
	l := vec3(s.u.Light)
	shadow := float32(1)
	if s.features.Shadows {
		shadow = s.softShadow(m.Position.Add(n.Mul(eps*2)), l)
	}
	occlusion := float32(1)
	if s.features.AmbientOcclusion {
		occlusion = common.Clamp(1-s.u.Shading[2]*float32(m.Steps)/float32(s.features.MaxSteps), 0, 1)
	}
	diffuse := max(n.Dot(l), 0) * s.u.Light[3] * shadow
	col := s.albedo(m.Position, n).Mul((s.u.Shading[0] + diffuse) * occlusion)
	if s.features.Fog {
		col = mix3(col, bg, 1-math32.Exp(-s.u.Shading[3]*m.T))
	}
	return col
}

func (s *pixelShader) cosineHemisphere(n mgl32.Vec3, seed *uint32) mgl32.Vec3 {
	r1 := shader.Random(seed)
	r2 := shader.Random(seed)
	phi := tau * r1
	r := math32.Sqrt(r2)
	a := mgl32.Vec3{1, 0, 0}
	if math32.Abs(n[0]) > 0.9 {
		a = mgl32.Vec3{0, 1, 0}
	}
	tangent := a.Cross(n).Normalize()
	bitangent := n.Cross(tangent)
	return tangent.Mul(r * math32.Cos(phi)).
		Add(bitangent.Mul(r * math32.Sin(phi))).
		Add(n.Mul(math32.Sqrt(max(0, 1-r2)))).
		Normalize()
}

func (s *pixelShader) shadePath(hi, lo, rd mgl32.Vec3, seed *uint32) mgl32.Vec3 {
	var radiance mgl32.Vec3
	throughput := mgl32.Vec3{1, 1, 1}
	l := vec3(s.u.Light)
	dir := rd
	for range s.features.Bounces + 1 {
		m := s.trace(hi, lo, dir)
		if !m.Hit {
			radiance = radiance.Add(mul3(throughput, vec3(s.u.Background)))
			break
		}
		eps := s.hitEpsilon(m.T)
		n := formula.Normal(s.est, s.params, m.Position, eps)
		origin := m.Position.Add(n.Mul(eps * 2))
		throughput = mul3(throughput, s.albedo(m.Position, n))
		if nl := n.Dot(l); nl > 0 {
			radiance = radiance.Add(throughput.Mul(nl * s.u.Light[3] * s.softShadow(origin, l)))
		}
		dir = s.cosineHemisphere(n, seed)
		hi, lo = origin, mgl32.Vec3{}
	}
	return radiance
}

func vec3(v [4]float32) mgl32.Vec3 {
	return mgl32.Vec3{v[0], v[1], v[2]}
}

func mix3(a, b mgl32.Vec3, f float32) mgl32.Vec3 {
	return a.Mul(1 - f).Add(b.Mul(f))
}

func mul3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
