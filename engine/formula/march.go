package formula

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Ray is a ray in fractal space. Direction must be normalized.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// MarchSettings bounds a sphere trace.
type MarchSettings struct {
	// MaxSteps is the maximum number of estimator evaluations.
	MaxSteps int
	// Epsilon is the surface threshold. It is scaled by the travelled distance when PixelAngle is set.
	Epsilon float32
	// PixelAngle grows the threshold linearly with distance so far geometry stops at pixel footprint.
	PixelAngle float32
	// MaxDistance terminates rays that escape the scene.
	MaxDistance float32
	// StepFactor scales each step to compensate for estimators that over-estimate.
	StepFactor float32
}

// DefaultMarchSettings are the CPU query defaults.
var DefaultMarchSettings = MarchSettings{
	MaxSteps:    256,
	Epsilon:     1e-4,
	MaxDistance: 50,
	StepFactor:  0.9,
}

// Hit is the result of a sphere trace.
type Hit struct {
	// Hit is true when the ray reached the surface threshold.
	Hit bool
	// T is the travelled ray parameter.
	T float32
	// Steps is the number of estimator evaluations.
	Steps int
	// Position is the final sample position.
	Position mgl32.Vec3
	// MinDistance is the smallest estimate seen along the ray, used for glow.
	MinDistance float32
}

// March sphere-traces ray against e.
//
// Parameters:
//   - e: the estimator
//   - params: formula parameters
//   - ray: the ray in fractal space
//   - s: trace bounds
//
// Returns:
//   - Hit: the trace result
func March(e Estimator, params Params, ray Ray, s MarchSettings) Hit {
	if s.StepFactor <= 0 {
		s.StepFactor = 1
	}
	h := Hit{MinDistance: s.MaxDistance}
	t := float32(0)
	for h.Steps = 0; h.Steps < s.MaxSteps; h.Steps++ {
		p := ray.At(t)
		d, _ := e.Estimate(p, params)
		h.MinDistance = min(h.MinDistance, d)
		if d < s.Epsilon+s.PixelAngle*t {
			h.Hit = true
			h.T = t
			h.Position = p
			return h
		}
		t += d * s.StepFactor
		if t > s.MaxDistance {
			break
		}
	}
	h.T = t
	h.Position = ray.At(t)
	return h
}

// Normal estimates the surface normal at p with the tetrahedral central difference used by the WGSL shading code.
//
// Parameters:
//   - e: the estimator
//   - params: formula parameters
//   - p: surface position
//   - eps: sampling offset
//
// Returns:
//   - mgl32.Vec3: unit normal, or +Y if the gradient vanishes
func Normal(e Estimator, params Params, p mgl32.Vec3, eps float32) mgl32.Vec3 {
	k := [4]mgl32.Vec3{{1, -1, -1}, {-1, -1, 1}, {-1, 1, -1}, {1, 1, 1}}
	var n mgl32.Vec3
	for _, dir := range k {
		d, _ := e.Estimate(p.Add(dir.Mul(eps)), params)
		n = n.Add(dir.Mul(d))
	}
	if n.Len() < 1e-12 {
		return mgl32.Vec3{0, 1, 0}
	}
	return n.Normalize()
}
