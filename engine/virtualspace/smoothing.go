package virtualspace

import (
	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Below these distances the smoothed pose jumps onto its target so that accumulation can resume.
const (
	settleEpsilon   = 1e-5
	rotationEpsilon = 1e-6
)

// Pose is the camera pose in local (offset relative) coordinates.
type Pose struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Fov      float32
}

// IdentityPose is a camera at the local origin looking down -Z.
func IdentityPose(fov float32) Pose {
	return Pose{Rotation: mgl32.QuatIdent(), Fov: fov}
}

// Smoother exponentially approaches a target pose. It is not safe for concurrent use and is owned by the render loop.
type Smoother struct {
	current   Pose
	target    Pose
	sharpness float64
}

// NewSmoother creates a smoother resting at p. sharpness is the per-second convergence rate; <= 0 disables smoothing.
//
// Parameters:
//   - p: initial pose
//   - sharpness: convergence rate per second
//
// Returns:
//   - *Smoother: the smoother
func NewSmoother(p Pose, sharpness float64) *Smoother {
	return &Smoother{current: p, target: p, sharpness: sharpness}
}

// SetTarget sets the pose to approach. With snap the current pose jumps to p immediately (teleports, preset loads).
func (s *Smoother) SetTarget(p Pose, snap bool) {
	s.target = p
	if snap || s.sharpness <= 0 {
		s.current = p
	}
}

// Current returns the smoothed pose.
func (s *Smoother) Current() Pose { return s.current }

// Target returns the target pose.
func (s *Smoother) Target() Pose { return s.target }

// Settled reports whether the current pose has reached the target.
func (s *Smoother) Settled() bool { return posesEqual(s.current, s.target) }

// Shift translates both the current and the target pose, used when the controller absorbs the camera into the offset.
func (s *Smoother) Shift(delta mgl32.Vec3) {
	s.current.Position = s.current.Position.Add(delta)
	s.target.Position = s.target.Position.Add(delta)
}

// UpdateSmoothing advances the current pose towards the target by dt seconds.
//
// Parameters:
//   - dt: elapsed seconds
//
// Returns:
//   - Pose: the new current pose
//   - bool: true if the current pose changed
func (s *Smoother) UpdateSmoothing(dt float64) (Pose, bool) {
	if s.Settled() {
		return s.current, false
	}
	k := float32(common.SmoothingFactor(s.sharpness, dt))
	next := Pose{
		Position: s.current.Position.Add(s.target.Position.Sub(s.current.Position).Mul(k)),
		Rotation: mgl32.QuatSlerp(s.current.Rotation, s.target.Rotation, k).Normalize(),
		Fov:      s.current.Fov + (s.target.Fov-s.current.Fov)*k,
	}
	if posesEqual(next, s.target) {
		next = s.target
	}
	s.current = next
	return s.current, true
}

func posesEqual(a, b Pose) bool {
	if a.Position.Sub(b.Position).Len() > settleEpsilon {
		return false
	}
	if d := a.Fov - b.Fov; d > settleEpsilon || d < -settleEpsilon {
		return false
	}
	// q and -q are the same rotation
	dot := a.Rotation.Dot(b.Rotation)
	return dot > 1-rotationEpsilon || dot < -1+rotationEpsilon
}
