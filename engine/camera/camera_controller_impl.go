package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-fractal/engine/virtualspace"
	"github.com/go-gl/mathgl/mgl32"
)

// cameraControllerImpl is the single implementation of CameraController.
// It supports fly (translate + rotate) and orbit controls on the same target pose.
type cameraControllerImpl struct {
	mu *sync.Mutex

	space    virtualspace.Space
	smoother *virtualspace.Smoother

	sharpness   float64
	moveSpeed   float32
	rotateSpeed float32
	zoomSpeed   float32

	initial virtualspace.Pose
}

// Compile-time interface compliance check
var _ CameraController = &cameraControllerImpl{}

// NewCameraController creates a controller with sensible defaults: the camera sits at z = 3 looking at the origin.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - CameraController: the newly created controller
func NewCameraController(options ...CameraControllerOption) CameraController {
	cc := &cameraControllerImpl{
		mu:          &sync.Mutex{},
		sharpness:   12,
		moveSpeed:   0.05,
		rotateSpeed: 1,
		zoomSpeed:   0.1,
		initial: virtualspace.Pose{
			Position: mgl32.Vec3{0, 0, 3},
			Rotation: mgl32.QuatIdent(),
			Fov:      0.785398,
		},
	}
	for _, option := range options {
		option(cc)
	}
	if cc.space == nil {
		cc.space = virtualspace.NewSpace()
	}
	cc.smoother = virtualspace.NewSmoother(cc.initial, cc.sharpness)
	return cc
}

func (cc *cameraControllerImpl) Pose() virtualspace.Pose {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.smoother.Current()
}

func (cc *cameraControllerImpl) TargetPose() virtualspace.Pose {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.smoother.Target()
}

func (cc *cameraControllerImpl) SetTargetPose(p virtualspace.Pose, snap bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if p.Fov <= 0 {
		p.Fov = cc.smoother.Target().Fov
	}
	cc.smoother.SetTarget(p, snap)
}

func (cc *cameraControllerImpl) Teleport(world [3]float64, rotation mgl32.Quat, fov float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if fov <= 0 {
		fov = cc.smoother.Target().Fov
	}
	cc.space.SetOffset(world[0], world[1], world[2])
	cc.smoother.SetTarget(virtualspace.Pose{Rotation: rotation.Normalize(), Fov: fov}, true)
}

func (cc *cameraControllerImpl) Translate(right, up, forward float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	t := cc.smoother.Target()
	d := t.Rotation.Rotate(mgl32.Vec3{right, up, -forward}).Mul(cc.moveSpeed)
	t.Position = t.Position.Add(d)
	cc.smoother.SetTarget(t, false)
}

func (cc *cameraControllerImpl) Rotate(yaw, pitch, roll float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	t := cc.smoother.Target()
	s := cc.rotateSpeed
	// local axis rotations compose on the right
	delta := mgl32.QuatRotate(yaw*s, mgl32.Vec3{0, 1, 0}).
		Mul(mgl32.QuatRotate(pitch*s, mgl32.Vec3{1, 0, 0})).
		Mul(mgl32.QuatRotate(roll*s, mgl32.Vec3{0, 0, -1}))
	t.Rotation = t.Rotation.Mul(delta).Normalize()
	cc.smoother.SetTarget(t, false)
}

func (cc *cameraControllerImpl) Orbit(pivot mgl32.Vec3, dAzimuth, dElevation float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	t := cc.smoother.Target()
	right := t.Rotation.Rotate(mgl32.Vec3{1, 0, 0})
	q := mgl32.QuatRotate(dAzimuth*cc.rotateSpeed, mgl32.Vec3{0, 1, 0}).
		Mul(mgl32.QuatRotate(dElevation*cc.rotateSpeed, right))
	t.Position = pivot.Add(q.Rotate(t.Position.Sub(pivot)))
	t.Rotation = q.Mul(t.Rotation).Normalize()
	cc.smoother.SetTarget(t, false)
}

func (cc *cameraControllerImpl) Zoom(delta float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	t := cc.smoother.Target()
	fwd := t.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
	t.Position = t.Position.Add(fwd.Mul(delta * cc.zoomSpeed))
	cc.smoother.SetTarget(t, false)
}

func (cc *cameraControllerImpl) Absorb() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.absorb()
}

// absorb moves the current local position into the offset and shifts the target by the same amount.
// Caller must hold the mutex.
func (cc *cameraControllerImpl) absorb() {
	local := cc.smoother.Current().Position
	cc.space.AbsorbCamera(local)
	cc.smoother.Shift(local.Mul(-1))
}

func (cc *cameraControllerImpl) Update(dt float64) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	_, moved := cc.smoother.UpdateSmoothing(dt)
	if cc.space.NeedsAbsorb(cc.smoother.Current().Position) {
		cc.absorb()
	}
	return moved
}

func (cc *cameraControllerImpl) Space() virtualspace.Space {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.space
}

func (cc *cameraControllerImpl) MoveSpeed() float32 {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.moveSpeed
}

func (cc *cameraControllerImpl) SetMoveSpeed(speed float32) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if speed > 0 {
		cc.moveSpeed = speed
	}
}
