package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-fractal/engine/virtualspace"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	fov    float32
	aspect float32
	near   float32
	far    float32

	pose virtualspace.Pose

	right   mgl32.Vec3
	up      mgl32.Vec3
	forward mgl32.Vec3

	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4

	controller CameraController
}

// Camera defines the interface for the camera system.
// The camera holds perspective settings and derives its basis and matrices from a local pose, either set directly
// or read from an attached CameraController each frame via Update().
type Camera interface {
	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Pose returns the local pose the matrices were last computed from.
	//
	// Returns:
	//   - virtualspace.Pose: the pose
	Pose() virtualspace.Pose

	// Basis returns the camera's right, up and forward unit vectors.
	//
	// Returns:
	//   - right, up, forward: the basis vectors
	Basis() (right, up, forward mgl32.Vec3)

	// ViewMatrix returns the current view matrix in local coordinates.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current full-frame perspective matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// RayDirection returns the unit direction through a full-frame normalized device coordinate.
	//
	// Parameters:
	//   - u, v: normalized device coordinates in [-1, 1], +v up
	//
	// Returns:
	//   - mgl32.Vec3: the ray direction in local coordinates
	RayDirection(u, v float32) mgl32.Vec3

	// Controller returns the attached CameraController.
	// Returns nil if no controller is attached.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// Update reads the pose from the controller and recomputes the basis and matrices.
	// If no controller is attached, this method does nothing.
	Update()

	// SetPose sets the pose directly and recomputes the basis and matrices.
	//
	// Parameters:
	//   - p: the new pose; its Fov replaces the camera's field of view when non-zero
	SetPose(p virtualspace.Pose)

	// SetFov sets the field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)

	// GPU packs the camera for upload, splitting its absolute position with space.
	//
	// Parameters:
	//   - space: the virtual space the pose is relative to
	//
	// Returns:
	//   - GPUCamera: the packed camera uniform
	GPU(space virtualspace.Space) GPUCamera
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera at the local origin looking down -Z with a 45 degree field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:     &sync.Mutex{},
		fov:    45.0 * (math.Pi / 180.0),
		aspect: 1.0,
		near:   1e-4,
		far:    100.0,
	}
	c.pose = virtualspace.IdentityPose(c.fov)
	for _, option := range options {
		option(c)
	}
	if c.controller != nil {
		c.pose = c.controller.Pose()
	}
	if c.pose.Fov > 0 {
		c.fov = c.pose.Fov
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Pose() virtualspace.Pose {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pose
	p.Fov = c.fov
	return p
}

func (c *cameraImpl) Basis() (right, up, forward mgl32.Vec3) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.right, c.up, c.forward
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) RayDirection(u, v float32) mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := float32(math.Tan(float64(c.fov) / 2))
	d := c.forward.
		Add(c.right.Mul(u * t * c.aspect)).
		Add(c.up.Mul(v * t))
	return d.Normalize()
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.pose = c.controller.Pose()
	if c.pose.Fov > 0 {
		c.fov = c.pose.Fov
	}
	c.updateMatrices()
}

func (c *cameraImpl) SetPose(p virtualspace.Pose) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pose = p
	if p.Fov > 0 {
		c.fov = p.Fov
	}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if aspect <= 0 {
		return
	}
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
}

func (c *cameraImpl) GPU(space virtualspace.Space) GPUCamera {
	c.mu.Lock()
	defer c.mu.Unlock()
	high, low := space.UpdateShaderUniforms(c.pose.Position)
	tanHalf := float32(math.Tan(float64(c.fov) / 2))
	return GPUCamera{
		High:    [4]float32{high[0], high[1], high[2], tanHalf},
		Low:     [4]float32{low[0], low[1], low[2], c.aspect},
		Right:   [4]float32{c.right[0], c.right[1], c.right[2], 0},
		Up:      [4]float32{c.up[0], c.up[1], c.up[2], 0},
		Forward: [4]float32{c.forward[0], c.forward[1], c.forward[2], 0},
	}
}

// updateMatrices recalculates the basis vectors, view and projection matrices from the current pose.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	rot := c.pose.Rotation
	if rot.Len() < 1e-8 {
		rot = mgl32.QuatIdent()
	}
	rot = rot.Normalize()

	c.right = rot.Rotate(mgl32.Vec3{1, 0, 0})
	c.up = rot.Rotate(mgl32.Vec3{0, 1, 0})
	c.forward = rot.Rotate(mgl32.Vec3{0, 0, -1})

	eye := c.pose.Position
	c.viewMatrix = mgl32.LookAtV(eye, eye.Add(c.forward), c.up)
	c.projectionMatrix = mgl32.Perspective(c.fov, c.aspect, c.near, c.far)
}
