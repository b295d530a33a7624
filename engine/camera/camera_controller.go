package camera

import (
	"github.com/Carmen-Shannon/oxy-fractal/engine/virtualspace"
	"github.com/go-gl/mathgl/mgl32"
)

// CameraController drives the camera pose. Input methods modify the target pose; Update smooths the current pose
// towards it and absorbs the camera into the virtual space offset when it drifts past the safe magnitude.
type CameraController interface {
	// Pose returns the smoothed current pose in local coordinates.
	//
	// Returns:
	//   - virtualspace.Pose: the current pose
	Pose() virtualspace.Pose

	// TargetPose returns the pose the controller is smoothing towards.
	//
	// Returns:
	//   - virtualspace.Pose: the target pose
	TargetPose() virtualspace.Pose

	// SetTargetPose sets the target pose. Without snap the camera glides there.
	//
	// Parameters:
	//   - p: the target pose in local coordinates
	//   - snap: if true the current pose jumps to p immediately
	SetTargetPose(p virtualspace.Pose, snap bool)

	// Teleport places the camera at an absolute world position, resetting the offset so the local position is zero.
	//
	// Parameters:
	//   - world: absolute position in double precision
	//   - rotation: the orientation
	//   - fov: field of view in radians, 0 keeps the current value
	Teleport(world [3]float64, rotation mgl32.Quat, fov float32)

	// Translate moves the target along the camera axes, scaled by the move speed.
	//
	// Parameters:
	//   - right, up, forward: movement along each local axis
	Translate(right, up, forward float32)

	// Rotate applies yaw (around local up), pitch (around local right) and roll (around forward) in radians, scaled
	// by the rotate speed.
	//
	// Parameters:
	//   - yaw, pitch, roll: rotation deltas
	Rotate(yaw, pitch, roll float32)

	// Orbit rotates the target pose around pivot, keeping the camera looking at it.
	//
	// Parameters:
	//   - pivot: orbit centre in local coordinates
	//   - dAzimuth: rotation around the world Y axis in radians
	//   - dElevation: rotation around the camera right axis in radians
	Orbit(pivot mgl32.Vec3, dAzimuth, dElevation float32)

	// Zoom moves the target forward by delta times the zoom speed. Positive delta moves closer.
	//
	// Parameters:
	//   - delta: scroll amount
	Zoom(delta float32)

	// Absorb folds the current local position into the virtual space offset.
	Absorb()

	// Update advances smoothing by dt seconds and absorbs when needed.
	//
	// Parameters:
	//   - dt: elapsed seconds
	//
	// Returns:
	//   - bool: true if the visible pose changed and accumulated history is stale
	Update(dt float64) bool

	// Space returns the virtual space the controller absorbs into.
	//
	// Returns:
	//   - virtualspace.Space: the space
	Space() virtualspace.Space

	// MoveSpeed returns the translation speed.
	//
	// Returns:
	//   - float32: units per input step
	MoveSpeed() float32

	// SetMoveSpeed sets the translation speed. Deep zooms scale it down with the distance to the surface.
	//
	// Parameters:
	//   - speed: units per input step
	SetMoveSpeed(speed float32)
}
