package camera

import (
	"github.com/Carmen-Shannon/oxy-fractal/engine/virtualspace"
)

// CameraControllerOption is a functional option for configuring a CameraController.
type CameraControllerOption func(*cameraControllerImpl)

// WithSpace sets the virtual space the controller absorbs into. Defaults to a fresh space at the origin.
//
// Parameters:
//   - s: the space
//
// Returns:
//   - CameraControllerOption: functional option to set the space
func WithSpace(s virtualspace.Space) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.space = s
	}
}

// WithInitialPose sets the pose the controller starts at.
//
// Parameters:
//   - p: the initial local pose
//
// Returns:
//   - CameraControllerOption: functional option to set the pose
func WithInitialPose(p virtualspace.Pose) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.initial = p
	}
}

// WithSharpness sets the smoothing rate per second. Values <= 0 disable smoothing.
//
// Parameters:
//   - sharpness: convergence rate per second
//
// Returns:
//   - CameraControllerOption: functional option to set the sharpness
func WithSharpness(sharpness float64) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.sharpness = sharpness
	}
}

// WithMoveSpeed sets the translation speed.
func WithMoveSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.moveSpeed = speed
	}
}

// WithRotateSpeed sets the scale applied to rotation deltas.
func WithRotateSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.rotateSpeed = speed
	}
}

// WithZoomSpeed sets the scale applied to zoom deltas.
func WithZoomSpeed(speed float32) CameraControllerOption {
	return func(cc *cameraControllerImpl) {
		cc.zoomSpeed = speed
	}
}
