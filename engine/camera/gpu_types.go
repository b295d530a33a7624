package camera

// GPUCamera is the camera block of the frame uniforms. Every member is a vec4<f32>.
type GPUCamera struct {
	// High is the float32 rounded absolute camera position; w holds tan(fov/2).
	High [4]float32
	// Low is the double-single residual of the position; w holds the aspect ratio.
	Low [4]float32
	// Right, Up and Forward are the camera basis.
	Right   [4]float32
	Up      [4]float32
	Forward [4]float32
}

// GPUCameraSource is the WGSL declaration matching GPUCamera.
const GPUCameraSource = `struct CameraUniform {
    high: vec4<f32>,     // xyz position, w tan(fov / 2)
    low: vec4<f32>,      // xyz residual, w aspect
    right: vec4<f32>,
    up: vec4<f32>,
    forward: vec4<f32>,
}`
