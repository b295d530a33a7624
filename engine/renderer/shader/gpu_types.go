package shader

import (
	_ "embed"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/camera"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
)

// FrameUniforms is the uniform block shared by every raymarch program. Each member is a vec4<f32> or an array of
// them, so the Go layout matches the WGSL uniform layout without padding.
type FrameUniforms struct {
	// Resolution holds the full frame width and height and the tile offset in pixels.
	Resolution [4]float32
	// Accum holds the sub-pixel jitter, the blend weight of this sample and the sample index.
	Accum   [4]float32
	Camera  camera.GPUCamera
	Formula formula.GPUParams
	// Quality holds the hit epsilon, max distance, step factor and the per-unit-distance threshold growth.
	Quality [4]float32
	// Light holds the normalized direction towards the light and its intensity.
	Light [4]float32
	// Shading holds ambient, shadow softness, ambient occlusion strength and fog density.
	Shading [4]float32
	// Background holds the miss colour and exposure.
	Background [4]float32
	// Surface holds the base colour and the gradient mix factor.
	Surface [4]float32
	// Gradient holds GradientLayers layers of common.MaxGradientStops stops, each stop rgb plus position.
	Gradient [GradientLayers * common.MaxGradientStops][4]float32
	// GradientInfo holds the stop count of each layer, the radial repeat scale and the layer mix.
	GradientInfo [4]float32
}

// GradientLayers is the number of colour gradient layers the uniform block carries.
const GradientLayers = 2

// GPUFrameUniformsSource is the WGSL declaration matching FrameUniforms (528 bytes, all members vec4 aligned).
//
//go:embed assets/frame_uniforms.wgsl
var GPUFrameUniformsSource string

// ProbeUniforms is the uniform block of the convergence probe: the normalized region as min xy and max xy.
type ProbeUniforms struct {
	Region [4]float32
}

// GPUProbeUniformsSource is the WGSL declaration matching ProbeUniforms.
//
//go:embed assets/probe_uniforms.wgsl
var GPUProbeUniformsSource string
