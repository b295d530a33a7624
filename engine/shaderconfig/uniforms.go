package shaderconfig

import (
	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

func (m *manager) FillUniforms(u *shader.FrameUniforms) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.config

	u.Formula = m.params().GPU()
	u.Quality = [4]float32{
		max(value[float32](c, FeatureQuality, "epsilon"), 1e-7),
		max(value[float32](c, FeatureQuality, "maxDistance"), 1e-3),
		value[float32](c, FeatureQuality, "stepFactor"),
		max(value[float32](c, FeatureQuality, "pixelAngle"), 0),
	}

	dir := mgl32.Vec3(value[[3]float32](c, FeatureLighting, "direction"))
	if dir.Len() < 1e-6 {
		dir = mgl32.Vec3{0, 1, 0}
	}
	dir = dir.Normalize()
	u.Light = [4]float32{dir[0], dir[1], dir[2], value[float32](c, FeatureLighting, "intensity")}
	u.Shading = [4]float32{
		value[float32](c, FeatureLighting, "ambient"),
		value[float32](c, FeatureLighting, "shadowSoftness"),
		value[float32](c, FeatureLighting, "aoStrength"),
		value[float32](c, FeatureLighting, "fogDensity"),
	}

	bg := value[[3]float32](c, FeatureColoring, "background")
	u.Background = [4]float32{bg[0], bg[1], bg[2], value[float32](c, FeatureColoring, "exposure")}
	surface := value[[3]float32](c, FeatureColoring, "surface")
	u.Surface = [4]float32{surface[0], surface[1], surface[2], common.Clamp(value[float32](c, FeatureColoring, "gradientMix"), 0, 1)}

	u.Gradient = [len(u.Gradient)][4]float32{}
	var counts [shader.GradientLayers]float32
	for layer, stops := range m.gradients {
		base := layer * common.MaxGradientStops
		for i, s := range stops {
			u.Gradient[base+i] = [4]float32{s.Color[0], s.Color[1], s.Color[2], s.Position}
		}
		counts[layer] = float32(len(stops))
	}
	u.GradientInfo = [4]float32{
		counts[0],
		counts[1],
		value[float32](c, FeatureColoring, "gradientScale"),
		common.Clamp(value[float32](c, FeatureColoring, "layerMix"), 0, 1),
	}
}
