package engine

import (
	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/bucket"
	"github.com/Carmen-Shannon/oxy-fractal/engine/preset"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/shaderconfig"
	"github.com/Carmen-Shannon/oxy-fractal/engine/virtualspace"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// Command is a request queued for the render goroutine. The set of commands is closed; each one is applied at the
// start of the next tick in submission order.
type Command interface {
	apply(e *engine)
}

// ApplyConfig merges a partial shader configuration.
type ApplyConfig struct {
	Partial shaderconfig.Config
}

// SetUniform changes one parameter. NoReset keeps the accumulated image when only uniforms changed.
type SetUniform struct {
	Feature string
	Name    string
	Value   any
	NoReset bool
}

// OffsetShift moves the scene offset by a double precision delta.
type OffsetShift struct {
	Delta [3]float64
}

// OffsetSet replaces the scene offset.
type OffsetSet struct {
	Offset [3]float64
}

// CameraAbsorb folds the local camera position into the scene offset.
type CameraAbsorb struct{}

// CameraSnap places the camera at a local pose without smoothing.
type CameraSnap struct {
	Pose virtualspace.Pose
}

// CameraTeleport places the camera at an absolute world position.
type CameraTeleport struct {
	World    [3]float64
	Rotation mgl32.Quat
	Fov      float32
}

// CameraMove translates along the camera axes and rotates around them. The camera glides to the result.
type CameraMove struct {
	Right, Up, Forward float32
	Yaw, Pitch, Roll   float32
}

// CameraOrbit rotates the camera around a local pivot.
type CameraOrbit struct {
	Pivot     mgl32.Vec3
	Azimuth   float32
	Elevation float32
}

// CameraZoom moves the camera forward, positive deltas move closer.
type CameraZoom struct {
	Delta float32
}

// SetGradient replaces the stops of a gradient layer.
type SetGradient struct {
	Layer int
	Stops []common.GradientStop
}

// ResetAccum restarts accumulation.
type ResetAccum struct{}

// Resize changes the canvas size.
type Resize struct {
	Width, Height int
}

// SetHolding pauses or resumes sampling.
type SetHolding struct {
	Hold bool
}

// SetSampleCap bounds accumulation, 0 meaning unbounded.
type SetSampleCap struct {
	N uint
}

// SetAccumulation enables or disables temporal accumulation.
type SetAccumulation struct {
	Enabled bool
}

// SetPrecision changes the render target precision.
type SetPrecision struct {
	Precision renderer.Precision
}

// SetExposure changes the display exposure. It does not reset accumulation.
type SetExposure struct {
	Exposure float32
}

// StartBucket starts a refine or export bucket job. Metadata is merged over the engine's provenance.
type StartBucket struct {
	Export   bool
	Config   bucket.Config
	Metadata map[string]string
}

// StopBucket aborts the running bucket job.
type StopBucket struct{}

// LoadPreset applies a saved view.
type LoadPreset struct {
	Preset *preset.Preset
}

func (c ApplyConfig) apply(e *engine) {
	e.handleDiff(e.manager.Apply(c.Partial), false)
}

func (c SetUniform) apply(e *engine) {
	partial := shaderconfig.Config{}.Set(c.Feature, c.Name, c.Value)
	e.handleDiff(e.manager.Apply(partial), c.NoReset)
}

func (c OffsetShift) apply(e *engine) {
	e.space.Move(c.Delta[0], c.Delta[1], c.Delta[2])
}

func (c OffsetSet) apply(e *engine) {
	e.space.SetOffset(c.Offset[0], c.Offset[1], c.Offset[2])
}

func (CameraAbsorb) apply(e *engine) {
	e.controller.Absorb()
}

func (c CameraSnap) apply(e *engine) {
	e.controller.SetTargetPose(c.Pose, true)
	e.pipeline.Reset()
}

func (c CameraTeleport) apply(e *engine) {
	e.controller.Teleport(c.World, c.Rotation, c.Fov)
	e.pipeline.Reset()
}

func (c CameraMove) apply(e *engine) {
	if c.Right != 0 || c.Up != 0 || c.Forward != 0 {
		e.controller.Translate(c.Right, c.Up, c.Forward)
	}
	if c.Yaw != 0 || c.Pitch != 0 || c.Roll != 0 {
		e.controller.Rotate(c.Yaw, c.Pitch, c.Roll)
	}
}

func (c CameraOrbit) apply(e *engine) {
	e.controller.Orbit(c.Pivot, c.Azimuth, c.Elevation)
}

func (c CameraZoom) apply(e *engine) {
	e.controller.Zoom(c.Delta)
}

func (c SetGradient) apply(e *engine) {
	if err := e.manager.SetGradient(c.Layer, c.Stops); err != nil {
		e.logger.Warn("gradient ignored", zap.Int("layer", c.Layer), zap.Error(err))
		return
	}
	e.pipeline.Reset()
}

func (ResetAccum) apply(e *engine) {
	e.pipeline.Reset()
}

func (c Resize) apply(e *engine) {
	e.resize(c.Width, c.Height)
}

func (c SetHolding) apply(e *engine) {
	e.setHolding(c.Hold)
}

func (c SetSampleCap) apply(e *engine) {
	e.setSampleCap(c.N)
}

func (c SetAccumulation) apply(e *engine) {
	e.setAccumulation(c.Enabled)
}

func (c SetPrecision) apply(e *engine) {
	if e.bucket.Active() {
		e.logger.Warn("precision change ignored while a bucket job runs")
		return
	}
	if err := e.pipeline.SetPrecision(c.Precision); err != nil {
		e.logger.Error("set precision", zap.Stringer("precision", c.Precision), zap.Error(err))
	}
}

func (c SetExposure) apply(e *engine) {
	if c.Exposure > 0 {
		e.exposure = c.Exposure
	}
}

func (c StartBucket) apply(e *engine) {
	meta := e.provenance()
	for k, v := range c.Metadata {
		meta[k] = v
	}
	if _, err := e.bucket.Start(c.Export, c.Config, meta); err != nil {
		e.logger.Warn("bucket job not started", zap.Error(err))
		return
	}
	e.emit(BucketStatus{Active: true})
	e.emit(BucketProgress{Percent: 0})
}

func (StopBucket) apply(e *engine) {
	if e.bucket.Stop() {
		e.profiler.ObserveBucketEnd("stopped")
		e.profiler.ObserveBucket(0)
		e.emit(BucketStatus{Active: false})
	}
}

func (c LoadPreset) apply(e *engine) {
	p := c.Preset
	if p == nil {
		return
	}
	e.handleDiff(e.manager.Apply(p.Config()), false)
	for layer, stops := range p.Gradients {
		if err := e.manager.SetGradient(layer, stops); err != nil {
			e.logger.Warn("preset gradient ignored", zap.Int("layer", layer), zap.Error(err))
		}
	}
	e.controller.Teleport(p.CameraWorld(), p.CameraRotation(), p.Camera.Fov)
	e.pipeline.Reset()
	e.logger.Info("preset loaded", zap.String("name", p.Name), zap.String("formula", p.Formula))
}
