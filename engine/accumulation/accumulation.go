// Package accumulation implements the progressive temporal accumulation of raymarch samples into a pair of
// alternating render targets.
package accumulation

import (
	"image"
	"math"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// JitterTableSize is the number of precomputed sub-pixel offsets.
const JitterTableSize = 4096

// ErrNotAllocated is returned by target reads before the first Resize.
var ErrNotAllocated = errors.New("accumulation: targets not allocated")

// jitterTable holds Halton(2, 3) offsets centred on zero.
var jitterTable = func() [JitterTableSize][2]float32 {
	var t [JitterTableSize][2]float32
	for i := range t {
		t[i] = [2]float32{
			float32(common.RadicalInverse(uint32(i+1), 2) - 0.5),
			float32(common.RadicalInverse(uint32(i+1), 3) - 0.5),
		}
	}
	return t
}()

// Jitter returns the sub-pixel offset of sample count (1-based). The first sample is never jittered.
//
// Parameters:
//   - count: the accumulation count of the sample
//
// Returns:
//   - [2]float32: offset in [-0.5, 0.5) pixels
func Jitter(count uint) [2]float32 {
	if count <= 1 {
		return [2]float32{}
	}
	return jitterTable[(count-1)%JitterTableSize]
}

// FrameInput is one sample request.
type FrameInput struct {
	// Program is the raymarch program to draw with.
	Program renderer.Program

	// Uniforms carries the configuration and camera. Resolution and Accum are filled by the pipeline.
	Uniforms shader.FrameUniforms

	// Region restricts the draw to a pixel rectangle. Empty draws the full frame.
	Region common.Rect
}

// targetPair is the RenderTargetPair: two equally sized targets and the index of the one written last.
type targetPair struct {
	targets    [2]renderer.Target
	writeIndex int
}

// state is the AccumulationState.
type state struct {
	count     uint
	sampleCap uint
	holding   bool
	enabled   bool
	started   time.Time
}

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	mu        *sync.Mutex
	r         renderer.Renderer
	pair      targetPair
	state     state
	width     int
	height    int
	precision renderer.Precision
	frame     uint32
	blend     float32
	logger    *zap.Logger
}

// Pipeline accumulates samples into double-buffered targets. It must be driven from the render goroutine.
type Pipeline interface {
	// Render draws one sample if the sample cap, hold state and allocation allow it.
	//
	// Parameters:
	//   - in: the program, uniforms and region of the sample
	//
	// Returns:
	//   - bool: true if a sample was drawn
	Render(in FrameInput) bool

	// Reset restarts accumulation. It is O(1) and idempotent; the next sample fully replaces the history.
	Reset()

	// Clear zeroes both targets and resets.
	//
	// Returns:
	//   - error: a device error
	Clear() error

	// MeasureConvergence returns the largest per-channel difference between the two targets inside the normalized
	// rectangle [min, max]. Before two samples exist, or when the targets are missing or the readback fails, it
	// returns +Inf and false.
	//
	// Parameters:
	//   - min, max: normalized corners of the probed rectangle
	//
	// Returns:
	//   - float32: the largest difference
	//   - bool: false if no measurement was possible
	MeasureConvergence(min, max [2]float32) (float32, bool)

	// Resize disposes and recreates both targets at width x height and resets. Same-size calls are no-ops.
	//
	// Parameters:
	//   - width, height: target size in pixels
	//
	// Returns:
	//   - error: an invalid size or a device error
	Resize(width, height int) error

	// SetPrecision disposes and recreates both targets with precision p and resets.
	SetPrecision(p renderer.Precision) error

	// Precision returns the target precision.
	Precision() renderer.Precision

	// Size returns the target size, 0 x 0 before the first Resize.
	Size() (int, int)

	// Allocated reports whether both targets exist.
	Allocated() bool

	// OutputTarget returns the target written last. The next sample reads it as history.
	OutputTarget() renderer.Target

	// ReadOutput reads the output target back as rgba float32 values.
	ReadOutput() ([]float32, error)

	// ReadOutputRegion reads the pixel rectangle r of the output target back, clipped to the target.
	ReadOutputRegion(r common.Rect) ([]float32, error)

	// LoadHistory uploads pix into both targets and continues accumulation from count, so the next sample
	// blends into pix with weight 1/(count+1).
	//
	// Parameters:
	//   - pix: Width*Height*4 rgba values
	//   - count: the number of samples pix represents
	//
	// Returns:
	//   - error: ErrNotAllocated, a size mismatch or a device error
	LoadHistory(pix []float32, count uint) error

	// Snapshot tone maps the output target.
	//
	// Parameters:
	//   - exposure: linear exposure applied before the ACES curve
	//
	// Returns:
	//   - *image.RGBA: the display-ready image
	//   - error: ErrNotAllocated or a readback failure
	Snapshot(exposure float32) (*image.RGBA, error)

	// SetHolding pauses or resumes sampling.
	SetHolding(hold bool)

	// Holding reports whether sampling is paused.
	Holding() bool

	// SetSampleCap bounds the accumulation count, 0 meaning unbounded. Lowering the cap below the current count
	// resets.
	SetSampleCap(n uint)

	// SampleCap returns the sample cap.
	SampleCap() uint

	// SetAccumulation enables or disables accumulation. While disabled every sample replaces the history.
	// Toggling resets.
	SetAccumulation(enabled bool)

	// Accumulation reports whether accumulation is enabled.
	Accumulation() bool

	// BlendWeight returns the blend weight of the last sample.
	BlendWeight() float32

	// AccumulationCount returns the number of samples since the last reset.
	AccumulationCount() uint

	// WriteIndex returns the index of the target written last.
	WriteIndex() int

	// Elapsed returns the time since the last reset.
	Elapsed() time.Duration

	// Release frees both targets.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a Pipeline drawing through r. Targets are allocated by the first Resize.
//
// Parameters:
//   - r: the renderer
//   - options: functional options to configure the pipeline
//
// Returns:
//   - Pipeline: the pipeline
func NewPipeline(r renderer.Renderer, options ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		mu:    &sync.Mutex{},
		r:     r,
		state: state{enabled: true, started: time.Now()},
	}
	for _, opt := range options {
		opt(p)
	}
	if p.logger == nil {
		p.logger = common.Logger().Named("accumulation")
	}
	return p
}

func (p *pipeline) allocated() bool {
	return p.pair.targets[0] != nil && p.pair.targets[1] != nil
}

func (p *pipeline) Render(in FrameInput) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := &p.state
	if (s.sampleCap > 0 && s.count >= s.sampleCap) || s.holding || !p.allocated() || in.Program == nil {
		return false
	}

	prevCount := s.count
	if s.enabled {
		s.count++
	} else {
		s.count = 1
	}
	blend := 1 / float32(s.count)
	jitter := Jitter(s.count)

	history := p.pair.targets[p.pair.writeIndex]
	destIndex := 1 - p.pair.writeIndex

	u := in.Uniforms
	u.Resolution = [4]float32{float32(p.width), float32(p.height), 0, 0}
	u.Accum = [4]float32{jitter[0], jitter[1], blend, float32(p.frame)}

	err := p.r.Draw(renderer.DrawRequest{
		Program:  in.Program,
		Uniforms: u,
		History:  history,
		Dest:     p.pair.targets[destIndex],
		Region:   in.Region,
	})
	if err != nil {
		s.count = prevCount
		p.logger.Warn("accumulation draw failed", zap.Error(err))
		return false
	}
	p.pair.writeIndex = destIndex
	p.blend = blend
	p.frame++
	return true
}

func (p *pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}

// reset is the single invalidation point. Caller must hold the mutex.
func (p *pipeline) reset() {
	p.state.count = 0
	p.state.started = time.Now()
}

func (p *pipeline) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	if !p.allocated() {
		return nil
	}
	for _, t := range p.pair.targets {
		if err := p.r.ClearTarget(t); err != nil {
			return errors.Wrap(err, "clear accumulation target")
		}
	}
	return nil
}

func (p *pipeline) MeasureConvergence(min, max [2]float32) (float32, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.allocated() || p.state.count < 2 {
		return math32.Inf(1), false
	}
	d, err := p.r.Diff(p.pair.targets[0], p.pair.targets[1], common.NormRect{Min: min, Max: max})
	if err != nil {
		p.logger.Warn("convergence readback failed", zap.Error(err))
		return math32.Inf(1), false
	}
	return d, true
}

// recreate disposes both targets and allocates new ones. Caller must hold the mutex.
func (p *pipeline) recreate(width, height int, precision renderer.Precision) error {
	p.release()
	var created [2]renderer.Target
	for i := range created {
		t, err := p.r.CreateTarget(width, height, precision)
		if err != nil {
			for _, c := range created[:i] {
				p.r.ReleaseTarget(c)
			}
			return errors.Wrapf(err, "create %dx%d accumulation target", width, height)
		}
		created[i] = t
	}
	p.pair = targetPair{targets: created}
	p.width, p.height, p.precision = width, height, precision
	p.reset()
	p.logger.Debug("accumulation targets created", zap.Int("width", width), zap.Int("height", height),
		zap.Stringer("precision", precision))
	return nil
}

func (p *pipeline) Resize(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocated() && width == p.width && height == p.height {
		return nil
	}
	return p.recreate(width, height, p.precision)
}

func (p *pipeline) SetPrecision(precision renderer.Precision) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if precision == p.precision {
		return nil
	}
	if !p.allocated() {
		p.precision = precision
		return nil
	}
	return p.recreate(p.width, p.height, precision)
}

func (p *pipeline) Precision() renderer.Precision {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.precision
}

func (p *pipeline) Size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.allocated() {
		return 0, 0
	}
	return p.width, p.height
}

func (p *pipeline) Allocated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated()
}

func (p *pipeline) OutputTarget() renderer.Target {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pair.targets[p.pair.writeIndex]
}

func (p *pipeline) ReadOutput() ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.allocated() {
		return nil, ErrNotAllocated
	}
	return p.r.ReadPixels(p.pair.targets[p.pair.writeIndex])
}

func (p *pipeline) ReadOutputRegion(r common.Rect) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.allocated() {
		return nil, ErrNotAllocated
	}
	return p.r.ReadRegion(p.pair.targets[p.pair.writeIndex], r)
}

func (p *pipeline) LoadHistory(pix []float32, count uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.allocated() {
		return ErrNotAllocated
	}
	for _, t := range p.pair.targets {
		if err := p.r.WritePixels(t, pix); err != nil {
			p.reset()
			return errors.Wrap(err, "load accumulation history")
		}
	}
	p.state.count = count
	p.state.started = time.Now()
	return nil
}

func (p *pipeline) Snapshot(exposure float32) (*image.RGBA, error) {
	pix, err := p.ReadOutput()
	if err != nil {
		return nil, err
	}
	w, h := p.Size()
	return ToneMap(pix, w, h, exposure), nil
}

func (p *pipeline) SetHolding(hold bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.holding = hold
}

func (p *pipeline) Holding() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.holding
}

func (p *pipeline) SetSampleCap(n uint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n > 0 && n < p.state.count {
		p.reset()
	}
	p.state.sampleCap = n
}

func (p *pipeline) SampleCap() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.sampleCap
}

func (p *pipeline) SetAccumulation(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if enabled != p.state.enabled {
		p.state.enabled = enabled
		p.reset()
	}
}

func (p *pipeline) Accumulation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.enabled
}

func (p *pipeline) BlendWeight() float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.blend
}

func (p *pipeline) AccumulationCount() uint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.count
}

func (p *pipeline) WriteIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pair.writeIndex
}

func (p *pipeline) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.state.started)
}

// release frees both targets. Caller must hold the mutex.
func (p *pipeline) release() {
	for i, t := range p.pair.targets {
		if t != nil {
			p.r.ReleaseTarget(t)
			p.pair.targets[i] = nil
		}
	}
	p.pair.writeIndex = 0
}

func (p *pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.release()
}

// ToneMap converts linear rgba values to display sRGB-like bytes with the ACES fitted curve and gamma 2.2.
//
// Parameters:
//   - pix: row-major rgba float32 values
//   - width, height: image size
//   - exposure: linear exposure applied before the curve
//
// Returns:
//   - *image.RGBA: the tone mapped image
func ToneMap(pix []float32, width, height int, exposure float32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	n := min(len(pix)/4, width*height)
	for i := range n {
		for k := range 3 {
			v := common.ACESFilm(max(pix[i*4+k], 0) * exposure)
			img.Pix[i*4+k] = uint8(math.Round(float64(math32.Pow(v, 1/2.2)) * 255))
		}
		img.Pix[i*4+3] = 255
	}
	return img
}
