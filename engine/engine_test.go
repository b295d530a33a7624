package engine

import (
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-fractal/engine/bucket"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/shaderconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) reset() {
	r.events = nil
}

func newTestEngine(t *testing.T, options ...EngineBuilderOption) (Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	opts := append([]EngineBuilderOption{
		WithBackend(renderer.BackendTypeSoftware),
		WithWorkers(2),
		WithSize(16, 12),
		WithLogger(zap.NewNop()),
		WithEventListener(rec.listen),
		WithInitialConfig(shaderconfig.Config{}.
			Set(shaderconfig.FeatureQuality, shaderconfig.ParamMaxSteps, 64).
			Set(shaderconfig.FeatureLighting, "shadows", false)),
	}, options...)
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	t.Cleanup(e.Release)
	return e, rec
}

// compile ticks until the first program is installed.
func compile(t *testing.T, e Engine) {
	t.Helper()
	for range 8 {
		e.Tick(1.0 / 60)
		if e.Stats().Program != "" && !e.Stats().Compiling {
			return
		}
	}
	t.Fatal("program was not installed")
}

func TestCompileEvents(t *testing.T) {
	e, rec := newTestEngine(t)
	for range 4 {
		e.Tick(1.0 / 60)
	}

	require.Len(t, rec.events, 4)
	busy, ok := rec.events[0].(IsCompiling)
	require.True(t, ok)
	assert.True(t, busy.Compiling)
	assert.Contains(t, busy.Message, "mandelbulb")
	assert.Equal(t, IsCompiling{Compiling: false}, rec.events[1])
	_, ok = rec.events[2].(CompileTime)
	assert.True(t, ok)
	code, ok := rec.events[3].(ShaderCode)
	require.True(t, ok)
	assert.Equal(t, e.CompiledFragmentShader(), code.Source)
	assert.NotEmpty(t, code.Source)
	assert.True(t, strings.HasPrefix(e.TranslatedFragmentShader(), "// software mirror"))

	// the installing tick already draws
	assert.Equal(t, uint(1), e.Stats().Samples)
}

func TestSamplesAccumulate(t *testing.T) {
	e, _ := newTestEngine(t)
	compile(t, e)
	for k := 2; k <= 5; k++ {
		e.Tick(1.0 / 60)
		s := e.Stats()
		assert.Equal(t, uint(k), s.Samples)
		assert.Equal(t, k%2, s.WriteIndex)
	}
}

func TestCommandsApplyOnTick(t *testing.T) {
	e, _ := newTestEngine(t)
	compile(t, e)

	require.NoError(t, e.Submit(SetHolding{Hold: true}))
	before := e.Stats().Samples
	e.Tick(1.0 / 60)
	assert.Equal(t, before, e.Stats().Samples)

	require.NoError(t, e.Submit(SetHolding{Hold: false}))
	require.NoError(t, e.Submit(SetSampleCap{N: 3}))
	for range 6 {
		e.Tick(1.0 / 60)
	}
	assert.Equal(t, uint(3), e.Stats().Samples)
}

func TestTickCallbackSubmitsSameTick(t *testing.T) {
	e, _ := newTestEngine(t)
	compile(t, e)

	var seen []float64
	e.SetTickCallback(func(dt float64) {
		seen = append(seen, dt)
		_ = e.Submit(SetHolding{Hold: true})
	})
	before := e.Stats().Samples
	e.Tick(0.25)
	assert.Equal(t, []float64{0.25}, seen)
	assert.True(t, e.Stats().Holding)
	assert.Equal(t, before, e.Stats().Samples)
}

func TestQueueFull(t *testing.T) {
	e, _ := newTestEngine(t, WithCommandBuffer(1))
	require.NoError(t, e.Submit(ResetAccum{}))
	assert.ErrorIs(t, e.Submit(ResetAccum{}), ErrQueueFull)
	e.Tick(0)
	assert.NoError(t, e.Submit(ResetAccum{}))
}

func TestUniformChangeResets(t *testing.T) {
	e, rec := newTestEngine(t)
	compile(t, e)
	e.Tick(1.0 / 60)
	e.Tick(1.0 / 60)
	require.Equal(t, uint(3), e.Stats().Samples)

	rec.reset()
	require.NoError(t, e.Submit(SetUniform{Feature: shaderconfig.FeatureLighting, Name: "intensity", Value: 2}))
	e.Tick(1.0 / 60)
	assert.Equal(t, uint(1), e.Stats().Samples)
	assert.Empty(t, rec.events)

	require.NoError(t, e.Submit(SetUniform{Feature: shaderconfig.FeatureColoring, Name: "exposure", Value: 1.5, NoReset: true}))
	e.Tick(1.0 / 60)
	assert.Equal(t, uint(2), e.Stats().Samples)
}

func TestModeToggleUsesCache(t *testing.T) {
	e, rec := newTestEngine(t)
	compile(t, e)
	direct := e.Stats().Program

	rec.reset()
	require.NoError(t, e.Submit(SetUniform{Feature: shaderconfig.FeatureRender, Name: shaderconfig.ParamRenderMode, Value: "pathtraced"}))
	compile(t, e)
	traced := e.Stats().Program
	assert.NotEqual(t, direct, traced)
	assert.IsType(t, IsCompiling{}, rec.events[0])

	rec.reset()
	require.NoError(t, e.Submit(SetUniform{Feature: shaderconfig.FeatureRender, Name: shaderconfig.ParamRenderMode, Value: "direct"}))
	e.Tick(1.0 / 60)
	assert.Equal(t, direct, e.Stats().Program)
	assert.False(t, e.Stats().Compiling)
	require.Len(t, rec.events, 1)
	assert.IsType(t, ShaderCode{}, rec.events[0])
	assert.Equal(t, uint(1), e.Stats().Samples)
}

func TestQueries(t *testing.T) {
	e, _ := newTestEngine(t)
	compile(t, e)

	d, ok := e.MeasureDistanceAtScreenPoint(8, 6)
	require.True(t, ok)
	assert.Greater(t, d, float32(1.5))
	assert.Less(t, d, float32(2.5))

	world, ok := e.PickWorldPosition(8, 6)
	require.True(t, ok)
	assert.InDelta(t, 0, world[0], 0.1)
	assert.InDelta(t, 3-float64(d), world[2], 1e-3)

	miss, ok := e.MeasureDistanceAtScreenPoint(0, 0)
	assert.False(t, ok)
	assert.Equal(t, d, miss)

	require.NoError(t, e.Submit(OffsetShift{Delta: [3]float64{10, 0, 0}}))
	e.Tick(1.0 / 60)
	_, ok = e.PickWorldPosition(8, 6)
	assert.False(t, ok, "camera moved off the surface")
}

func TestBucketEvents(t *testing.T) {
	e, rec := newTestEngine(t)
	compile(t, e)

	rec.reset()
	require.NoError(t, e.Submit(StartBucket{Config: bucket.Config{TileSize: 8, MaxSamplesPerTile: 2, SamplesPerTick: 2}, Metadata: map[string]string{"title": "test"}}))
	var done *bucket.Result
	for range 20 {
		e.Tick(1.0 / 60)
		for _, ev := range rec.events {
			if d, ok := ev.(BucketDone); ok {
				done = d.Result
			}
		}
		if done != nil {
			break
		}
	}
	require.NotNil(t, done)
	assert.Equal(t, BucketStatus{Active: true}, rec.events[0])
	assert.Equal(t, BucketStatus{Active: false}, rec.events[len(rec.events)-1])
	assert.Equal(t, "test", done.Metadata["title"])
	assert.Equal(t, "mandelbulb", done.Metadata["formula"])
	assert.NotEmpty(t, done.Metadata["params"])
	assert.False(t, e.Stats().BucketActive)
}

func TestStopBucket(t *testing.T) {
	e, rec := newTestEngine(t)
	compile(t, e)
	require.NoError(t, e.Submit(StartBucket{Export: true, Config: bucket.Config{TileSize: 8, Upscale: 2}}))
	e.Tick(1.0 / 60)
	assert.True(t, e.Stats().BucketActive)
	assert.Equal(t, 32, e.Stats().Width)

	rec.reset()
	require.NoError(t, e.Submit(StopBucket{}))
	e.Tick(1.0 / 60)
	assert.False(t, e.Stats().BucketActive)
	assert.Equal(t, 16, e.Stats().Width)
	assert.Contains(t, rec.events, Event(BucketStatus{Active: false}))
}

// bucketDone returns the result of a BucketDone event in events.
func bucketDone(events []Event) *bucket.Result {
	for _, ev := range events {
		if d, ok := ev.(BucketDone); ok {
			return d.Result
		}
	}
	return nil
}

func TestViewportCommandsWaitForBucket(t *testing.T) {
	e, rec := newTestEngine(t)
	compile(t, e)
	require.NoError(t, e.Submit(StartBucket{Config: bucket.Config{TileSize: 8, MinSamplesPerTile: 4, MaxSamplesPerTile: 4, SamplesPerTick: 2}}))
	e.Tick(1.0 / 60)
	require.True(t, e.Stats().BucketActive)

	require.NoError(t, e.Submit(SetHolding{Hold: true}))
	require.NoError(t, e.Submit(SetSampleCap{N: 1}))
	require.NoError(t, e.Submit(SetAccumulation{Enabled: false}))
	require.NoError(t, e.Submit(SetUniform{Feature: shaderconfig.FeatureRender, Name: shaderconfig.ParamSampleCap, Value: 2}))
	e.Tick(1.0 / 60)

	st := e.Stats()
	assert.True(t, st.Holding)
	assert.False(t, st.AccumulationOn)
	assert.Equal(t, uint(2), st.SampleCap)
	assert.False(t, e.Pipeline().Holding())
	assert.Zero(t, e.Pipeline().SampleCap())
	// the job kept sampling and committed its first tile
	assert.Equal(t, float32(25), st.BucketProgress)

	var done *bucket.Result
	for range 40 {
		rec.reset()
		e.Tick(1.0 / 60)
		if done = bucketDone(rec.events); done != nil {
			break
		}
	}
	require.NotNil(t, done)
	assert.True(t, e.Pipeline().Holding())
	assert.False(t, e.Pipeline().Accumulation())
	assert.Equal(t, uint(2), e.Pipeline().SampleCap())
}

func TestRebuildPausesSamplingAndRestartsBucket(t *testing.T) {
	e, rec := newTestEngine(t)
	compile(t, e)
	require.NoError(t, e.Submit(StartBucket{Config: bucket.Config{TileSize: 8, MaxSamplesPerTile: 2, SamplesPerTick: 2}}))
	e.Tick(1.0 / 60)
	require.Equal(t, float32(25), e.Stats().BucketProgress)

	rec.reset()
	require.NoError(t, e.Submit(SetUniform{Feature: shaderconfig.FeatureFormula, Name: shaderconfig.ParamFormulaType, Value: "menger"}))
	e.Tick(1.0 / 60)
	require.True(t, e.Stats().Compiling)
	assert.Contains(t, rec.events, Event(BucketProgress{Percent: 0}))

	// nothing is drawn or committed with the previous program
	for range 8 {
		st := e.Stats()
		if !st.Compiling {
			break
		}
		assert.Zero(t, st.Samples)
		assert.Zero(t, st.BucketProgress)
		e.Tick(1.0 / 60)
	}
	require.False(t, e.Stats().Compiling)

	var done *bucket.Result
	for range 20 {
		if done = bucketDone(rec.events); done != nil {
			break
		}
		rec.reset()
		e.Tick(1.0 / 60)
	}
	require.NotNil(t, done)
	assert.Equal(t, "menger", done.Metadata["formula"])
	assert.Equal(t, uint64(8), done.Samples)
}

func TestRebuildPausesViewport(t *testing.T) {
	e, _ := newTestEngine(t)
	compile(t, e)
	require.NoError(t, e.Submit(SetUniform{Feature: shaderconfig.FeatureFormula, Name: shaderconfig.ParamFormulaType, Value: "mandelbox"}))
	e.Tick(1.0 / 60)
	require.True(t, e.Stats().Compiling)
	assert.Zero(t, e.Stats().Samples)
	e.Tick(1.0 / 60)
	assert.Zero(t, e.Stats().Samples)

	compile(t, e)
	assert.Equal(t, uint(1), e.Stats().Samples)
}

func TestOffsetChangeResets(t *testing.T) {
	e, _ := newTestEngine(t)
	compile(t, e)
	e.Tick(1.0 / 60)
	require.Equal(t, uint(2), e.Stats().Samples)

	require.NoError(t, e.Submit(OffsetShift{Delta: [3]float64{0, 0, 1e-3}}))
	e.Tick(1.0 / 60)
	assert.Equal(t, uint(1), e.Stats().Samples)

	// the space is shared, changes made outside a command also invalidate the history
	e.Space().SetOffset(0, 0, 0)
	e.Tick(1.0 / 60)
	assert.Equal(t, uint(1), e.Stats().Samples)
	e.Tick(1.0 / 60)
	assert.Equal(t, uint(2), e.Stats().Samples)
}

func TestPresetRoundTrip(t *testing.T) {
	e, rec := newTestEngine(t)
	compile(t, e)

	p := e.Preset()
	assert.Equal(t, "mandelbulb", p.Formula)
	assert.InDelta(t, 3, p.CameraWorld()[2], 1e-6)

	p.Formula = "mandelbox"
	p.Camera.PositionHigh = [3]float32{0, 0, 6}
	rec.reset()
	require.NoError(t, e.Submit(LoadPreset{Preset: p}))
	compile(t, e)
	assert.Equal(t, "mandelbox", e.Manager().Formula().String())
	assert.InDelta(t, 6, e.Space().Offset()[2], 1e-6)
	assert.IsType(t, IsCompiling{}, rec.events[0])
}

func TestResize(t *testing.T) {
	e, _ := newTestEngine(t)
	compile(t, e)
	require.NoError(t, e.Submit(Resize{Width: 20, Height: 10}))
	e.Tick(1.0 / 60)
	s := e.Stats()
	assert.Equal(t, 20, s.Width)
	assert.Equal(t, 10, s.Height)
	assert.Equal(t, uint(1), s.Samples)
	assert.InDelta(t, 2, e.Camera().Aspect(), 1e-6)

	img, err := e.CaptureSnapshot()
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestSetPrecision(t *testing.T) {
	e, _ := newTestEngine(t)
	compile(t, e)
	require.NoError(t, e.Submit(SetPrecision{Precision: renderer.PrecisionFloat16}))
	e.Tick(1.0 / 60)
	assert.Equal(t, renderer.PrecisionFloat16, e.Stats().Precision)
	assert.Equal(t, uint(1), e.Stats().Samples)
}
