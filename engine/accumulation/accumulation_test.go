package accumulation

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/camera"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSize = 32

func newTestPipeline(t *testing.T, options ...PipelineBuilderOption) (Pipeline, FrameInput) {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithWorkers(2), renderer.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(r.Release)

	f := shader.DefaultFeatures()
	f.MaxSteps = 64
	f.Shadows = false
	s, err := shader.NewRaymarchShader(f)
	require.NoError(t, err)
	prog, err := r.RegisterProgram(s)
	require.NoError(t, err)

	p := NewPipeline(r, append([]PipelineBuilderOption{WithLogger(zap.NewNop())}, options...)...)
	t.Cleanup(p.Release)
	require.NoError(t, p.Resize(testSize, testSize))

	return p, FrameInput{
		Program: prog,
		Uniforms: shader.FrameUniforms{
			Camera: camera.GPUCamera{
				High:    [4]float32{0, 0, 3, 0.41421357},
				Low:     [4]float32{0, 0, 0, 1},
				Right:   [4]float32{1, 0, 0, 0},
				Up:      [4]float32{0, 1, 0, 0},
				Forward: [4]float32{0, 0, -1, 0},
			},
			Formula:    formula.DefaultParams(formula.KindMandelbulb).GPU(),
			Quality:    [4]float32{1e-3, 10, 0.9, 0},
			Light:      [4]float32{0.57735, 0.57735, 0.57735, 0.3},
			Shading:    [4]float32{0.05, 8, 0.5, 0},
			Background: [4]float32{0, 0, 0, 1},
			Surface:    [4]float32{0.8, 0.8, 0.8, 0},
		},
	}
}

func TestJitter(t *testing.T) {
	assert.Equal(t, [2]float32{}, Jitter(0))
	assert.Equal(t, [2]float32{}, Jitter(1))
	assert.InDelta(t, 0.0, Jitter(2)[0], 1e-6) // Halton(1, base 2) = 0.5
	assert.InDelta(t, -1.0/6, Jitter(2)[1], 1e-6)
	assert.Equal(t, Jitter(2), Jitter(2+JitterTableSize))
	for i := uint(2); i < 64; i++ {
		j := Jitter(i)
		assert.GreaterOrEqual(t, j[0], float32(-0.5))
		assert.Less(t, j[0], float32(0.5))
		assert.GreaterOrEqual(t, j[1], float32(-0.5))
		assert.Less(t, j[1], float32(0.5))
	}
}

func TestRenderBeforeResize(t *testing.T) {
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer r.Release()

	p := NewPipeline(r, WithLogger(zap.NewNop()))
	assert.False(t, p.Allocated())
	assert.False(t, p.Render(FrameInput{}))
	_, ok := p.MeasureConvergence([2]float32{0, 0}, [2]float32{1, 1})
	assert.False(t, ok)
	_, err = p.Snapshot(1)
	assert.ErrorIs(t, err, ErrNotAllocated)
	w, h := p.Size()
	assert.Equal(t, 0, w)
	assert.Equal(t, 0, h)
}

func TestRenderCountsAndAlternates(t *testing.T) {
	p, in := newTestPipeline(t)
	for k := uint(1); k <= 6; k++ {
		require.True(t, p.Render(in))
		assert.Equal(t, k, p.AccumulationCount())
		assert.Equal(t, int(k%2), p.WriteIndex())
		assert.InDelta(t, 1/float32(k), p.BlendWeight(), 1e-6)
	}

	p.Reset()
	assert.Zero(t, p.AccumulationCount())
	p.Reset()
	assert.Zero(t, p.AccumulationCount())

	require.True(t, p.Render(in))
	assert.Equal(t, uint(1), p.AccumulationCount())
	assert.Equal(t, float32(1), p.BlendWeight())
}

func TestRenderWithoutProgram(t *testing.T) {
	p, in := newTestPipeline(t)
	in.Program = nil
	assert.False(t, p.Render(in))
	assert.Zero(t, p.AccumulationCount())
}

func TestSampleCap(t *testing.T) {
	p, in := newTestPipeline(t, WithSampleCap(3))
	for range 5 {
		p.Render(in)
	}
	assert.Equal(t, uint(3), p.AccumulationCount())
	assert.False(t, p.Render(in))

	p.SetSampleCap(5)
	assert.Equal(t, uint(3), p.AccumulationCount())
	assert.True(t, p.Render(in))

	p.SetSampleCap(2)
	assert.Zero(t, p.AccumulationCount())
}

func TestHolding(t *testing.T) {
	p, in := newTestPipeline(t)
	require.True(t, p.Render(in))
	p.SetHolding(true)
	assert.False(t, p.Render(in))
	assert.Equal(t, uint(1), p.AccumulationCount())
	p.SetHolding(false)
	assert.True(t, p.Render(in))
}

func TestAccumulationDisabled(t *testing.T) {
	p, in := newTestPipeline(t)
	p.Render(in)
	p.Render(in)
	p.SetAccumulation(false)
	assert.Zero(t, p.AccumulationCount())
	for range 3 {
		p.Render(in)
		assert.Equal(t, uint(1), p.AccumulationCount())
		assert.Equal(t, float32(1), p.BlendWeight())
	}
	p.SetAccumulation(true)
	assert.Zero(t, p.AccumulationCount())
}

func TestResize(t *testing.T) {
	p, in := newTestPipeline(t)
	p.Render(in)
	out := p.OutputTarget()

	require.NoError(t, p.Resize(testSize, testSize))
	assert.Same(t, out, p.OutputTarget())
	assert.Equal(t, uint(1), p.AccumulationCount())

	require.NoError(t, p.Resize(16, 8))
	w, h := p.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 8, h)
	assert.Zero(t, p.AccumulationCount())
	assert.Zero(t, p.WriteIndex())

	assert.Error(t, p.Resize(0, 8))
	assert.False(t, p.Allocated())
}

func TestSetPrecision(t *testing.T) {
	p, in := newTestPipeline(t)
	p.Render(in)
	require.NoError(t, p.SetPrecision(renderer.PrecisionFloat16))
	assert.Equal(t, renderer.PrecisionFloat16, p.Precision())
	assert.Equal(t, renderer.PrecisionFloat16, p.OutputTarget().Precision())
	assert.Zero(t, p.AccumulationCount())
}

func TestFirstSampleReplacesHistory(t *testing.T) {
	p, in := newTestPipeline(t)
	for range 4 {
		p.Render(in)
	}
	in.Uniforms.Camera.Forward = [4]float32{0, 0, 1, 0}
	p.Reset()
	require.True(t, p.Render(in))

	pix, err := p.ReadOutput()
	require.NoError(t, err)
	for i := 0; i < len(pix); i += 4 {
		assert.Equal(t, float32(0), pix[i])
		assert.Equal(t, float32(1), pix[i+3])
	}
}

func TestConvergenceDecays(t *testing.T) {
	p, in := newTestPipeline(t)
	centre := common.NormRect{Min: [2]float32{0.25, 0.25}, Max: [2]float32{0.75, 0.75}}

	_, ok := p.MeasureConvergence(centre.Min, centre.Max)
	assert.False(t, ok)

	crossed := 0
	var early, last float32
	for k := 1; k <= 50; k++ {
		require.True(t, p.Render(in))
		if k < 2 {
			continue
		}
		d, ok := p.MeasureConvergence(centre.Min, centre.Max)
		require.True(t, ok)
		if k == 4 {
			early = d
		}
		if crossed == 0 && d < 0.01 {
			crossed = k
		}
		last = d
	}
	require.NotZero(t, crossed, "centre never fell below 0.01")
	assert.LessOrEqual(t, crossed, 32)
	assert.Less(t, last, float32(0.01))
	assert.LessOrEqual(t, last, early)
}

func TestLoadHistoryContinuesAccumulation(t *testing.T) {
	p, in := newTestPipeline(t)
	require.True(t, p.Render(in))

	pix := make([]float32, testSize*testSize*4)
	for i := range pix {
		pix[i] = 0.5
	}
	require.NoError(t, p.LoadHistory(pix, 9))
	assert.Equal(t, uint(9), p.AccumulationCount())
	out, err := p.ReadOutput()
	require.NoError(t, err)
	assert.Equal(t, pix, out)

	require.True(t, p.Render(in))
	assert.Equal(t, uint(10), p.AccumulationCount())
	assert.InDelta(t, 0.1, p.BlendWeight(), 1e-6)

	corner, err := p.ReadOutputRegion(common.Rect{X: 0, Y: 0, W: 2, H: 2})
	require.NoError(t, err)
	require.Len(t, corner, 2*2*4)
	// background is black, so one sample pulls the history down by a tenth
	assert.InDelta(t, 0.45, corner[0], 1e-6)

	assert.Error(t, p.LoadHistory(pix[:4], 3))
	assert.Zero(t, p.AccumulationCount())
}

func TestClear(t *testing.T) {
	p, in := newTestPipeline(t)
	p.Render(in)
	require.NoError(t, p.Clear())
	assert.Zero(t, p.AccumulationCount())
	pix, err := p.ReadOutput()
	require.NoError(t, err)
	for _, v := range pix {
		assert.Zero(t, v)
	}
}

func TestSnapshot(t *testing.T) {
	p, in := newTestPipeline(t)
	in.Uniforms.Background = [4]float32{1, 0, 0, 1}
	in.Uniforms.Camera.Forward = [4]float32{0, 0, 1, 0}
	p.Render(in)

	img, err := p.Snapshot(1)
	require.NoError(t, err)
	assert.Equal(t, testSize, img.Bounds().Dx())
	c := img.RGBAAt(3, 3)
	assert.Greater(t, c.R, uint8(200))
	assert.Zero(t, c.G)
	assert.Equal(t, uint8(255), c.A)
}

func TestToneMap(t *testing.T) {
	img := ToneMap([]float32{0, 0, 0, 1, 100, 100, 100, 1, -1, 0.18, 0, 1}, 3, 1, 1)
	assert.Equal(t, uint8(0), img.Pix[0])
	assert.Equal(t, uint8(255), img.Pix[4])
	assert.Equal(t, uint8(0), img.Pix[8])
	assert.Greater(t, img.Pix[9], uint8(0))
	assert.Less(t, img.Pix[9], uint8(255))
}
