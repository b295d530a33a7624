package bucket

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/accumulation"
	"github.com/Carmen-Shannon/oxy-fractal/engine/camera"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBucket(t *testing.T, width, height int) (Renderer, accumulation.Pipeline, accumulation.FrameInput) {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithWorkers(2), renderer.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(r.Release)

	f := shader.DefaultFeatures()
	f.MaxSteps = 48
	f.Shadows = false
	s, err := shader.NewRaymarchShader(f)
	require.NoError(t, err)
	prog, err := r.RegisterProgram(s)
	require.NoError(t, err)

	p := accumulation.NewPipeline(r, accumulation.WithLogger(zap.NewNop()))
	t.Cleanup(p.Release)
	require.NoError(t, p.Resize(width, height))

	in := accumulation.FrameInput{
		Program: prog,
		Uniforms: shader.FrameUniforms{
			Camera: camera.GPUCamera{
				High:    [4]float32{0, 0, 3, 0.41421357},
				Low:     [4]float32{0, 0, 0, float32(width) / float32(height)},
				Right:   [4]float32{1, 0, 0, 0},
				Up:      [4]float32{0, 1, 0, 0},
				Forward: [4]float32{0, 0, -1, 0},
			},
			Formula:    formula.DefaultParams(formula.KindMandelbulb).GPU(),
			Quality:    [4]float32{1e-3, 10, 0.9, 0},
			Light:      [4]float32{0.57735, 0.57735, 0.57735, 1},
			Shading:    [4]float32{0.1, 8, 0.5, 0},
			Background: [4]float32{0.1, 0.2, 0.3, 1},
			Surface:    [4]float32{0.8, 0.8, 0.8, 0},
		},
	}
	return NewRenderer(p, WithLogger(zap.NewNop())), p, in
}

func TestPartitionCoversFrame(t *testing.T) {
	tiles := Partition(512, 384, 128)
	require.Len(t, tiles, 12)

	covered := make([]int, 512*384)
	for _, tile := range tiles {
		assert.Equal(t, 128, tile.W)
		assert.Equal(t, 128, tile.H)
		for y := tile.Y; y < tile.Y+tile.H; y++ {
			for x := tile.X; x < tile.X+tile.W; x++ {
				covered[y*512+x]++
			}
		}
	}
	for i, c := range covered {
		if !assert.Equal(t, 1, c, "pixel %d", i) {
			break
		}
	}

	// row-major: the fifth tile starts the second row
	assert.Equal(t, common.Rect{X: 0, Y: 128, W: 128, H: 128}, tiles[4])
}

func TestPartitionClipsEdges(t *testing.T) {
	tiles := Partition(300, 200, 128)
	require.Len(t, tiles, 6)
	assert.Equal(t, common.Rect{X: 256, Y: 0, W: 44, H: 128}, tiles[2])
	assert.Equal(t, common.Rect{X: 256, Y: 128, W: 44, H: 72}, tiles[5])

	area := 0
	for _, tile := range tiles {
		area += tile.Area()
	}
	assert.Equal(t, 300*200, area)

	assert.Empty(t, Partition(0, 10, 8))
	assert.Empty(t, Partition(10, 10, 0))
}

func TestStartRejectsInvalid(t *testing.T) {
	b, _, _ := newTestBucket(t, 16, 16)
	_, err := b.Start(false, Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = b.Start(false, Config{TileSize: 8}, nil)
	require.NoError(t, err)
	_, err = b.Start(false, Config{TileSize: 8}, nil)
	assert.ErrorIs(t, err, ErrJobActive)
}

func TestRefineRunsToCompletion(t *testing.T) {
	b, p, in := newTestBucket(t, 32, 24)
	p.SetSampleCap(7)

	id, err := b.Start(false, Config{TileSize: 16, MaxSamplesPerTile: 3, MinSamplesPerTile: 3, SamplesPerTick: 2}, map[string]string{"formula": "mandelbulb"})
	require.NoError(t, err)
	assert.True(t, b.Active())
	assert.Len(t, b.Tiles(), 4)

	var result *Result
	last := float32(0)
	for range 100 {
		res := b.Tick(in)
		assert.GreaterOrEqual(t, res.Progress, last)
		last = res.Progress
		if res.Result != nil {
			result = res.Result
			break
		}
		assert.Less(t, res.Progress, float32(100))
	}
	require.NotNil(t, result)
	assert.Equal(t, float32(100), last)
	assert.False(t, b.Active())
	assert.Zero(t, b.Progress())

	assert.Equal(t, id, result.ID)
	assert.False(t, result.Export)
	assert.Equal(t, 32, result.Width)
	assert.Equal(t, 24, result.Height)
	assert.Len(t, result.Pixels, 32*24*4)
	assert.Equal(t, uint64(12), result.Samples)
	assert.Equal(t, "mandelbulb", result.Metadata["formula"])
	assert.Equal(t, id.String(), result.Metadata[MetaJobID])
	assert.Equal(t, "refine", result.Metadata[MetaMode])
	assert.Equal(t, "4", result.Metadata[MetaTiles])

	for i := 3; i < len(result.Pixels); i += 4 {
		if !assert.Equal(t, float32(1), result.Pixels[i], "alpha at %d", i) {
			break
		}
	}

	// the viewport settings come back
	assert.Equal(t, uint(7), p.SampleCap())
	w, h := p.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 24, h)
}

func TestExportUpscales(t *testing.T) {
	b, p, in := newTestBucket(t, 8, 8)
	_, err := b.Start(true, Config{TileSize: 8, Upscale: 2, MaxSamplesPerTile: 2, SamplesPerTick: 4}, nil)
	require.NoError(t, err)
	w, h := p.Size()
	assert.Equal(t, 16, w)
	assert.Equal(t, 16, h)

	var result *Result
	for range 20 {
		if res := b.Tick(in); res.Result != nil {
			result = res.Result
			break
		}
	}
	require.NotNil(t, result)
	assert.True(t, result.Export)
	assert.Equal(t, 16, result.Width)
	assert.Equal(t, "export", result.Metadata[MetaMode])
	assert.Equal(t, "16x16", result.Metadata[MetaSize])
	assert.Equal(t, 16, result.Image(1).Bounds().Dx())

	w, h = p.Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)
}

func TestMatchesFullFrameRender(t *testing.T) {
	b, p, in := newTestBucket(t, 16, 16)
	p.SetAccumulation(false)
	require.True(t, p.Render(in))
	full, err := p.ReadOutput()
	require.NoError(t, err)
	p.SetAccumulation(true)

	_, err = b.Start(false, Config{TileSize: 8, MaxSamplesPerTile: 1, SamplesPerTick: 1}, nil)
	require.NoError(t, err)
	var result *Result
	for range 10 {
		if res := b.Tick(in); res.Result != nil {
			result = res.Result
			break
		}
	}
	require.NotNil(t, result)
	assert.InDeltaSlice(t, full, result.Pixels, 1e-6)
}

func TestStopDiscards(t *testing.T) {
	b, p, in := newTestBucket(t, 16, 16)
	_, err := b.Start(true, Config{TileSize: 8, Upscale: 2, MaxSamplesPerTile: 2}, nil)
	require.NoError(t, err)
	b.Tick(in)
	_, idx, ok := b.CurrentTile()
	assert.True(t, ok)
	assert.GreaterOrEqual(t, idx, 0)

	assert.True(t, b.Stop())
	assert.False(t, b.Active())
	assert.False(t, b.Stop())
	assert.Equal(t, TickResult{}, b.Tick(in))

	w, _ := p.Size()
	assert.Equal(t, 16, w)
}

func runToResult(t *testing.T, b Renderer, in accumulation.FrameInput, ticks int) *Result {
	t.Helper()
	for range ticks {
		if res := b.Tick(in); res.Result != nil {
			return res.Result
		}
	}
	t.Fatalf("job did not finish in %d ticks", ticks)
	return nil
}

func TestRefineKeepsImageForViewport(t *testing.T) {
	b, p, in := newTestBucket(t, 16, 16)
	p.SetSampleCap(4)

	_, err := b.Start(false, Config{TileSize: 8, MinSamplesPerTile: 4, MaxSamplesPerTile: 4, SamplesPerTick: 4}, nil)
	require.NoError(t, err)
	result := runToResult(t, b, in, 20)

	// the capped viewport draws nothing more and shows the refined raster
	assert.Equal(t, uint(4), p.AccumulationCount())
	assert.False(t, p.Render(in))
	out, err := p.ReadOutput()
	require.NoError(t, err)
	assert.InDeltaSlice(t, result.Pixels, out, 1e-6)

	// uncapped, the viewport keeps accumulating on top of it
	p.SetSampleCap(0)
	require.True(t, p.Render(in))
	assert.Equal(t, uint(5), p.AccumulationCount())
	assert.InDelta(t, 0.2, p.BlendWeight(), 1e-6)
	out, err = p.ReadOutput()
	require.NoError(t, err)
	assert.InDeltaSlice(t, result.Pixels, out, 0.5)
}

func TestViewportChangesWaitForJob(t *testing.T) {
	b, p, in := newTestBucket(t, 16, 16)
	assert.False(t, b.UpdateViewport(func(v *ViewportState) { v.Holding = true }))
	_, ok := b.Viewport()
	assert.False(t, ok)

	_, err := b.Start(false, Config{TileSize: 8, MinSamplesPerTile: 4, MaxSamplesPerTile: 4, SamplesPerTick: 2}, nil)
	require.NoError(t, err)
	b.Tick(in)

	require.True(t, b.UpdateViewport(func(v *ViewportState) {
		v.Holding = true
		v.SampleCap = 1
	}))
	v, ok := b.Viewport()
	require.True(t, ok)
	assert.True(t, v.Holding)
	assert.False(t, p.Holding())
	assert.Zero(t, p.SampleCap())

	runToResult(t, b, in, 40)
	assert.True(t, p.Holding())
	assert.Equal(t, uint(1), p.SampleCap())
}

func TestRestartResamplesFromFirstTile(t *testing.T) {
	b, _, in := newTestBucket(t, 16, 16)
	assert.False(t, b.Restart(nil))

	_, err := b.Start(false, Config{TileSize: 8, MaxSamplesPerTile: 2, SamplesPerTick: 2}, map[string]string{"formula": "mandelbulb"})
	require.NoError(t, err)
	res := b.Tick(in)
	require.True(t, res.Committed)
	assert.Equal(t, float32(25), res.Progress)

	require.True(t, b.Restart(map[string]string{"formula": "menger"}))
	assert.Zero(t, b.Progress())
	_, idx, ok := b.CurrentTile()
	require.True(t, ok)
	assert.Zero(t, idx)

	result := runToResult(t, b, in, 20)
	assert.Equal(t, "menger", result.Metadata["formula"])
	assert.Equal(t, uint64(8), result.Samples)
}
