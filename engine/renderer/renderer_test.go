package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/camera"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"go.uber.org/zap"
)

func newTestRenderer(t *testing.T) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, WithWorkers(2), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return r
}

func testFeatures() shader.Features {
	f := shader.DefaultFeatures()
	f.MaxSteps = 64
	f.Shadows = false
	return f
}

func testUniforms(w, h int) shader.FrameUniforms {
	return shader.FrameUniforms{
		Resolution: [4]float32{float32(w), float32(h), 0, 0},
		Accum:      [4]float32{0, 0, 1, 0},
		Camera: camera.GPUCamera{
			High:    [4]float32{0, 0, 3, 0.41421357},
			Low:     [4]float32{0, 0, 0, float32(w) / float32(h)},
			Right:   [4]float32{1, 0, 0, 0},
			Up:      [4]float32{0, 1, 0, 0},
			Forward: [4]float32{0, 0, -1, 0},
		},
		Formula:    formula.DefaultParams(formula.KindMandelbulb).GPU(),
		Quality:    [4]float32{1e-3, 10, 0.9, 0},
		Light:      [4]float32{0.57735, 0.57735, 0.57735, 1},
		Shading:    [4]float32{0.1, 8, 0.5, 0},
		Background: [4]float32{0.2, 0.4, 0.6, 1},
		Surface:    [4]float32{0.8, 0.8, 0.8, 0},
	}
}

func compileTestProgram(t *testing.T, r Renderer) Program {
	t.Helper()
	s, err := shader.NewRaymarchShader(testFeatures())
	require.NoError(t, err)
	p, err := r.RegisterProgram(s)
	require.NoError(t, err)
	return p
}

func texel(pix []float32, width, x, y int) [4]float32 {
	i := (y*width + x) * 4
	return [4]float32{pix[i], pix[i+1], pix[i+2], pix[i+3]}
}

func TestParseNames(t *testing.T) {
	backend, ok := ParseBackendType("CPU")
	assert.True(t, ok)
	assert.Equal(t, BackendTypeSoftware, backend)

	backend, ok = ParseBackendType("vulkan")
	assert.False(t, ok)
	assert.Equal(t, BackendTypeWGPU, backend)

	precision, ok := ParsePrecision("f16")
	assert.True(t, ok)
	assert.Equal(t, PrecisionFloat16, precision)
	assert.Equal(t, "half", precision.String())

	precision, ok = ParsePrecision("")
	assert.False(t, ok)
	assert.Equal(t, PrecisionFloat32, precision)
}

func TestRegisterProgramCaches(t *testing.T) {
	r := newTestRenderer(t)
	first := compileTestProgram(t, r)
	second := compileTestProgram(t, r)

	assert.Same(t, first, second)
	assert.Len(t, r.Programs(), 1)
	assert.Contains(t, r.TranslatedSource(first.Key()), "software mirror")

	r.ReleaseProgram(first.Key())
	assert.Nil(t, r.Program(first.Key()))
	assert.Empty(t, r.TranslatedSource(first.Key()))
}

func TestRegisterProgramRejectsCompute(t *testing.T) {
	r := newTestRenderer(t)
	s, err := shader.NewConvergenceShader()
	require.NoError(t, err)
	_, err = r.RegisterProgram(s)
	assert.Error(t, err)
}

func TestCreateTargetInvalidSize(t *testing.T) {
	r := newTestRenderer(t)
	_, err := r.CreateTarget(0, 4, PrecisionFloat32)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestForeignTargetRejected(t *testing.T) {
	a := newTestRenderer(t)
	b := newTestRenderer(t)
	target, err := b.CreateTarget(2, 2, PrecisionFloat32)
	require.NoError(t, err)
	assert.ErrorIs(t, a.ClearTarget(target), ErrForeignResource)
}

func TestPresentWithoutSurface(t *testing.T) {
	r := newTestRenderer(t)
	assert.False(t, r.CanPresent())
	assert.ErrorIs(t, r.Resize(10, 10), ErrNoSurface)
}

func TestDrawMissWritesBackground(t *testing.T) {
	r := newTestRenderer(t)
	p := compileTestProgram(t, r)
	hist, err := r.CreateTarget(4, 4, PrecisionFloat32)
	require.NoError(t, err)
	dest, err := r.CreateTarget(4, 4, PrecisionFloat32)
	require.NoError(t, err)

	u := testUniforms(4, 4)
	u.Camera.Forward = [4]float32{0, 0, 1, 0}
	require.NoError(t, r.Draw(DrawRequest{Program: p, Uniforms: u, History: hist, Dest: dest}))

	pix, err := r.ReadPixels(dest)
	require.NoError(t, err)
	for y := range 4 {
		for x := range 4 {
			assert.Equal(t, [4]float32{0.2, 0.4, 0.6, 1}, texel(pix, 4, x, y))
		}
	}
}

func TestDrawHitsSurface(t *testing.T) {
	r := newTestRenderer(t)
	p := compileTestProgram(t, r)
	hist, err := r.CreateTarget(8, 8, PrecisionFloat32)
	require.NoError(t, err)
	dest, err := r.CreateTarget(8, 8, PrecisionFloat32)
	require.NoError(t, err)

	require.NoError(t, r.Draw(DrawRequest{Program: p, Uniforms: testUniforms(8, 8), History: hist, Dest: dest}))
	pix, err := r.ReadPixels(dest)
	require.NoError(t, err)

	centre := texel(pix, 8, 4, 4)
	corner := texel(pix, 8, 0, 0)
	assert.NotEqual(t, [4]float32{0.2, 0.4, 0.6, 1}, centre)
	assert.Equal(t, [4]float32{0.2, 0.4, 0.6, 1}, corner)
}

func TestDrawBlendsWithHistory(t *testing.T) {
	r := newTestRenderer(t)
	p := compileTestProgram(t, r)
	a, err := r.CreateTarget(2, 2, PrecisionFloat32)
	require.NoError(t, err)
	b, err := r.CreateTarget(2, 2, PrecisionFloat32)
	require.NoError(t, err)

	u := testUniforms(2, 2)
	u.Camera.Forward = [4]float32{0, 0, 1, 0}
	u.Background = [4]float32{1, 1, 1, 1}
	require.NoError(t, r.Draw(DrawRequest{Program: p, Uniforms: u, History: a, Dest: b}))

	u.Background = [4]float32{0, 0, 0, 1}
	u.Accum[2] = 0.5
	require.NoError(t, r.Draw(DrawRequest{Program: p, Uniforms: u, History: b, Dest: a}))

	pix, err := r.ReadPixels(a)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, texel(pix, 2, 1, 1)[0], 1e-6)
	assert.InDelta(t, 1, texel(pix, 2, 1, 1)[3], 1e-6)
}

func TestDrawRegionLeavesOutsideUntouched(t *testing.T) {
	r := newTestRenderer(t)
	p := compileTestProgram(t, r)
	hist, err := r.CreateTarget(6, 6, PrecisionFloat32)
	require.NoError(t, err)
	dest, err := r.CreateTarget(6, 6, PrecisionFloat32)
	require.NoError(t, err)

	u := testUniforms(6, 6)
	u.Camera.Forward = [4]float32{0, 0, 1, 0}
	region := common.Rect{X: 0, Y: 0, W: 2, H: 2}
	require.NoError(t, r.Draw(DrawRequest{Program: p, Uniforms: u, History: hist, Dest: dest, Region: region}))

	pix, err := r.ReadPixels(dest)
	require.NoError(t, err)
	assert.Equal(t, float32(1), texel(pix, 6, 1, 1)[3])
	assert.Equal(t, [4]float32{}, texel(pix, 6, 4, 4))
}

func TestDrawRejectsAliasedTargets(t *testing.T) {
	r := newTestRenderer(t)
	p := compileTestProgram(t, r)
	target, err := r.CreateTarget(2, 2, PrecisionFloat32)
	require.NoError(t, err)
	other, err := r.CreateTarget(3, 3, PrecisionFloat32)
	require.NoError(t, err)

	assert.Error(t, r.Draw(DrawRequest{Program: p, Uniforms: testUniforms(2, 2), History: target, Dest: target}))
	assert.ErrorIs(t, r.Draw(DrawRequest{Program: p, Uniforms: testUniforms(2, 2), History: target, Dest: other}), ErrSizeMismatch)
}

func TestHalfPrecisionQuantizes(t *testing.T) {
	r := newTestRenderer(t)
	p := compileTestProgram(t, r)
	hist, err := r.CreateTarget(2, 2, PrecisionFloat16)
	require.NoError(t, err)
	dest, err := r.CreateTarget(2, 2, PrecisionFloat16)
	require.NoError(t, err)

	u := testUniforms(2, 2)
	u.Camera.Forward = [4]float32{0, 0, 1, 0}
	u.Background = [4]float32{0.1, 0.1, 0.1, 1}
	require.NoError(t, r.Draw(DrawRequest{Program: p, Uniforms: u, History: hist, Dest: dest}))

	pix, err := r.ReadPixels(dest)
	require.NoError(t, err)
	want := float16.Fromfloat32(0.1).Float32()
	assert.Equal(t, want, pix[0])
	assert.NotEqual(t, float32(0.1), pix[0])
}

func TestDiff(t *testing.T) {
	r := newTestRenderer(t)
	p := compileTestProgram(t, r)
	a, err := r.CreateTarget(8, 8, PrecisionFloat32)
	require.NoError(t, err)
	b, err := r.CreateTarget(8, 8, PrecisionFloat32)
	require.NoError(t, err)

	d, err := r.Diff(a, b, common.FullFrame)
	require.NoError(t, err)
	assert.Zero(t, d)

	u := testUniforms(8, 8)
	u.Camera.Forward = [4]float32{0, 0, 1, 0}
	region := common.Rect{X: 0, Y: 0, W: 4, H: 4}
	require.NoError(t, r.Draw(DrawRequest{Program: p, Uniforms: u, History: a, Dest: b, Region: region}))

	d, err = r.Diff(a, b, common.FullFrame)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, d, 1e-6)

	d, err = r.Diff(a, b, common.NormRect{Min: [2]float32{0.5, 0.5}, Max: [2]float32{1, 1}})
	require.NoError(t, err)
	assert.Zero(t, d)

	require.NoError(t, r.ClearTarget(b))
	d, err = r.Diff(a, b, common.FullFrame)
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestReadRegion(t *testing.T) {
	r := newTestRenderer(t)
	p := compileTestProgram(t, r)
	hist, err := r.CreateTarget(8, 8, PrecisionFloat32)
	require.NoError(t, err)
	dest, err := r.CreateTarget(8, 8, PrecisionFloat32)
	require.NoError(t, err)
	require.NoError(t, r.Draw(DrawRequest{Program: p, Uniforms: testUniforms(8, 8), History: hist, Dest: dest}))

	full, err := r.ReadPixels(dest)
	require.NoError(t, err)
	region := common.Rect{X: 3, Y: 2, W: 4, H: 3}
	part, err := r.ReadRegion(dest, region)
	require.NoError(t, err)
	require.Len(t, part, region.W*region.H*4)
	for y := range region.H {
		for x := range region.W {
			assert.Equal(t, texel(full, 8, region.X+x, region.Y+y), texel(part, region.W, x, y))
		}
	}

	// clipped to the target
	edge, err := r.ReadRegion(dest, common.Rect{X: 6, Y: 6, W: 4, H: 4})
	require.NoError(t, err)
	assert.Len(t, edge, 2*2*4)
	assert.Equal(t, texel(full, 8, 7, 7), texel(edge, 2, 1, 1))
}

func TestWritePixels(t *testing.T) {
	r := newTestRenderer(t)
	target, err := r.CreateTarget(2, 1, PrecisionFloat16)
	require.NoError(t, err)

	assert.ErrorIs(t, r.WritePixels(target, make([]float32, 4)), ErrSizeMismatch)

	pix := []float32{0.1, 0.2, 0.3, 1, 0.5, 0.25, 0, 1}
	require.NoError(t, r.WritePixels(target, pix))
	got, err := r.ReadPixels(target)
	require.NoError(t, err)
	assert.Equal(t, float16.Fromfloat32(0.1).Float32(), got[0])
	assert.Equal(t, float32(0.5), got[4])
	assert.Equal(t, float32(1), got[7])
}

func TestClipRegion(t *testing.T) {
	assert.Equal(t, common.Rect{W: 4, H: 3}, clipRegion(common.Rect{}, 4, 3))
	assert.Equal(t, common.Rect{X: 2, Y: 1, W: 2, H: 2}, clipRegion(common.Rect{X: 2, Y: 1, W: 10, H: 10}, 4, 3))
	assert.True(t, clipRegion(common.Rect{X: 5, Y: 0, W: 2, H: 2}, 4, 3).Empty())
}
