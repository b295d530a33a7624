package formula

import (
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKindFallsBackToMandelbulb(t *testing.T) {
	k, ok := ParseKind("MandelBox")
	assert.True(t, ok)
	assert.Equal(t, KindMandelbox, k)

	k, ok = ParseKind("no-such-fractal")
	assert.False(t, ok)
	assert.Equal(t, KindMandelbulb, k)

	assert.Equal(t, KindMandelbulb, Lookup(Kind(99)).Kind())
	assert.Equal(t, "mandelbulb", Kind(99).String())
}

func TestEveryKindHasEstimator(t *testing.T) {
	for _, k := range Kinds() {
		e := Lookup(k)
		assert.Equal(t, k, e.Kind(), k.String())
		assert.True(t, strings.HasPrefix(e.FunctionName(), "de_"))
	}
}

func TestFarFieldDistanceIsPositiveAndGrows(t *testing.T) {
	for _, k := range Kinds() {
		if k == KindKleinian {
			// the folded slab repeats through space and has no far field
			continue
		}
		t.Run(k.String(), func(t *testing.T) {
			e := Lookup(k)
			params := DefaultParams(k)
			near, _ := e.Estimate(mgl32.Vec3{6, 0.5, 0.25}, params)
			far, _ := e.Estimate(mgl32.Vec3{24, 2, 1}, params)
			assert.Greater(t, near, float32(0))
			assert.Greater(t, far, near)
		})
	}
}

func TestMandelbulbEscapeBound(t *testing.T) {
	params := DefaultParams(KindMandelbulb)
	p := mgl32.Vec3{10, 0, 0}

	d, dr := Lookup(KindMandelbulb).Estimate(p, params)

	// r exceeds the bailout immediately, so dr stays 1 and d is 0.5 ln(10) 10
	assert.InDelta(t, 1, dr, 1e-6)
	assert.InDelta(t, 11.5129, d, 1e-3)
}

func TestInteriorPointsAreNotFarAway(t *testing.T) {
	params := DefaultParams(KindMandelbulb)
	d, dr := Lookup(KindMandelbulb).Estimate(mgl32.Vec3{0, 0, 0}, params)
	assert.LessOrEqual(t, d, float32(0.01))
	assert.GreaterOrEqual(t, dr, float32(MinDerivative))

	d, _ = Lookup(KindMengerSponge).Estimate(mgl32.Vec3{0.99, 0.99, 0.99}, DefaultParams(KindMengerSponge))
	assert.Less(t, d, float32(0.05))
}

func TestDerivativeIsFloorClamped(t *testing.T) {
	for _, k := range Kinds() {
		e := Lookup(k)
		params := DefaultParams(k)
		for _, p := range []mgl32.Vec3{{0, 0, 0}, {0.3, -0.2, 0.1}, {5, 5, 5}} {
			_, dr := e.Estimate(p, params)
			assert.GreaterOrEqual(t, dr, float32(MinDerivative), "%s at %v", k, p)
		}
	}
}

func TestIterationsAreHardCapped(t *testing.T) {
	params, err := DecodeParams(KindMandelbulb, map[string]any{"iterations": 500})
	require.NoError(t, err)
	assert.Equal(t, MaxIterations, params.Iterations)
	assert.Equal(t, float32(MaxIterations), params.GPU().B[1])
}

func TestDecodeParams(t *testing.T) {
	params, err := DecodeParams(KindQuaternionJulia, map[string]any{
		"power": 3.0,
		"julia": []any{0.1, 0.2, 0.3, 0.4},
	})
	require.NoError(t, err)
	assert.Equal(t, float32(3), params.Power)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 0.4}, params.Julia)
	assert.Equal(t, DefaultParams(KindQuaternionJulia).Bailout, params.Bailout)

	params, err = DecodeParams(KindMandelbulb, map[string]any{"colour": 1})
	assert.Error(t, err)
	assert.Equal(t, DefaultParams(KindMandelbulb), params)

	round, err := DecodeParams(KindMandelbox, DefaultParams(KindMandelbox).ToMap())
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(KindMandelbox), round)
}

func TestLibraryEmitsSelectedEstimator(t *testing.T) {
	src := Library(KindMengerSponge)
	assert.Contains(t, src, "struct FormulaParams")
	assert.Contains(t, src, "const DE_MAX_ITERATIONS: i32 = 20;")
	assert.Contains(t, src, "fn de_menger(")
	assert.Contains(t, src, "return de_menger(p, fp);")
	assert.NotContains(t, src, "fn de_mandelbulb(")

	assert.Contains(t, Library(Kind(42)), "return de_mandelbulb(p, fp);")
}

func TestMarchHitsBulbAndMissesSky(t *testing.T) {
	e := Lookup(KindMandelbulb)
	params := DefaultParams(KindMandelbulb)

	hit := March(e, params, Ray{Origin: mgl32.Vec3{0, 0, 3}, Direction: mgl32.Vec3{0, 0, -1}}, DefaultMarchSettings)
	require.True(t, hit.Hit)
	assert.Greater(t, hit.T, float32(1.5))
	assert.Less(t, hit.T, float32(3))

	miss := March(e, params, Ray{Origin: mgl32.Vec3{0, 0, 3}, Direction: mgl32.Vec3{0, 0, 1}}, DefaultMarchSettings)
	assert.False(t, miss.Hit)

	n := Normal(e, params, hit.Position, 1e-3)
	assert.InDelta(t, 1, n.Len(), 1e-4)
	assert.Greater(t, n[2], float32(0))
}

func TestParamsGPURoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		p := DefaultParams(k)
		assert.Equal(t, p.Normalized(k), ParamsFromGPU(p.GPU()).Normalized(k), k.String())
	}
}
