package shaderconfig

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(options ...ManagerBuilderOption) Manager {
	return NewManager(append([]ManagerBuilderOption{WithLogger(zap.NewNop())}, options...)...)
}

func TestManagerDefaults(t *testing.T) {
	m := newTestManager()
	assert.Equal(t, formula.KindMandelbulb, m.Formula())
	assert.Equal(t, shader.RenderModeDirect, m.Mode())
	assert.Equal(t, shader.DefaultFeatures(), m.Features())
	assert.Equal(t, formula.DefaultParams(formula.KindMandelbulb), m.Params())
	assert.True(t, m.Accumulation())
	assert.Zero(t, m.SampleCap())
}

func TestApplyClassification(t *testing.T) {
	tests := []struct {
		name    string
		partial Config
		rebuild bool
		uniform bool
		mode    bool
		changed []string
	}{
		{
			name:    "runtime uniform",
			partial: Config{FeatureFormula: {"power": 9}},
			uniform: true,
			changed: []string{"formula.power"},
		},
		{
			name:    "within tolerance",
			partial: Config{FeatureFormula: {"power": 8.0000001}},
		},
		{
			name:    "compile flag",
			partial: Config{FeatureLighting: {"shadows": false}},
			rebuild: true,
			changed: []string{"lighting.shadows"},
		},
		{
			name:    "step cap",
			partial: Config{FeatureQuality: {ParamMaxSteps: 256}},
			rebuild: true,
			changed: []string{"quality.maxSteps"},
		},
		{
			name:    "iteration cap",
			partial: Config{FeatureFormula: {ParamIterations: 12}},
			rebuild: true,
			changed: []string{"formula.iterations"},
		},
		{
			name:    "rebuild suppresses uniform flag",
			partial: Config{FeatureLighting: {"fog": true, "fogDensity": 0.2}},
			rebuild: true,
			changed: []string{"lighting.fog", "lighting.fogDensity"},
		},
		{
			name:    "mode toggle",
			partial: Config{FeatureRender: {ParamRenderMode: "pathtraced"}},
			mode:    true,
			changed: []string{"render.mode"},
		},
		{
			name:    "non uniform runtime",
			partial: Config{FeatureRender: {ParamAccumulation: false}},
			changed: []string{"render.accumulation"},
		},
		{
			name:    "unknown feature",
			partial: Config{"volumetrics": {"density": 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager()
			d := m.Apply(tt.partial)
			assert.Equal(t, tt.rebuild, d.RebuildNeeded, "rebuild")
			assert.Equal(t, tt.uniform, d.UniformUpdate, "uniform")
			assert.Equal(t, tt.mode, d.ModeChanged, "mode")
			if len(tt.changed) == 0 {
				assert.True(t, d.Empty())
			} else {
				assert.Equal(t, tt.changed, d.Changed)
			}
		})
	}
}

func TestApplyIgnoresInvalidInput(t *testing.T) {
	m := newTestManager()
	d := m.Apply(Config{
		FeatureFormula: {"power": "not a number", "colour": 1},
		"unknown":      {"x": 1},
	})
	assert.True(t, d.Empty())
	assert.Equal(t, []string{"formula.colour", "formula.power", "unknown.x"}, d.Ignored)
	assert.Equal(t, float32(8), m.Params().Power)
}

func TestApplyWeakDecoding(t *testing.T) {
	m := newTestManager()
	d := m.Apply(Config{FeatureFormula: {"power": "9.5", "julia": []any{1, 2, 3, 4.5}}})
	assert.ElementsMatch(t, []string{"formula.julia", "formula.power"}, d.Changed)
	assert.Equal(t, float32(9.5), m.Params().Power)
	assert.Equal(t, [4]float32{1, 2, 3, 4.5}, m.Params().Julia)
}

func TestApplyFormulaSwitchLoadsDefaults(t *testing.T) {
	m := newTestManager()
	d := m.Apply(Config{FeatureFormula: {ParamFormulaType: "mandelbox", "minRadius": 0.25}})
	assert.True(t, d.RebuildNeeded)
	assert.True(t, d.Has("formula.type"))
	assert.Equal(t, formula.KindMandelbox, m.Formula())

	p := m.Params()
	assert.Equal(t, float32(-1.8), p.Scale)
	assert.Equal(t, float32(0.25), p.MinRadius)
	assert.Equal(t, 12, p.Iterations)
	assert.Equal(t, formula.KindMandelbox, m.Features().Formula)
}

func TestApplyUnknownFormulaFallsBack(t *testing.T) {
	m := newTestManager(WithInitialConfig(Config{FeatureFormula: {ParamFormulaType: "menger"}}))
	require.Equal(t, formula.KindMengerSponge, m.Formula())

	d := m.Apply(Config{FeatureFormula: {ParamFormulaType: "hyperbulb"}})
	assert.True(t, d.RebuildNeeded)
	assert.Equal(t, formula.KindMandelbulb, m.Formula())
}

func TestHash(t *testing.T) {
	m := newTestManager()
	base := m.Hash()
	assert.Equal(t, base, newTestManager().Hash())

	m.Apply(Config{FeatureFormula: {"power": 3}})
	assert.Equal(t, base, m.Hash(), "runtime values do not change the hash")

	m.Apply(Config{FeatureRender: {ParamRenderMode: "pathtraced"}})
	assert.Equal(t, base, m.Hash(), "the mode is a separate key component")
	assert.Equal(t, ProgramKey{Hash: base, Mode: shader.RenderModePathTraced}, m.ProgramKey())

	m.Apply(Config{FeatureLighting: {"fog": true}})
	assert.NotEqual(t, base, m.Hash())
}

func TestSetGradient(t *testing.T) {
	m := newTestManager()
	assert.ErrorIs(t, m.SetGradient(shader.GradientLayers, nil), ErrInvalidLayer)

	require.NoError(t, m.SetGradient(1, []common.GradientStop{
		{Position: 0.9, Color: [3]float32{1, 0, 0}},
		{Position: -1, Color: [3]float32{0, 1, 0}},
		{Position: 0.5, Color: [3]float32{0, 0, 1}},
	}))
	g := m.Gradient(1)
	require.Len(t, g, 3)
	assert.Equal(t, float32(0), g[0].Position)
	assert.Equal(t, float32(0.5), g[1].Position)
	assert.Equal(t, float32(0.9), g[2].Position)

	many := make([]common.GradientStop, common.MaxGradientStops+3)
	require.NoError(t, m.SetGradient(0, many))
	assert.Len(t, m.Gradient(0), common.MaxGradientStops)
}

func TestFillUniforms(t *testing.T) {
	m := newTestManager()
	m.Apply(Config{
		FeatureFormula:  {"power": 6},
		FeatureLighting: {"direction": []float32{0, 2, 0}, "intensity": 2},
		FeatureColoring: {"background": []float32{0.1, 0.2, 0.3}, "exposure": 1.5},
	})
	require.NoError(t, m.SetGradient(0, []common.GradientStop{
		{Position: 0, Color: [3]float32{1, 0, 0}},
		{Position: 1, Color: [3]float32{0, 0, 1}},
	}))

	u := shader.FrameUniforms{Resolution: [4]float32{10, 10, 0, 0}}
	m.FillUniforms(&u)

	assert.Equal(t, [4]float32{10, 10, 0, 0}, u.Resolution)
	assert.Equal(t, float32(6), u.Formula.A[0])
	assert.Equal(t, [4]float32{0, 1, 0, 2}, u.Light)
	assert.Equal(t, [4]float32{0.1, 0.2, 0.3, 1.5}, u.Background)
	assert.Equal(t, [4]float32{1, 0, 0, 0}, u.Gradient[0])
	assert.Equal(t, [4]float32{0, 0, 1, 1}, u.Gradient[1])
	assert.Equal(t, float32(2), u.GradientInfo[0])
	assert.Equal(t, float32(0), u.GradientInfo[1])
	assert.Equal(t, float32(1e-4), u.Quality[0])
}
