package shaderconfig

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCompiler(t *testing.T, options ...CompilerBuilderOption) (Compiler, renderer.Renderer) {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithWorkers(1), renderer.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(r.Release)
	return NewCompiler(r, append([]CompilerBuilderOption{WithCompilerLogger(zap.NewNop())}, options...)...), r
}

func lightFeatures(k formula.Kind, mode shader.RenderMode) shader.Features {
	f := shader.DefaultFeatures()
	f.Formula = k
	f.Mode = mode
	f.MaxSteps = 16
	return f
}

func runCompile(t *testing.T, c Compiler, key ProgramKey, f shader.Features) StepResult {
	t.Helper()
	c.Request(key, f)
	for range 8 {
		res := c.Step()
		if res.Finished {
			return res
		}
	}
	t.Fatalf("compile of %s did not finish", f.Key())
	return StepResult{}
}

func TestCompilerStateMachine(t *testing.T) {
	c, _ := newTestCompiler(t)
	assert.Equal(t, StateIdle, c.Step().State)

	key := ProgramKey{Hash: "a"}
	c.Request(key, lightFeatures(formula.KindMandelbulb, shader.RenderModeDirect))
	assert.Equal(t, StateAwaitingRenderer, c.State())
	assert.True(t, c.Busy())

	res := c.Step()
	assert.Equal(t, StateCompilingSource, res.State)
	assert.Contains(t, res.Busy, "mandelbulb")
	assert.Nil(t, c.Active())

	res = c.Step()
	assert.Equal(t, StateLinkingProgram, res.State)
	assert.Contains(t, res.Source, "fn fs_main")

	res = c.Step()
	assert.Equal(t, StateDone, res.State)
	assert.Nil(t, res.Installed)

	res = c.Step()
	assert.Equal(t, StateIdle, res.State)
	assert.True(t, res.Finished)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Installed)
	assert.GreaterOrEqual(t, res.Seconds, 0.0)
	assert.Same(t, res.Installed, c.Active())
	assert.Equal(t, key, c.ActiveKey())
	assert.True(t, c.Cached(key))
	assert.Contains(t, c.Source(), "fn fs_main")
	assert.False(t, c.Busy())
}

func TestCompilerCancel(t *testing.T) {
	for _, steps := range []int{0, 1, 2, 3} {
		c, _ := newTestCompiler(t)
		key := ProgramKey{Hash: "a"}
		c.Request(key, lightFeatures(formula.KindMandelbulb, shader.RenderModeDirect))
		for range steps {
			c.Step()
		}
		c.Cancel()
		assert.Equal(t, StateIdle, c.State(), "cancel after %d steps", steps)
		assert.False(t, c.Busy())
		assert.Nil(t, c.Active())
		assert.False(t, c.Cached(key))
		assert.Equal(t, StateIdle, c.Step().State)
	}
}

func TestCompilerRequestRestarts(t *testing.T) {
	c, _ := newTestCompiler(t)
	c.Request(ProgramKey{Hash: "a"}, lightFeatures(formula.KindMandelbulb, shader.RenderModeDirect))
	c.Step()
	c.Step()
	c.Request(ProgramKey{Hash: "b"}, lightFeatures(formula.KindMandelbox, shader.RenderModeDirect))
	assert.Equal(t, StateAwaitingRenderer, c.State())

	res := runCompileSteps(c)
	require.NoError(t, res.Err)
	assert.Equal(t, ProgramKey{Hash: "b"}, c.ActiveKey())
	assert.Equal(t, formula.KindMandelbox, c.Active().Shader().Features().Formula)
}

func runCompileSteps(c Compiler) StepResult {
	for range 8 {
		if res := c.Step(); res.Finished {
			return res
		}
	}
	return StepResult{}
}

func TestCompilerModeSwapUsesCache(t *testing.T) {
	c, _ := newTestCompiler(t)
	direct := ProgramKey{Hash: "a", Mode: shader.RenderModeDirect}
	path := ProgramKey{Hash: "a", Mode: shader.RenderModePathTraced}

	first := runCompile(t, c, direct, lightFeatures(formula.KindMandelbulb, shader.RenderModeDirect))
	second := runCompile(t, c, path, lightFeatures(formula.KindMandelbulb, shader.RenderModePathTraced))
	require.NotSame(t, first.Installed, second.Installed)

	assert.True(t, c.Activate(direct))
	assert.Same(t, first.Installed, c.Active())
	assert.Equal(t, StateIdle, c.State())
	assert.False(t, c.Activate(ProgramKey{Hash: "missing"}))
	assert.Same(t, first.Installed, c.Active())
}

func TestCompilerEvictsOldest(t *testing.T) {
	c, r := newTestCompiler(t, WithCacheSize(2))
	kinds := []formula.Kind{formula.KindMandelbulb, formula.KindMandelbox, formula.KindMengerSponge}
	var keys []ProgramKey
	for _, k := range kinds {
		key := ProgramKey{Hash: k.String()}
		keys = append(keys, key)
		require.NoError(t, runCompile(t, c, key, lightFeatures(k, shader.RenderModeDirect)).Err)
	}

	assert.False(t, c.Cached(keys[0]))
	assert.True(t, c.Cached(keys[1]))
	assert.True(t, c.Cached(keys[2]))
	assert.Len(t, r.Programs(), 2)
}
