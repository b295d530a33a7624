package main

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine"
	"github.com/Carmen-Shannon/oxy-fractal/engine/formula"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/settings"
	"github.com/Carmen-Shannon/oxy-fractal/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeWindow is a headless window.Window.
type fakeWindow struct {
	input *window.Input
	title string
}

func (f *fakeWindow) SetUpdateCallback(func())                                 {}
func (f *fakeWindow) SetResizeCallback(func(int, int))                         {}
func (f *fakeWindow) SetScrollCallback(func(float32))                          {}
func (f *fakeWindow) SetKeyCallback(func(uint32, bool))                        {}
func (f *fakeWindow) SetMouseButtonCallback(func(int, bool, float32, float32)) {}
func (f *fakeWindow) SetMouseMoveCallback(func(float32, float32))              {}
func (f *fakeWindow) SetTitle(title string)                                    { f.title = title }
func (f *fakeWindow) Input() *window.Input                                     { return f.input }
func (f *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor               { return nil }
func (f *fakeWindow) IsRunning() bool                                          { return false }
func (f *fakeWindow) Close() error                                             { return nil }
func (f *fakeWindow) ProcessMessages()                                         {}
func (f *fakeWindow) Width() int                                               { return 16 }
func (f *fakeWindow) Height() int                                              { return 12 }

func newTestViewer(t *testing.T) (*viewer, engine.Engine, *fakeWindow) {
	t.Helper()
	eng, err := engine.NewEngine(
		engine.WithBackend(renderer.BackendTypeSoftware),
		engine.WithSize(16, 12),
		engine.WithWorkers(2),
		engine.WithLogger(zap.NewNop()),
	)
	require.NoError(t, err)
	t.Cleanup(eng.Release)
	win := &fakeWindow{input: window.NewInput()}
	s := settings.Default()
	s.Bucket.TileSize = 8
	return newViewer(eng, win, s, t.TempDir(), zap.NewNop()), eng, win
}

func TestSurfaceScale(t *testing.T) {
	assert.Equal(t, float32(1e-5), surfaceScale(0))
	assert.Equal(t, float32(0.5), surfaceScale(0.5))
	assert.Equal(t, float32(10), surfaceScale(1000))
}

func TestExportPath(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 8e6, time.UTC)
	assert.Equal(t, "out/export-20260304-050607.008.png", exportPath("out", "export", ".png", now))
}

func TestKeysSubmitCommands(t *testing.T) {
	v, eng, _ := newTestViewer(t)

	v.onKey(common.KeyH, true)
	v.onKey(common.Key1+1, true)
	v.onKey(common.KeyR, false)
	eng.Tick(1.0 / 60)

	assert.True(t, eng.Stats().Holding)
	assert.Equal(t, formula.KindMandelbox, eng.Manager().Formula())

	v.onKey(common.KeyH, true)
	eng.Tick(1.0 / 60)
	assert.False(t, eng.Stats().Holding)
}

func TestHeldKeysMoveCamera(t *testing.T) {
	v, eng, win := newTestViewer(t)

	v.onTick(1.0 / 60)
	assert.Zero(t, eng.Stats().QueuedCommands)

	win.input.SetKey(common.KeyW, true)
	v.onTick(1.0 / 60)
	assert.Equal(t, 1, eng.Stats().QueuedCommands)

	win.input.SetButton(common.MouseButtonLeft, true, 4, 4)
	win.input.Move(8, 4)
	win.input.Scroll(1)
	v.onTick(1.0 / 60)
	assert.Equal(t, 4, eng.Stats().QueuedCommands)
}

func TestTitleReportsState(t *testing.T) {
	v, _, _ := newTestViewer(t)
	v.onEvent(engine.IsCompiling{Compiling: true, Message: "compiling shader"})
	assert.Contains(t, v.title(60), "compiling shader")
	assert.Contains(t, v.title(60), "mandelbulb")

	v.onEvent(engine.IsCompiling{})
	v.onEvent(engine.BucketStatus{Active: true})
	v.onEvent(engine.BucketProgress{Percent: 50})
	assert.Contains(t, v.title(60), "bucket 50%")
}
