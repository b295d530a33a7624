package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-fractal/engine"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseOverlaysDefaults(t *testing.T) {
	s, err := Parse([]byte(`
backend: software
width: 640
log:
  level: debug
bucket:
  tileSize: 64
  upscale: 2
`))
	require.NoError(t, err)
	assert.Equal(t, "software", s.Backend)
	assert.Equal(t, 640, s.Width)
	assert.Equal(t, 720, s.Height)
	assert.Equal(t, "debug", s.Log.Level)
	assert.Equal(t, 64, s.Bucket.TileSize)
	assert.Equal(t, 2, s.Bucket.Upscale)
	assert.Equal(t, uint(256), s.Bucket.MaxSamplesPerTile)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("backnd: software\n"))
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoad(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)

	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("precision: half\nsampleCap: 64\n"), 0o644))
	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "half", s.Precision)
	assert.Equal(t, uint(64), s.SampleCap)

	data, err := s.Marshal()
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	s := Default()
	s.Backend = "vulkan"
	assert.ErrorIs(t, s.Validate(), ErrInvalid)

	s = Default()
	s.Precision = "double"
	_, err := s.EngineOptions()
	assert.ErrorIs(t, err, ErrInvalid)

	s = Default()
	s.Width = 0
	assert.ErrorIs(t, s.Validate(), ErrInvalid)

	assert.NoError(t, Default().Validate())
}

func TestEngineOptionsBuildEngine(t *testing.T) {
	s := Default()
	s.Backend = "software"
	s.Width, s.Height = 8, 6
	s.Precision = "half"
	s.SampleCap = 5

	opts, err := s.EngineOptions()
	require.NoError(t, err)
	e, err := engine.NewEngine(opts...)
	require.NoError(t, err)
	t.Cleanup(e.Release)

	require.NoError(t, e.Submit(s.SampleCapCommand()))
	e.Tick(1.0 / 60)
	st := e.Stats()
	assert.Equal(t, 8, st.Width)
	assert.Equal(t, 6, st.Height)
	assert.Equal(t, uint(5), st.SampleCap)
	assert.Equal(t, renderer.PrecisionFloat16, st.Precision)
	assert.Equal(t, "software", st.RendererName)

	assert.Nil(t, Default().SampleCapCommand())
}

func TestLoggerFromSettings(t *testing.T) {
	s := Default()
	s.Log.Level = "warn"
	l, err := s.Logger("test")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}
