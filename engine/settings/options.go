package settings

import (
	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrInvalid is returned when a settings value cannot be resolved.
var ErrInvalid = pkgerrors.New("settings: invalid value")

// Validate reports the first value that cannot be resolved.
func (s Settings) Validate() error {
	if _, ok := renderer.ParseBackendType(s.Backend); !ok {
		return pkgerrors.Wrapf(ErrInvalid, "backend %q", s.Backend)
	}
	if _, ok := renderer.ParsePrecision(s.Precision); !ok {
		return pkgerrors.Wrapf(ErrInvalid, "precision %q", s.Precision)
	}
	if s.Width <= 0 || s.Height <= 0 {
		return pkgerrors.Wrapf(ErrInvalid, "size %dx%d", s.Width, s.Height)
	}
	if s.Exposure <= 0 {
		return pkgerrors.Wrapf(ErrInvalid, "exposure %g", s.Exposure)
	}
	return nil
}

// EngineOptions converts the settings into engine options. The sample cap is applied through the command queue
// by SampleCapCommand because it lives in the shader configuration.
//
// Returns:
//   - []engine.EngineBuilderOption: the options
//   - error: ErrInvalid for values Validate rejects
func (s Settings) EngineOptions() ([]engine.EngineBuilderOption, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	backend, _ := renderer.ParseBackendType(s.Backend)
	precision, _ := renderer.ParsePrecision(s.Precision)
	mode := renderer.PresentModeUncapped
	if s.VSync {
		mode = renderer.PresentModeVSync
	}
	return []engine.EngineBuilderOption{
		engine.WithBackend(backend),
		engine.WithSize(s.Width, s.Height),
		engine.WithPrecision(precision),
		engine.WithWorkers(s.Workers),
		engine.WithPresentMode(mode),
		engine.WithRenderFrameLimit(s.FrameLimit),
		engine.WithExposure(s.Exposure),
		engine.WithProfiling(s.Profile),
	}, nil
}

// SampleCapCommand returns the command applying the sample cap, nil when accumulation is unbounded.
func (s Settings) SampleCapCommand() engine.Command {
	if s.SampleCap == 0 {
		return nil
	}
	return engine.SetSampleCap{N: s.SampleCap}
}

// Logger builds the process logger described by the log section.
//
// Parameters:
//   - component: name attached to every entry
//
// Returns:
//   - *zap.Logger: the logger
//   - error: error if zap rejects the configuration
func (s Settings) Logger(component string) (*zap.Logger, error) {
	return common.NewLogger(common.LoggerConfig{
		Level:       s.Log.Level,
		Development: s.Log.Development,
		Component:   component,
	})
}
