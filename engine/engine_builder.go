package engine

import (
	"time"

	"github.com/Carmen-Shannon/oxy-fractal/engine/preset"
	"github.com/Carmen-Shannon/oxy-fractal/engine/profiler"
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"github.com/Carmen-Shannon/oxy-fractal/engine/shaderconfig"
	"github.com/Carmen-Shannon/oxy-fractal/engine/window"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithProfiling enables or disables the periodic frame statistics log.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler sets the profiler receiving render metrics.
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
	}
}

// WithWindow attaches a window. The engine presents to it and follows its size.
//
// Parameters:
//   - w: a pre-configured Window instance
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWindow(w window.Window) EngineBuilderOption {
	return func(e *engine) {
		e.window = w
	}
}

// WithRenderer injects a renderer. The engine does not release injected renderers.
//
// Parameters:
//   - r: the renderer
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderer(r renderer.Renderer) EngineBuilderOption {
	return func(e *engine) {
		e.renderer = r
	}
}

// WithBackend selects the backend of the renderer the engine creates.
func WithBackend(t renderer.RendererBackendType) EngineBuilderOption {
	return func(e *engine) {
		e.backendType = t
	}
}

// WithWorkers sets the worker count of the software backend.
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.workers = n
	}
}

// WithPresentMode sets the surface present mode.
func WithPresentMode(mode renderer.PresentMode) EngineBuilderOption {
	return func(e *engine) {
		e.presentMode = &mode
	}
}

// WithSize sets the canvas size of a headless engine. An attached window overrides it.
//
// Parameters:
//   - width, height: canvas size in pixels
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSize(width, height int) EngineBuilderOption {
	return func(e *engine) {
		if width > 0 && height > 0 {
			e.width, e.height = width, height
		}
	}
}

// WithPrecision sets the render target precision.
func WithPrecision(p renderer.Precision) EngineBuilderOption {
	return func(e *engine) {
		e.precision = p
	}
}

// WithInitialConfig applies a partial shader configuration before the first compile.
func WithInitialConfig(cfg shaderconfig.Config) EngineBuilderOption {
	return func(e *engine) {
		e.initialConfig = cfg
	}
}

// WithPreset loads a preset before the first compile.
func WithPreset(p *preset.Preset) EngineBuilderOption {
	return func(e *engine) {
		e.initialPreset = p
	}
}

// WithExposure sets the display exposure.
func WithExposure(exposure float32) EngineBuilderOption {
	return func(e *engine) {
		if exposure > 0 {
			e.exposure = exposure
		}
	}
}

// WithCommandBuffer sets the capacity of the command queue.
func WithCommandBuffer(n int) EngineBuilderOption {
	return func(e *engine) {
		if n > 0 {
			e.commandBuffer = n
		}
	}
}

// WithEventListener registers the event listener.
func WithEventListener(listener func(Event)) EngineBuilderOption {
	return func(e *engine) {
		e.listener = listener
	}
}

// WithRenderFrameLimit sets an optional render frame rate cap in frames per second.
// Pass 0 to uncap the render loop (default).
//
// Parameters:
//   - fps: maximum render frames per second (0 = uncapped)
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithRenderFrameLimit(fps float64) EngineBuilderOption {
	return func(e *engine) {
		if fps <= 0 {
			e.renderFrameLimit = 0
			return
		}
		e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
	}
}

// WithLogger sets the logger of the engine and every component it creates.
func WithLogger(l *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		if l != nil {
			e.logger = l.Named("engine")
		}
	}
}

// WithTickCallback sets the function called at the start of every tick.
//
// Parameters:
//   - callback: function receiving the frame delta in seconds
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithTickCallback(callback func(dt float64)) EngineBuilderOption {
	return func(e *engine) {
		e.tickCallback = callback
	}
}
