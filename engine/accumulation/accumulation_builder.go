package accumulation

import (
	"github.com/Carmen-Shannon/oxy-fractal/engine/renderer"
	"go.uber.org/zap"
)

// PipelineBuilderOption is a functional option applied to a pipeline during construction via NewPipeline.
type PipelineBuilderOption func(*pipeline)

// WithPrecision sets the precision of targets created by Resize.
//
// Parameters:
//   - precision: the target precision
//
// Returns:
//   - PipelineBuilderOption: a function that applies the precision option to a pipeline
func WithPrecision(precision renderer.Precision) PipelineBuilderOption {
	return func(p *pipeline) {
		p.precision = precision
	}
}

// WithSampleCap sets the initial sample cap, 0 meaning unbounded.
//
// Parameters:
//   - n: the sample cap
//
// Returns:
//   - PipelineBuilderOption: a function that applies the sample cap option to a pipeline
func WithSampleCap(n uint) PipelineBuilderOption {
	return func(p *pipeline) {
		p.state.sampleCap = n
	}
}

// WithAccumulation sets whether accumulation starts enabled.
func WithAccumulation(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.state.enabled = enabled
	}
}

// WithLogger sets the logger of the pipeline.
func WithLogger(l *zap.Logger) PipelineBuilderOption {
	return func(p *pipeline) {
		if l != nil {
			p.logger = l.Named("accumulation")
		}
	}
}
