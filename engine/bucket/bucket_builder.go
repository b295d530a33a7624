package bucket

import "go.uber.org/zap"

// RendererBuilderOption is a functional option applied to a bucket renderer during construction via NewRenderer.
type RendererBuilderOption func(*bucketRenderer)

// WithLogger sets the logger of the bucket renderer.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a bucket renderer
func WithLogger(l *zap.Logger) RendererBuilderOption {
	return func(b *bucketRenderer) {
		if l != nil {
			b.logger = l.Named("bucket")
		}
	}
}
