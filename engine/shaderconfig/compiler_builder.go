package shaderconfig

import "go.uber.org/zap"

// CompilerBuilderOption is a functional option applied to a compiler during construction via NewCompiler.
type CompilerBuilderOption func(*compiler)

// WithCacheSize bounds the number of cached programs. Values below 2 are raised to 2 so a mode toggle never
// evicts the other mode.
//
// Parameters:
//   - n: the number of programs to keep
//
// Returns:
//   - CompilerBuilderOption: a function that applies the cache size option to a compiler
func WithCacheSize(n int) CompilerBuilderOption {
	return func(c *compiler) {
		c.cacheSize = max(n, 2)
	}
}

// WithCompilerLogger sets the logger of the compiler.
func WithCompilerLogger(l *zap.Logger) CompilerBuilderOption {
	return func(c *compiler) {
		if l != nil {
			c.logger = l.Named("compiler")
		}
	}
}
