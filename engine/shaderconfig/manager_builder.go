package shaderconfig

import "go.uber.org/zap"

// ManagerBuilderOption is a functional option applied to a manager during construction via NewManager.
type ManagerBuilderOption func(*manager)

// WithRegistry replaces the default feature registry.
//
// Parameters:
//   - r: the registry
//
// Returns:
//   - ManagerBuilderOption: a function that applies the registry option to a manager
func WithRegistry(r *Registry) ManagerBuilderOption {
	return func(m *manager) {
		m.registry = r
	}
}

// WithInitialConfig applies c on top of the registry defaults at construction.
//
// Parameters:
//   - c: a partial configuration
//
// Returns:
//   - ManagerBuilderOption: a function that applies the initial config option to a manager
func WithInitialConfig(c Config) ManagerBuilderOption {
	return func(m *manager) {
		m.initial = c
	}
}

// WithLogger sets the logger of the manager.
func WithLogger(l *zap.Logger) ManagerBuilderOption {
	return func(m *manager) {
		if l != nil {
			m.logger = l.Named("shaderconfig")
		}
	}
}
