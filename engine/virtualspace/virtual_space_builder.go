package virtualspace

import "go.uber.org/zap"

// SpaceBuilderOption is a functional option for configuring a Space.
type SpaceBuilderOption func(*virtualSpace)

// WithSafeMagnitude sets the local magnitude above which NeedsAbsorb reports true.
// Values <= 0 keep DefaultSafeMagnitude.
//
// Parameters:
//   - m: the magnitude
//
// Returns:
//   - SpaceBuilderOption: option function to apply
func WithSafeMagnitude(m float32) SpaceBuilderOption {
	return func(s *virtualSpace) {
		if m > 0 {
			s.safeMagnitude = m
		}
	}
}

// WithOffset sets the initial offset.
//
// Parameters:
//   - x, y, z: the offset
//
// Returns:
//   - SpaceBuilderOption: option function to apply
func WithOffset(x, y, z float64) SpaceBuilderOption {
	return func(s *virtualSpace) {
		s.offset = SplitVec3([3]float64{x, y, z})
	}
}

// WithLogger sets the logger used for precision warnings.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - SpaceBuilderOption: option function to apply
func WithLogger(l *zap.Logger) SpaceBuilderOption {
	return func(s *virtualSpace) {
		if l != nil {
			s.logger = l
		}
	}
}
