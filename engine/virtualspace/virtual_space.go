// Package virtualspace keeps the camera in an extended precision coordinate system.
//
// The scene offset is stored as double-single values. The camera itself only ever holds a small float32 position
// relative to that offset; once it drifts past the safe magnitude the navigation controller absorbs it into the
// offset, which brings the local position back to zero without moving the camera in world space.
package virtualspace

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// DefaultSafeMagnitude is the local position magnitude after which float32 camera math starts to lose precision
// visibly and the controller should absorb.
const DefaultSafeMagnitude float32 = 4096

type virtualSpace struct {
	mu *sync.Mutex

	offset        Vec3
	safeMagnitude float32
	revision      uint64

	// warned is set while the camera is outside the safe magnitude so the warning is logged once per excursion.
	warned bool

	logger *zap.Logger
}

// Space is the extended precision scene offset.
type Space interface {
	// Offset returns the scene offset in double precision.
	//
	// Returns:
	//   - [3]float64: the offset
	Offset() [3]float64

	// OffsetDS returns the scene offset as stored, in double-single form.
	//
	// Returns:
	//   - Vec3: the offset
	OffsetDS() Vec3

	// Move shifts the offset by a double precision delta.
	//
	// Parameters:
	//   - dx, dy, dz: the delta
	Move(dx, dy, dz float64)

	// SetOffset replaces the offset.
	//
	// Parameters:
	//   - x, y, z: the new offset
	SetOffset(x, y, z float64)

	// SetOffsetDS replaces the offset with an already split value, preserving its bits exactly.
	//
	// Parameters:
	//   - v: the new offset
	SetOffsetDS(v Vec3)

	// AbsorbCamera folds the camera's local position into the offset.
	// The camera's world position offset+local is unchanged; the returned local position is zero.
	//
	// Parameters:
	//   - local: the camera position relative to the offset
	//
	// Returns:
	//   - mgl32.Vec3: the new local camera position
	AbsorbCamera(local mgl32.Vec3) mgl32.Vec3

	// UpdateShaderUniforms splits the absolute camera position into the high and low vectors uploaded to the GPU.
	// high+low equals offset+local in double precision.
	//
	// Parameters:
	//   - local: the camera position relative to the offset
	//
	// Returns:
	//   - high: float32 rounded world position
	//   - low: residual
	UpdateShaderUniforms(local mgl32.Vec3) (high, low mgl32.Vec3)

	// WorldPosition returns offset+local in double precision.
	//
	// Parameters:
	//   - local: a position relative to the offset
	//
	// Returns:
	//   - [3]float64: the world position
	WorldPosition(local mgl32.Vec3) [3]float64

	// NeedsAbsorb reports whether local exceeds the safe magnitude. It never corrects anything itself.
	// The first call of each excursion logs a warning.
	//
	// Parameters:
	//   - local: the camera position relative to the offset
	//
	// Returns:
	//   - bool: true when the controller should call AbsorbCamera
	NeedsAbsorb(local mgl32.Vec3) bool

	// SafeMagnitude returns the configured safe magnitude.
	//
	// Returns:
	//   - float32: the magnitude
	SafeMagnitude() float32

	// Revision increases every time the offset changes. Renderers use it to detect that accumulated history is stale.
	//
	// Returns:
	//   - uint64: the revision counter
	Revision() uint64
}

var _ Space = &virtualSpace{}

// NewSpace creates a Space at the origin.
//
// Parameters:
//   - options: functional options to configure the space
//
// Returns:
//   - Space: the newly created space
func NewSpace(options ...SpaceBuilderOption) Space {
	s := &virtualSpace{
		mu:            &sync.Mutex{},
		safeMagnitude: DefaultSafeMagnitude,
		logger:        common.Logger().Named("virtualspace"),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *virtualSpace) Offset() [3]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset.Float64()
}

func (s *virtualSpace) OffsetDS() Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset
}

func (s *virtualSpace) Move(dx, dy, dz float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.offset.Float64()
	s.offset = SplitVec3([3]float64{o[0] + dx, o[1] + dy, o[2] + dz})
	s.revision++
}

func (s *virtualSpace) SetOffset(x, y, z float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = SplitVec3([3]float64{x, y, z})
	s.revision++
}

func (s *virtualSpace) SetOffsetDS(v Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// re-split so Lo is the exact residual even if the stored pair was not normalized
	s.offset = SplitVec3(v.Float64())
	s.revision++
}

func (s *virtualSpace) AbsorbCamera(local mgl32.Vec3) mgl32.Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if local == (mgl32.Vec3{}) {
		return local
	}
	s.offset = SplitVec3(add3(s.offset.Float64(), local))
	s.revision++
	s.warned = false
	o := s.offset.Float64()
	s.logger.Debug("camera absorbed into offset", zap.Float64s("offset", o[:]))
	return mgl32.Vec3{}
}

func (s *virtualSpace) UpdateShaderUniforms(local mgl32.Vec3) (high, low mgl32.Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	world := SplitVec3(add3(s.offset.Float64(), local))
	return world.High(), world.Low()
}

func (s *virtualSpace) WorldPosition(local mgl32.Vec3) [3]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return add3(s.offset.Float64(), local)
}

func (s *virtualSpace) NeedsAbsorb(local mgl32.Vec3) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if local.Len() <= s.safeMagnitude {
		s.warned = false
		return false
	}
	if !s.warned {
		s.warned = true
		s.logger.Warn("camera exceeds safe magnitude without absorb",
			zap.Float32("magnitude", local.Len()),
			zap.Float32("safe_magnitude", s.safeMagnitude),
		)
	}
	return true
}

func (s *virtualSpace) SafeMagnitude() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safeMagnitude
}

func (s *virtualSpace) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}
