package camera

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-fractal/engine/virtualspace"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBasisLooksDownNegativeZ(t *testing.T) {
	c := NewCamera()
	right, up, forward := c.Basis()
	assert.InDelta(t, 1, right[0], 1e-6)
	assert.InDelta(t, 1, up[1], 1e-6)
	assert.InDelta(t, -1, forward[2], 1e-6)

	d := c.RayDirection(0, 0)
	assert.InDelta(t, -1, d[2], 1e-6)
}

func TestRayDirectionSpansFov(t *testing.T) {
	fov := float32(math.Pi / 2)
	c := NewCamera(WithFov(fov), WithAspect(2))
	top := c.RayDirection(0, 1)
	// 45 degrees above the forward axis
	assert.InDelta(t, top[1], -top[2], 1e-5)

	side := c.RayDirection(1, 0)
	// aspect 2 widens the horizontal extent to tan = 2
	assert.InDelta(t, 2, side[0]/-side[2], 1e-4)
}

func TestControllerTranslateSmoothsToTarget(t *testing.T) {
	cc := NewCameraController(WithInitialPose(virtualspace.IdentityPose(1)), WithMoveSpeed(1))
	cc.Translate(0, 0, 1)

	target := cc.TargetPose().Position
	assert.InDelta(t, -1, target[2], 1e-6)

	moved := cc.Update(1.0 / 60)
	assert.True(t, moved)
	p := cc.Pose().Position
	assert.Less(t, p[2], float32(0))
	assert.Greater(t, p[2], float32(-1))
}

func TestControllerAbsorbsPastSafeMagnitude(t *testing.T) {
	space := virtualspace.NewSpace(virtualspace.WithSafeMagnitude(10))
	cc := NewCameraController(
		WithSpace(space),
		WithSharpness(0),
		WithMoveSpeed(1),
		WithInitialPose(virtualspace.IdentityPose(1)),
	)

	cc.Translate(25, 0, 0)
	world := space.WorldPosition(cc.Pose().Position)
	require.InDelta(t, 25, world[0], 1e-9)

	cc.Update(1.0 / 60)
	assert.Equal(t, mgl32.Vec3{}, cc.Pose().Position)
	assert.InDelta(t, 25, space.Offset()[0], 1e-9)
	assert.Equal(t, mgl32.Vec3{}, cc.TargetPose().Position)
}

func TestTeleportResetsLocalPosition(t *testing.T) {
	cc := NewCameraController()
	cc.Teleport([3]float64{1e6, 2, 3}, mgl32.QuatIdent(), 0.5)

	p := cc.Pose()
	assert.Equal(t, mgl32.Vec3{}, p.Position)
	assert.Equal(t, float32(0.5), p.Fov)
	assert.Equal(t, [3]float64{1e6, 2, 3}, cc.Space().Offset())

	c := NewCamera(WithController(cc))
	g := c.GPU(cc.Space())
	assert.Equal(t, float32(1e6), g.High[0])
	assert.Equal(t, float32(0), g.Low[0])
}

func TestOrbitKeepsDistanceToPivot(t *testing.T) {
	cc := NewCameraController(WithSharpness(0))
	before := cc.Pose().Position.Len()
	cc.Orbit(mgl32.Vec3{}, 0.7, 0.2)
	after := cc.Pose().Position.Len()
	assert.InDelta(t, before, after, 1e-4)
}
