package virtualspace

import "github.com/go-gl/mathgl/mgl32"

// DoubleSingle stores a double precision value as an unevaluated sum of two float32 values.
// Hi is the value rounded to float32 and Lo is exactly the rounding residual, so Hi+Lo carries ~48 bits of mantissa.
type DoubleSingle struct {
	Hi float32 `json:"hi"`
	Lo float32 `json:"lo"`
}

// Split converts v into its double-single representation.
func Split(v float64) DoubleSingle {
	hi := float32(v)
	return DoubleSingle{Hi: hi, Lo: float32(v - float64(hi))}
}

// Float64 reconstructs the double precision value.
func (d DoubleSingle) Float64() float64 {
	return float64(d.Hi) + float64(d.Lo)
}

// Vec3 is a double-single 3-vector.
type Vec3 [3]DoubleSingle

// SplitVec3 converts a double precision vector into a double-single vector.
func SplitVec3(v [3]float64) Vec3 {
	return Vec3{Split(v[0]), Split(v[1]), Split(v[2])}
}

// Float64 reconstructs the double precision vector.
func (v Vec3) Float64() [3]float64 {
	return [3]float64{v[0].Float64(), v[1].Float64(), v[2].Float64()}
}

// High returns the float32 high parts.
func (v Vec3) High() mgl32.Vec3 {
	return mgl32.Vec3{v[0].Hi, v[1].Hi, v[2].Hi}
}

// Low returns the float32 residuals.
func (v Vec3) Low() mgl32.Vec3 {
	return mgl32.Vec3{v[0].Lo, v[1].Lo, v[2].Lo}
}

// FromHighLow rebuilds a double-single vector from separate high and low vectors, as stored in presets.
func FromHighLow(high, low [3]float32) Vec3 {
	return Vec3{{high[0], low[0]}, {high[1], low[1]}, {high[2], low[2]}}
}

func add3(a [3]float64, b mgl32.Vec3) [3]float64 {
	return [3]float64{a[0] + float64(b[0]), a[1] + float64(b[1]), a[2] + float64(b[2])}
}
