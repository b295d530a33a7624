// package common contains plain types and helpers shared across the engine. They are not interface-wrapped structs,
// just small value types such as pixel rectangles and colour stops.
package common

// Rect is an integer pixel rectangle. X and Y are the top-left corner.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether the rectangle covers no pixels.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Area returns the number of pixels covered by r.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.W * r.H
}

// Contains reports whether pixel (x, y) lies inside r.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && y >= r.Y && x < r.X+r.W && y < r.Y+r.H
}

// Normalized converts r to normalized [0,1] coordinates relative to a width x height frame.
//
// Parameters:
//   - width, height: full frame size in pixels
//
// Returns:
//   - NormRect: rectangle in normalized frame coordinates
func (r Rect) Normalized(width, height int) NormRect {
	if width <= 0 || height <= 0 {
		return FullFrame
	}
	w, h := float32(width), float32(height)
	return NormRect{
		Min: [2]float32{float32(r.X) / w, float32(r.Y) / h},
		Max: [2]float32{float32(r.X+r.W) / w, float32(r.Y+r.H) / h},
	}
}

// NormRect is a rectangle in normalized [0,1] frame coordinates.
type NormRect struct {
	Min [2]float32
	Max [2]float32
}

// FullFrame covers the entire frame.
var FullFrame = NormRect{Min: [2]float32{0, 0}, Max: [2]float32{1, 1}}

// Pixels maps the normalized rectangle onto a width x height frame, clipped to the frame.
//
// Parameters:
//   - width, height: frame size in pixels
//
// Returns:
//   - Rect: the covered pixel rectangle
func (n NormRect) Pixels(width, height int) Rect {
	x0 := Clamp(int(n.Min[0]*float32(width)), 0, width)
	y0 := Clamp(int(n.Min[1]*float32(height)), 0, height)
	x1 := Clamp(int(n.Max[0]*float32(width)+0.5), 0, width)
	y1 := Clamp(int(n.Max[1]*float32(height)+0.5), 0, height)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// GradientStop is one colour stop of a coloring gradient. Position is in [0,1].
type GradientStop struct {
	Position float32    `json:"position" yaml:"position" mapstructure:"position"`
	Color    [3]float32 `json:"color" yaml:"color" mapstructure:"color"`
}

// MaxGradientStops is the number of stops a single gradient layer can carry on the GPU.
const MaxGradientStops = 8
