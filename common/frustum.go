package common

// TileFrustum describes the part of a full-frame camera frustum covered by one tile.
// Rendering a tile with this frustum yields exactly the pixels the full-frame render would produce for that rectangle.
type TileFrustum struct {
	// FullWidth and FullHeight are the dimensions of the complete image in pixels.
	FullWidth, FullHeight int

	// Offset is the pixel position of the tile's top-left corner inside the full image.
	Offset [2]int

	// Size is the tile size in pixels.
	Size [2]int
}

// NewTileFrustum builds the sub-frustum for tile inside a width x height image.
// An empty tile yields the full-frame frustum.
//
// Parameters:
//   - width, height: full image size in pixels
//   - tile: the tile rectangle
//
// Returns:
//   - TileFrustum: the frustum restricted to tile
func NewTileFrustum(width, height int, tile Rect) TileFrustum {
	if tile.Empty() {
		tile = Rect{W: width, H: height}
	}
	return TileFrustum{
		FullWidth:  width,
		FullHeight: height,
		Offset:     [2]int{tile.X, tile.Y},
		Size:       [2]int{tile.W, tile.H},
	}
}

// ScreenUV maps a pixel centre of the tile (plus a subpixel jitter) to full-frame normalized device coordinates in [-1, 1].
// Y points up, so the top row of the full image maps to +1.
//
// Parameters:
//   - px, py: pixel position inside the tile
//   - jx, jy: subpixel jitter in [-0.5, 0.5)
//
// Returns:
//   - u, v: normalized device coordinates relative to the full frame
func (f TileFrustum) ScreenUV(px, py int, jx, jy float32) (u, v float32) {
	fx := float32(f.Offset[0]+px) + 0.5 + jx
	fy := float32(f.Offset[1]+py) + 0.5 + jy
	u = fx/float32(f.FullWidth)*2 - 1
	v = 1 - fy/float32(f.FullHeight)*2
	return u, v
}
