// Package images - Image geometry used to move boxes between the motion mask,
// the full frame and the detector input.
package images

import (
	"fmt"
	"image"
)

// Rect is a lightweight bounding box in pixel space.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// RectFromRectangle converts an image.Rectangle into a Rect.
func RectFromRectangle(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
}

// RectFromXYWH builds a Rect from an origin and a size.
func RectFromXYWH(x, y, w, h int) Rect {
	return Rect{X1: x, Y1: y, X2: x + w, Y2: y + h}
}

// X returns the left edge.
func (r Rect) X() int { return r.X1 }

// Y returns the top edge.
func (r Rect) Y() int { return r.Y1 }

// Width returns the horizontal extent, never negative.
func (r Rect) Width() int { return max(0, r.X2-r.X1) }

// Height returns the vertical extent, never negative.
func (r Rect) Height() int { return max(0, r.Y2-r.Y1) }

// Area returns Width*Height.
func (r Rect) Area() int { return r.Width() * r.Height() }

// Empty reports whether the rect covers no pixels.
func (r Rect) Empty() bool { return r.Width() == 0 || r.Height() == 0 }

// Rectangle converts the rect to an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Translate shifts the rect by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	return Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// Pad grows the rect by px on the left and right and by py on the top and bottom.
func (r Rect) Pad(px, py int) Rect {
	return Rect{X1: r.X1 - px, Y1: r.Y1 - py, X2: r.X2 + px, Y2: r.Y2 + py}
}

// Clamp restricts every edge to [0, width] x [0, height].
//
// The result always satisfies 0 <= X1 <= X2 <= width and 0 <= Y1 <= Y2 <= height,
// so it can be used to slice a width x height image without further checks. A
// rect lying entirely outside the bounds collapses to a zero-area rect on the
// nearest edge.
func (r Rect) Clamp(width, height int) Rect {
	width = max(0, width)
	height = max(0, height)

	x1 := clampInt(r.X1, 0, width)
	y1 := clampInt(r.Y1, 0, height)
	x2 := clampInt(r.X2, x1, width)
	y2 := clampInt(r.Y2, y1, height)

	return Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// Within reports whether the rect lies inside [0, width] x [0, height].
func (r Rect) Within(width, height int) bool {
	return r.X1 >= 0 && r.Y1 >= 0 && r.X1 <= r.X2 && r.Y1 <= r.Y2 &&
		r.X2 <= width && r.Y2 <= height
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d) %dx%d", r.X1, r.Y1, r.X2, r.Y2, r.Width(), r.Height())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
