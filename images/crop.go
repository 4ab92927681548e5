package images

import (
	"image"

	"gocv.io/x/gocv"
)

// Size returns the width and height of a Mat as an image.Point.
func Size(mat gocv.Mat) image.Point {
	return image.Point{X: mat.Cols(), Y: mat.Rows()}
}

// Crop copies the pixels of src inside r into a freshly allocated Mat.
//
// r is clamped to the bounds of src first, so out-of-range boxes degrade to a
// smaller (possibly empty) crop instead of failing. src is never modified and
// the returned Mat is owned by the caller.
//
// Arguments:
//   - src: The source image.
//   - r: The rect to copy, clamped to src.
//
// Returns:
//   - gocv.Mat: The copied pixels, empty when r misses src.
func Crop(src gocv.Mat, r Rect) gocv.Mat {
	if src.Empty() {
		return gocv.NewMat()
	}
	r = r.Clamp(src.Cols(), src.Rows())
	if r.Empty() {
		return gocv.NewMat()
	}

	view := src.Region(r.Rectangle())
	defer view.Close()

	return view.Clone()
}
