package detector

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-sentry/images"
)

// Map converts a normalized box into pixels of an image of the given size,
// the image that was fed to the detector.
//
// The result is ordered xmin, ymin, xmax, ymax (the SSD box is y-first).
// Components are truncated, min edges land in [0, dim-1] and max edges in
// [min, dim], so the rect can always crop the image.
//
// Arguments:
//   - box: The normalized box, components nominally in [0, 1].
//   - size: The pixel size of the image the box refers to.
//
// Returns:
//   - images.Rect: The box in pixels, always indexable within size.
func Map(box NormalizedBox, size image.Point) images.Rect {
	if size.X <= 0 || size.Y <= 0 {
		return images.Rect{}
	}

	x1 := scale(box.XMin, size.X, 0, size.X-1)
	y1 := scale(box.YMin, size.Y, 0, size.Y-1)
	x2 := scale(box.XMax, size.X, x1, size.X)
	y2 := scale(box.YMax, size.Y, y1, size.Y)

	return images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

// MapDetection maps d's box into the source image of r.
func (r Result) MapDetection(d Detection) images.Rect {
	return Map(d.Box, r.Source)
}

func scale(v float32, dim, lo, hi int) int {
	if math32.IsNaN(v) {
		v = 0
	}
	v = math32.Max(0, math32.Min(1, v))
	px := int(math32.Trunc(v * float32(dim)))
	return max(lo, min(hi, px))
}
