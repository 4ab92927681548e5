package region

import (
	"github.com/nvr-ai/go-sentry/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// PrepareMotionInput produces the image the motion detector consumes: frame
// cropped to crop and shrunk to width pixels wide, aspect ratio preserved.
//
// Feeding the mask computed from this image to Extract with
// Offset = crop.Min and UpscaleWidth = crop width maps it back onto frame.
//
// Arguments:
//   - frame: The camera frame.
//   - crop: The motion crop in frame pixels. It is clamped to the frame.
//   - width: The width of the motion detector input.
//
// Returns:
//   - gocv.Mat: The cropped and resized image, owned by the caller.
//   - error: The error if the frame is empty or the crop misses it.
func PrepareMotionInput(frame gocv.Mat, crop images.Rect, width int) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.NewMat(), errors.New("frame is empty")
	}
	if width <= 0 {
		return gocv.NewMat(), errors.Errorf("motion input width must be positive, got %d", width)
	}

	roi := images.Crop(frame, crop)
	if roi.Empty() {
		roi.Close()
		return gocv.NewMat(), errors.Errorf("motion crop %s lies outside the %dx%d frame", crop, frame.Cols(), frame.Rows())
	}
	defer roi.Close()

	size := UpscaleSize(images.Size(roi), width)
	out := gocv.NewMat()
	if err := gocv.Resize(roi, &out, size, 0, 0, gocv.InterpolationArea); err != nil {
		out.Close()
		return gocv.NewMat(), errors.Wrapf(err, "failed to resize motion input to %dx%d", size.X, size.Y)
	}
	return out, nil
}
