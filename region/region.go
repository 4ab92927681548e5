// Package region maps a motion mask back onto the camera frame it came from and
// extracts the padded region around the dominant motion blob.
//
// The external motion detector works on a cropped and downscaled copy of the
// frame (see PrepareMotionInput). Extract inverts that transform:
//
//	mask (e.g. 500x153) ──resize──▶ UpscaleWidth x h' ──contours──▶ largest blob
//	        ──bounding box──▶ +Offset ──▶ ±PadX/±PadY ──▶ clamp to frame
package region

import (
	"image"

	"github.com/nvr-ai/go-sentry/images"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ErrNoMotionContour is returned when the mask contains no foreground pixels.
var ErrNoMotionContour = errors.New("no motion contour found")

// Config holds the crop geometry shared between the motion detector and the
// extractor.
type Config struct {
	// Frame is the size of the camera frame. It bounds the padded region when the
	// frame itself is not available.
	Frame image.Point `yaml:"frame"`
	// Offset is the top-left corner of the motion crop in frame space.
	Offset image.Point `yaml:"offset"`
	// UpscaleWidth is the width of the motion crop before it was downscaled for
	// the motion detector. Zero keeps the mask at its own size.
	UpscaleWidth int `yaml:"upscale_width"`
	// PadX is added to the left and right edges of the motion box.
	PadX int `yaml:"pad_x"`
	// PadY is added to the top and bottom edges of the motion box.
	PadY int `yaml:"pad_y"`
}

// DefaultConfig returns the geometry of a 1920x1080 camera whose motion crop
// starts at (450, 200).
func DefaultConfig() Config {
	return Config{
		Frame:        image.Pt(1920, 1080),
		Offset:       image.Pt(450, 200),
		UpscaleWidth: 1920 - 450,
		PadX:         100,
		PadY:         125,
	}
}

// Validate reports configurations that cannot produce a region.
func (c Config) Validate() error {
	if c.Frame.X <= 0 || c.Frame.Y <= 0 {
		return errors.Errorf("frame bounds must be positive, got %dx%d", c.Frame.X, c.Frame.Y)
	}
	if c.UpscaleWidth < 0 {
		return errors.Errorf("upscale width must not be negative, got %d", c.UpscaleWidth)
	}
	if c.PadX < 0 || c.PadY < 0 {
		return errors.Errorf("padding must not be negative, got %d/%d", c.PadX, c.PadY)
	}
	return nil
}

// Extractor locates the padded motion region of a frame.
//
// It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an Extractor for the given geometry.
//
// Arguments:
//   - cfg: The crop geometry shared with the motion detector.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Config returns the geometry the extractor was built with.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract returns the padded region of frame implied by mask.
//
// The region is clamped to the frame (or to Config.Frame when frame is empty),
// so it can always be used to crop frame. Neither input is modified.
//
// Arguments:
//   - frame: The camera frame. Only its size is used.
//   - mask: The motion mask produced from the prepared motion input.
//
// Returns:
//   - images.Rect: The padded motion region in frame pixels.
//   - error: ErrNoMotionContour when the mask holds no motion, or the mask
//     conversion error.
func (e *Extractor) Extract(frame, mask gocv.Mat) (images.Rect, error) {
	bounds := e.cfg.Frame
	if !frame.Empty() {
		bounds = images.Size(frame)
	}
	return e.Locate(mask, bounds)
}

// Crop extracts the padded region and copies it out of frame. The returned Mat
// is owned by the caller.
//
// Arguments:
//   - frame: The camera frame to cut the region from.
//   - mask: The motion mask produced from the prepared motion input.
//
// Returns:
//   - gocv.Mat: A copy of the region pixels, owned by the caller.
//   - images.Rect: The region in frame pixels.
//   - error: ErrNoMotionContour, or an error for an empty frame.
func (e *Extractor) Crop(frame, mask gocv.Mat) (gocv.Mat, images.Rect, error) {
	if frame.Empty() {
		return gocv.NewMat(), images.Rect{}, errors.New("frame is empty")
	}

	r, err := e.Extract(frame, mask)
	if err != nil {
		return gocv.NewMat(), images.Rect{}, err
	}
	return images.Crop(frame, r), r, nil
}

// Locate is Extract without a frame: the region is clamped to bounds.
//
// Arguments:
//   - mask: The motion mask produced from the prepared motion input.
//   - bounds: The frame size the region is clamped to.
//
// Returns:
//   - images.Rect: The padded motion region, inside bounds.
//   - error: ErrNoMotionContour when the mask holds no motion, or the mask
//     conversion error.
func (e *Extractor) Locate(mask gocv.Mat, bounds image.Point) (images.Rect, error) {
	if mask.Empty() {
		return images.Rect{}, ErrNoMotionContour
	}

	box, err := e.motionBox(mask)
	if err != nil {
		return images.Rect{}, err
	}

	return box.
		Translate(e.cfg.Offset.X, e.cfg.Offset.Y).
		Pad(e.cfg.PadX, e.cfg.PadY).
		Clamp(bounds.X, bounds.Y), nil
}

// motionBox returns the bounding box of the dominant contour in rescaled-mask
// space.
func (e *Extractor) motionBox(mask gocv.Mat) (images.Rect, error) {
	binary, err := e.rescale(mask)
	if err != nil {
		return images.Rect{}, err
	}
	defer binary.Close()

	if binary.Empty() || gocv.CountNonZero(binary) == 0 {
		return images.Rect{}, ErrNoMotionContour
	}

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return images.Rect{}, ErrNoMotionContour
	}

	return largest(contours), nil
}

// rescale converts mask to a single-channel 0/255 image UpscaleWidth pixels wide.
func (e *Extractor) rescale(mask gocv.Mat) (gocv.Mat, error) {
	gray := gocv.NewMat()
	var err error
	if mask.Channels() > 1 {
		err = gocv.CvtColor(mask, &gray, gocv.ColorBGRToGray)
	} else {
		err = mask.CopyTo(&gray)
	}
	if err != nil {
		gray.Close()
		return gocv.NewMat(), errors.Wrap(err, "failed to convert motion mask to gray")
	}

	if w := e.cfg.UpscaleWidth; w > 0 && w != gray.Cols() {
		size := UpscaleSize(images.Size(gray), w)
		scaled := gocv.NewMat()
		err = gocv.Resize(gray, &scaled, size, 0, 0, gocv.InterpolationNearestNeighbor)
		gray.Close()
		if err != nil {
			scaled.Close()
			return gocv.NewMat(), errors.Wrapf(err, "failed to rescale motion mask to %dx%d", size.X, size.Y)
		}
		gray = scaled
	}

	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary)
	gray.Close()

	return binary, nil
}

// UpscaleSize returns the size of an image of the given size resized to width
// with its aspect ratio preserved.
//
// Arguments:
//   - size: The source image size.
//   - width: The target width.
//
// Returns:
//   - image.Point: width by the truncated scaled height, never less than one
//     pixel tall.
func UpscaleSize(size image.Point, width int) image.Point {
	if size.X <= 0 {
		return image.Pt(width, 1)
	}
	return image.Pt(width, max(1, size.Y*width/size.X))
}

// largest picks the contour with the greatest enclosed area. Equal areas go to
// the leftmost box, then the topmost, then the first found.
func largest(contours gocv.PointsVector) images.Rect {
	var (
		best     image.Rectangle
		bestArea = -1.0
	)

	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		rect := gocv.BoundingRect(c)

		switch {
		case area > bestArea:
		case area == bestArea && rect.Min.X < best.Min.X:
		case area == bestArea && rect.Min.X == best.Min.X && rect.Min.Y < best.Min.Y:
		default:
			continue
		}

		best, bestArea = rect, area
	}

	return images.RectFromRectangle(best)
}
