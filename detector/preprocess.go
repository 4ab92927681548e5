package detector

import (
	"image"

	"github.com/nvr-ai/go-sentry/inference"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Preprocess resizes img to size and packs it as 3-channel pixels in the given
// channel order. img may be gray, BGR or BGRA and is left untouched.
func Preprocess(img gocv.Mat, size image.Point, order ChannelOrder) (inference.Input, error) {
	if img.Empty() {
		return inference.Input{}, errors.New("cannot detect on an empty image")
	}
	if size.X <= 0 || size.Y <= 0 {
		return inference.Input{}, errors.Errorf("invalid model input size %dx%d", size.X, size.Y)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	if err := gocv.Resize(img, &resized, size, 0, 0, gocv.InterpolationLinear); err != nil {
		return inference.Input{}, errors.Wrapf(err, "failed to resize input to %dx%d", size.X, size.Y)
	}

	converted := gocv.NewMat()
	defer converted.Close()

	var err error
	if code, ok := colorConversion(resized.Channels(), order); ok {
		err = gocv.CvtColor(resized, &converted, code)
	} else {
		err = resized.CopyTo(&converted)
	}
	if err != nil {
		return inference.Input{}, errors.Wrap(err, "failed to convert input channels")
	}

	if converted.Channels() != 3 {
		return inference.Input{}, errors.Errorf("unsupported image with %d channels", img.Channels())
	}

	return inference.Input{
		Pixels:   converted.ToBytes(),
		Width:    size.X,
		Height:   size.Y,
		Channels: 3,
	}, nil
}

// colorConversion returns the conversion from an OpenCV image with the given
// channel count to 3 channels in order. ok is false when no conversion is needed.
func colorConversion(channels int, order ChannelOrder) (code gocv.ColorConversionCode, ok bool) {
	switch {
	case channels == 1:
		// Gray expands to identical channels in either order.
		return gocv.ColorGrayToBGR, true
	case channels == 4 && order == OrderRGB:
		return gocv.ColorBGRAToRGB, true
	case channels == 4:
		return gocv.ColorBGRAToBGR, true
	case channels == 3 && order == OrderRGB:
		return gocv.ColorBGRToRGB, true
	default:
		return 0, false
	}
}
