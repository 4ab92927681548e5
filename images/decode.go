package images

import (
	"bytes"
	"os"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// SniffFormat identifies encoded image bytes by their magic number.
func SniffFormat(data []byte) (ImageFormat, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return FormatJPEG, true
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG, true
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return FormatWebP, true
	default:
		return "", false
	}
}

// Decode turns encoded jpeg, png or webp bytes into a Mat. flags selects color
// (BGR) or grayscale output. The caller owns the returned Mat.
//
// Arguments:
//   - data: The encoded image bytes.
//   - flags: gocv.IMReadColor or gocv.IMReadGrayScale.
//
// Returns:
//   - gocv.Mat: The decoded image, owned by the caller.
//   - error: The error if the data cannot be decoded.
func Decode(data []byte, flags gocv.IMReadFlag) (gocv.Mat, error) {
	format, ok := SniffFormat(data)
	if !ok {
		return gocv.NewMat(), errors.New("unrecognized image data")
	}

	if format != FormatWebP {
		mat, err := gocv.IMDecode(data, flags)
		if err != nil {
			return gocv.NewMat(), errors.Wrapf(err, "failed to decode %s", format)
		}
		if mat.Empty() {
			mat.Close()
			return gocv.NewMat(), errors.Errorf("failed to decode %s", format)
		}
		return mat, nil
	}

	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to decode webp")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to convert webp")
	}
	if flags != gocv.IMReadGrayScale {
		return mat, nil
	}

	gray := gocv.NewMat()
	err = gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	mat.Close()
	if err != nil {
		gray.Close()
		return gocv.NewMat(), errors.Wrap(err, "failed to convert webp to gray")
	}
	return gray, nil
}

// ReadFile reads and decodes an image file.
func ReadFile(path string, flags gocv.IMReadFlag) (gocv.Mat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(err, "failed to read image %s", path)
	}
	mat, err := Decode(data, flags)
	if err != nil {
		return mat, errors.Wrap(err, path)
	}
	return mat, nil
}
