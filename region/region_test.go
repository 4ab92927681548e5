package region

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-sentry/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// newMask returns a w x h single-channel mask with every rect filled white.
func newMask(t testing.TB, w, h int, rects ...images.Rect) gocv.Mat {
	t.Helper()

	mask := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC1)
	for _, r := range rects {
		r = r.Clamp(w, h)
		for y := r.Y1; y < r.Y2; y++ {
			for x := r.X1; x < r.X2; x++ {
				mask.SetUCharAt(y, x, 255)
			}
		}
	}
	return mask
}

func assertRectNear(t *testing.T, expected, actual images.Rect, tolerance int) {
	t.Helper()

	assert.InDelta(t, expected.X1, actual.X1, float64(tolerance), "X1 of %s", actual)
	assert.InDelta(t, expected.Y1, actual.Y1, float64(tolerance), "Y1 of %s", actual)
	assert.InDelta(t, expected.X2, actual.X2, float64(tolerance), "X2 of %s", actual)
	assert.InDelta(t, expected.Y2, actual.Y2, float64(tolerance), "Y2 of %s", actual)
}

func identity(frame image.Point) *Extractor {
	return NewExtractor(Config{Frame: frame})
}

func TestExtract_NoMotion(t *testing.T) {
	blank := newMask(t, 100, 100)
	defer blank.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	e := NewExtractor(DefaultConfig())

	for name, mask := range map[string]gocv.Mat{"all zero": blank, "empty": empty} {
		t.Run(name, func(t *testing.T) {
			_, err := e.Locate(mask, image.Pt(1920, 1080))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNoMotionContour)
		})
	}
}

func TestExtract_RoundTrip(t *testing.T) {
	mask := newMask(t, 100, 100, images.RectFromXYWH(40, 40, 20, 20))
	defer mask.Close()

	r, err := identity(image.Pt(100, 100)).Locate(mask, image.Pt(100, 100))
	require.NoError(t, err)
	assertRectNear(t, images.Rect{X1: 40, Y1: 40, X2: 60, Y2: 60}, r, 1)
}

func TestExtract_EndToEnd(t *testing.T) {
	frame := gocv.NewMatWithSize(1080, 1920, gocv.MatTypeCV8UC3)
	defer frame.Close()
	mask := newMask(t, 100, 100, images.RectFromXYWH(40, 40, 20, 20))
	defer mask.Close()

	frameSum := images.ComputeMatChecksum(frame)
	maskSum := images.ComputeMatChecksum(mask)

	e := NewExtractor(Config{
		Frame:        image.Pt(1920, 1080),
		Offset:       image.Pt(450, 200),
		UpscaleWidth: 1470,
		PadX:         100,
		PadY:         125,
	})

	r, err := e.Extract(frame, mask)
	require.NoError(t, err)

	// 20px square at 40 scaled by 14.7 is 588..882, shifted by the offset and
	// padded. The bottom edge (1207) is clamped to the frame.
	assertRectNear(t, images.Rect{X1: 938, Y1: 663, X2: 1432, Y2: 1080}, r, 2)
	assert.True(t, r.Within(1920, 1080))
	assert.InDelta(t, 294+200, r.Width(), 3)
	assert.Less(t, r.Height(), 294+250)

	assert.Equal(t, frameSum, images.ComputeMatChecksum(frame), "frame modified")
	assert.Equal(t, maskSum, images.ComputeMatChecksum(mask), "mask modified")

	crop, cr, err := e.Crop(frame, mask)
	require.NoError(t, err)
	defer crop.Close()
	assert.Equal(t, r, cr)
	assert.Equal(t, image.Pt(r.Width(), r.Height()), images.Size(crop))
}

func TestExtract_LargestContourWins(t *testing.T) {
	mask := newMask(t, 200, 200,
		images.RectFromXYWH(10, 10, 10, 10),
		images.RectFromXYWH(100, 120, 40, 30),
		images.RectFromXYWH(150, 10, 20, 20),
	)
	defer mask.Close()

	r, err := identity(image.Pt(200, 200)).Locate(mask, image.Pt(200, 200))
	require.NoError(t, err)
	assertRectNear(t, images.RectFromXYWH(100, 120, 40, 30), r, 1)
}

func TestExtract_TieBreak(t *testing.T) {
	tests := []struct {
		name     string
		rects    []images.Rect
		expected images.Rect
	}{
		{
			name:     "leftmost",
			rects:    []images.Rect{images.RectFromXYWH(120, 20, 20, 20), images.RectFromXYWH(20, 120, 20, 20)},
			expected: images.RectFromXYWH(20, 120, 20, 20),
		},
		{
			name:     "topmost when aligned",
			rects:    []images.Rect{images.RectFromXYWH(50, 150, 20, 20), images.RectFromXYWH(50, 20, 20, 20)},
			expected: images.RectFromXYWH(50, 20, 20, 20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mask := newMask(t, 200, 200, tt.rects...)
			defer mask.Close()

			r, err := identity(image.Pt(200, 200)).Locate(mask, image.Pt(200, 200))
			require.NoError(t, err)
			assertRectNear(t, tt.expected, r, 1)
		})
	}
}

func TestExtract_AlwaysInsideFrame(t *testing.T) {
	e := NewExtractor(Config{
		Frame:        image.Pt(1920, 1080),
		Offset:       image.Pt(450, 200),
		UpscaleWidth: 1470,
		PadX:         100,
		PadY:         125,
	})

	blobs := []images.Rect{
		images.RectFromXYWH(0, 0, 5, 5),
		images.RectFromXYWH(95, 95, 5, 5),
		images.RectFromXYWH(0, 90, 100, 10),
		images.RectFromXYWH(0, 0, 100, 100),
		images.RectFromXYWH(97, 0, 3, 3),
	}

	for _, blob := range blobs {
		t.Run(blob.String(), func(t *testing.T) {
			mask := newMask(t, 100, 100, blob)
			defer mask.Close()

			r, err := e.Locate(mask, image.Pt(1920, 1080))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, r.X1, 0)
			assert.GreaterOrEqual(t, r.Y1, 0)
			assert.LessOrEqual(t, r.X1+r.Width(), 1920)
			assert.LessOrEqual(t, r.Y1+r.Height(), 1080)
		})
	}
}

func TestExtract_ColorMask(t *testing.T) {
	gray := newMask(t, 100, 100, images.RectFromXYWH(10, 20, 30, 40))
	defer gray.Close()

	color := gocv.NewMat()
	defer color.Close()
	require.NoError(t, gocv.CvtColor(gray, &color, gocv.ColorGrayToBGR))

	r, err := identity(image.Pt(100, 100)).Locate(color, image.Pt(100, 100))
	require.NoError(t, err)
	assertRectNear(t, images.RectFromXYWH(10, 20, 30, 40), r, 1)
}

func TestExtract_NonBinaryMask(t *testing.T) {
	mask := newMask(t, 50, 50)
	defer mask.Close()
	for y := 10; y < 20; y++ {
		for x := 10; x < 20; x++ {
			mask.SetUCharAt(y, x, 1)
		}
	}

	r, err := identity(image.Pt(50, 50)).Locate(mask, image.Pt(50, 50))
	require.NoError(t, err)
	assertRectNear(t, images.RectFromXYWH(10, 10, 10, 10), r, 1)
}

func TestUpscaleSize(t *testing.T) {
	assert.Equal(t, image.Pt(1470, 1470), UpscaleSize(image.Pt(100, 100), 1470))
	assert.Equal(t, image.Pt(1470, 449), UpscaleSize(image.Pt(500, 153), 1470))
	assert.Equal(t, image.Pt(500, 153), UpscaleSize(image.Pt(1470, 450), 500))
	assert.Equal(t, image.Pt(1470, 1), UpscaleSize(image.Pt(2000, 1), 1470), "height never truncates to zero")
	assert.Equal(t, image.Pt(10, 1), UpscaleSize(image.Pt(0, 10), 10))
}

func TestExtract_DegenerateMask(t *testing.T) {
	e := NewExtractor(Config{
		Frame:        image.Pt(1920, 1080),
		Offset:       image.Pt(450, 200),
		UpscaleWidth: 1470,
		PadX:         100,
		PadY:         125,
	})

	t.Run("wide white row", func(t *testing.T) {
		mask := newMask(t, 2000, 1, images.RectFromXYWH(0, 0, 2000, 1))
		defer mask.Close()

		r, err := e.Locate(mask, image.Pt(1920, 1080))
		require.NoError(t, err)
		assert.True(t, r.Within(1920, 1080), "%s", r)
		assertRectNear(t, images.Rect{X1: 350, Y1: 75, X2: 1920, Y2: 326}, r, 2)
	})

	t.Run("wide blank row", func(t *testing.T) {
		mask := newMask(t, 2000, 1)
		defer mask.Close()

		_, err := e.Locate(mask, image.Pt(1920, 1080))
		assert.ErrorIs(t, err, ErrNoMotionContour)
	})

	t.Run("single pixel", func(t *testing.T) {
		mask := newMask(t, 1, 1, images.RectFromXYWH(0, 0, 1, 1))
		defer mask.Close()

		r, err := e.Locate(mask, image.Pt(1920, 1080))
		require.NoError(t, err)
		assert.True(t, r.Within(1920, 1080), "%s", r)
		assert.False(t, r.Empty())
	})
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 1470, DefaultConfig().UpscaleWidth)

	bad := []Config{
		{Frame: image.Pt(0, 1080)},
		{Frame: image.Pt(1920, 1080), UpscaleWidth: -1},
		{Frame: image.Pt(1920, 1080), PadX: -5},
	}
	for _, c := range bad {
		assert.Error(t, c.Validate(), "%+v", c)
	}
}
