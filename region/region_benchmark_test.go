package region

import (
	"image"
	"testing"

	"github.com/nvr-ai/go-sentry/images"
)

func BenchmarkExtract(b *testing.B) {
	cases := []struct {
		name  string
		width int
		rects []images.Rect
	}{
		{name: "single blob", width: 500, rects: []images.Rect{images.RectFromXYWH(200, 60, 40, 60)}},
		{name: "many blobs", width: 500, rects: []images.Rect{
			images.RectFromXYWH(10, 10, 20, 20),
			images.RectFromXYWH(100, 40, 60, 80),
			images.RectFromXYWH(300, 20, 30, 30),
			images.RectFromXYWH(420, 90, 50, 40),
		}},
	}

	e := NewExtractor(DefaultConfig())
	for _, tc := range cases {
		b.Run(tc.name, func(b *testing.B) {
			mask := newMask(b, tc.width, 153, tc.rects...)
			defer mask.Close()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := e.Locate(mask, image.Pt(1920, 1080)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
