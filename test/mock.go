// Package test provides deterministic frames, masks and a scripted inference
// engine for exercising the pipeline without a camera or a model file.
package test

import (
	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/inference"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// FrameGenerator creates synthetic camera frames and motion masks.
//
// @example
// gen := NewFrameGenerator(1920, 1080)
// frame := gen.Uniform(128)
// defer frame.Close()
type FrameGenerator struct {
	width  int
	height int
}

// NewFrameGenerator creates a generator for width x height frames.
func NewFrameGenerator(width, height int) *FrameGenerator {
	return &FrameGenerator{width: width, height: height}
}

// Uniform returns a 3-channel BGR frame with every pixel set to value.
func (g *FrameGenerator) Uniform(value uint8) gocv.Mat {
	frame := gocv.NewMatWithSize(g.height, g.width, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(float64(value), float64(value), float64(value), 0))
	return frame
}

// Colored returns a 3-channel frame filled with the given BGR color.
func (g *FrameGenerator) Colored(b, gr, r uint8) gocv.Mat {
	frame := gocv.NewMatWithSize(g.height, g.width, gocv.MatTypeCV8UC3)
	frame.SetTo(gocv.NewScalar(float64(b), float64(gr), float64(r), 0))
	return frame
}

// Mask returns a single-channel mask with each rect filled with 255.
func (g *FrameGenerator) Mask(rects ...images.Rect) gocv.Mat {
	mask := gocv.NewMatWithSize(g.height, g.width, gocv.MatTypeCV8UC1)
	for _, r := range rects {
		r = r.Clamp(g.width, g.height)
		for y := r.Y1; y < r.Y2; y++ {
			for x := r.X1; x < r.X2; x++ {
				mask.SetUCharAt(y, x, 255)
			}
		}
	}
	return mask
}

// MockDetection is one row of the engine's scripted output.
type MockDetection struct {
	Class float32
	Score float32
	// Box is normalized ymin, xmin, ymax, xmax.
	Box [4]float32
}

// MockEngine is an inference.Engine that replays scripted detections.
//
// Outputs are padded to Slots rows with zeros, the way SSD exports always emit
// a fixed number of rows and report the valid ones through the count tensor.
type MockEngine struct {
	Detections []MockDetection
	Slots      int
	// Count overrides the reported detection count when not nil.
	Count *float32

	AllocateErr error
	InvokeErr   error
	OutputErr   error

	Allocated   bool
	Closed      bool
	Invocations int
	LastInput   inference.Input
}

// NewMockEngine scripts an engine with the given detections and ten output slots.
func NewMockEngine(dets ...MockDetection) *MockEngine {
	return &MockEngine{Detections: dets, Slots: 10}
}

// Allocate implements inference.Engine.
func (m *MockEngine) Allocate() error {
	if m.AllocateErr != nil {
		return m.AllocateErr
	}
	m.Allocated = true
	return nil
}

// Invoke implements inference.Engine. The input pixels are copied.
func (m *MockEngine) Invoke(in inference.Input) error {
	if !m.Allocated {
		return errors.New("tensors not allocated")
	}
	if err := in.Validate(); err != nil {
		return err
	}
	m.Invocations++
	m.LastInput = in
	m.LastInput.Pixels = append([]uint8(nil), in.Pixels...)
	return m.InvokeErr
}

// Output implements inference.Engine.
func (m *MockEngine) Output(name inference.OutputName) ([]float32, error) {
	if m.OutputErr != nil {
		return nil, m.OutputErr
	}

	slots := max(m.Slots, len(m.Detections))
	switch name {
	case inference.OutputBoxes:
		out := make([]float32, slots*4)
		for i, d := range m.Detections {
			copy(out[i*4:], d.Box[:])
		}
		return out, nil
	case inference.OutputClasses:
		out := make([]float32, slots)
		for i, d := range m.Detections {
			out[i] = d.Class
		}
		return out, nil
	case inference.OutputScores:
		out := make([]float32, slots)
		for i, d := range m.Detections {
			out[i] = d.Score
		}
		return out, nil
	case inference.OutputCount:
		if m.Count != nil {
			return []float32{*m.Count}, nil
		}
		return []float32{float32(len(m.Detections))}, nil
	default:
		return nil, errors.Errorf("unknown output %q", name)
	}
}

// Close implements inference.Engine.
func (m *MockEngine) Close() error {
	m.Closed = true
	return nil
}

// PixelAt returns the channel values of the last input at (x, y).
func (m *MockEngine) PixelAt(x, y int) []uint8 {
	in := m.LastInput
	i := (y*in.Width + x) * in.Channels
	return in.Pixels[i : i+in.Channels]
}
