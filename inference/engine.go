// Package inference defines the capability the detector needs from an
// inference runtime and the pieces shared by every runtime adapter.
//
// A runtime adapter (see the tflite, onnx and opencv subpackages) loads one model and
// exposes it as an Engine:
//
//	engine.Allocate()          // once, before the first Invoke
//	engine.Invoke(input)       // RGB HWC pixels at the model's input size
//	engine.Output(OutputBoxes) // flattened float32 tensor, copied out
//
// Engines are not safe for concurrent use. Callers that share one must
// serialize Invoke and Output.
package inference

import (
	"github.com/pkg/errors"
)

// Runtime names an inference runtime an Engine can be backed by.
type Runtime string

const (
	// RuntimeTFLite runs .tflite models through TensorFlow Lite.
	RuntimeTFLite Runtime = "tflite"
	// RuntimeONNX runs .onnx models through ONNX Runtime.
	RuntimeONNX Runtime = "onnx"
	// RuntimeOpenCV runs models through the OpenCV DNN module.
	RuntimeOpenCV Runtime = "opencv"
)

// Runtimes lists every supported runtime.
var Runtimes = []Runtime{RuntimeTFLite, RuntimeONNX, RuntimeOpenCV}

// ParseRuntime validates a runtime name.
//
// Arguments:
//   - s: The runtime name, tflite, onnx or opencv.
//
// Returns:
//   - Runtime: The runtime.
//   - error: The error if the name is unknown.
func ParseRuntime(s string) (Runtime, error) {
	for _, r := range Runtimes {
		if string(r) == s {
			return r, nil
		}
	}
	return "", errors.Errorf("unsupported inference runtime %q", s)
}

// DataType is the element type of a model's input tensor.
type DataType string

const (
	// DataTypeUint8 feeds raw 0..255 pixel values (quantized SSD models).
	DataTypeUint8 DataType = "uint8"
	// DataTypeFloat32 feeds normalized pixel values.
	DataTypeFloat32 DataType = "float32"
)

// OutputName identifies one of the four tensors an SSD-style detection model
// produces.
type OutputName string

const (
	// OutputBoxes is the N x 4 box tensor, normalized ymin, xmin, ymax, xmax.
	OutputBoxes OutputName = "boxes"
	// OutputClasses is the N class id tensor.
	OutputClasses OutputName = "classes"
	// OutputScores is the N confidence tensor.
	OutputScores OutputName = "scores"
	// OutputCount is the scalar number of valid detections.
	OutputCount OutputName = "count"
)

// Outputs lists the detection outputs in the order SSD models emit them.
var Outputs = []OutputName{OutputBoxes, OutputClasses, OutputScores, OutputCount}

// Engine is an opaque, loaded model.
type Engine interface {
	// Allocate prepares the runtime's tensors. It must succeed before Invoke.
	Allocate() error
	// Invoke copies in into the input tensor and runs the model once.
	Invoke(in Input) error
	// Output returns a copy of the named output tensor of the last Invoke.
	Output(name OutputName) ([]float32, error)
	// Close releases native resources.
	Close() error
}

// Input is a packed, interleaved RGB image sized to the model's input.
type Input struct {
	Pixels   []uint8
	Width    int
	Height   int
	Channels int
}

// Validate checks that the pixel buffer matches the declared geometry.
func (in Input) Validate() error {
	if in.Width <= 0 || in.Height <= 0 || in.Channels <= 0 {
		return errors.Errorf("invalid input geometry %dx%dx%d", in.Width, in.Height, in.Channels)
	}
	if want := in.Width * in.Height * in.Channels; len(in.Pixels) != want {
		return errors.Errorf("input holds %d bytes, %dx%dx%d needs %d",
			len(in.Pixels), in.Width, in.Height, in.Channels, want)
	}
	return nil
}

// Normalization maps a pixel value p to (p - Mean) / Std for float models.
type Normalization struct {
	Mean float32 `yaml:"mean"`
	Std  float32 `yaml:"std"`
}

// DefaultNormalization maps 0..255 to -1..1, the convention of float SSD
// MobileNet exports.
var DefaultNormalization = Normalization{Mean: 127.5, Std: 127.5}

// Float32 returns the input pixels normalized into dst, which is grown if too
// short. The layout stays HWC.
func (in Input) Float32(n Normalization, dst []float32) []float32 {
	if n.Std == 0 {
		n.Std = 1
	}
	if cap(dst) < len(in.Pixels) {
		dst = make([]float32, len(in.Pixels))
	}
	dst = dst[:len(in.Pixels)]
	for i, p := range in.Pixels {
		dst[i] = (float32(p) - n.Mean) / n.Std
	}
	return dst
}
