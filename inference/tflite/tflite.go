// Package tflite runs SSD-style detection models through TensorFlow Lite.
package tflite

import (
	"runtime"

	tflite "github.com/mattn/go-tflite"
	"github.com/nvr-ai/go-sentry/inference"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Config describes one .tflite model.
type Config struct {
	// Name identifies the model in logs and errors.
	Name string `yaml:"name"`
	// Path is the .tflite file.
	Path string `yaml:"path"`
	// Threads is the interpreter thread count. Zero means one per CPU.
	Threads int `yaml:"threads"`
	// Normalization applies when the model takes float32 input.
	Normalization inference.Normalization `yaml:"normalization"`
	// OutputIndex maps each detection output to its output tensor index.
	// Empty means the SSD postprocess order: boxes, classes, scores, count.
	OutputIndex map[inference.OutputName]int `yaml:"output_index"`
}

// Engine is an inference.Engine over a TensorFlow Lite interpreter.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	allocated   bool
	scratch     []float32
}

var _ inference.Engine = (*Engine)(nil)

// New loads the model and builds its interpreter.
//
// Arguments:
//   - cfg: The interpreter configuration.
//   - logger: The logger. Nil means no logging.
//
// Returns:
//   - *Engine: The engine. Tensors are allocated by Allocate.
//   - error: The error if the model cannot be loaded.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		return nil, errors.Errorf("tflite model %q has no path", cfg.Name)
	}
	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}
	if cfg.Normalization == (inference.Normalization{}) {
		cfg.Normalization = inference.DefaultNormalization
	}
	if len(cfg.OutputIndex) == 0 {
		cfg.OutputIndex = DefaultOutputIndex()
	}

	e := &Engine{cfg: cfg, logger: logger.With(zap.String("model", cfg.Name))}

	e.model = tflite.NewModelFromFile(cfg.Path)
	if e.model == nil {
		return nil, errors.Errorf("failed to load tflite model %s", cfg.Path)
	}

	e.options = tflite.NewInterpreterOptions()
	if e.options == nil {
		e.Close()
		return nil, errors.New("interpreter options failed to be created")
	}
	e.options.SetNumThread(cfg.Threads)
	e.options.SetErrorReporter(func(msg string, _ interface{}) {
		e.logger.Warn("tflite", zap.String("message", msg))
	}, nil)

	e.interpreter = tflite.NewInterpreter(e.model, e.options)
	if e.interpreter == nil {
		e.Close()
		return nil, errors.Errorf("failed to create interpreter for %s", cfg.Path)
	}

	return e, nil
}

// DefaultOutputIndex is the output order of the TFLite SSD postprocess op.
func DefaultOutputIndex() map[inference.OutputName]int {
	return map[inference.OutputName]int{
		inference.OutputBoxes:   0,
		inference.OutputClasses: 1,
		inference.OutputScores:  2,
		inference.OutputCount:   3,
	}
}

// Allocate allocates the interpreter's tensors.
func (e *Engine) Allocate() error {
	if e.allocated {
		return nil
	}
	if status := e.interpreter.AllocateTensors(); status != tflite.OK {
		return inference.Fail(e.cfg.Name, "allocate", errors.Errorf("failed to allocate tensors: %v", status))
	}
	e.allocated = true

	in := e.interpreter.GetInputTensor(0)
	e.logger.Info("tflite interpreter ready",
		zap.String("path", e.cfg.Path),
		zap.Int("height", in.Dim(1)),
		zap.Int("width", in.Dim(2)),
		zap.Int("channels", in.Dim(3)),
		zap.String("input_type", in.Type().String()),
		zap.Int("outputs", e.interpreter.GetOutputTensorCount()))
	return nil
}

// Invoke copies in into input tensor 0 and runs the interpreter.
func (e *Engine) Invoke(in inference.Input) error {
	if !e.allocated {
		return inference.Fail(e.cfg.Name, "invoke", errors.New("tensors not allocated"))
	}
	if err := in.Validate(); err != nil {
		return inference.Fail(e.cfg.Name, "invoke", err)
	}

	tensor := e.interpreter.GetInputTensor(0)
	if h, w, c := tensor.Dim(1), tensor.Dim(2), tensor.Dim(3); h != in.Height || w != in.Width || c != in.Channels {
		return inference.Fail(e.cfg.Name, "invoke", errors.Errorf(
			"input is %dx%dx%d, model expects %dx%dx%d", in.Width, in.Height, in.Channels, w, h, c))
	}

	var status tflite.Status
	switch tensor.Type() {
	case tflite.UInt8:
		status = tensor.CopyFromBuffer(in.Pixels)
	case tflite.Float32:
		e.scratch = in.Float32(e.cfg.Normalization, e.scratch)
		status = tensor.CopyFromBuffer(e.scratch)
	default:
		return inference.Fail(e.cfg.Name, "invoke", errors.Errorf("unsupported input tensor type %v", tensor.Type()))
	}
	if status != tflite.OK {
		return inference.Fail(e.cfg.Name, "invoke", errors.New("copying to buffer failed"))
	}

	if status := e.interpreter.Invoke(); status != tflite.OK {
		return inference.Fail(e.cfg.Name, "invoke", errors.New("invoke failed"))
	}
	return nil
}

// Output returns a copy of the named float32 output tensor.
func (e *Engine) Output(name inference.OutputName) ([]float32, error) {
	idx, ok := e.cfg.OutputIndex[name]
	if !ok || idx < 0 || idx >= e.interpreter.GetOutputTensorCount() {
		return nil, inference.Fail(e.cfg.Name, "output", errors.Errorf("no output tensor for %q", name))
	}

	tensor := e.interpreter.GetOutputTensor(idx)
	if tensor.Type() != tflite.Float32 {
		return nil, inference.Fail(e.cfg.Name, "output", errors.Errorf("output %q is %v, want float32", name, tensor.Type()))
	}

	data := tensor.Float32s()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Close deletes the interpreter, its options and the model.
func (e *Engine) Close() error {
	if e.interpreter != nil {
		e.interpreter.Delete()
		e.interpreter = nil
	}
	if e.options != nil {
		e.options.Delete()
		e.options = nil
	}
	if e.model != nil {
		e.model.Delete()
		e.model = nil
	}
	e.allocated = false
	return nil
}
