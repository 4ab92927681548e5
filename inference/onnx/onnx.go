// Package onnx runs SSD-style detection models through ONNX Runtime.
//
// The model is expected to take a single NHWC image tensor and to produce the
// four TensorFlow Object Detection API outputs (boxes, classes, scores, count).
// Exports from tf2onnx keep the TensorFlow names, which are the defaults here.
package onnx

import (
	"image"

	"github.com/nvr-ai/go-sentry/inference"
	"github.com/nvr-ai/go-sentry/inference/providers"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Config describes one ONNX model.
type Config struct {
	// Name identifies the model in logs and errors.
	Name string `yaml:"name"`
	// Path is the .onnx file.
	Path string `yaml:"path"`
	// LibraryPath overrides the ONNX Runtime shared library location.
	LibraryPath string `yaml:"library_path"`
	// Input is the model's fixed input width and height.
	Input image.Point `yaml:"input"`
	// InputType is the element type of the input tensor.
	InputType inference.DataType `yaml:"input_type"`
	// Normalization applies to float32 inputs only.
	Normalization inference.Normalization `yaml:"normalization"`
	// InputName is the graph name of the image input.
	InputName string `yaml:"input_name"`
	// OutputNames maps each detection output to its graph name.
	OutputNames map[inference.OutputName]string `yaml:"output_names"`
	// MaxDetections is the number of rows in the box, class and score outputs.
	MaxDetections int `yaml:"max_detections"`
	// Providers configures the session.
	Providers providers.Config `yaml:"providers"`
}

// DefaultConfig returns the settings of a tf2onnx SSD MobileNet export.
func DefaultConfig() Config {
	return Config{
		Name:          "ssd_mobilenet",
		Input:         image.Pt(300, 300),
		InputType:     inference.DataTypeUint8,
		Normalization: inference.DefaultNormalization,
		InputName:     "image_tensor:0",
		OutputNames: map[inference.OutputName]string{
			inference.OutputBoxes:   "detection_boxes:0",
			inference.OutputClasses: "detection_classes:0",
			inference.OutputScores:  "detection_scores:0",
			inference.OutputCount:   "num_detections:0",
		},
		MaxDetections: 100,
		Providers:     providers.DefaultConfig(),
	}
}

// Validate reports missing paths, names and shapes.
func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("onnx model path is required")
	}
	if c.Input.X <= 0 || c.Input.Y <= 0 {
		return errors.Errorf("input size must be positive, got %dx%d", c.Input.X, c.Input.Y)
	}
	if c.InputType != inference.DataTypeUint8 && c.InputType != inference.DataTypeFloat32 {
		return errors.Errorf("unsupported input type %q", c.InputType)
	}
	if c.InputName == "" {
		return errors.New("input name is required")
	}
	for _, name := range inference.Outputs {
		if c.OutputNames[name] == "" {
			return errors.Errorf("no graph name configured for output %q", name)
		}
	}
	if c.MaxDetections <= 0 {
		return errors.Errorf("max detections must be positive, got %d", c.MaxDetections)
	}
	return c.Providers.Validate()
}

// Engine is an inference.Engine over an ONNX Runtime session.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	session  *ort.AdvancedSession
	inputU8  *ort.Tensor[uint8]
	inputF32 *ort.Tensor[float32]
	outputs  map[inference.OutputName]*ort.Tensor[float32]
}

var _ inference.Engine = (*Engine)(nil)

// New validates cfg. The runtime is loaded by Allocate.
//
// Arguments:
//   - cfg: The session configuration.
//   - logger: The logger. Nil means no logging.
//
// Returns:
//   - *Engine: The engine. The session is created by Allocate.
//   - error: The validation error.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid onnx model %q", cfg.Name)
	}
	return &Engine{cfg: cfg, logger: logger.With(zap.String("model", cfg.Name))}, nil
}

// Allocate loads the runtime, binds the input and output tensors and creates
// the session.
func (e *Engine) Allocate() error {
	if e.session != nil {
		return nil
	}
	if err := providers.InitializeEnvironment(e.cfg.LibraryPath); err != nil {
		return inference.Fail(e.cfg.Name, "allocate", err)
	}
	if err := e.allocate(); err != nil {
		e.destroy()
		return inference.Fail(e.cfg.Name, "allocate", err)
	}

	e.logger.Info("onnx session ready",
		zap.String("path", e.cfg.Path),
		zap.String("backend", string(e.cfg.Providers.Backend)),
		zap.Int("width", e.cfg.Input.X),
		zap.Int("height", e.cfg.Input.Y))
	return nil
}

func (e *Engine) allocate() error {
	var (
		in  ort.ArbitraryTensor
		err error
	)
	shape := ort.NewShape(1, int64(e.cfg.Input.Y), int64(e.cfg.Input.X), 3)
	if e.cfg.InputType == inference.DataTypeFloat32 {
		e.inputF32, err = ort.NewEmptyTensor[float32](shape)
		in = e.inputF32
	} else {
		e.inputU8, err = ort.NewEmptyTensor[uint8](shape)
		in = e.inputU8
	}
	if err != nil {
		return errors.Wrap(err, "error creating input tensor")
	}

	n := int64(e.cfg.MaxDetections)
	shapes := map[inference.OutputName]ort.Shape{
		inference.OutputBoxes:   ort.NewShape(1, n, 4),
		inference.OutputClasses: ort.NewShape(1, n),
		inference.OutputScores:  ort.NewShape(1, n),
		inference.OutputCount:   ort.NewShape(1),
	}

	e.outputs = make(map[inference.OutputName]*ort.Tensor[float32], len(shapes))
	names := make([]string, 0, len(inference.Outputs))
	outs := make([]ort.ArbitraryTensor, 0, len(inference.Outputs))
	for _, name := range inference.Outputs {
		t, err := ort.NewEmptyTensor[float32](shapes[name])
		if err != nil {
			return errors.Wrapf(err, "error creating %s tensor", name)
		}
		e.outputs[name] = t
		names = append(names, e.cfg.OutputNames[name])
		outs = append(outs, t)
	}

	options, err := providers.SessionOptions(e.cfg.Providers, e.logger)
	if err != nil {
		return err
	}
	defer options.Destroy()

	e.session, err = ort.NewAdvancedSession(
		e.cfg.Path,
		[]string{e.cfg.InputName},
		names,
		[]ort.ArbitraryTensor{in},
		outs,
		options,
	)
	return errors.Wrap(err, "error creating ORT session")
}

// Invoke copies in into the input tensor and runs the session.
func (e *Engine) Invoke(in inference.Input) error {
	if e.session == nil {
		return inference.Fail(e.cfg.Name, "invoke", errors.New("session not allocated"))
	}
	if err := in.Validate(); err != nil {
		return inference.Fail(e.cfg.Name, "invoke", err)
	}
	if in.Width != e.cfg.Input.X || in.Height != e.cfg.Input.Y || in.Channels != 3 {
		return inference.Fail(e.cfg.Name, "invoke", errors.Errorf(
			"input is %dx%dx%d, model expects %dx%dx3",
			in.Width, in.Height, in.Channels, e.cfg.Input.X, e.cfg.Input.Y))
	}

	if e.inputF32 != nil {
		in.Float32(e.cfg.Normalization, e.inputF32.GetData())
	} else {
		copy(e.inputU8.GetData(), in.Pixels)
	}

	return inference.Fail(e.cfg.Name, "invoke", e.session.Run())
}

// Output returns a copy of the named output tensor.
func (e *Engine) Output(name inference.OutputName) ([]float32, error) {
	t, ok := e.outputs[name]
	if !ok || t == nil {
		return nil, inference.Fail(e.cfg.Name, "output", errors.Errorf("no output %q", name))
	}
	data := t.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Close destroys the session and its tensors.
func (e *Engine) Close() error {
	return e.destroy()
}

func (e *Engine) destroy() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputU8 != nil {
		e.inputU8.Destroy()
		e.inputU8 = nil
	}
	if e.inputF32 != nil {
		e.inputF32.Destroy()
		e.inputF32 = nil
	}
	for name, t := range e.outputs {
		t.Destroy()
		delete(e.outputs, name)
	}
	return errors.Wrap(err, "error destroying ORT session")
}
