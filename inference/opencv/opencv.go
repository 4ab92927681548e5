// Package opencv runs SSD models through the OpenCV DNN module (gocv.ReadNet),
// e.g. TensorFlow frozen graphs with a .pbtxt config.
//
// OpenCV collapses the SSD postprocess into one DetectionOutput blob of shape
// [1, 1, N, 7] with rows (image_id, label, score, xmin, ymin, xmax, ymax). The
// engine splits it back into the four tensors the detector reads.
package opencv

import (
	"image"
	"os"

	"github.com/nvr-ai/go-sentry/inference"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Config describes one OpenCV DNN model.
type Config struct {
	// Name identifies the model in logs and errors.
	Name string `yaml:"name"`
	// Path is the model weights (.pb, .onnx, .caffemodel, ...).
	Path string `yaml:"path"`
	// ConfigPath is the optional network description (.pbtxt, .prototxt).
	ConfigPath string `yaml:"config_path"`
	// Input is the blob width and height.
	Input image.Point `yaml:"input"`
	// Normalization is applied by BlobFromImage as (p - Mean) / Std.
	Normalization inference.Normalization `yaml:"normalization"`
	// LabelOffset is subtracted from every label, 1 for graphs that reserve 0
	// for the background class.
	LabelOffset int `yaml:"label_offset"`
	// Backend and Target select the DNN backend, e.g. "opencv"/"cpu".
	Backend string `yaml:"backend"`
	Target  string `yaml:"target"`
}

// Engine is an inference.Engine over a gocv.Net.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	net     gocv.Net
	loaded  bool
	outputs map[inference.OutputName][]float32
}

var _ inference.Engine = (*Engine)(nil)

// New loads the network.
//
// Arguments:
//   - cfg: The network configuration.
//   - logger: The logger. Nil means no logging.
//
// Returns:
//   - *Engine: The engine with the network loaded.
//   - error: The error if the model cannot be read.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Input.X <= 0 || cfg.Input.Y <= 0 {
		return nil, errors.Errorf("input size must be positive, got %dx%d", cfg.Input.X, cfg.Input.Y)
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", cfg.Path)
	}
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return nil, errors.Wrapf(err, "network config not found: %s", cfg.ConfigPath)
		}
	}
	if cfg.Normalization == (inference.Normalization{}) {
		cfg.Normalization = inference.DefaultNormalization
	}

	net := gocv.ReadNet(cfg.Path, cfg.ConfigPath)
	if net.Empty() {
		return nil, errors.Errorf("failed to load %s (model may be incompatible with OpenCV DNN)", cfg.Path)
	}

	return &Engine{
		cfg:    cfg,
		logger: logger.With(zap.String("model", cfg.Name)),
		net:    net,
		loaded: true,
	}, nil
}

// Allocate selects the preferred backend and target.
func (e *Engine) Allocate() error {
	if !e.loaded {
		return inference.Fail(e.cfg.Name, "allocate", errors.New("network closed"))
	}
	if err := e.net.SetPreferableBackend(gocv.ParseNetBackend(e.cfg.Backend)); err != nil {
		return inference.Fail(e.cfg.Name, "allocate", err)
	}
	if err := e.net.SetPreferableTarget(gocv.ParseNetTarget(e.cfg.Target)); err != nil {
		return inference.Fail(e.cfg.Name, "allocate", err)
	}

	e.logger.Info("opencv network ready",
		zap.String("path", e.cfg.Path),
		zap.Int("layers", len(e.net.GetLayerNames())))
	return nil
}

// Invoke builds a blob from in, runs a forward pass and splits the output.
func (e *Engine) Invoke(in inference.Input) error {
	if !e.loaded {
		return inference.Fail(e.cfg.Name, "invoke", errors.New("network closed"))
	}
	if err := in.Validate(); err != nil {
		return inference.Fail(e.cfg.Name, "invoke", err)
	}

	img, err := gocv.NewMatFromBytes(in.Height, in.Width, gocv.MatTypeCV8UC3, in.Pixels)
	if err != nil {
		return inference.Fail(e.cfg.Name, "invoke", err)
	}
	defer img.Close()

	n := e.cfg.Normalization
	if n.Std == 0 {
		n.Std = 1
	}
	mean := float64(n.Mean)
	blob := gocv.BlobFromImage(img, 1/float64(n.Std), e.cfg.Input, gocv.NewScalar(mean, mean, mean, 0), false, false)
	defer blob.Close()

	if blob.Empty() {
		return inference.Fail(e.cfg.Name, "invoke", errors.New("failed to build input blob"))
	}
	e.net.SetInput(blob, "")

	out := e.net.Forward("")
	defer out.Close()
	if out.Empty() {
		return inference.Fail(e.cfg.Name, "invoke", errors.New("forward pass returned an empty blob"))
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return inference.Fail(e.cfg.Name, "invoke", err)
	}

	e.outputs = SplitDetectionOutput(data, float32(e.cfg.LabelOffset))
	return nil
}

// Output returns the named tensor of the last Invoke.
func (e *Engine) Output(name inference.OutputName) ([]float32, error) {
	data, ok := e.outputs[name]
	if !ok {
		return nil, inference.Fail(e.cfg.Name, "output", errors.Errorf("no output %q", name))
	}
	return append([]float32(nil), data...), nil
}

// Close releases the network.
func (e *Engine) Close() error {
	if !e.loaded {
		return nil
	}
	e.loaded = false
	return errors.Wrap(e.net.Close(), "error closing network")
}

// SplitDetectionOutput converts DetectionOutput rows into boxes (ymin, xmin,
// ymax, xmax), classes, scores and a count. Rows with a negative image id are
// padding and are dropped.
func SplitDetectionOutput(data []float32, labelOffset float32) map[inference.OutputName][]float32 {
	rows := len(data) / 7
	boxes := make([]float32, 0, rows*4)
	classes := make([]float32, 0, rows)
	scores := make([]float32, 0, rows)

	for i := 0; i < rows; i++ {
		row := data[i*7 : i*7+7]
		if row[0] < 0 {
			continue
		}
		classes = append(classes, row[1]-labelOffset)
		scores = append(scores, row[2])
		boxes = append(boxes, row[4], row[3], row[6], row[5])
	}

	return map[inference.OutputName][]float32{
		inference.OutputBoxes:   boxes,
		inference.OutputClasses: classes,
		inference.OutputScores:  scores,
		inference.OutputCount:   {float32(len(scores))},
	}
}
