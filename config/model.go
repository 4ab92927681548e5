package config

import (
	"image"
	"strings"

	"github.com/nvr-ai/go-sentry/detector"
	"github.com/nvr-ai/go-sentry/inference"
	"github.com/nvr-ai/go-sentry/inference/onnx"
	"github.com/nvr-ai/go-sentry/inference/opencv"
	"github.com/nvr-ai/go-sentry/inference/tflite"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ModelConfig selects the model and runtime for one subject kind. Runtime
// specific sections only need the settings the shared fields don't cover.
type ModelConfig struct {
	Runtime inference.Runtime `yaml:"runtime"`
	Path    string            `yaml:"path"`
	// Class is the target label name or numeric id.
	Class string `yaml:"class"`
	// Family names the label numbering. Empty uses the kind's default.
	Family models.ModelFamily `yaml:"family"`
	// Labels is an optional labelmap file that replaces the family's labels.
	Labels        string                `yaml:"labels"`
	MinConfidence float32               `yaml:"min_confidence"`
	Input         image.Point           `yaml:"input"`
	Order         detector.ChannelOrder `yaml:"order"`

	TFLite tflite.Config `yaml:"tflite"`
	ONNX   onnx.Config   `yaml:"onnx"`
	OpenCV opencv.Config `yaml:"opencv"`
}

// DefaultModel returns the 300x300 SSD MobileNet v2 TFLite setup for kind.
func DefaultModel(kind models.Kind) ModelConfig {
	d := detector.DefaultConfig(kind)
	return ModelConfig{
		Runtime:       inference.RuntimeTFLite,
		Path:          "models/" + string(kind) + "_ssd_mobilenet_v2.tflite",
		Class:         kind.ClassName(),
		Family:        d.Family,
		MinConfidence: d.MinConfidence,
		Input:         d.Input,
		Order:         d.Order,
		ONNX:          onnx.DefaultConfig(),
		OpenCV:        opencv.Config{LabelOffset: 1},
	}
}

// Validate checks the settings shared by every runtime.
func (m ModelConfig) Validate() error {
	if _, err := inference.ParseRuntime(string(m.Runtime)); err != nil {
		return err
	}
	if m.Path == "" {
		return errors.New("path is required")
	}
	if strings.TrimSpace(m.Class) == "" {
		return errors.New("class is required")
	}
	if m.MinConfidence < 0 || m.MinConfidence > 1 {
		return errors.Errorf("min_confidence must be within [0, 1], got %v", m.MinConfidence)
	}
	if m.Input.X <= 0 || m.Input.Y <= 0 {
		return errors.Errorf("input must be positive, got %dx%d", m.Input.X, m.Input.Y)
	}
	if m.Order != detector.OrderRGB && m.Order != detector.OrderBGR {
		return errors.Errorf("unknown channel order %q", m.Order)
	}
	return nil
}

// Detector resolves the detector settings for kind. A configured label file is
// registered with classes under the model's family.
func (m ModelConfig) Detector(kind models.Kind, classes *models.ClassManager) (detector.Config, error) {
	family := m.Family
	if family == "" {
		family = kind.Family()
	}

	if m.Labels != "" {
		set, err := models.LoadLabelFile(family, m.Labels)
		if err != nil {
			return detector.Config{}, err
		}
		classes.Register(set)
	}

	class, err := classes.Resolve(family, strings.TrimSpace(m.Class))
	if err != nil {
		return detector.Config{}, errors.Wrapf(err, "model for %q", kind)
	}

	return detector.Config{
		Name:          string(kind),
		Kind:          kind,
		Family:        family,
		TargetClass:   class,
		MinConfidence: m.MinConfidence,
		Input:         m.Input,
		Order:         m.Order,
	}, nil
}

// Engine builds the runtime adapter. The shared fields override the runtime
// section.
func (m ModelConfig) Engine(name string, logger *zap.Logger) (inference.Engine, error) {
	switch m.Runtime {
	case inference.RuntimeTFLite:
		cfg := m.TFLite
		cfg.Name, cfg.Path = name, m.Path
		return tflite.New(cfg, logger)
	case inference.RuntimeONNX:
		cfg := m.ONNX
		cfg.Name, cfg.Path, cfg.Input = name, m.Path, m.Input
		return onnx.New(cfg, logger)
	case inference.RuntimeOpenCV:
		cfg := m.OpenCV
		cfg.Name, cfg.Path, cfg.Input = name, m.Path, m.Input
		return opencv.New(cfg, logger)
	default:
		return nil, errors.Errorf("unsupported inference runtime %q", m.Runtime)
	}
}
