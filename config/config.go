// Package config loads the sentry YAML configuration.
//
// Load starts from Default and overlays the file, so a file only needs the
// settings it changes:
//
//	camera: porch
//	frame:
//	  preset: 1080p
//	models:
//	  person:
//	    runtime: tflite
//	    path: models/ssd_mobilenet_v2.tflite
package config

import (
	"bytes"
	"image"
	"io"
	"os"

	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/logging"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/nvr-ai/go-sentry/region"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Config is the complete configuration of one camera pipeline.
type Config struct {
	// Camera names the source in logs and the journal.
	Camera  string         `yaml:"camera"`
	Frame   FrameConfig    `yaml:"frame"`
	Motion  MotionConfig   `yaml:"motion"`
	Models  ModelsConfig   `yaml:"models"`
	Output  OutputConfig   `yaml:"output"`
	Journal JournalConfig  `yaml:"journal"`
	Log     logging.Config `yaml:"log"`
}

// FrameConfig is the camera frame size, as a preset alias or explicit pixels.
// Explicit pixels win over the preset.
type FrameConfig struct {
	Preset string `yaml:"preset"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Size resolves the frame size.
func (f FrameConfig) Size() (image.Point, error) {
	if f.Width != 0 || f.Height != 0 {
		return image.Pt(f.Width, f.Height), nil
	}
	res, err := images.LookupResolution(f.Preset)
	if err != nil {
		return image.Point{}, err
	}
	return res.Size(), nil
}

// MotionConfig describes how the motion detector's input is cut from the frame
// and how its mask is mapped back.
type MotionConfig struct {
	// Crop is the part of the frame the motion detector watches.
	Crop images.Rect `yaml:"crop"`
	// MaskWidth is the width the crop is shrunk to for the motion detector.
	MaskWidth int `yaml:"mask_width"`
	// UpscaleWidth is the width masks are scaled back to. Zero means the crop width.
	UpscaleWidth int `yaml:"upscale_width"`
	PadX         int `yaml:"pad_x"`
	PadY         int `yaml:"pad_y"`
}

// ModelsConfig holds one model per subject kind.
type ModelsConfig struct {
	Person ModelConfig `yaml:"person"`
	Face   ModelConfig `yaml:"face"`
}

// For returns the model configured for kind.
func (m ModelsConfig) For(kind models.Kind) (ModelConfig, error) {
	switch kind {
	case models.KindPerson:
		return m.Person, nil
	case models.KindFace:
		return m.Face, nil
	default:
		return ModelConfig{}, errors.Errorf("no model for subject kind %q", kind)
	}
}

// OutputConfig controls where frames and crops are stored.
type OutputConfig struct {
	Dir     string `yaml:"dir"`
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality"`
	// SnapshotWidth bounds notification photos. Zero keeps full size.
	SnapshotWidth int `yaml:"snapshot_width"`
}

// Store returns the image store rooted at Dir.
func (o OutputConfig) Store() (*images.Store, error) {
	format, err := images.ParseFormat(o.Format)
	if err != nil {
		return nil, err
	}
	s := images.NewStore(o.Dir, format)
	s.Quality = o.Quality
	return s, nil
}

// JournalConfig locates the event journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration of a 1080p camera whose motion detector
// watches x 450..1920, y 200..650 at 500 pixels wide.
func Default() Config {
	return Config{
		Camera: "default",
		Frame:  FrameConfig{Preset: "1080p"},
		Motion: MotionConfig{
			Crop:      images.Rect{X1: 450, Y1: 200, X2: 1920, Y2: 650},
			MaskWidth: 500,
			PadX:      100,
			PadY:      125,
		},
		Models: ModelsConfig{
			Person: DefaultModel(models.KindPerson),
			Face:   DefaultModel(models.KindFace),
		},
		Output: OutputConfig{
			Dir:           "images",
			Format:        string(images.FormatPNG),
			Quality:       90,
			SnapshotWidth: 640,
		},
		Journal: JournalConfig{Path: "sentry.db"},
		Log:     logging.Config{Level: "info"},
	}
}

// Load reads path over Default and validates the result. Unknown keys are
// rejected.
//
// Arguments:
//   - path: The YAML file path.
//
// Returns:
//   - Config: The file overlaid on Default.
//   - error: The read, decode or validation error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	frame, err := c.Frame.Size()
	if err != nil {
		return invalid("frame: %v", err)
	}
	if frame.X <= 0 || frame.Y <= 0 {
		return invalid("frame: size must be positive, got %dx%d", frame.X, frame.Y)
	}

	m := c.Motion
	if m.Crop.Empty() || !m.Crop.Within(frame.X, frame.Y) {
		return invalid("motion.crop: %s must be a non-empty part of the %dx%d frame", m.Crop, frame.X, frame.Y)
	}
	if m.MaskWidth <= 0 {
		return invalid("motion.mask_width: must be positive, got %d", m.MaskWidth)
	}
	if m.UpscaleWidth < 0 {
		return invalid("motion.upscale_width: must not be negative, got %d", m.UpscaleWidth)
	}
	if m.PadX < 0 || m.PadY < 0 {
		return invalid("motion.pad_x/pad_y: must not be negative, got %d/%d", m.PadX, m.PadY)
	}

	for _, kind := range models.Kinds {
		model, _ := c.Models.For(kind)
		if err := model.Validate(); err != nil {
			return invalid("models.%s: %v", kind, err)
		}
	}

	if _, err := images.ParseFormat(c.Output.Format); err != nil {
		return invalid("output.format: %v", err)
	}
	if c.Output.Quality < 0 || c.Output.Quality > 100 {
		return invalid("output.quality: must be within [0, 100], got %d", c.Output.Quality)
	}
	if c.Output.SnapshotWidth < 0 {
		return invalid("output.snapshot_width: must not be negative, got %d", c.Output.SnapshotWidth)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	return nil
}

// Region returns the extractor geometry.
func (c Config) Region() (region.Config, error) {
	frame, err := c.Frame.Size()
	if err != nil {
		return region.Config{}, err
	}

	upscale := c.Motion.UpscaleWidth
	if upscale == 0 {
		upscale = c.Motion.Crop.Width()
	}
	return region.Config{
		Frame:        frame,
		Offset:       image.Pt(c.Motion.Crop.X1, c.Motion.Crop.Y1),
		UpscaleWidth: upscale,
		PadX:         c.Motion.PadX,
		PadY:         c.Motion.PadY,
	}, nil
}
