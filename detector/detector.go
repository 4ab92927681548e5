// Package detector turns an inference.Engine into a subject detector: it
// prepares a frame for the model, runs it once and filters the raw SSD outputs
// by class and confidence.
package detector

import (
	"image"
	"sync"

	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/inference"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// ChannelOrder is the pixel order a model expects.
type ChannelOrder string

const (
	// OrderRGB swaps OpenCV's BGR frames to RGB.
	OrderRGB ChannelOrder = "rgb"
	// OrderBGR passes frames through unchanged.
	OrderBGR ChannelOrder = "bgr"
)

// Config parameterizes one detector instance.
type Config struct {
	// Name identifies the detector in logs.
	Name string `yaml:"name"`
	// Kind is the subject this detector reports.
	Kind models.Kind `yaml:"kind"`
	// Family selects the label set used to name classes.
	Family models.ModelFamily `yaml:"family"`
	// TargetClass is the class id kept by Detect.
	TargetClass int `yaml:"target_class"`
	// MinConfidence is the lowest score kept by Detect (inclusive).
	MinConfidence float32 `yaml:"min_confidence"`
	// Input is the model's fixed input width and height.
	Input image.Point `yaml:"input"`
	// Order is the channel order of the model input.
	Order ChannelOrder `yaml:"order"`
}

// DefaultConfig returns the settings of the 300x300 SSD MobileNet models for kind.
func DefaultConfig(kind models.Kind) Config {
	return Config{
		Name:          string(kind),
		Kind:          kind,
		Family:        kind.Family(),
		TargetClass:   0,
		MinConfidence: 0.5,
		Input:         image.Pt(300, 300),
		Order:         OrderRGB,
	}
}

// Validate reports configurations that cannot run.
func (c Config) Validate() error {
	if c.Input.X <= 0 || c.Input.Y <= 0 {
		return errors.Errorf("input size must be positive, got %dx%d", c.Input.X, c.Input.Y)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.Errorf("min confidence must be within [0, 1], got %v", c.MinConfidence)
	}
	if c.TargetClass < 0 {
		return errors.Errorf("target class must not be negative, got %d", c.TargetClass)
	}
	if c.Order != OrderRGB && c.Order != OrderBGR {
		return errors.Errorf("unknown channel order %q", c.Order)
	}
	return nil
}

// Option customizes a Detector.
type Option func(*Detector)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClassManager resolves class names through m instead of the built-in sets.
func WithClassManager(m *models.ClassManager) Option {
	return func(d *Detector) {
		if m != nil {
			d.classes = m
		}
	}
}

// Detector runs one model for one subject kind.
//
// Calls are serialized: the engine's input and output tensors are shared
// state, so one Detector should be used per execution context for throughput.
type Detector struct {
	cfg     Config
	engine  inference.Engine
	classes *models.ClassManager
	logger  *zap.Logger

	mu sync.Mutex
}

// New allocates the engine and returns a Detector that owns it.
//
// Arguments:
//   - engine: The inference engine. The detector takes ownership of it.
//   - cfg: The detector configuration.
//   - opts: Optional logger and class manager.
//
// Returns:
//   - *Detector: The detector, with engine tensors allocated.
//   - error: The validation or allocation error.
func New(engine inference.Engine, cfg Config, opts ...Option) (*Detector, error) {
	if engine == nil {
		return nil, errors.New("detector requires an inference engine")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid detector %q", cfg.Name)
	}

	d := &Detector{
		cfg:     cfg,
		engine:  engine,
		classes: models.DefaultClassManager(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(zap.String("detector", cfg.Name))

	if err := engine.Allocate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config { return d.cfg }

// Kind returns the subject kind the detector reports.
func (d *Detector) Kind() models.Kind { return d.cfg.Kind }

// Detect runs the model over img and keeps the configured class at or above
// the configured confidence.
//
// Arguments:
//   - img: The image to search, gray, BGR or BGRA. It is not modified.
//
// Returns:
//   - Result: The detections of the configured class at or above the configured confidence.
//   - error: The preprocessing error, or the engine's error unchanged.
func (d *Detector) Detect(img gocv.Mat) (Result, error) {
	return d.DetectWith(img, d.cfg.TargetClass, d.cfg.MinConfidence)
}

// DetectWith is Detect with an explicit class and threshold.
//
// img is never modified. An image with nothing above the threshold yields an
// empty Result, not an error. Engine failures are returned unchanged and are
// not retried.
//
// Arguments:
//   - img: The image to search. It is not modified.
//   - class: The class id to keep.
//   - minConfidence: The lowest score kept (inclusive).
//
// Returns:
//   - Result: The kept detections in engine order, with the size of img.
//   - error: The preprocessing or engine error.
func (d *Detector) DetectWith(img gocv.Mat, class int, minConfidence float32) (Result, error) {
	in, err := Preprocess(img, d.cfg.Input, d.cfg.Order)
	if err != nil {
		return Result{}, err
	}

	raw, err := d.run(in)
	if err != nil {
		return Result{}, err
	}

	dets, err := Decode(raw, class, minConfidence)
	if err != nil {
		return Result{}, inference.Fail(d.cfg.Name, "decode", err)
	}
	for i := range dets {
		if name, err := d.classes.GetName(d.cfg.Family, dets[i].ClassID); err == nil {
			dets[i].Label = name
		}
	}

	d.logger.Debug("detect",
		zap.Int("class", class),
		zap.Float32("min_confidence", minConfidence),
		zap.Int("candidates", raw.Count()),
		zap.Int("kept", len(dets)))

	return Result{Detections: dets, Source: images.Size(img)}, nil
}

func (d *Detector) run(in inference.Input) (Outputs, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.engine.Invoke(in); err != nil {
		return Outputs{}, err
	}

	var (
		out Outputs
		err error
	)
	if out.Boxes, err = d.engine.Output(inference.OutputBoxes); err != nil {
		return Outputs{}, err
	}
	if out.Classes, err = d.engine.Output(inference.OutputClasses); err != nil {
		return Outputs{}, err
	}
	if out.Scores, err = d.engine.Output(inference.OutputScores); err != nil {
		return Outputs{}, err
	}
	if out.Counts, err = d.engine.Output(inference.OutputCount); err != nil {
		return Outputs{}, err
	}
	return out, nil
}

// Close releases the engine.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engine.Close()
}
