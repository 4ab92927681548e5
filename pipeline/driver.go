// Package pipeline runs one frame through region extraction, subject detection
// and subject cropping.
package pipeline

import (
	"github.com/nvr-ai/go-sentry/detector"
	"github.com/nvr-ai/go-sentry/images"
	"github.com/nvr-ai/go-sentry/models"
	"github.com/nvr-ai/go-sentry/region"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Status is the verdict for one frame.
type Status int

const (
	// StatusNoSubject means the mask held no motion region, so nothing was run.
	StatusNoSubject Status = iota
	// StatusAbsent means the detector ran and found nothing above threshold.
	StatusAbsent
	// StatusPresent means at least one subject was detected.
	StatusPresent
)

func (s Status) String() string {
	switch s {
	case StatusNoSubject:
		return "no_subject"
	case StatusAbsent:
		return "absent"
	case StatusPresent:
		return "present"
	default:
		return "unknown"
	}
}

// SubjectDetector is the detection capability the driver composes.
// *detector.Detector implements it.
type SubjectDetector interface {
	Kind() models.Kind
	Detect(img gocv.Mat) (detector.Result, error)
	Close() error
}

// Request selects the detector for one Run and whether a subject crop is wanted.
type Request struct {
	Kind models.Kind
	Crop bool
}

// Outcome is the result of one Run.
type Outcome struct {
	Kind   models.Kind
	Status Status
	// Region is the part of the frame given to the detector, in frame pixels.
	Region images.Rect
	// Result holds the kept detections. Boxes are relative to Region.
	Result detector.Result
	// Best is the highest scoring detection when Status is StatusPresent.
	Best detector.Detection
	// Subject is Best mapped into Region pixels.
	Subject images.Rect
	// Crop is the Subject pixels cut from the region image. It is empty unless
	// a crop was requested and a subject is present, and left unallocated when
	// Run fails. The caller owns it and releases it with Close.
	Crop gocv.Mat
}

// Present reports whether a subject was detected.
func (o Outcome) Present() bool { return o.Status == StatusPresent }

// SubjectInFrame returns Subject in frame pixels.
func (o Outcome) SubjectInFrame() images.Rect {
	return o.Subject.Translate(o.Region.X1, o.Region.Y1)
}

// HasCrop reports whether Crop holds pixels.
func (o Outcome) HasCrop() bool { return !o.Crop.Closed() && !o.Crop.Empty() }

// Close releases Crop. It is a no-op when no crop was allocated.
func (o *Outcome) Close() error {
	if o.Crop.Closed() {
		return nil
	}
	return o.Crop.Close()
}

// Driver composes a region extractor with one detector per subject kind.
//
// A Driver keeps no state between runs. Detectors serialize their own engine
// access, so concurrent runs for the same kind queue on that detector.
type Driver struct {
	extractor *region.Extractor
	detectors map[models.Kind]SubjectDetector
	logger    *zap.Logger
}

// NewDriver creates a Driver. Each kind may be registered once.
//
// Arguments:
//   - extractor: The region extractor.
//   - logger: The logger. Nil means no logging.
//   - detectors: One detector per subject kind.
//
// Returns:
//   - *Driver: The driver.
//   - error: The error if the extractor is nil or a kind repeats.
func NewDriver(extractor *region.Extractor, logger *zap.Logger, detectors ...SubjectDetector) (*Driver, error) {
	if extractor == nil {
		return nil, errors.New("driver requires a region extractor")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Driver{
		extractor: extractor,
		detectors: make(map[models.Kind]SubjectDetector, len(detectors)),
		logger:    logger,
	}
	for _, det := range detectors {
		if det == nil {
			return nil, errors.New("nil detector")
		}
		if _, ok := d.detectors[det.Kind()]; ok {
			return nil, errors.Errorf("detector for %q registered twice", det.Kind())
		}
		d.detectors[det.Kind()] = det
	}
	return d, nil
}

// Kinds returns the kinds the driver can detect, in models.Kinds order.
func (d *Driver) Kinds() []models.Kind {
	var kinds []models.Kind
	for _, k := range models.Kinds {
		if _, ok := d.detectors[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Run processes one frame and its motion mask.
//
// An empty mask sends the whole frame to the detector. A mask without motion
// yields StatusNoSubject without running inference. Detector errors are
// returned as-is. Neither frame nor mask is modified.
//
// Arguments:
//   - frame: The full camera frame (BGR or gray).
//   - mask: The motion mask for frame, or an empty Mat to skip region extraction.
//   - req: The subject kind to detect and whether to crop the subject.
//
// Returns:
//   - Outcome: The verdict, region, detections and optional crop. The caller
//     releases it with Close.
//   - error: The extraction or detector error. On error the Outcome holds no
//     native resources.
func (d *Driver) Run(frame, mask gocv.Mat, req Request) (Outcome, error) {
	det, ok := d.detectors[req.Kind]
	if !ok {
		return Outcome{Kind: req.Kind}, errors.Errorf("no detector for %q", req.Kind)
	}
	if frame.Empty() {
		return Outcome{Kind: req.Kind}, errors.New("frame is empty")
	}

	logger := d.logger.With(zap.String("kind", string(req.Kind)))

	out := Outcome{Kind: req.Kind}
	input := frame
	out.Region = images.Rect{X2: frame.Cols(), Y2: frame.Rows()}
	if !mask.Empty() {
		crop, r, err := d.extractor.Crop(frame, mask)
		if errors.Is(err, region.ErrNoMotionContour) || (err == nil && r.Empty()) {
			crop.Close()
			logger.Debug("no motion region")
			out.Crop = gocv.NewMat()
			return out, nil
		}
		if err != nil {
			crop.Close()
			return Outcome{Kind: req.Kind}, err
		}
		defer crop.Close()

		input = crop
		out.Region = r
		logger.Debug("motion region", zap.Stringer("region", r))
	}

	res, err := det.Detect(input)
	if err != nil {
		return Outcome{Kind: req.Kind}, err
	}
	out.Result = res

	best, ok := res.Best()
	if !ok {
		out.Status = StatusAbsent
		out.Crop = gocv.NewMat()
		logger.Info("subject absent", zap.Stringer("region", out.Region))
		return out, nil
	}

	out.Status = StatusPresent
	out.Best = best
	out.Subject = res.MapDetection(best)
	if req.Crop {
		out.Crop = images.Crop(input, out.Subject)
	} else {
		out.Crop = gocv.NewMat()
	}

	logger.Info("subject present",
		zap.String("label", best.Label),
		zap.Float32("score", best.Score),
		zap.Int("detections", len(res.Detections)),
		zap.Stringer("region", out.Region),
		zap.Stringer("subject", out.SubjectInFrame()))
	return out, nil
}

// Close closes every detector.
func (d *Driver) Close() error {
	var err error
	for _, k := range d.Kinds() {
		err = multierr.Append(err, d.detectors[k].Close())
	}
	return err
}
