package images

import (
	"os"
	"path/filepath"
	"time"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// TimestampLayout names stored frames, e.g. 10-19-2026--14-03-22.
const TimestampLayout = "01-02-2006--15-04-05"

// Store writes frames and crops to a directory using the
// {dir}/{timestamp}[_{label}].{ext} naming convention.
type Store struct {
	// Dir is the target directory. It is created on first write.
	Dir string
	// Format selects the encoder and the file extension.
	Format ImageFormat
	// Quality is used by lossy encoders (jpeg, webp). Zero means 90.
	Quality int

	now func() time.Time
}

// WriteOptions controls a single Store.Write call.
type WriteOptions struct {
	// Label is appended to the timestamp as _{label} when not empty.
	Label string
	// Time overrides the timestamp. Zero means now.
	Time time.Time
	// Crop, when set, restricts the written pixels to this rect (clamped to the image).
	Crop *Rect
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string, format ImageFormat) *Store {
	if format == "" {
		format = FormatPNG
	}
	return &Store{Dir: dir, Format: format, now: time.Now}
}

// Sub returns a Store writing into dir/name with the same encoding settings.
func (s *Store) Sub(name string) *Store {
	sub := *s
	sub.Dir = filepath.Join(s.Dir, name)
	return &sub
}

// Path returns the file path a write with the given label and time would use.
func (s *Store) Path(label string, ts time.Time) string {
	name := ts.Format(TimestampLayout)
	if label != "" {
		name += "_" + label
	}
	name += "." + s.Format.Extension()
	if s.Dir == "" {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// Write encodes mat to disk and returns the written path.
//
// Arguments:
//   - mat: The image to write.
//   - opts: The label, timestamp and optional crop.
//
// Returns:
//   - string: The written path.
//   - error: The error if the image is empty or cannot be encoded.
func (s *Store) Write(mat gocv.Mat, opts WriteOptions) (string, error) {
	if mat.Empty() {
		return "", errors.New("cannot write an empty image")
	}

	ts := opts.Time
	if ts.IsZero() {
		ts = s.clock()()
	}

	out := mat
	if opts.Crop != nil {
		out = Crop(mat, *opts.Crop)
		defer out.Close()
		if out.Empty() {
			return "", errors.Errorf("crop %s leaves no pixels", opts.Crop)
		}
	}

	if s.Dir != "" {
		if err := os.MkdirAll(s.Dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "failed to create output directory %s", s.Dir)
		}
	}

	path := s.Path(opts.Label, ts)
	switch s.Format {
	case FormatWebP:
		if err := s.writeWebP(path, out); err != nil {
			return "", err
		}
	case FormatJPEG:
		if !gocv.IMWriteWithParams(path, out, []int{gocv.IMWriteJpegQuality, s.quality()}) {
			return "", errors.Errorf("failed to write %s", path)
		}
	default:
		if !gocv.IMWrite(path, out) {
			return "", errors.Errorf("failed to write %s", path)
		}
	}

	return path, nil
}

func (s *Store) writeWebP(path string, mat gocv.Mat) error {
	img, err := mat.ToImage()
	if err != nil {
		return errors.Wrap(err, "failed to convert frame for webp encoding")
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	if err := webp.Encode(f, img, &webp.Options{Quality: float32(s.quality())}); err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return f.Close()
}

func (s *Store) quality() int {
	if s.Quality <= 0 {
		return 90
	}
	return s.Quality
}

func (s *Store) clock() func() time.Time {
	if s.now == nil {
		return time.Now
	}
	return s.now
}
