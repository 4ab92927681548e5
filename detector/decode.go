package detector

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// NormalizedBox is a box in [0, 1] model input coordinates, in the SSD order
// ymin, xmin, ymax, xmax.
type NormalizedBox struct {
	YMin, XMin, YMax, XMax float32
}

// Detection is one kept row of the model output.
type Detection struct {
	ClassID int
	Label   string
	Score   float32
	Box     NormalizedBox
}

// Result is the ranked set of detections for one image. The model's order is
// preserved.
type Result struct {
	Detections []Detection
	// Source is the size of the image the detector was given, the space Map
	// converts boxes into.
	Source image.Point
}

// Empty reports whether nothing cleared the threshold.
func (r Result) Empty() bool { return len(r.Detections) == 0 }

// Best returns the highest scoring detection, the earliest on ties.
func (r Result) Best() (Detection, bool) {
	if r.Empty() {
		return Detection{}, false
	}
	best := r.Detections[0]
	for _, d := range r.Detections[1:] {
		if d.Score > best.Score {
			best = d
		}
	}
	return best, true
}

// Outputs holds the four raw SSD tensors.
type Outputs struct {
	Boxes   []float32
	Classes []float32
	Scores  []float32
	Counts  []float32
}

// Count returns the number of rows the model reports as valid, bounded by the
// rows actually present.
func (o Outputs) Count() int {
	rows := min(len(o.Boxes)/4, len(o.Classes), len(o.Scores))
	if len(o.Counts) == 0 {
		return rows
	}
	n := o.Counts[0]
	if math32.IsNaN(n) || n <= 0 {
		return 0
	}
	return min(int(n), rows)
}

// Decode keeps rows 0..Count() whose class equals class and whose score is at
// least minConfidence.
//
// Arguments:
//   - o: The raw engine outputs.
//   - class: The class id to keep.
//   - minConfidence: The lowest score kept (inclusive).
//
// Returns:
//   - []Detection: The kept detections in engine order.
//   - error: The error if the box tensor is malformed.
func Decode(o Outputs, class int, minConfidence float32) ([]Detection, error) {
	if len(o.Boxes)%4 != 0 {
		return nil, errors.Errorf("box tensor holds %d values, not a multiple of 4", len(o.Boxes))
	}

	n := o.Count()
	if n == 0 {
		return nil, nil
	}

	boxes := tensor.New(tensor.WithShape(len(o.Boxes)/4, 4), tensor.WithBacking(o.Boxes))

	var dets []Detection
	for i := 0; i < n; i++ {
		score := o.Scores[i]
		if !(score >= minConfidence) {
			continue
		}
		if int(math32.Floor(o.Classes[i]+0.5)) != class {
			continue
		}

		row, err := boxRow(boxes, i)
		if err != nil {
			return nil, err
		}

		dets = append(dets, Detection{
			ClassID: class,
			Score:   score,
			Box:     NormalizedBox{YMin: row[0], XMin: row[1], YMax: row[2], XMax: row[3]},
		})
	}
	return dets, nil
}

func boxRow(boxes *tensor.Dense, i int) ([4]float32, error) {
	var row [4]float32
	for j := range row {
		v, err := boxes.At(i, j)
		if err != nil {
			return row, errors.Wrapf(err, "reading box %d", i)
		}
		row[j] = v.(float32)
	}
	return row, nil
}
