// Package models holds the label sets of the detection models and the subject
// kinds the pipeline looks for.
package models

import "github.com/pkg/errors"

// ModelFamily identifies a label numbering convention.
type ModelFamily string

const (
	// ModelFamilyCOCO is the 80 COCO classes + background at index 0.
	ModelFamilyCOCO ModelFamily = "coco"
	// ModelFamilySSD is the 80 COCO classes, zero-based, as TFLite SSD
	// exports number them (person is 0).
	ModelFamilySSD ModelFamily = "ssd"
	// ModelFamilyFace is a single-class face detector.
	ModelFamilyFace ModelFamily = "face"
)

// Kind is the subject a detector instance looks for.
type Kind string

const (
	// KindPerson detects people.
	KindPerson Kind = "person"
	// KindFace detects faces.
	KindFace Kind = "face"
)

// Kinds lists every supported subject kind.
var Kinds = []Kind{KindPerson, KindFace}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", errors.Errorf("unknown subject kind %q", s)
}

// Family returns the label family a kind's default model uses.
func (k Kind) Family() ModelFamily {
	if k == KindFace {
		return ModelFamilyFace
	}
	return ModelFamilySSD
}

// ClassName returns the label the kind's detector filters on.
func (k Kind) ClassName() string {
	return string(k)
}
