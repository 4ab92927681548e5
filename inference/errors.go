package inference

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInference is matched by every error returned from a failed model call.
var ErrInference = errors.New("inference failed")

// InferenceError records which model and which step failed.
type InferenceError struct {
	Model string
	Op    string
	Err   error
}

// Fail wraps err as an InferenceError. A nil err stays nil.
func Fail(model, op string, err error) error {
	if err == nil {
		return nil
	}
	return &InferenceError{Model: model, Op: op, Err: err}
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrInference, e.Model, e.Op, e.Err)
}

// Unwrap returns the runtime's own error.
func (e *InferenceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInference) hold.
func (e *InferenceError) Is(target error) bool { return target == ErrInference }
