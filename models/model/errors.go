package model

import (
	"github.com/pkg/errors"
)

var (
	// ErrConfiguration is returned when model shapes or detection parameters are unusable.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidInput is returned when an image cannot be processed.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInference is matched by every *InferenceError.
	ErrInference = errors.New("inference error")
)

// InferenceError carries a failure reported by the inference engine unchanged.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return "inference error: " + e.Err.Error()
}

// Unwrap returns the engine's own error.
func (e *InferenceError) Unwrap() error { return e.Err }

// Is reports true for ErrInference so callers can test the category with errors.Is.
func (e *InferenceError) Is(target error) bool { return target == ErrInference }

// NewInferenceError wraps err, or returns nil when err is nil.
func NewInferenceError(err error) error {
	if err == nil {
		return nil
	}
	return &InferenceError{Err: err}
}

// Configurationf returns an error matching ErrConfiguration.
func Configurationf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

// InvalidInputf returns an error matching ErrInvalidInput.
func InvalidInputf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}
