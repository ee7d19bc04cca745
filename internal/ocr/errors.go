package ocr

import (
	"fmt"
	"strings"
)

// UnknownModelError reports a model identifier that is not registered.
type UnknownModelError struct {
	Name      string
	Available []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("Unknown model: %s. Available: %s", e.Name, strings.Join(e.Available, ", "))
}

// ModelLoadError reports that the backing engine resource could not be
// acquired. The model instance stays cached and not-loaded, so a later
// predict retries the load.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// PredictionError reports that a loaded model failed during inference.
type PredictionError struct {
	Model string
	Err   error
}

func (e *PredictionError) Error() string {
	return fmt.Sprintf("predict with %s: %v", e.Model, e.Err)
}

func (e *PredictionError) Unwrap() error { return e.Err }
