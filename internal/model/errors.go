package model

import "fmt"

// ModelFitError indicates a classifier could not be fitted: degenerate input,
// an optimizer that did not converge, or a failure inside the library.
type ModelFitError struct {
	Model  string
	Reason string
	Err    error
}

func (e *ModelFitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model fit failed (%s): %s: %v", e.Model, e.Reason, e.Err)
	}
	return fmt.Sprintf("model fit failed (%s): %s", e.Model, e.Reason)
}

func (e *ModelFitError) Unwrap() error { return e.Err }
