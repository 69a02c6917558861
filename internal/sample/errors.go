package sample

import "fmt"

// InsufficientSampleError indicates the majority class cannot supply the
// requested number of rows, or there is no minority class to balance against.
type InsufficientSampleError struct {
	Minority int
	Majority int
	Need     int
}

func (e *InsufficientSampleError) Error() string {
	if e.Minority == 0 {
		return "insufficient sample: training set has no \"yes\" records"
	}
	return fmt.Sprintf("insufficient sample: need %d \"no\" records for %d \"yes\", have %d", e.Need, e.Minority, e.Majority)
}
