package clean

import "fmt"

// MissingDataError indicates a gap the cleaner cannot fill.
type MissingDataError struct {
	Column string
	Row    int // 1-based; 0 when the whole column is affected
	Reason string
}

func (e *MissingDataError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("missing data: column %q row %d: %s", e.Column, e.Row, e.Reason)
	}
	return fmt.Sprintf("missing data: column %q: %s", e.Column, e.Reason)
}
