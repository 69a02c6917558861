package dataset

import "fmt"

// SchemaMismatchError indicates an expected column is absent or holds values
// of the wrong type or cardinality.
type SchemaMismatchError struct {
	Column string
	Row    int // 1-based data row; 0 when the problem is the header
	Value  string
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("schema mismatch: column %q row %d: %s (value %q)", e.Column, e.Row, e.Reason, e.Value)
	}
	return fmt.Sprintf("schema mismatch: column %q: %s", e.Column, e.Reason)
}
