package dataset

import (
	"fmt"
	"math"
	"strings"
)

// Label is the binary outcome of a visit.
type Label uint8

const (
	No Label = iota
	Yes
)

func (l Label) String() string {
	if l == Yes {
		return "yes"
	}
	return "no"
}

// MarshalText writes the label as yes/no.
func (l Label) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText accepts anything ParseLabel does.
func (l *Label) UnmarshalText(b []byte) error {
	v, ok := ParseLabel(string(b))
	if !ok {
		return fmt.Errorf("invalid label %q", b)
	}
	*l = v
	return nil
}

// ParseLabel accepts yes/no (any case) and 1/0.
func ParseLabel(s string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "1", "true":
		return Yes, true
	case "no", "n", "0", "false":
		return No, true
	}
	return No, false
}

// Schema names the columns a Dataset carries. Slice order is the order of the
// matching Record fields.
type Schema struct {
	ID          string
	Label       string
	Numeric     []string
	Categorical []string
	Conditions  []string // base codes, e.g. "m84"
}

// Record is one patient visit.
type Record struct {
	ID          string
	Numeric     []float64 // NaN marks a missing value
	Categorical []string  // "" marks a missing value
	Conditions  []Status
	Label       Label
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	out := Record{ID: r.ID, Label: r.Label}
	out.Numeric = append([]float64(nil), r.Numeric...)
	out.Categorical = append([]string(nil), r.Categorical...)
	out.Conditions = append([]Status(nil), r.Conditions...)
	return out
}

// Dataset is an ordered collection of records sharing one schema. Functions in
// this module never mutate a Dataset they receive; they return a new one.
type Dataset struct {
	Schema  Schema
	Records []Record
}

// New builds a dataset from a schema and records. Records are not copied.
func New(schema Schema, records []Record) *Dataset {
	return &Dataset{Schema: schema, Records: records}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Clone deep-copies schema and records.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Schema: d.Schema.Clone(), Records: make([]Record, len(d.Records))}
	for i, r := range d.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Select returns a new dataset holding deep copies of the records at idx, in
// the given order.
func (d *Dataset) Select(idx []int) *Dataset {
	out := &Dataset{Schema: d.Schema.Clone(), Records: make([]Record, 0, len(idx))}
	for _, i := range idx {
		out.Records = append(out.Records, d.Records[i].Clone())
	}
	return out
}

// Filter returns a new dataset with the records for which keep returns true.
func (d *Dataset) Filter(keep func(Record) bool) *Dataset {
	out := &Dataset{Schema: d.Schema.Clone()}
	for _, r := range d.Records {
		if keep(r) {
			out.Records = append(out.Records, r.Clone())
		}
	}
	return out
}

// CountLabel returns how many records carry label l.
func (d *Dataset) CountLabel(l Label) int {
	n := 0
	for _, r := range d.Records {
		if r.Label == l {
			n++
		}
	}
	return n
}

// LabelShare returns the fraction of records labelled l; 0 on an empty set.
func (d *Dataset) LabelShare(l Label) float64 {
	if d.Len() == 0 {
		return 0
	}
	return float64(d.CountLabel(l)) / float64(d.Len())
}

// NumericColumn returns a copy of numeric column j.
func (d *Dataset) NumericColumn(j int) []float64 {
	out := make([]float64, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Numeric[j]
	}
	return out
}

// CategoricalColumn returns a copy of categorical column j.
func (d *Dataset) CategoricalColumn(j int) []string {
	out := make([]string, len(d.Records))
	for i, r := range d.Records {
		out[i] = r.Categorical[j]
	}
	return out
}

// Clone deep-copies the schema.
func (s Schema) Clone() Schema {
	return Schema{
		ID:          s.ID,
		Label:       s.Label,
		Numeric:     append([]string(nil), s.Numeric...),
		Categorical: append([]string(nil), s.Categorical...),
		Conditions:  append([]string(nil), s.Conditions...),
	}
}

// NumericIndex returns the position of a numeric column, or -1.
func (s Schema) NumericIndex(name string) int { return indexFold(s.Numeric, name) }

// CategoricalIndex returns the position of a categorical column, or -1.
func (s Schema) CategoricalIndex(name string) int { return indexFold(s.Categorical, name) }

// ConditionIndex returns the position of a condition code, or -1.
func (s Schema) ConditionIndex(code string) int { return indexFold(s.Conditions, code) }

func indexFold(names []string, name string) int {
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// IsMissing reports whether a numeric value is missing.
func IsMissing(v float64) bool { return math.IsNaN(v) }
