package features

import (
	"math"
	"sort"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/stats"
)

// Matrix is a dense design matrix with aligned labels (1 = yes).
type Matrix struct {
	Columns []string
	Binary  []bool // true for 0/1 indicator columns
	IDs     []string
	Rows    [][]float64
	Labels  []float64
}

// Len returns the number of rows.
func (m Matrix) Len() int { return len(m.Rows) }

// BinaryView keeps only indicator columns.
func (m Matrix) BinaryView() Matrix {
	var keep []int
	for j, b := range m.Binary {
		if b {
			keep = append(keep, j)
		}
	}
	out := Matrix{IDs: m.IDs, Labels: m.Labels, Rows: make([][]float64, len(m.Rows))}
	for _, j := range keep {
		out.Columns = append(out.Columns, m.Columns[j])
		out.Binary = append(out.Binary, true)
	}
	for i, row := range m.Rows {
		r := make([]float64, len(keep))
		for k, j := range keep {
			r[k] = row[j]
		}
		out.Rows[i] = r
	}
	return out
}

type numericCol struct {
	name      string
	mean, std float64
}

type levelCol struct {
	name   string
	levels []string // indicator levels; the sorted-first reference level is omitted
}

type statusCol struct {
	code     string
	statuses []dataset.Status
}

// Encoder turns records into a Matrix with levels and scaling learned from
// the training set.
type Encoder struct {
	numeric     []numericCol
	categorical []levelCol
	conditions  []statusCol
}

// FitEncoder learns standardization and indicator levels from train.
func FitEncoder(train *dataset.Dataset) *Encoder {
	e := &Encoder{}
	for j, name := range train.Schema.Numeric {
		s := stats.Describe(train.NumericColumn(j))
		std := s.Std
		if math.IsNaN(std) || std == 0 {
			std = 1
		}
		e.numeric = append(e.numeric, numericCol{name: name, mean: s.Mean, std: std})
	}
	for j, name := range train.Schema.Categorical {
		set := map[string]struct{}{}
		for _, v := range train.CategoricalColumn(j) {
			if v != "" {
				set[v] = struct{}{}
			}
		}
		levels := make([]string, 0, len(set))
		for v := range set {
			levels = append(levels, v)
		}
		sort.Strings(levels)
		if len(levels) > 0 {
			levels = levels[1:]
		}
		e.categorical = append(e.categorical, levelCol{name: name, levels: levels})
	}
	for c, code := range train.Schema.Conditions {
		set := map[dataset.Status]bool{}
		for _, r := range train.Records {
			if st := r.Conditions[c]; st != dataset.Absent {
				set[st] = true
			}
		}
		var sts []dataset.Status
		for _, st := range dataset.FlagStatuses {
			if set[st] {
				sts = append(sts, st)
			}
		}
		e.conditions = append(e.conditions, statusCol{code: code, statuses: sts})
	}
	return e
}

// Columns lists the encoded column names and whether each is an indicator.
func (e *Encoder) Columns() ([]string, []bool) {
	var names []string
	var binary []bool
	for _, n := range e.numeric {
		names = append(names, n.name)
		binary = append(binary, false)
	}
	for _, c := range e.categorical {
		for _, lv := range c.levels {
			names = append(names, c.name+"="+lv)
			binary = append(binary, true)
		}
	}
	for _, c := range e.conditions {
		for _, st := range c.statuses {
			names = append(names, c.code+"_"+st.String())
			binary = append(binary, true)
		}
	}
	return names, binary
}

// Transform encodes ds. Levels unseen at fit time encode as all zeros.
func (e *Encoder) Transform(ds *dataset.Dataset) (Matrix, error) {
	numIdx := make([]int, len(e.numeric))
	for i, n := range e.numeric {
		if numIdx[i] = ds.Schema.NumericIndex(n.name); numIdx[i] < 0 {
			return Matrix{}, &dataset.SchemaMismatchError{Column: n.name, Reason: "numeric column missing at transform"}
		}
	}
	catIdx := make([]int, len(e.categorical))
	for i, c := range e.categorical {
		if catIdx[i] = ds.Schema.CategoricalIndex(c.name); catIdx[i] < 0 {
			return Matrix{}, &dataset.SchemaMismatchError{Column: c.name, Reason: "categorical column missing at transform"}
		}
	}
	condIdx := make([]int, len(e.conditions))
	for i, c := range e.conditions {
		if condIdx[i] = ds.Schema.ConditionIndex(c.code); condIdx[i] < 0 {
			return Matrix{}, &dataset.SchemaMismatchError{Column: c.code, Reason: "condition missing at transform"}
		}
	}

	m := Matrix{}
	m.Columns, m.Binary = e.Columns()
	m.Rows = make([][]float64, ds.Len())
	m.Labels = make([]float64, ds.Len())
	m.IDs = make([]string, ds.Len())
	for i, r := range ds.Records {
		row := make([]float64, 0, len(m.Columns))
		for k, n := range e.numeric {
			v := r.Numeric[numIdx[k]]
			if math.IsNaN(v) {
				v = n.mean
			}
			row = append(row, (v-n.mean)/n.std)
		}
		for k, c := range e.categorical {
			v := r.Categorical[catIdx[k]]
			for _, lv := range c.levels {
				row = append(row, indicator(v == lv))
			}
		}
		for k, c := range e.conditions {
			st := r.Conditions[condIdx[k]]
			for _, s := range c.statuses {
				row = append(row, indicator(st == s))
			}
		}
		m.Rows[i] = row
		m.IDs[i] = r.ID
		if r.Label == dataset.Yes {
			m.Labels[i] = 1
		}
	}
	return m, nil
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
