package clean

import (
	"math"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/stats"
)

// Options controls the cleaning pass.
type Options struct {
	// ForwardFill lists categorical columns whose gaps take the previous record's value.
	ForwardFill []string
	// Records whose AnomalyColumn equals AnomalyValue are dropped. Empty column disables.
	AnomalyColumn string
	AnomalyValue  string
	// Outlier removal via robust Z-score (MAD). Empty OutlierColumns means every numeric column.
	RemoveOutliers   bool
	OutlierColumns   []string
	OutlierThreshold float64
}

// DefaultOptions matches the fracture study: calcium is forward-filled and the
// near-empty gender code 2 is dropped.
func DefaultOptions() Options {
	return Options{
		ForwardFill:      []string{"calcium"},
		AnomalyColumn:    "gender",
		AnomalyValue:     "2",
		OutlierThreshold: 3.5,
	}
}

// Stats reports what the cleaner changed.
type Stats struct {
	Medians          map[string]float64 `json:"medians"`
	Imputed          map[string]int     `json:"imputed"`
	ForwardFilled    map[string]int     `json:"forward_filled"`
	DroppedAnomalies int                `json:"dropped_anomalies"`
	DroppedOutliers  int                `json:"dropped_outliers"`
	Rows             int                `json:"rows"`
}

// Clean imputes, forward-fills and drops noise records. Medians and forward
// fill are taken over the input in record order before any record is removed.
// The input dataset is left untouched.
func Clean(ds *dataset.Dataset, opt Options) (*dataset.Dataset, *Stats, error) {
	out := ds.Clone()
	st := &Stats{
		Medians:       map[string]float64{},
		Imputed:       map[string]int{},
		ForwardFilled: map[string]int{},
	}

	for j, name := range out.Schema.Numeric {
		col := out.NumericColumn(j)
		missing := 0
		for _, v := range col {
			if math.IsNaN(v) {
				missing++
			}
		}
		if missing == 0 {
			continue
		}
		med := stats.Median(col)
		if math.IsNaN(med) {
			return nil, nil, &MissingDataError{Column: name, Reason: "no observed values to take a median from"}
		}
		for i := range out.Records {
			if math.IsNaN(out.Records[i].Numeric[j]) {
				out.Records[i].Numeric[j] = med
			}
		}
		st.Medians[name] = med
		st.Imputed[name] = missing
	}

	for _, name := range opt.ForwardFill {
		j := out.Schema.CategoricalIndex(name)
		if j < 0 {
			return nil, nil, &dataset.SchemaMismatchError{Column: name, Reason: "forward-fill column is not categorical"}
		}
		n, err := forwardFill(out, j)
		if err != nil {
			return nil, nil, err
		}
		if n > 0 {
			st.ForwardFilled[name] = n
		}
	}

	if opt.AnomalyColumn != "" {
		j := out.Schema.CategoricalIndex(opt.AnomalyColumn)
		if j < 0 {
			return nil, nil, &dataset.SchemaMismatchError{Column: opt.AnomalyColumn, Reason: "anomaly column is not categorical"}
		}
		before := out.Len()
		out = out.Filter(func(r dataset.Record) bool { return r.Categorical[j] != opt.AnomalyValue })
		st.DroppedAnomalies = before - out.Len()
	}

	if opt.RemoveOutliers {
		var err error
		before := out.Len()
		if out, err = dropOutliers(out, opt); err != nil {
			return nil, nil, err
		}
		st.DroppedOutliers = before - out.Len()
	}

	st.Rows = out.Len()
	return out, st, nil
}

// forwardFill carries the last observed value of categorical column j into
// later gaps, in record order.
func forwardFill(ds *dataset.Dataset, j int) (int, error) {
	filled := 0
	last := ""
	for i := range ds.Records {
		v := ds.Records[i].Categorical[j]
		if v != "" {
			last = v
			continue
		}
		if last == "" {
			return 0, &MissingDataError{
				Column: ds.Schema.Categorical[j],
				Row:    i + 1,
				Reason: "no preceding value to carry forward",
			}
		}
		ds.Records[i].Categorical[j] = last
		filled++
	}
	return filled, nil
}

func dropOutliers(ds *dataset.Dataset, opt Options) (*dataset.Dataset, error) {
	thr := opt.OutlierThreshold
	if thr <= 0 {
		thr = 3.5
	}
	cols := opt.OutlierColumns
	if len(cols) == 0 {
		cols = ds.Schema.Numeric
	}
	drop := make([]bool, ds.Len())
	for _, name := range cols {
		j := ds.Schema.NumericIndex(name)
		if j < 0 {
			return nil, &dataset.SchemaMismatchError{Column: name, Reason: "outlier column is not numeric"}
		}
		col := ds.NumericColumn(j)
		median, mad := stats.MedianMAD(col)
		if mad == 0 {
			continue
		}
		for i, v := range col {
			if math.Abs(stats.RobustZ(v, median, mad)) > thr {
				drop[i] = true
			}
		}
	}
	keep := make([]int, 0, ds.Len())
	for i, d := range drop {
		if !d {
			keep = append(keep, i)
		}
	}
	return ds.Select(keep), nil
}
