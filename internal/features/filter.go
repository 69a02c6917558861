package features

import (
	"github.com/KaramelBytes/fracture-cli/internal/dataset"
)

// Filter records which categorical columns and conditions carry information.
// It is fitted on the training set and applied unchanged to every set the
// model will score, so fit and inference see the same features.
type Filter struct {
	Categorical []string `json:"categorical"`
	Conditions  []string `json:"conditions"`
	Dropped     []string `json:"dropped"`
}

// FitFilter keeps categorical columns and conditions whose observed value set
// in train has more than one member. Numeric columns, id and label are always
// kept and are not listed.
func FitFilter(train *dataset.Dataset) Filter {
	var f Filter
	for j, name := range train.Schema.Categorical {
		seen := map[string]struct{}{}
		for _, r := range train.Records {
			if v := r.Categorical[j]; v != "" {
				seen[v] = struct{}{}
			}
		}
		if len(seen) > 1 {
			f.Categorical = append(f.Categorical, name)
		} else {
			f.Dropped = append(f.Dropped, name)
		}
	}
	for c, code := range train.Schema.Conditions {
		seen := map[dataset.Status]struct{}{}
		for _, r := range train.Records {
			seen[r.Conditions[c]] = struct{}{}
		}
		if len(seen) > 1 {
			f.Conditions = append(f.Conditions, code)
		} else {
			f.Dropped = append(f.Dropped, code)
		}
	}
	return f
}

// Apply projects ds onto the filter's columns. It fails if ds lacks a kept column.
func (f Filter) Apply(ds *dataset.Dataset) (*dataset.Dataset, error) {
	catIdx := make([]int, len(f.Categorical))
	for i, name := range f.Categorical {
		if catIdx[i] = ds.Schema.CategoricalIndex(name); catIdx[i] < 0 {
			return nil, &dataset.SchemaMismatchError{Column: name, Reason: "column kept at fit time is absent"}
		}
	}
	condIdx := make([]int, len(f.Conditions))
	for i, code := range f.Conditions {
		if condIdx[i] = ds.Schema.ConditionIndex(code); condIdx[i] < 0 {
			return nil, &dataset.SchemaMismatchError{Column: code, Reason: "condition kept at fit time is absent"}
		}
	}
	schema := ds.Schema.Clone()
	schema.Categorical = append([]string(nil), f.Categorical...)
	schema.Conditions = append([]string(nil), f.Conditions...)

	out := dataset.New(schema, make([]dataset.Record, ds.Len()))
	for i, r := range ds.Records {
		rec := dataset.Record{
			ID:          r.ID,
			Label:       r.Label,
			Numeric:     append([]float64(nil), r.Numeric...),
			Categorical: make([]string, len(catIdx)),
			Conditions:  make([]dataset.Status, len(condIdx)),
		}
		for k, j := range catIdx {
			rec.Categorical[k] = r.Categorical[j]
		}
		for k, j := range condIdx {
			rec.Conditions[k] = r.Conditions[j]
		}
		out.Records[i] = rec
	}
	return out, nil
}
