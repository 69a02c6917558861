package model

import (
	"context"
	"fmt"
	"math"

	"github.com/sjwhitworth/golearn/base"
	"github.com/sjwhitworth/golearn/filters"
	"github.com/sjwhitworth/golearn/naive"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/features"
)

const classAttr = "result"

// NaiveBayes is a Bernoulli naive Bayes classifier over the indicator columns
// of the encoded matrix. It yields labels only.
type NaiveBayes struct {
	nb      *naive.BernoulliNBClassifier
	columns []string
}

func (b *NaiveBayes) Name() string { return NaiveBayesName }

func (b *NaiveBayes) Fit(ctx context.Context, train features.Matrix) (err error) {
	bin := train.BinaryView()
	if err := checkTrainable(b.Name(), bin); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			b.nb = nil
			err = &ModelFitError{Model: b.Name(), Reason: "classifier panicked", Err: fmt.Errorf("%v", r)}
		}
	}()
	grid, err := toInstances(bin)
	if err != nil {
		return &ModelFitError{Model: b.Name(), Reason: "building instances", Err: err}
	}
	nb := naive.NewBernoulliNBClassifier()
	nb.Fit(binarize(grid))
	b.nb = nb
	b.columns = append([]string(nil), bin.Columns...)
	return nil
}

func (b *NaiveBayes) Predict(ctx context.Context, m features.Matrix) (out []Prediction, err error) {
	if b.nb == nil {
		return nil, fmt.Errorf("%s: predict before fit", b.Name())
	}
	bin := m.BinaryView()
	if !sameColumns(b.columns, bin.Columns) {
		return nil, fmt.Errorf("%s: feature columns differ from training", b.Name())
	}
	if bin.Len() == 0 {
		return []Prediction{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%s: predict panicked: %v", b.Name(), r)
		}
	}()
	grid, err := toInstances(bin)
	if err != nil {
		return nil, err
	}
	res, err := b.nb.Predict(binarize(grid))
	if err != nil {
		return nil, fmt.Errorf("%s: predict: %w", b.Name(), err)
	}
	_, rows := res.Size()
	if rows != bin.Len() {
		return nil, fmt.Errorf("%s: got %d predictions for %d rows", b.Name(), rows, bin.Len())
	}
	out = make([]Prediction, rows)
	for i := 0; i < rows; i++ {
		cls := base.GetClass(res, i)
		lbl, ok := dataset.ParseLabel(cls)
		if !ok {
			return nil, fmt.Errorf("%s: row %d: unexpected class %q", b.Name(), i, cls)
		}
		out[i] = Prediction{Label: lbl, Probability: math.NaN()}
	}
	return out, nil
}

// toInstances copies an indicator matrix into golearn's dense storage with a
// categorical "result" class attribute whose values are registered no, yes.
func toInstances(m features.Matrix) (*base.DenseInstances, error) {
	inst := base.NewDenseInstances()
	specs := make([]base.AttributeSpec, len(m.Columns))
	for j, name := range m.Columns {
		specs[j] = inst.AddAttribute(base.NewFloatAttribute(name))
	}
	cls := base.NewCategoricalAttribute()
	cls.SetName(classAttr)
	cls.GetSysValFromString(dataset.No.String())
	cls.GetSysValFromString(dataset.Yes.String())
	clsSpec := inst.AddAttribute(cls)
	if err := inst.AddClassAttribute(cls); err != nil {
		return nil, err
	}
	if err := inst.Extend(m.Len()); err != nil {
		return nil, err
	}
	for i, row := range m.Rows {
		for j, v := range row {
			inst.Set(specs[j], i, base.PackFloatToBytes(v))
		}
		lbl := dataset.No
		if m.Labels[i] == 1 {
			lbl = dataset.Yes
		}
		inst.Set(clsSpec, i, cls.GetSysValFromString(lbl.String()))
	}
	return inst, nil
}

// binarize maps the float indicator attributes to golearn BinaryAttributes,
// which the Bernoulli classifier requires.
func binarize(src base.FixedDataGrid) base.FixedDataGrid {
	f := filters.NewBinaryConvertFilter()
	for _, a := range base.NonClassAttributes(src) {
		f.AddAttribute(a)
	}
	f.Train()
	return base.NewLazilyFilteredInstances(src, f)
}
