package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/features"
)

// Prediction is a model's verdict for one row.
type Prediction struct {
	Label dataset.Label
	// Probability of "yes"; NaN when the model only yields labels.
	Probability float64
}

// Classifier is a binary outcome model fitted on an encoded training matrix.
type Classifier interface {
	Name() string
	Fit(ctx context.Context, train features.Matrix) error
	Predict(ctx context.Context, m features.Matrix) ([]Prediction, error)
}

// Model identifiers used in configuration.
const (
	NaiveBayesName = "naive-bayes"
	LogisticName   = "logistic"
)

// Options carries the knobs shared by classifiers.
type Options struct {
	// Threshold turns a probability into a "yes" label (p >= Threshold).
	Threshold float64
	// Lambda is the L2 penalty for regularised models.
	Lambda float64
	// MaxIter caps optimizer iterations.
	MaxIter int
}

// Factory builds a Classifier from Options.
type Factory func(Options) Classifier

var registry = map[string]Factory{}

// Register registers a model name with its factory.
func Register(name string, f Factory) { registry[name] = f }

// New creates a registered classifier.
func New(name string, opt Options) (Classifier, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %v)", name, Names())
	}
	if opt.Threshold <= 0 || opt.Threshold >= 1 {
		opt.Threshold = 0.5
	}
	return f(opt), nil
}

// Names lists registered model names, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register(NaiveBayesName, func(o Options) Classifier { return &NaiveBayes{} })
	Register(LogisticName, func(o Options) Classifier {
		l := &Logistic{Threshold: o.Threshold, Lambda: o.Lambda, MaxIter: o.MaxIter}
		if l.Lambda <= 0 {
			l.Lambda = 0.01
		}
		if l.MaxIter <= 0 {
			l.MaxIter = 1000
		}
		return l
	})
}

// checkTrainable rejects inputs no classifier can learn from.
func checkTrainable(name string, m features.Matrix) error {
	if m.Len() == 0 {
		return &ModelFitError{Model: name, Reason: "empty training set"}
	}
	if len(m.Columns) == 0 {
		return &ModelFitError{Model: name, Reason: "no usable features"}
	}
	var yes int
	for _, y := range m.Labels {
		if y == 1 {
			yes++
		}
	}
	if yes == 0 || yes == m.Len() {
		return &ModelFitError{Model: name, Reason: "training set holds a single class"}
	}
	return nil
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
