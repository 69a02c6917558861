package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/features"
)

// stationaryTol is the gradient norm accepted when the line search stalls at
// an already-flat point.
const stationaryTol = 1e-4

// Logistic is L2-regularised logistic regression fitted with L-BFGS.
type Logistic struct {
	Threshold float64
	Lambda    float64
	MaxIter   int

	columns []string
	weights []float64 // intercept first
}

func (l *Logistic) Name() string { return LogisticName }

// Weights returns the fitted intercept followed by one weight per column.
func (l *Logistic) Weights() []float64 { return append([]float64(nil), l.weights...) }

func (l *Logistic) Fit(ctx context.Context, train features.Matrix) error {
	if err := checkTrainable(l.Name(), train); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	x := designMatrix(train)
	y := mat.NewVecDense(train.Len(), append([]float64(nil), train.Labels...))
	lambda := l.Lambda

	problem := optimize.Problem{
		Func: func(w []float64) float64 { return logLoss(x, y, w, lambda, nil) },
		Grad: func(grad, w []float64) { logLoss(x, y, w, lambda, grad) },
	}
	settings := &optimize.Settings{
		GradientThreshold: 1e-6,
		MajorIterations:   l.MaxIter,
		Converger:         &optimize.FunctionConverge{Absolute: 1e-12, Relative: 1e-12, Iterations: 50},
	}
	_, cols := x.Dims()
	res, err := optimize.Minimize(problem, make([]float64, cols), settings, &optimize.LBFGS{})
	if err != nil {
		if res == nil || !nearStationary(x, y, res.X, lambda) {
			return &ModelFitError{Model: l.Name(), Reason: "optimizer failed", Err: err}
		}
	} else if res.Status == optimize.IterationLimit {
		return &ModelFitError{Model: l.Name(), Reason: fmt.Sprintf("did not converge within %d iterations", l.MaxIter)}
	}
	for _, w := range res.X {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return &ModelFitError{Model: l.Name(), Reason: "non-finite coefficients", Err: errors.New("diverged")}
		}
	}
	l.columns = append([]string(nil), train.Columns...)
	l.weights = append([]float64(nil), res.X...)
	return nil
}

func (l *Logistic) Predict(ctx context.Context, m features.Matrix) ([]Prediction, error) {
	if l.weights == nil {
		return nil, fmt.Errorf("%s: predict before fit", l.Name())
	}
	if !sameColumns(l.columns, m.Columns) {
		return nil, fmt.Errorf("%s: feature columns differ from training", l.Name())
	}
	out := make([]Prediction, m.Len())
	for i, row := range m.Rows {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		p := sigmoid(l.weights[0] + floats.Dot(l.weights[1:], row))
		out[i] = Prediction{Label: dataset.No, Probability: p}
		if p >= l.Threshold {
			out[i].Label = dataset.Yes
		}
	}
	return out, nil
}

// designMatrix prepends an intercept column.
func designMatrix(m features.Matrix) *mat.Dense {
	n, p := m.Len(), len(m.Columns)
	x := mat.NewDense(n, p+1, nil)
	for i, row := range m.Rows {
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
	}
	return x
}

// logLoss returns mean binary cross-entropy plus lambda/2·|w[1:]|² and, when
// grad is non-nil, writes its gradient.
func logLoss(x *mat.Dense, y *mat.VecDense, w []float64, lambda float64, grad []float64) float64 {
	n, _ := x.Dims()
	var z mat.VecDense
	z.MulVec(x, mat.NewVecDense(len(w), w))

	resid := mat.NewVecDense(n, nil)
	var loss float64
	for i := 0; i < n; i++ {
		zi, yi := z.AtVec(i), y.AtVec(i)
		// log(1+exp(z)) - y·z, evaluated without overflow
		loss += math.Max(zi, 0) + math.Log1p(math.Exp(-math.Abs(zi))) - yi*zi
		resid.SetVec(i, sigmoid(zi)-yi)
	}
	loss /= float64(n)
	for _, wj := range w[1:] {
		loss += 0.5 * lambda * wj * wj
	}
	if grad != nil {
		var g mat.VecDense
		g.MulVec(x.T(), resid)
		for j := range grad {
			grad[j] = g.AtVec(j) / float64(n)
			if j > 0 {
				grad[j] += lambda * w[j]
			}
		}
	}
	return loss
}

func nearStationary(x *mat.Dense, y *mat.VecDense, w []float64, lambda float64) bool {
	if len(w) == 0 {
		return false
	}
	grad := make([]float64, len(w))
	logLoss(x, y, w, lambda, grad)
	return floats.Norm(grad, 2) <= stationaryTol
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
