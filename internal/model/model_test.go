package model

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
	"github.com/KaramelBytes/fracture-cli/internal/features"
)

// separable builds n rows per class where the score and the flag both track
// the label, with a couple of flag errors so nothing is degenerate.
func separable(n int) features.Matrix {
	m := features.Matrix{Columns: []string{"score", "flag"}, Binary: []bool{false, true}}
	for i := 0; i < n; i++ {
		jitter := float64(i%5) * 0.1
		flag := 1.0
		if i == 0 {
			flag = 0
		}
		m.Rows = append(m.Rows, []float64{1.5 + jitter, flag})
		m.Labels = append(m.Labels, 1)
		m.IDs = append(m.IDs, "y")

		flag = 0
		if i == 1 {
			flag = 1
		}
		m.Rows = append(m.Rows, []float64{-1.5 - jitter, flag})
		m.Labels = append(m.Labels, 0)
		m.IDs = append(m.IDs, "n")
	}
	return m
}

func accuracy(t *testing.T, preds []Prediction, labels []float64) float64 {
	t.Helper()
	require.Len(t, preds, len(labels))
	var hit int
	for i, p := range preds {
		if (p.Label == dataset.Yes) == (labels[i] == 1) {
			hit++
		}
	}
	return float64(hit) / float64(len(labels))
}

func TestNew_Registry(t *testing.T) {
	assert.Equal(t, []string{LogisticName, NaiveBayesName}, Names())

	c, err := New(LogisticName, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, c.(*Logistic).Threshold, "out-of-range threshold falls back to 0.5")

	_, err = New("forest", Options{})
	assert.ErrorContains(t, err, "unknown model")
}

func TestLogistic_FitPredict(t *testing.T) {
	ctx := context.Background()
	m := separable(20)
	c, err := New(LogisticName, Options{Threshold: 0.5})
	require.NoError(t, err)
	require.NoError(t, c.Fit(ctx, m))

	preds, err := c.Predict(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 1.0, accuracy(t, preds, m.Labels))
	for _, p := range preds {
		assert.True(t, p.Probability >= 0 && p.Probability <= 1)
	}
	w := c.(*Logistic).Weights()
	require.Len(t, w, 3)
	assert.Greater(t, w[1], 0.0, "score pushes towards yes")
}

func TestLogistic_ThresholdShiftsLabels(t *testing.T) {
	ctx := context.Background()
	m := separable(10)
	low, _ := New(LogisticName, Options{Threshold: 0.05})
	high, _ := New(LogisticName, Options{Threshold: 0.999999})
	require.NoError(t, low.Fit(ctx, m))
	require.NoError(t, high.Fit(ctx, m))

	pl, err := low.Predict(ctx, m)
	require.NoError(t, err)
	ph, err := high.Predict(ctx, m)
	require.NoError(t, err)
	count := func(ps []Prediction) (n int) {
		for _, p := range ps {
			if p.Label == dataset.Yes {
				n++
			}
		}
		return n
	}
	assert.GreaterOrEqual(t, count(pl), count(ph))
	assert.Less(t, count(ph), m.Len()/2)
}

func TestNaiveBayes_FitPredict(t *testing.T) {
	ctx := context.Background()
	m := separable(20)
	c, err := New(NaiveBayesName, Options{})
	require.NoError(t, err)
	require.NoError(t, c.Fit(ctx, m))

	preds, err := c.Predict(ctx, m)
	require.NoError(t, err)
	// only the flag is visible to the model; it misreads the two flipped rows
	assert.InDelta(t, 38.0/40.0, accuracy(t, preds, m.Labels), 1e-9)
	assert.True(t, math.IsNaN(preds[0].Probability))
}

func TestFit_DegenerateInputs(t *testing.T) {
	ctx := context.Background()
	single := separable(5)
	for i := range single.Labels {
		single.Labels[i] = 0
	}
	noFlags := separable(5)
	noFlags.Columns, noFlags.Binary = noFlags.Columns[:1], noFlags.Binary[:1]
	for i := range noFlags.Rows {
		noFlags.Rows[i] = noFlags.Rows[i][:1]
	}

	cases := []struct {
		name  string
		model string
		m     features.Matrix
	}{
		{"empty logistic", LogisticName, features.Matrix{Columns: []string{"a"}}},
		{"single class logistic", LogisticName, single},
		{"single class bayes", NaiveBayesName, single},
		{"no indicators bayes", NaiveBayesName, noFlags},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.model, Options{})
			require.NoError(t, err)
			err = c.Fit(ctx, tc.m)
			var fe *ModelFitError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, tc.model, fe.Model)
		})
	}
}

func TestPredict_ColumnMismatch(t *testing.T) {
	ctx := context.Background()
	m := separable(5)
	for _, name := range Names() {
		c, _ := New(name, Options{})
		_, err := c.Predict(ctx, m)
		assert.ErrorContains(t, err, "before fit")

		require.NoError(t, c.Fit(ctx, m))
		other := m
		other.Columns = []string{"score", "other"}
		_, err = c.Predict(ctx, other)
		assert.ErrorContains(t, err, "differ from training")
	}
}

func TestFit_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c, _ := New(LogisticName, Options{})
	assert.ErrorIs(t, c.Fit(ctx, separable(5)), context.Canceled)
}
