// Package stats holds the small set of descriptive statistics shared by the
// profiler and the cleaner.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// madScale converts a MAD into a standard-deviation-consistent robust z.
const madScale = 0.6745

// Present returns the non-NaN values of vals.
func Present(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Median of the non-NaN values; the mean of the two middle values for an even
// count. NaN when nothing is present.
func Median(vals []float64) float64 {
	cp := Present(vals)
	if len(cp) == 0 {
		return math.NaN()
	}
	sort.Float64s(cp)
	return Quantile(cp, 0.5)
}

// MedianMAD computes median and MAD (median absolute deviation) of the
// non-NaN values.
func MedianMAD(vals []float64) (median, mad float64) {
	cp := Present(vals)
	if len(cp) == 0 {
		return 0, 0
	}
	sort.Float64s(cp)
	median = Quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = Quantile(dev, 0.5)
	return
}

// RobustZ is the MAD-based z-score of v. It returns 0 when mad is 0.
func RobustZ(v, median, mad float64) float64 {
	if mad == 0 {
		return 0
	}
	return madScale * (v - median) / mad
}

// Quantile interpolates linearly between order statistics of sorted.
func Quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Summary describes the non-NaN values of a numeric column.
type Summary struct {
	Count       int
	Min, Max    float64
	Mean, Std   float64
	Median, MAD float64
}

// Describe summarises vals, skipping NaN. Std is the sample standard deviation.
func Describe(vals []float64) Summary {
	cp := Present(vals)
	s := Summary{Count: len(cp)}
	if len(cp) == 0 {
		return s
	}
	s.Min = floats.Min(cp)
	s.Max = floats.Max(cp)
	if len(cp) > 1 {
		s.Mean, s.Std = stat.MeanStdDev(cp, nil)
	} else {
		s.Mean = cp[0]
	}
	s.Median, s.MAD = MedianMAD(cp)
	return s
}
