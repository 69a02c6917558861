package sample

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
)

// cohort builds n records where every (n/yes)-th one is labelled yes.
func cohort(n, yes int) *dataset.Dataset {
	recs := make([]dataset.Record, n)
	step := n / yes
	marked := 0
	for i := range recs {
		recs[i] = dataset.Record{ID: fmt.Sprintf("p%04d", i), Numeric: []float64{float64(i)}}
		if marked < yes && i%step == 0 {
			recs[i].Label = dataset.Yes
			marked++
		}
	}
	return dataset.New(dataset.Schema{ID: "id", Label: "result", Numeric: []string{"age"}}, recs)
}

func ids(ds *dataset.Dataset) []string {
	out := make([]string, ds.Len())
	for i, r := range ds.Records {
		out[i] = r.ID
	}
	return out
}

func TestPartition_Scenario1000x30(t *testing.T) {
	ds := cohort(1000, 30)
	require.Equal(t, 30, ds.CountLabel(dataset.Yes))

	split, err := Partition(ds, 0.5, NewRand(42))
	require.NoError(t, err)
	assert.InDelta(t, 15, split.Train.CountLabel(dataset.Yes), 1)
	assert.InDelta(t, 15, split.Test.CountLabel(dataset.Yes), 1)
	assert.Equal(t, 1000, split.Train.Len()+split.Test.Len())
}

func TestPartition_StratificationAndDisjointness(t *testing.T) {
	for _, tc := range []struct {
		n, yes int
		p      float64
	}{{1000, 30, 0.1}, {1000, 30, 0.5}, {997, 41, 0.3}, {5000, 120, 0.8}} {
		for seed := int64(1); seed <= 5; seed++ {
			ds := cohort(tc.n, tc.yes)
			split, err := Partition(ds, tc.p, NewRand(seed))
			require.NoError(t, err)

			whole := ds.LabelShare(dataset.Yes)
			assert.LessOrEqual(t, math.Abs(split.Train.LabelShare(dataset.Yes)-whole), 0.02)
			assert.LessOrEqual(t, math.Abs(split.Test.LabelShare(dataset.Yes)-whole), 0.02)

			seen := map[string]int{}
			for _, id := range append(ids(split.Train), ids(split.Test)...) {
				seen[id]++
			}
			require.Len(t, seen, tc.n)
			for id, c := range seen {
				require.Equal(t, 1, c, id)
			}
			wantTrain := math.Round(tc.p*float64(tc.n-tc.yes)) + math.Round(tc.p*float64(tc.yes))
			assert.Equal(t, int(wantTrain), split.Train.Len())
		}
	}
}

func TestPartition_Deterministic(t *testing.T) {
	ds := cohort(500, 20)
	a, err := Partition(ds, 0.3, NewRand(7))
	require.NoError(t, err)
	b, err := Partition(ds, 0.3, NewRand(7))
	require.NoError(t, err)
	assert.Equal(t, ids(a.Train), ids(b.Train))
	assert.Equal(t, ids(a.Test), ids(b.Test))

	c, err := Partition(ds, 0.3, NewRand(8))
	require.NoError(t, err)
	assert.NotEqual(t, ids(a.Train), ids(c.Train))
}

func TestPartition_RejectsBadFraction(t *testing.T) {
	for _, p := range []float64{0, 1, -0.2, 1.5, math.NaN()} {
		_, err := Partition(cohort(100, 10), p, NewRand(1))
		assert.Error(t, err, "p=%v", p)
	}
}

func TestBalance_Scenario15x485(t *testing.T) {
	train := cohort(500, 15)
	require.Equal(t, 15, train.CountLabel(dataset.Yes))
	require.Equal(t, 485, train.CountLabel(dataset.No))

	out, err := Balance(train, 1, NewRand(3))
	require.NoError(t, err)
	assert.Equal(t, 15, out.CountLabel(dataset.Yes))
	assert.Equal(t, 15, out.CountLabel(dataset.No))
	assert.Equal(t, 30, out.Len())
}

func TestBalance_RatioExactAndKeepsMinority(t *testing.T) {
	train := cohort(800, 25)
	for _, r := range []float64{1, 2, 3, 10} {
		out, err := Balance(train, r, NewRand(9))
		require.NoError(t, err)
		assert.Equal(t, int(r)*25, out.CountLabel(dataset.No), "ratio %v", r)
		assert.Equal(t, 25, out.CountLabel(dataset.Yes))
		for _, rec := range out.Records {
			if rec.Label == dataset.Yes {
				continue
			}
			assert.Contains(t, ids(train), rec.ID)
		}
	}
}

func TestBalance_FractionalRatioRounds(t *testing.T) {
	train := cohort(500, 15)
	out, err := Balance(train, 1.5, NewRand(3))
	require.NoError(t, err)
	assert.Equal(t, 15, out.CountLabel(dataset.Yes))
	assert.Equal(t, 23, out.CountLabel(dataset.No), "22.5 rounds half away from zero")
}

func TestBalance_DeterministicAndNoReplacement(t *testing.T) {
	train := cohort(400, 20)
	a, err := Balance(train, 2, NewRand(11))
	require.NoError(t, err)
	b, err := Balance(train, 2, NewRand(11))
	require.NoError(t, err)
	assert.Equal(t, ids(a), ids(b))

	seen := map[string]bool{}
	for _, id := range ids(a) {
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
}

func TestBalance_Insufficient(t *testing.T) {
	train := cohort(40, 10)
	_, err := Balance(train, 4, NewRand(1))
	var ins *InsufficientSampleError
	require.True(t, errors.As(err, &ins), "got %v", err)
	assert.Equal(t, 40, ins.Need)
	assert.Equal(t, 30, ins.Majority)

	none := dataset.New(train.Schema, []dataset.Record{{ID: "x", Label: dataset.No}})
	_, err = Balance(none, 1, NewRand(1))
	require.True(t, errors.As(err, &ins))
}
