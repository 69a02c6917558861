// Package sample holds the randomized subset operations of the pipeline:
// stratified train/test partitioning and majority-class under-sampling. Both
// take an explicit *rand.Rand so identical seeds give identical subsets.
package sample

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
)

// Split is a disjoint train/test partition of one dataset.
type Split struct {
	Train *dataset.Dataset
	Test  *dataset.Dataset
}

// NewRand returns a deterministic source for the given seed.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Partition splits ds so that about trainFrac of each label stratum lands in
// Train. Both subsets keep the input's record order.
func Partition(ds *dataset.Dataset, trainFrac float64, rng *rand.Rand) (Split, error) {
	if !(trainFrac > 0 && trainFrac < 1) {
		return Split{}, fmt.Errorf("train fraction must be in (0,1), got %v", trainFrac)
	}
	if rng == nil {
		return Split{}, fmt.Errorf("partition: nil random source")
	}
	inTrain := make([]bool, ds.Len())
	// Strata in fixed order so the rng stream is consumed the same way every run.
	for _, lbl := range []dataset.Label{dataset.No, dataset.Yes} {
		idx := indicesOf(ds, lbl)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(math.Round(trainFrac * float64(len(idx))))
		for _, i := range idx[:n] {
			inTrain[i] = true
		}
	}
	var train, test []int
	for i, ok := range inTrain {
		if ok {
			train = append(train, i)
		} else {
			test = append(test, i)
		}
	}
	return Split{Train: ds.Select(train), Test: ds.Select(test)}, nil
}

// Balance keeps every "yes" record and draws round(ratio × yes) "no" records
// uniformly without replacement, rounding half away from zero. The no count
// equals ratio × yes exactly only when that product is whole, e.g. for integer
// ratios. Record order follows the input.
func Balance(train *dataset.Dataset, ratio float64, rng *rand.Rand) (*dataset.Dataset, error) {
	if ratio <= 0 {
		return nil, fmt.Errorf("under-sampling ratio must be positive, got %v", ratio)
	}
	if rng == nil {
		return nil, fmt.Errorf("balance: nil random source")
	}
	minority := indicesOf(train, dataset.Yes)
	majority := indicesOf(train, dataset.No)
	need := int(math.Round(ratio * float64(len(minority))))
	if len(minority) == 0 || len(majority) < need {
		return nil, &InsufficientSampleError{Minority: len(minority), Majority: len(majority), Need: need}
	}
	perm := rng.Perm(len(majority))
	keep := append([]int(nil), minority...)
	for _, p := range perm[:need] {
		keep = append(keep, majority[p])
	}
	sort.Ints(keep)
	return train.Select(keep), nil
}

func indicesOf(ds *dataset.Dataset, lbl dataset.Label) []int {
	var idx []int
	for i, r := range ds.Records {
		if r.Label == lbl {
			idx = append(idx, i)
		}
	}
	return idx
}
