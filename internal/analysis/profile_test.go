package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/fracture-cli/internal/dataset"
)

func profileFixture() *dataset.Dataset {
	schema := dataset.Schema{
		ID: "id", Label: "result",
		Numeric:     []string{"age"},
		Categorical: []string{"gender"},
		Conditions:  []string{"m84", "z96"},
	}
	var recs []dataset.Record
	ages := []float64{60, 61, 62, 63, 64, 65, 66, 67, 68, 400, math.NaN()}
	for i, a := range ages {
		g := "1"
		if i%2 == 1 {
			g = "0"
		}
		st := dataset.Absent
		if i == 3 {
			st = dataset.Historic
		}
		lbl := dataset.No
		if i < 2 {
			lbl = dataset.Yes
		}
		recs = append(recs, dataset.Record{
			ID: string(rune('a' + i)), Numeric: []float64{a}, Categorical: []string{g},
			Conditions: []dataset.Status{st, dataset.Absent}, Label: lbl,
		})
	}
	recs[10].ID = "a"
	return dataset.New(schema, recs)
}

// assertSameRecords compares two datasets field by field, treating NaN as
// equal to NaN.
func assertSameRecords(t *testing.T, want, got *dataset.Dataset) {
	t.Helper()
	assert.Equal(t, want.Schema, got.Schema)
	require.Equal(t, want.Len(), got.Len())
	for i, w := range want.Records {
		g := got.Records[i]
		assert.Equal(t, w.ID, g.ID)
		assert.Equal(t, w.Label, g.Label)
		assert.Equal(t, w.Categorical, g.Categorical)
		assert.Equal(t, w.Conditions, g.Conditions)
		require.Len(t, g.Numeric, len(w.Numeric))
		for j, a := range w.Numeric {
			b := g.Numeric[j]
			assert.True(t, math.IsNaN(a) && math.IsNaN(b) || a == b, "record %s numeric %d: %v != %v", w.ID, j, a, b)
		}
	}
}

func TestProfile_Columns(t *testing.T) {
	ds := profileFixture()
	before := ds.Clone()
	rep := Profile(ds, DefaultOptions())
	assertSameRecords(t, before, ds)

	require.Len(t, rep.Cols, 2)
	age := rep.Cols[0]
	assert.Equal(t, "numeric", age.Kind)
	assert.Equal(t, 10, age.NonNull)
	assert.Equal(t, 1, age.Missing)
	assert.Equal(t, 60.0, age.Min)
	assert.Equal(t, 400.0, age.Max)
	assert.Equal(t, 1, age.OutliersCount, "only 400 is far from the median")
	assert.Greater(t, age.OutliersMaxAbsZ, 3.5)

	gender := rep.Cols[1]
	assert.Equal(t, "categorical", gender.Kind)
	assert.Equal(t, 2, gender.Unique)
	assert.Equal(t, CategoryCount{Value: "1", Count: 6}, gender.TopValues[0])

	require.Len(t, rep.Conditions, 2)
	assert.Equal(t, 1, rep.Conditions[0].Raised())
	assert.Equal(t, 0, rep.Conditions[1].Raised())

	assert.Equal(t, LabelBalance{Yes: 2, No: 9, YesShare: 2.0 / 11.0}, rep.Label)
}

func TestProfile_Warnings(t *testing.T) {
	rep := Profile(profileFixture(), DefaultOptions())
	joined := strings.Join(rep.Warnings, "\n")
	assert.Contains(t, joined, "condition z96 is never raised")
	assert.Contains(t, joined, "1 duplicate ids: a")

	rep.NoteLoad(&dataset.LoadStats{Name: "visits.csv", FlagCollisions: 2, Ignored: []string{"notes"}})
	assert.Equal(t, "visits.csv", rep.Name)
	joined = strings.Join(rep.Warnings, "\n")
	assert.Contains(t, joined, "2 condition flags")
	assert.Contains(t, joined, "ignored columns: notes")
}

func TestProfile_RareLevels(t *testing.T) {
	schema := dataset.Schema{ID: "id", Label: "result", Categorical: []string{"gender"}}
	var recs []dataset.Record
	for i := 0; i < 400; i++ {
		g := "1"
		if i%2 == 0 {
			g = "0"
		}
		if i == 7 {
			g = "2"
		}
		recs = append(recs, dataset.Record{ID: "x", Categorical: []string{g}})
	}
	rep := Profile(dataset.New(schema, recs), DefaultOptions())
	require.Len(t, rep.Cols[0].Rare, 1)
	assert.Equal(t, "2", rep.Cols[0].Rare[0].Value)
	assert.Contains(t, strings.Join(rep.Warnings, "\n"), `gender: rare level "2"`)
}

func TestReportMarkdown(t *testing.T) {
	rep := Profile(profileFixture(), DefaultOptions())
	rep.Name = "visits.csv"
	md := rep.Markdown()
	for _, want := range []string{
		"[DATASET SUMMARY]", "File: visits.csv", "Rows: 11",
		"[SCHEMA]", "- age: numeric (non-null 10, missing 9.1%)", "outliers: 1 above |z|>3.5",
		"- gender: categorical", "[CONDITIONS]", "- m84: absent=10 current=0 historic=1",
		"[OUTCOME]", "- yes: 2", "[HEAD AND SAMPLE ROWS]", "| id | age | gender | m84 | z96 | result |",
		"[NOTES]",
	} {
		assert.Contains(t, md, want)
	}
}

func TestProfile_Empty(t *testing.T) {
	rep := Profile(dataset.New(dataset.Schema{ID: "id", Label: "result", Numeric: []string{"age"}}, nil), DefaultOptions())
	assert.Equal(t, 0, rep.Rows)
	assert.Empty(t, rep.Samples)
	assert.NotContains(t, rep.Markdown(), "[HEAD AND SAMPLE ROWS]")
}
