package dataset

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagColumn(t *testing.T) {
	tests := []struct {
		in     string
		code   string
		status Status
		ok     bool
	}{
		{"M84_current", "m84", Current, true},
		{"m84.4_HISTORIC", "m84.4", Historic, true},
		{"E11-negated", "e11", Negated, true},
		{"z96_uncertain", "z96", Uncertain, true},
		{"z96_surgical", "z96", Surgical, true},
		{"calcium", "", Absent, false},
		{"_current", "", Absent, false},
	}
	for _, tt := range tests {
		code, st, ok := ParseFlagColumn(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.code, code, tt.in)
		assert.Equal(t, tt.status, st, tt.in)
	}
}

func TestResolveStatusPrecedence(t *testing.T) {
	st, collided := ResolveStatus(map[Status]bool{Negated: true, Historic: true})
	assert.Equal(t, Historic, st)
	assert.True(t, collided)

	st, collided = ResolveStatus(map[Status]bool{Surgical: true})
	assert.Equal(t, Surgical, st)
	assert.False(t, collided)

	st, _ = ResolveStatus(nil)
	assert.Equal(t, Absent, st)
}

func TestSelectAndFilterDoNotShareRecords(t *testing.T) {
	ds := New(Schema{Numeric: []string{"age"}}, []Record{
		{ID: "a", Numeric: []float64{1}, Label: Yes},
		{ID: "b", Numeric: []float64{2}, Label: No},
	})
	sub := ds.Select([]int{1})
	sub.Records[0].Numeric[0] = 99
	assert.Equal(t, 2.0, ds.Records[1].Numeric[0])

	yes := ds.Filter(func(r Record) bool { return r.Label == Yes })
	assert.Equal(t, 1, yes.Len())
	assert.Equal(t, 0.5, ds.LabelShare(Yes))
}

func TestLabelJSON(t *testing.T) {
	b, err := json.Marshal(map[string]Label{"a": Yes, "b": No})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"yes","b":"no"}`, string(b))

	var back map[string]Label
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, Yes, back["a"])
	assert.Equal(t, No, back["b"])

	var l Label
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &l))
}
