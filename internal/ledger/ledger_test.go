package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_RecordList(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sub", "runs.db")
	l, err := Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := Entry{RunID: "r1", CreatedAt: at, Input: "visits.csv", Model: "logistic", Seed: 42,
		Split: 0.5, Ratio: 1, Threshold: 0.5, TrainRows: 30, TestRows: 500, Accuracy: 0.8, Sensitivity: 0.6, Specificity: 0.81}
	second := first
	second.Model = "naive-bayes"
	second.Accuracy = 0.7
	require.NoError(t, l.Record(ctx, first, second))

	got, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, second, got[0], "newest first")
	assert.Equal(t, first, got[1])

	got, err = l.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestLedger_ReplaceSameRunModel(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	l, err := Open(ctx, path)
	require.NoError(t, err)

	e := Entry{RunID: "r1", CreatedAt: time.Now().UTC(), Model: "logistic", Accuracy: 0.5}
	require.NoError(t, l.Record(ctx, e))
	e.Accuracy = 0.9
	require.NoError(t, l.Record(ctx, e))
	require.NoError(t, l.Close())

	// reopen to confirm the rows persisted
	l, err = Open(ctx, path)
	require.NoError(t, err)
	defer l.Close()
	got, err := l.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.9, got[0].Accuracy)
}
