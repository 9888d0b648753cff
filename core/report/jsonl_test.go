package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maelqr/carbonsched/core/model"
)

func TestJSONLStoreAppendQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	store, err := NewJSONLStore(path)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	reps := []SessionReport{
		{SessionID: "a", Region: "FR", FinishedAt: base, FinalVerdict: model.VerdictProceed},
		{SessionID: "b", Region: "DE", FinishedAt: base.Add(time.Hour), FinalVerdict: model.VerdictReject},
		{SessionID: "c", Region: "FR", FinishedAt: base.Add(2 * time.Hour), FinalVerdict: model.VerdictProceed},
	}
	ctx := context.Background()
	for _, r := range reps {
		require.NoError(t, store.Append(ctx, r))
	}

	got, err := store.Query(ctx, Query{Region: "FR"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = store.Query(ctx, Query{Verdict: model.VerdictReject, HasVerdict: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "b", got[0].SessionID)

	got, err = store.Query(ctx, Query{Start: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestJSONLStoreSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	store, err := NewJSONLStore(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, SessionReport{SessionID: "ok"}))

	// Damage the file with a non-JSON line, then append another record.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("not json\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, store.Append(ctx, SessionReport{SessionID: "ok2"}))

	got, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, got, 2)
}
