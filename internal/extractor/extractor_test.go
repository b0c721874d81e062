package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/reconsolidate/internal/access"
)

func writeSession(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestRun_ExtractsNewSessionsAndSkipsProcessedOnes(t *testing.T) {
	// Given: a sessions directory with one session containing a memory_search call
	dir := t.TempDir()
	writeSession(t, dir, "sess-1.jsonl",
		`{"id":"m1","message":{"role":"assistant","content":[{"type":"toolCall","name":"memory_search","arguments":{"query":"q1"}}]}}`)

	store, err := access.Open(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	ex := New(store, dir, nil)
	ctx := context.Background()

	// When: running once
	summary, err := ex.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SessionsScanned)
	assert.Equal(t, 1, summary.SessionsNew)
	assert.Equal(t, 1, summary.EventsExtracted)

	// When: running again without --all
	summary2, err := ex.Run(ctx, false)
	require.NoError(t, err)

	// Then: the already-processed session is skipped, no duplicate events logged
	assert.Equal(t, 1, summary2.SessionsSkipped)
	assert.Equal(t, 0, summary2.EventsExtracted)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalAccessEvents)
}

func TestRun_Reprocess_ReextractsAllSessions(t *testing.T) {
	dir := t.TempDir()
	writeSession(t, dir, "sess-1.jsonl",
		`{"id":"m1","message":{"role":"assistant","content":[{"type":"toolCall","name":"memory_search","arguments":{"query":"q1"}}]}}`)

	store, err := access.Open(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	ex := New(store, dir, nil)
	ctx := context.Background()

	_, err = ex.Run(ctx, false)
	require.NoError(t, err)

	summary, err := ex.Run(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SessionsNew)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalAccessEvents)
}

func TestRun_EmptySessionsDirectory_ReturnsZeroSummary(t *testing.T) {
	dir := t.TempDir()

	store, err := access.Open(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	ex := New(store, dir, nil)
	summary, err := ex.Run(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 0, summary.SessionsScanned)
	assert.Equal(t, 0, summary.EventsExtracted)
}
