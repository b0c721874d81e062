package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openclaw/reconsolidate/internal/access"
)

func newTestStore(t *testing.T) *access.Store {
	t.Helper()
	s, err := access.Open(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGenerate_EmptyStoreReturnsZeroReport(t *testing.T) {
	// Given: a store with no events
	store := newTestStore(t)

	// When: generating a report
	report, err := Generate(context.Background(), store, "", 14, time.Now())

	// Then: no error, and the report carries no events
	require.NoError(t, err)
	require.Equal(t, 0, report.TotalEvents)
}

func TestGenerate_PopulatedStoreProducesCounts(t *testing.T) {
	// Given: a store with a few logged events across two sessions
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.LogEvent(ctx, "how does auth work", []access.ResultRecord{{File: "auth.go", Lines: "10", Score: 0.9}}, "s1", float64(now.Unix())))
	require.NoError(t, store.LogEvent(ctx, "how does auth validate", []access.ResultRecord{{File: "auth.go", Lines: "10", Score: 0.8}}, "s1", float64(now.Unix())))
	require.NoError(t, store.LogEvent(ctx, "where is the config", nil, "s2", float64(now.Unix())))

	// When: generating a report
	report, err := Generate(ctx, store, "", 14, now)

	// Then: event/query/session counts and the hot chunk are all populated
	require.NoError(t, err)
	require.Equal(t, 3, report.TotalEvents)
	require.Equal(t, 3, report.UniqueQueries)
	require.Equal(t, 2, report.SessionsSearched)
	require.NotEmpty(t, report.Hot)
	require.Equal(t, "auth.go:10", report.Hot[0].ChunkKey)
}

func TestWrite_DryRunDoesNotTouchDisk(t *testing.T) {
	// Given: an output path that does not yet exist
	dir := t.TempDir()
	out := filepath.Join(dir, "mirror.md")

	// When: writing with dry_run
	err := Write("content", out, true)

	// Then: nothing was written
	require.NoError(t, err)
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}

func TestWrite_RealRunCreatesFileAndParentDir(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "nested", "mirror.md")

	err := Write("hello\n", out, false)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))
}
