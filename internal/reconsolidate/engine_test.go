package reconsolidate

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openclaw/reconsolidate/internal/energy"
	"github.com/openclaw/reconsolidate/internal/vectorstore"
)

func newTestStore(t *testing.T) *vectorstore.SQLiteStore {
	t.Helper()
	s, err := vectorstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestKeepCount_ComputesFloorWithMinimumOne(t *testing.T) {
	assert.Equal(t, 1, keepCount(10, 0.05))
	assert.Equal(t, 3, keepCount(20, 0.15))
	assert.Equal(t, 10, keepCount(10, 1.0))
}

func TestRun_EmptyCorpus_ReturnsNoOp(t *testing.T) {
	// Given: an empty vector store
	store := newTestStore(t)
	eng := New(store)

	// When: running with an empty energy map
	result, err := eng.Run(context.Background(), energy.Map{}, Params{KeepRatio: 0.15, PromotionStrength: 1.5})

	// Then: the engine reports a no-op without error
	require.NoError(t, err)
	assert.Equal(t, "none", result.Action)
	assert.Equal(t, "no chunks in vmem", result.Error)
}

func TestRun_EnergyMapWithNoMatchingKeys_ReturnsNoOp(t *testing.T) {
	// Given: a populated store but an energy map keyed to chunks that no longer exist
	store := newTestStore(t)
	_, err := store.InsertChunk("a.go", "content a", 1, 5, []float32{1, 0, 0})
	require.NoError(t, err)
	eng := New(store)

	// When: running with a stale energy map
	result, err := eng.Run(context.Background(), energy.Map{"stale.go:99": 1.0}, Params{KeepRatio: 0.5, PromotionStrength: 1.5})

	// Then: the engine reports a no-op explaining the mismatch
	require.NoError(t, err)
	assert.Equal(t, "none", result.Action)
	assert.Contains(t, result.Error, "no keys matching")
}

func seedChunks(t *testing.T, store *vectorstore.SQLiteStore) {
	t.Helper()
	embeddings := [][]float32{
		{1, 0, 0, 1},
		{0, 1, 0, 1},
		{0, 0, 1, 1},
		{1, 1, 0, 0},
		{0, 1, 1, 0},
		{1, 0, 1, 0},
	}
	for i, v := range embeddings {
		_, err := store.InsertChunk("f.go", "row content", i, i, v)
		require.NoError(t, err)
	}
}

func TestRun_DryRun_DoesNotWriteBack(t *testing.T) {
	// Given: a populated store and a dry_run request
	store := newTestStore(t)
	seedChunks(t, store)
	before, embeddingsBefore, err := store.LoadAll()
	require.NoError(t, err)
	eng := New(store)

	// When: running with dry_run set
	result, err := eng.Run(context.Background(), energy.Map{"f.go:5": 1.0}, Params{KeepRatio: 0.5, PromotionStrength: 3.0, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "reconsolidated", result.Action)

	// Then: the stored embeddings are untouched
	after, embeddingsAfter, err := store.LoadAll()
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range embeddingsBefore {
		assert.Equal(t, embeddingsBefore[i], embeddingsAfter[i])
	}
}

func TestRun_RealRun_WritesBackAndPromotesHighEnergyChunk(t *testing.T) {
	// Given: a populated store where one chunk key carries all the energy
	store := newTestStore(t)
	seedChunks(t, store)
	eng := New(store)
	energyMap := energy.Map{"f.go:5": 1.0}

	// When: running a real (non-dry-run) pass
	result, err := eng.Run(context.Background(), energyMap, Params{KeepRatio: 0.5, PromotionStrength: 5.0})

	// Then: the run succeeds, reports aggregate metrics, and the heavily
	// weighted chunk shows up as a promoted row
	require.NoError(t, err)
	assert.Equal(t, "reconsolidated", result.Action)
	assert.Equal(t, 6, result.NumChunks)
	assert.Equal(t, 3, result.K)
	assert.LessOrEqual(t, result.MinDelta, result.AvgDelta)
	assert.GreaterOrEqual(t, result.MaxDelta, result.AvgDelta)

	var sawHighEnergyChunk bool
	for _, m := range result.Promoted {
		if m.ChunkKey == "f.go:5" {
			sawHighEnergyChunk = true
		}
	}
	assert.True(t, sawHighEnergyChunk, "expected the sole high-energy chunk to be promoted")

	// And: the write-back actually changed the stored embeddings
	_, embeddingsAfter, err := store.LoadAll()
	require.NoError(t, err)
	assert.NotEqual(t, []float32{1, 0, 1, 0}, embeddingsAfter[5])
}

func TestRun_SingleChunkRunsWithKOfOne(t *testing.T) {
	// Given: a store with a single chunk (k collapses to 1, a degenerate but
	// still legal case since keepCount floors at 1)
	store := newTestStore(t)
	_, err := store.InsertChunk("a.go", "x", 1, 1, []float32{1, 2, 3})
	require.NoError(t, err)
	eng := New(store)

	// When/Then: running does not error even at the N=1 boundary
	result, err := eng.Run(context.Background(), energy.Map{"a.go:1": 1.0}, Params{KeepRatio: 0.15, PromotionStrength: 1.5})
	require.NoError(t, err)
	assert.Equal(t, "reconsolidated", result.Action)
	assert.Equal(t, 1, result.K)
}

// shrinkingStore wraps a real store but reports one fewer chunk on every
// LoadAll call after the first, simulating a corpus mutated mid-run.
type shrinkingStore struct {
	*vectorstore.SQLiteStore
	calls int
}

func (s *shrinkingStore) LoadAll() ([]vectorstore.Chunk, [][]float32, error) {
	s.calls++
	chunks, embeddings, err := s.SQLiteStore.LoadAll()
	if err != nil {
		return nil, nil, err
	}
	if s.calls > 1 && len(chunks) > 0 {
		return chunks[:len(chunks)-1], embeddings[:len(embeddings)-1], nil
	}
	return chunks, embeddings, nil
}

func TestRun_AbortsWithoutWritingWhenRowCountChangesMidRun(t *testing.T) {
	// Given: a store whose chunk count shrinks between the initial read and
	// the write-back verification read
	base := newTestStore(t)
	seedChunks(t, base)
	store := &shrinkingStore{SQLiteStore: base}
	eng := New(store)

	// When: running a real pass
	_, err := eng.Run(context.Background(), energy.Map{"f.go:5": 1.0}, Params{KeepRatio: 0.5, PromotionStrength: 2.0})

	// Then: the engine reports an error instead of writing partial results
	assert.Error(t, err)
}

func TestRun_AllZeroEnergyMatchesBaseline(t *testing.T) {
	// Given: an energy map that matches every chunk but carries zero energy
	// for all of them (weights collapse to 1, same as the baseline pass)
	store := newTestStore(t)
	seedChunks(t, store)
	eng := New(store)
	energyMap := energy.Map{}
	for i := 0; i < 6; i++ {
		energyMap[fmt.Sprintf("f.go:%d", i)] = 0
	}

	// When: running with dry_run so the comparison is against stable input
	result, err := eng.Run(context.Background(), energyMap, Params{KeepRatio: 0.5, PromotionStrength: 5.0, DryRun: true})

	// Then: before/after similarity match within tolerance (zero delta)
	require.NoError(t, err)
	assert.Equal(t, "reconsolidated", result.Action)
	assert.InDelta(t, 0.0, result.AvgDelta, 1e-6)
	assert.InDelta(t, 0.0, result.MinDelta, 1e-6)
	assert.InDelta(t, 0.0, result.MaxDelta, 1e-6)
}

func TestAlignEnergy_DefaultsUnmatchedChunksToZero(t *testing.T) {
	chunks := []vectorstore.Chunk{{ChunkKey: "a.go:1"}, {ChunkKey: "b.go:2"}}
	out, matched := alignEnergy(chunks, energy.Map{"a.go:1": 0.75})
	assert.Equal(t, []float64{0.75, 0}, out)
	assert.Equal(t, 1, matched)
}

func TestPreview_TruncatesToEightyRunes(t *testing.T) {
	long := ""
	for i := 0; i < 200; i++ {
		long += "x"
	}
	p := preview(long)
	assert.Len(t, []rune(p), 80)
}
