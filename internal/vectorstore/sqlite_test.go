package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoadAll_ReturnsChunksInInsertionOrder(t *testing.T) {
	// Given: three inserted chunks
	s := newTestVectorStore(t)
	id1, err := s.InsertChunk("a.go", "content a", 1, 10, []float32{1, 0, 0})
	require.NoError(t, err)
	id2, err := s.InsertChunk("b.go", "content b", 5, 20, []float32{0, 1, 0})
	require.NoError(t, err)

	// When: loading all
	chunks, embeddings, err := s.LoadAll()

	// Then: both rows come back in ID order with their exact embeddings
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	require.Len(t, embeddings, 2)
	assert.Equal(t, id1, chunks[0].ID)
	assert.Equal(t, id2, chunks[1].ID)
	assert.Equal(t, "a.go:1", chunks[0].ChunkKey)
	assert.Equal(t, []float32{1, 0, 0}, embeddings[0])
}

func TestWriteBack_UpdatesEmbeddingsAtomically(t *testing.T) {
	s := newTestVectorStore(t)
	id, err := s.InsertChunk("a.go", "x", 1, 5, []float32{1, 2, 3})
	require.NoError(t, err)

	require.NoError(t, s.WriteBack([]int64{id}, [][]float32{{9, 9, 9}}))

	chunks, embeddings, err := s.LoadAll()
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []float32{9, 9, 9}, embeddings[0])
}

func TestWriteBack_MismatchedLengthsFailsWithoutPartialWrite(t *testing.T) {
	s := newTestVectorStore(t)
	id, err := s.InsertChunk("a.go", "x", 1, 5, []float32{1, 2, 3})
	require.NoError(t, err)

	err = s.WriteBack([]int64{id, 999}, [][]float32{{9, 9, 9}})
	require.Error(t, err)

	_, embeddings, err := s.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, embeddings[0])
}

func TestWriteBack_UnknownIDRollsBackWholeBatch(t *testing.T) {
	s := newTestVectorStore(t)
	id, err := s.InsertChunk("a.go", "x", 1, 5, []float32{1, 2, 3})
	require.NoError(t, err)

	err = s.WriteBack([]int64{id, 99999}, [][]float32{{9, 9, 9}, {8, 8, 8}})
	require.Error(t, err)

	_, embeddings, err := s.LoadAll()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, embeddings[0])
}

func TestDimensions_ReflectsStoredEmbeddingWidth(t *testing.T) {
	s := newTestVectorStore(t)
	dim, err := s.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, 0, dim)

	_, err = s.InsertChunk("a.go", "x", 1, 5, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	dim, err = s.Dimensions()
	require.NoError(t, err)
	assert.Equal(t, 4, dim)
}
