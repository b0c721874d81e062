package reconsolidate

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity_IdenticalVectorsIsOne(t *testing.T) {
	// Given: two identical nonzero vectors
	v := []float32{1, 2, 3}

	// When: computing cosine similarity
	sim := cosineSimilarity(v, v)

	// Then: similarity is ~1
	assert.InDelta(t, 1.0, sim, 1e-5)
}

func TestCosineSimilarity_OrthogonalIsZero(t *testing.T) {
	// Given: two orthogonal vectors
	a := []float32{1, 0}
	b := []float32{0, 1}

	// When/Then: similarity is ~0
	assert.InDelta(t, 0.0, cosineSimilarity(a, b), 1e-5)
}

func TestCosineSimilarity_MismatchedLengthsIsNaN(t *testing.T) {
	sim := cosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.True(t, math32.IsNaN(sim))
}

func TestCosineSimilarity_EmptyVectorsIsNaN(t *testing.T) {
	sim := cosineSimilarity(nil, nil)
	assert.True(t, math32.IsNaN(sim))
}

func TestIsDegenerate_DetectsNaNAndInf(t *testing.T) {
	assert.True(t, isDegenerate(math32.NaN()))
	assert.True(t, isDegenerate(math32.Inf(1)))
	assert.True(t, isDegenerate(math32.Inf(-1)))
	assert.False(t, isDegenerate(0.5))
}
