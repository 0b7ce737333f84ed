package vectorindex

import (
	"context"
	"testing"

	"docchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunksFor(fileID string, texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, t := range texts {
		out[i] = models.Chunk{Text: t, FileID: fileID, OrderIndex: i}
	}
	return out
}

func TestMemorySearchScopedToFiles(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Add(ctx, "A", chunksFor("A", "a0", "a1"), [][]float32{{0, 1}, {0.5, 0.5}}))
	require.NoError(t, idx.Add(ctx, "B", chunksFor("B", "b0"), [][]float32{{1, 0}}))

	// B is an exact match but out of scope
	res, err := idx.Search(ctx, []float32{1, 0}, []string{"A"}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.Equal(t, "A", r.Chunk.FileID)
	}
	assert.Equal(t, "a1", res[0].Chunk.Text)

	res, err = idx.Search(ctx, []float32{1, 0}, []string{"A", "B"}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "b0", res[0].Chunk.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-6)
}

func TestMemorySearchTiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Add(ctx, "A", chunksFor("A", "first", "second"), [][]float32{{1, 1}, {2, 2}}))
	require.NoError(t, idx.Add(ctx, "B", chunksFor("B", "third"), [][]float32{{3, 3}}))

	res, err := idx.Search(ctx, []float32{1, 1}, []string{"B", "A"}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{res[0].Chunk.Text, res[1].Chunk.Text, res[2].Chunk.Text})
}

func TestMemorySearchEmpty(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	res, err := idx.Search(ctx, []float32{1}, []string{"A"}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)

	require.NoError(t, idx.Add(ctx, "A", chunksFor("A", "x"), [][]float32{{1}}))
	res, err = idx.Search(ctx, []float32{1}, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestMemoryRemovePurgesFile(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Add(ctx, "A", chunksFor("A", "a"), [][]float32{{1, 0}}))
	require.NoError(t, idx.Add(ctx, "B", chunksFor("B", "b"), [][]float32{{0, 1}}))

	require.NoError(t, idx.Remove(ctx, "A"))
	assert.Equal(t, 0, idx.Count("A"))
	assert.Equal(t, 1, idx.Count("B"))

	res, err := idx.Search(ctx, []float32{1, 0}, []string{"A", "B"}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "B", res[0].Chunk.FileID)
}

func TestMemoryRejectsBadBatches(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	err := idx.Add(ctx, "A", chunksFor("A", "a", "b"), [][]float32{{1, 0}})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	require.NoError(t, idx.Add(ctx, "A", chunksFor("A", "a"), [][]float32{{1, 0}}))
	err = idx.Add(ctx, "B", chunksFor("B", "b"), [][]float32{{1, 0, 0}})
	require.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Equal(t, 0, idx.Count("B"))

	_, err = idx.Search(ctx, []float32{1, 0, 0}, []string{"A"}, 1)
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Equal(t, float32(0), Cosine([]float32{0, 0}, []float32{1, 1}))
}
