package db

import (
	"context"
	"os"
	"testing"

	"docchat/internal/models"
	"docchat/internal/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ vectorindex.Index = (*PostgresIndex)(nil)

// needs a postgres with the pgvector extension available
func openTestIndex(t *testing.T) *PostgresIndex {
	t.Helper()
	dsn := os.Getenv("DOCCHAT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DOCCHAT_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	idx, err := Open(ctx, dsn, false)
	require.NoError(t, err)
	require.NoError(t, DropDocuments(ctx, idx.db))
	require.NoError(t, InitDB(ctx, idx.db))
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestPostgresIndexLifecycle(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	chunks := []models.Chunk{{Text: "a0", OrderIndex: 0}, {Text: "a1", OrderIndex: 1}}
	require.NoError(t, idx.Add(ctx, "A", chunks, [][]float32{{0, 1, 0}, {1, 0, 0}}))
	require.NoError(t, idx.Add(ctx, "B", []models.Chunk{{Text: "b0"}}, [][]float32{{1, 0, 0}}))

	res, err := idx.Search(ctx, []float32{1, 0, 0}, []string{"A"}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a1", res[0].Chunk.Text)
	assert.InDelta(t, 1.0, res[0].Score, 1e-5)

	err = idx.Add(ctx, "C", []models.Chunk{{Text: "c0"}}, [][]float32{{1, 0}})
	require.ErrorIs(t, err, models.ErrInvalidInput)

	require.NoError(t, idx.Remove(ctx, "A"))
	res, err = idx.Search(ctx, []float32{1, 0, 0}, []string{"A", "B"}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "B", res[0].Chunk.FileID)
}

func TestPostgresAddReplacesFile(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	chunks := []models.Chunk{{Text: "a0", OrderIndex: 0}, {Text: "a1", OrderIndex: 1}}
	vectors := [][]float32{{0, 1, 0}, {1, 0, 0}}
	require.NoError(t, idx.Add(ctx, "A", chunks, vectors))
	require.NoError(t, idx.Add(ctx, "A", chunks, vectors))

	n, err := idx.db.NewSelect().Model((*ChunkRecord)(nil)).Where("file_id = ?", "A").Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := idx.Search(ctx, []float32{1, 0, 0}, []string{"A"}, 5)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}
