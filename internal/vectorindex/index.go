// Package vectorindex stores chunk embeddings per file and answers
// cosine top-k queries scoped to a set of files.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"

	"docchat/internal/models"
)

// Index is an append-only collection of chunk embeddings keyed by file id.
// Add and Remove for the same file id must not run concurrently.
type Index interface {
	Add(ctx context.Context, fileID string, chunks []models.Chunk, vectors [][]float32) error
	Remove(ctx context.Context, fileID string) error
	// Search returns at most k entries of fileIDs by descending cosine
	// similarity, ties in insertion order. No candidates means no results.
	Search(ctx context.Context, query []float32, fileIDs []string, k int) ([]models.SearchResult, error)
	Close() error
}

// ValidateBatch checks a batch against the index dimensionality.
// dim 0 means the index has not fixed its dimensionality yet.
func ValidateBatch(chunks []models.Chunk, vectors [][]float32, dim int) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d embeddings", models.ErrInvalidInput, len(chunks), len(vectors))
	}
	if len(vectors) == 0 {
		return fmt.Errorf("%w: no chunks to index", models.ErrInvalidInput)
	}
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, index uses %d", models.ErrInvalidInput, i, len(v), dim)
		}
	}
	return nil
}

// Cosine similarity of a and b, zero when either has no magnitude.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

// Ranked is a search hit with its insertion sequence for tie-breaking.
type Ranked struct {
	Result models.SearchResult
	Seq    uint64
}

// TopK orders hits by score then sequence and keeps the first k.
func TopK(hits []Ranked, k int) []models.SearchResult {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Result.Score != hits[j].Result.Score {
			return hits[i].Result.Score > hits[j].Result.Score
		}
		return hits[i].Seq < hits[j].Seq
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]models.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = h.Result
	}
	return out
}

func candidateSet(fileIDs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		set[id] = struct{}{}
	}
	return set
}
