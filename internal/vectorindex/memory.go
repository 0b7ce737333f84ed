package vectorindex

import (
	"context"
	"fmt"
	"sync"

	"docchat/internal/models"
)

type entry struct {
	chunk  models.Chunk
	vector []float32
	seq    uint64
}

// MemoryIndex is a flat brute-force index held in process memory.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries []entry
	dim     int
	seq     uint64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

func (m *MemoryIndex) Add(ctx context.Context, fileID string, chunks []models.Chunk, vectors [][]float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ValidateBatch(chunks, vectors, m.dim); err != nil {
		return err
	}
	if m.dim == 0 {
		m.dim = len(vectors[0])
	}
	for i, c := range chunks {
		c.FileID = fileID
		m.seq++
		m.entries = append(m.entries, entry{chunk: c, vector: vectors[i], seq: m.seq})
	}
	return nil
}

func (m *MemoryIndex) Remove(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	for _, e := range m.entries {
		if e.chunk.FileID != fileID {
			kept = append(kept, e)
		}
	}
	// clear the tail so removed vectors can be collected
	for i := len(kept); i < len(m.entries); i++ {
		m.entries[i] = entry{}
	}
	m.entries = kept
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query []float32, fileIDs []string, k int) ([]models.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(fileIDs) == 0 || k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	if len(query) != m.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index uses %d", models.ErrInvalidInput, len(query), m.dim)
	}

	set := candidateSet(fileIDs)
	var hits []Ranked
	for _, e := range m.entries {
		if _, ok := set[e.chunk.FileID]; !ok {
			continue
		}
		hits = append(hits, Ranked{
			Result: models.SearchResult{Chunk: e.chunk, Score: Cosine(query, e.vector)},
			Seq:    e.seq,
		})
	}
	return TopK(hits, k), nil
}

// Count returns the number of entries held for fileID.
func (m *MemoryIndex) Count(fileID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.entries {
		if e.chunk.FileID == fileID {
			n++
		}
	}
	return n
}

// Len is the total number of entries.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryIndex) Close() error { return nil }
