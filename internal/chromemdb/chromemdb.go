package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"docchat/internal/models"
	"docchat/internal/vectorindex"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
)

// metadata keys stored on every chromem document
const (
	metaFileID = "file_id"
	metaOrder  = "order_index"
	metaSource = "source"
	metaSeq    = "seq"
)

const compress = false

// VectorDBManager is a VectorIndex backed by a chromem-go collection.
// In memory databases can be snapshotted to an encrypted file on Close.
type VectorDBManager struct {
	mu            sync.Mutex
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	inMemory      bool
	encryptionKey string
	filePath      string
	dim           int
	seq           uint64
}

// NewVectorDBManager opens the database and its collection. A persistent
// database lives under dbPath. An in memory one is restored from its
// snapshot when an encryption key is configured and a snapshot exists.
func NewVectorDBManager(dbPath, collectionName string, inMemory bool, encryptionKey string) (*VectorDBManager, error) {
	var (
		db  *chromem.DB
		err error
	)
	if inMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        dbPath,
		inMemory:      inMemory,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(dbPath, collectionName+".chromem"),
		// seeded from the clock so sequence keeps growing across restarts
		seq: uint64(time.Now().UnixNano()),
	}

	if _, err := m.GetOrCreateCollection(collectionName); err != nil {
		return nil, err
	}
	if inMemory && encryptionKey != "" {
		if _, err := os.Stat(m.filePath); err == nil {
			if err := m.Import(context.Background()); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// GetOrCreateCollection selects the collection used for all operations.
func (m *VectorDBManager) GetOrCreateCollection(collectionName string) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return c, nil
}

func (m *VectorDBManager) Add(ctx context.Context, fileID string, chunks []models.Chunk, vectors [][]float32) error {
	m.mu.Lock()
	if err := vectorindex.ValidateBatch(chunks, vectors, m.dim); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.dim == 0 {
		m.dim = len(vectors[0])
	}
	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		m.seq++
		docs[i] = chromem.Document{
			ID:      fileID + "-" + strconv.Itoa(c.OrderIndex),
			Content: c.Text,
			Metadata: map[string]string{
				metaFileID: fileID,
				metaOrder:  strconv.Itoa(c.OrderIndex),
				metaSource: c.Source,
				metaSeq:    strconv.FormatUint(m.seq, 10),
			},
			Embedding: vectors[i],
		}
	}
	m.mu.Unlock()

	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		// documents added before the failure must not linger
		if rmErr := m.Remove(ctx, fileID); rmErr != nil {
			log.Warn().Err(rmErr).Str("file_id", fileID).Msg("Failed to purge partial add")
		}
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Remove(ctx context.Context, fileID string) error {
	if err := m.collection.Delete(ctx, map[string]string{metaFileID: fileID}, nil); err != nil {
		return fmt.Errorf("failed to delete documents of %s: %w", fileID, err)
	}
	return nil
}

// Search runs one filtered query per candidate file and merges the hits.
func (m *VectorDBManager) Search(ctx context.Context, query []float32, fileIDs []string, k int) ([]models.SearchResult, error) {
	total := m.collection.Count()
	if len(fileIDs) == 0 || k <= 0 || total == 0 {
		return nil, nil
	}
	if m.dim != 0 && len(query) != m.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index uses %d", models.ErrInvalidInput, len(query), m.dim)
	}

	n := min(k, total)
	var hits []vectorindex.Ranked
	seen := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		results, err := m.collection.QueryEmbedding(ctx, query, n, map[string]string{metaFileID: id}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to query by similarity: %w", err)
		}
		for _, r := range results {
			hits = append(hits, toRanked(r))
		}
	}
	return vectorindex.TopK(hits, k), nil
}

func toRanked(r chromem.Result) vectorindex.Ranked {
	order, _ := strconv.Atoi(r.Metadata[metaOrder])
	seq, _ := strconv.ParseUint(r.Metadata[metaSeq], 10, 64)
	return vectorindex.Ranked{
		Result: models.SearchResult{
			Chunk: models.Chunk{
				Text:       r.Content,
				FileID:     r.Metadata[metaFileID],
				OrderIndex: order,
				Source:     r.Metadata[metaSource],
			},
			Score: r.Similarity,
		},
		Seq: seq,
	}
}

// Count is the number of documents in the collection.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// DeleteCollection drops every document.
func (m *VectorDBManager) DeleteCollection() error {
	name := m.collection.Name
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	_, err := m.GetOrCreateCollection(name)
	return err
}

// Export writes an encrypted snapshot of the collection.
func (m *VectorDBManager) Export(ctx context.Context) error {
	if m.encryptionKey == "" {
		return errors.New("encryption key is required")
	}
	if m.dbPath == "" {
		return errors.New("db path is required")
	}
	if err := os.MkdirAll(m.dbPath, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	log.Debug().Str("collection", m.collection.Name).Str("path", m.filePath).Msg("Exporting vector snapshot")
	if err := m.db.ExportToFile(m.filePath, compress, m.encryptionKey, m.collection.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}

// Import replaces the collection with the snapshot on disk.
func (m *VectorDBManager) Import(ctx context.Context) error {
	name := m.collection.Name
	if err := m.db.ImportFromFile(m.filePath, m.encryptionKey, name); err != nil {
		return fmt.Errorf("failed to import snapshot %s: %w", m.filePath, err)
	}
	if _, err := m.GetOrCreateCollection(name); err != nil {
		return err
	}
	log.Info().Str("path", m.filePath).Int("documents", m.collection.Count()).Msg("Imported vector snapshot")
	return nil
}

// Close snapshots in memory databases that have an encryption key.
func (m *VectorDBManager) Close() error {
	if m.inMemory && m.encryptionKey != "" {
		return m.Export(context.Background())
	}
	return nil
}
