// Package indexing owns the per-file indexing lifecycle.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"docchat/internal/chunker"
	"docchat/internal/embedding"
	"docchat/internal/models"
	"docchat/internal/parser"
	"docchat/internal/vectorindex"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

// State is the published indexing status of one file.
type State struct {
	FileID     string                `json:"file_id"`
	Status     models.IndexingStatus `json:"status"`
	Message    string                `json:"message"`
	ChunkCount int                   `json:"chunk_count"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

type record struct {
	status  models.IndexingStatus
	message string
	chunks  int
	updated time.Time
}

// Config wires the pipeline stages. Zero values fall back to defaults
// except Embedder and Index which are required.
type Config struct {
	Chunker     *chunker.Chunker
	Embedder    embedding.Embedder
	Index       vectorindex.Index
	Concurrency int
	// Extract defaults to parser.Extract.
	Extract func(data []byte, filename string) ([]models.Segment, error)
}

// Coordinator runs at most one indexing attempt per file id at a time.
// Different files index concurrently, bounded by Config.Concurrency.
type Coordinator struct {
	mu    sync.Mutex
	files map[string]*record

	chunker  *chunker.Chunker
	embedder embedding.Embedder
	index    vectorindex.Index
	extract  func([]byte, string) ([]models.Segment, error)
	sem      *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("embedder required")
	}
	if cfg.Index == nil {
		return nil, errors.New("vector index required")
	}
	if cfg.Chunker == nil {
		cfg.Chunker = chunker.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Extract == nil {
		cfg.Extract = parser.Extract
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		files:    make(map[string]*record),
		chunker:  cfg.Chunker,
		embedder: cfg.Embedder,
		index:    cfg.Index,
		extract:  cfg.Extract,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Register creates a pending record if the file has none.
func (c *Coordinator) Register(fileID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.files[fileID]
	if !ok {
		rec = &record{status: models.StatusPending, message: "waiting to be indexed", updated: time.Now()}
		c.files[fileID] = rec
	}
	return rec.state(fileID)
}

// Status never fails. Ids without a record report unknown.
func (c *Coordinator) Status(fileID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.files[fileID]
	if !ok {
		return State{FileID: fileID, Status: models.StatusUnknown, Message: "no indexing record for this file"}
	}
	return rec.state(fileID)
}

// Retry moves a failed file back to pending.
func (c *Coordinator) Retry(fileID string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.files[fileID]
	if !ok {
		return State{}, fmt.Errorf("%w: %s", models.ErrNotFound, fileID)
	}
	if rec.status != models.StatusFailed {
		return rec.state(fileID), fmt.Errorf("%w: cannot retry a %s file", models.ErrInvalidTransition, rec.status)
	}
	rec.status = models.StatusPending
	rec.message = "retry requested"
	rec.updated = time.Now()
	return rec.state(fileID), nil
}

// Forget drops the record and purges index entries. A run still in flight
// for the id purges its own entries when it finishes.
func (c *Coordinator) Forget(ctx context.Context, fileID string) error {
	c.mu.Lock()
	rec, ok := c.files[fileID]
	delete(c.files, fileID)
	c.mu.Unlock()

	if ok && rec.status == models.StatusIndexing {
		return nil
	}
	return c.index.Remove(ctx, fileID)
}

// begin claims the file for one run. It returns false with the current state
// when the file is already indexing, completed or failed.
func (c *Coordinator) begin(fileID string) (*record, State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.files[fileID]
	if !ok {
		rec = &record{status: models.StatusPending}
		c.files[fileID] = rec
	}
	if rec.status != models.StatusPending {
		return nil, rec.state(fileID), false
	}
	rec.status = models.StatusIndexing
	rec.message = "indexing"
	rec.updated = time.Now()
	return rec, rec.state(fileID), true
}

func (c *Coordinator) finish(ctx context.Context, fileID string, rec *record, chunks int, runErr error) (State, error) {
	if runErr != nil {
		if err := c.index.Remove(context.WithoutCancel(ctx), fileID); err != nil {
			log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to purge partial index entries")
		}
	}

	var state State
	c.mu.Lock()
	current := c.files[fileID]
	if current == rec {
		rec.updated = time.Now()
		if runErr != nil {
			rec.status = models.StatusFailed
			rec.message = runErr.Error()
			rec.chunks = 0
		} else {
			rec.status = models.StatusCompleted
			rec.message = fmt.Sprintf("indexed %d chunks", chunks)
			rec.chunks = chunks
		}
		state = rec.state(fileID)
	}
	c.mu.Unlock()

	if current != rec {
		// deleted while indexing
		log.Info().Str("file_id", fileID).Msg("File forgotten during indexing, purging entries")
		if err := c.index.Remove(context.WithoutCancel(ctx), fileID); err != nil {
			log.Warn().Err(err).Str("file_id", fileID).Msg("Failed to purge entries of forgotten file")
		}
		return State{FileID: fileID, Status: models.StatusUnknown, Message: "file was deleted"}, runErr
	}

	if runErr != nil {
		log.Error().Err(runErr).Str("file_id", fileID).Msg("Indexing failed")
		return state, runErr
	}
	log.Info().Str("file_id", fileID).Int("chunks", chunks).Msg("Indexing completed")
	return state, nil
}

// IndexBytes runs extraction, chunking, embedding and indexing for a file
// whose raw bytes are available here. Repeated calls are no-ops.
func (c *Coordinator) IndexBytes(ctx context.Context, fileID, filename string, data []byte) (State, error) {
	rec, state, ok := c.begin(fileID)
	if !ok {
		log.Debug().Str("file_id", fileID).Str("status", string(state.Status)).Msg("Indexing skipped")
		return state, nil
	}
	return c.indexClaimed(ctx, fileID, filename, data, rec)
}

// indexClaimed runs the pipeline for a record already moved to indexing.
func (c *Coordinator) indexClaimed(ctx context.Context, fileID, filename string, data []byte, rec *record) (State, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return c.finish(ctx, fileID, rec, 0, err)
	}
	defer c.sem.Release(1)

	log.Info().Str("file_id", fileID).Str("filename", filename).Int("bytes", len(data)).Msg("Indexing file")
	n, err := c.run(ctx, fileID, filename, data)
	return c.finish(ctx, fileID, rec, n, err)
}

func (c *Coordinator) run(ctx context.Context, fileID, filename string, data []byte) (int, error) {
	segments, err := c.extract(data, filename)
	if err != nil {
		return 0, err
	}
	chunks := c.chunker.Split(fileID, segments)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("%w: %s: no text after chunking", models.ErrExtraction, filename)
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := c.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	if err := embedding.Validate(len(texts), vectors); err != nil {
		return 0, err
	}
	if err := c.index.Add(ctx, fileID, chunks, vectors); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

// IndexPrecomputed indexes chunks and embeddings computed elsewhere.
// A malformed payload is rejected without touching the file's state.
func (c *Coordinator) IndexPrecomputed(ctx context.Context, fileID string, chunks []models.Chunk, vectors [][]float32) (State, error) {
	if err := vectorindex.ValidateBatch(chunks, vectors, 0); err != nil {
		return c.Status(fileID), err
	}
	rec, state, ok := c.begin(fileID)
	if !ok {
		log.Debug().Str("file_id", fileID).Str("status", string(state.Status)).Msg("Pre-computed indexing skipped")
		return state, nil
	}

	owned := make([]models.Chunk, len(chunks))
	for i, ch := range chunks {
		ch.FileID = fileID
		ch.OrderIndex = i
		owned[i] = ch
	}
	err := c.index.Add(ctx, fileID, owned, vectors)
	return c.finish(ctx, fileID, rec, len(owned), err)
}

// Fail marks a pending or unknown file failed with a reason reported by a
// client that could not index it locally. Other states are left alone.
func (c *Coordinator) Fail(ctx context.Context, fileID, reason string) State {
	rec, state, ok := c.begin(fileID)
	if !ok {
		log.Debug().Str("file_id", fileID).Str("status", string(state.Status)).Msg("Failure report ignored")
		return state
	}
	state, _ = c.finish(ctx, fileID, rec, 0, errors.New(reason))
	return state
}

// Submit claims the file and indexes it in the background. The returned
// state is indexing, or the current state when the file was not pending.
func (c *Coordinator) Submit(fileID, filename string, data []byte) State {
	rec, state, ok := c.begin(fileID)
	if !ok {
		return state
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.indexClaimed(c.ctx, fileID, filename, data, rec); err != nil {
			log.Debug().Err(err).Str("file_id", fileID).Msg("Background indexing ended with error")
		}
	}()
	return state
}

// Wait blocks until background runs started by Submit have finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Close cancels background runs and waits for them.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (r *record) state(fileID string) State {
	return State{FileID: fileID, Status: r.status, Message: r.message, ChunkCount: r.chunks, UpdatedAt: r.updated}
}
