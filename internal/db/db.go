package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"docchat/internal/models"
	"docchat/internal/vectorindex"

	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

// ChunkRecord is one indexed chunk row.
type ChunkRecord struct {
	bun.BaseModel `bun:"table:file_chunks,alias:fc"`
	ID            int64           `bun:"id,pk,autoincrement"`
	FileID        string          `bun:"file_id,notnull"`
	OrderIndex    int             `bun:"order_index,notnull"`
	Source        string          `bun:"source"`
	Content       string          `bun:"content,notnull"`
	Embedding     pgvector.Vector `bun:"embedding,notnull,type:vector"`
	Score         float32         `bun:"score,scanonly"`
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable pgvector: %w", err)
	}
	if _, err := db.NewCreateTable().Model((*ChunkRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create file_chunks: %w", err)
	}
	_, err := db.NewCreateIndex().
		Model((*ChunkRecord)(nil)).
		Index("file_chunks_file_id_idx").
		Column("file_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to index file_chunks: %w", err)
	}
	return nil
}

// DropDocuments removes the table and everything in it.
func DropDocuments(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().Model((*ChunkRecord)(nil)).IfExists().Exec(ctx)
	return err
}

// PostgresIndex is a VectorIndex over a pgvector table.
type PostgresIndex struct {
	db *bun.DB

	mu  sync.Mutex
	dim int
}

// Open connects, migrates and returns a ready index.
func Open(ctx context.Context, dsn string, debug bool) (*PostgresIndex, error) {
	bunDB := NewDB(ConnectDB(dsn), debug)
	if err := bunDB.PingContext(ctx); err != nil {
		bunDB.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := InitDB(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, err
	}
	return &PostgresIndex{db: bunDB}, nil
}

func (p *PostgresIndex) dimension(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dim != 0 {
		return p.dim, nil
	}
	var dim int
	err := p.db.NewSelect().
		Model((*ChunkRecord)(nil)).
		ColumnExpr("vector_dims(embedding)").
		Limit(1).
		Scan(ctx, &dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read index dimension: %w", err)
	}
	p.dim = dim
	return dim, nil
}

// Add inserts the whole batch in one transaction so a failure leaves nothing behind.
func (p *PostgresIndex) Add(ctx context.Context, fileID string, chunks []models.Chunk, vectors [][]float32) error {
	dim, err := p.dimension(ctx)
	if err != nil {
		return err
	}
	if err := vectorindex.ValidateBatch(chunks, vectors, dim); err != nil {
		return err
	}

	rows := make([]ChunkRecord, len(chunks))
	for i, c := range chunks {
		rows[i] = ChunkRecord{
			FileID:     fileID,
			OrderIndex: c.OrderIndex,
			Source:     c.Source,
			Content:    c.Text,
			Embedding:  pgvector.NewVector(vectors[i]),
		}
	}
	// a file is stored whole, so a repeated add replaces its rows
	err = p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*ChunkRecord)(nil)).Where("file_id = ?", fileID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store chunks of %s: %w", fileID, err)
	}

	p.mu.Lock()
	if p.dim == 0 {
		p.dim = len(vectors[0])
	}
	p.mu.Unlock()
	return nil
}

func (p *PostgresIndex) Remove(ctx context.Context, fileID string) error {
	_, err := p.db.NewDelete().Model((*ChunkRecord)(nil)).Where("file_id = ?", fileID).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", fileID, err)
	}
	return nil
}

// Search orders by cosine distance, then by id which follows insertion order.
func (p *PostgresIndex) Search(ctx context.Context, query []float32, fileIDs []string, k int) ([]models.SearchResult, error) {
	if len(fileIDs) == 0 || k <= 0 {
		return nil, nil
	}
	dim, err := p.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim == 0 {
		return nil, nil
	}
	if len(query) != dim {
		return nil, fmt.Errorf("%w: query dimension %d, index uses %d", models.ErrInvalidInput, len(query), dim)
	}

	vec := pgvector.NewVector(query)
	var rows []ChunkRecord
	err = p.db.NewSelect().
		Model(&rows).
		Column("id", "file_id", "order_index", "source", "content").
		ColumnExpr("1 - (embedding <=> ?) AS score", vec).
		Where("file_id IN (?)", bun.In(fileIDs)).
		OrderExpr("embedding <=> ?", vec).
		OrderExpr("id ASC").
		Limit(k).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}

	out := make([]models.SearchResult, len(rows))
	for i, r := range rows {
		out[i] = models.SearchResult{
			Chunk: models.Chunk{Text: r.Content, FileID: r.FileID, OrderIndex: r.OrderIndex, Source: r.Source},
			Score: r.Score,
		}
	}
	return out, nil
}

func (p *PostgresIndex) Close() error {
	return p.db.Close()
}
