// Package app assembles the server side components from configuration.
package app

import (
	"context"
	"fmt"

	"docchat/internal/blobstore"
	"docchat/internal/catalog"
	"docchat/internal/chromemdb"
	"docchat/internal/chunker"
	"docchat/internal/config"
	"docchat/internal/db"
	"docchat/internal/embedding"
	"docchat/internal/indexing"
	"docchat/internal/llmservice"
	"docchat/internal/rag"
	"docchat/internal/server"
	"docchat/internal/session"
	"docchat/internal/vectorindex"

	"github.com/rs/zerolog/log"
)

// Overrides replaces components that would otherwise be built from config.
type Overrides struct {
	Embedder  embedding.Embedder
	Completer llmservice.Completer
	Index     vectorindex.Index
	Blobs     blobstore.Store
}

type App struct {
	Config      *config.Config
	Catalog     *catalog.Catalog
	Sessions    *session.Store
	Coordinator *indexing.Coordinator
	Blobs       blobstore.Store
	Index       vectorindex.Index
	RAG         *rag.RAG
	Server      *server.Server
}

func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	return BuildWith(ctx, cfg, Overrides{})
}

func BuildWith(ctx context.Context, cfg *config.Config, o Overrides) (*App, error) {
	a := &App{Config: cfg, Catalog: catalog.New(), Sessions: session.NewStore()}

	var err error
	if a.Blobs = o.Blobs; a.Blobs == nil {
		if a.Blobs, err = blobstore.New(cfg.Storage); err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
	}

	embedder := o.Embedder
	if embedder == nil {
		if embedder, err = embedding.New(&cfg.EmbedLLM); err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
	}

	completer := o.Completer
	if completer == nil {
		if completer, err = llmservice.New(&cfg.ChatLLM); err != nil {
			return nil, fmt.Errorf("completer: %w", err)
		}
	}

	if a.Index = o.Index; a.Index == nil {
		if a.Index, err = OpenIndex(ctx, cfg.VectorIndex); err != nil {
			return nil, fmt.Errorf("vector index: %w", err)
		}
	}

	ch, err := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	a.Coordinator, err = indexing.New(indexing.Config{
		Chunker:     ch,
		Embedder:    embedder,
		Index:       a.Index,
		Concurrency: cfg.RAG.IndexConcurrency,
	})
	if err != nil {
		return nil, err
	}

	a.RAG, err = rag.NewRAG(rag.Config{
		Embedder:     embedder,
		Index:        a.Index,
		Completer:    completer,
		Sessions:     a.Sessions,
		Files:        server.FileResolver{Catalog: a.Catalog, Coordinator: a.Coordinator},
		TopK:         cfg.RAG.TopK,
		HistoryLimit: cfg.RAG.HistoryLimit,
		Model:        cfg.ChatLLM.Model,
	})
	if err != nil {
		return nil, err
	}

	a.Server = server.New(server.Deps{
		Catalog:        a.Catalog,
		Coordinator:    a.Coordinator,
		Blobs:          a.Blobs,
		RAG:            a.RAG,
		Sessions:       a.Sessions,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	return a, nil
}

// OpenIndex opens the configured vector index backend.
func OpenIndex(ctx context.Context, cfg config.VectorIndexConfig) (vectorindex.Index, error) {
	log.Info().Str("backend", cfg.Backend).Msg("Opening vector index")
	switch cfg.Backend {
	case "memory":
		return vectorindex.NewMemoryIndex(), nil
	case "chromem":
		c := cfg.Chromem
		return chromemdb.NewVectorDBManager(c.Path, c.Collection, c.InMemory, c.EncryptionKey)
	case "postgres":
		return db.Open(ctx, cfg.Postgres.DSN, cfg.Postgres.Debug)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// Close stops background indexing and releases the index.
func (a *App) Close() error {
	a.Coordinator.Close()
	return a.Index.Close()
}
