package client

import (
	"context"
	"fmt"

	"docchat/internal/api"
	"docchat/internal/chunker"
	"docchat/internal/embedding"
	"docchat/internal/models"
	"docchat/internal/parser"

	"github.com/rs/zerolog/log"
)

// LocalIndexer runs extraction, chunking and embedding next to the bytes
// and hands the result to the server.
type LocalIndexer struct {
	chunker  *chunker.Chunker
	embedder embedding.Embedder
	api      *APIClient
}

func NewLocalIndexer(ch *chunker.Chunker, embedder embedding.Embedder, apiClient *APIClient) *LocalIndexer {
	if ch == nil {
		ch = chunker.Default()
	}
	return &LocalIndexer{chunker: ch, embedder: embedder, api: apiClient}
}

// Index sends the client-side index to the server. When the file cannot be
// indexed the failure is reported to the server so the file stops being
// pending, and the local error is returned with the server's answer.
func (l *LocalIndexer) Index(ctx context.Context, fileID, filename string, data []byte) (api.PreIndexedResponse, error) {
	req, err := l.build(ctx, fileID, filename, data)
	if err != nil {
		if ctx.Err() != nil {
			return api.PreIndexedResponse{}, err
		}
		pre, repErr := l.api.PreIndexed(ctx, api.PreIndexedRequest{FileID: fileID, Filename: filename, Error: err.Error()})
		if repErr != nil {
			log.Ctx(ctx).Warn().Err(repErr).Str("file_id", fileID).Msg("Could not report indexing failure")
		}
		return pre, err
	}

	log.Ctx(ctx).Info().Str("file_id", fileID).Int("chunks", len(req.Chunks)).Msg("Sending client-side index")
	return l.api.PreIndexed(ctx, req)
}

func (l *LocalIndexer) build(ctx context.Context, fileID, filename string, data []byte) (api.PreIndexedRequest, error) {
	segments, err := parser.Extract(data, filename)
	if err != nil {
		return api.PreIndexedRequest{}, err
	}
	chunks := l.chunker.Split(fileID, segments)
	if len(chunks) == 0 {
		return api.PreIndexedRequest{}, fmt.Errorf("%w: %s: no text after chunking", models.ErrExtraction, filename)
	}

	req := api.PreIndexedRequest{FileID: fileID, Filename: filename, Chunks: make([]string, len(chunks))}
	labelled := false
	sources := make([]string, len(chunks))
	for i, ch := range chunks {
		req.Chunks[i] = ch.Text
		sources[i] = ch.Source
		labelled = labelled || ch.Source != ""
	}
	if labelled {
		req.Sources = sources
	}

	vectors, err := l.embedder.Embed(ctx, req.Chunks)
	if err != nil {
		return api.PreIndexedRequest{}, err
	}
	if err := embedding.Validate(len(req.Chunks), vectors); err != nil {
		return api.PreIndexedRequest{}, err
	}
	req.Embeddings = vectors
	return req, nil
}
