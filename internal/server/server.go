// Package server exposes the upload, indexing and chat pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"docchat/internal/blobstore"
	"docchat/internal/catalog"
	"docchat/internal/indexing"
	"docchat/internal/models"
	"docchat/internal/rag"
	"docchat/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Catalog        *catalog.Catalog
	Coordinator    *indexing.Coordinator
	Blobs          blobstore.Store
	RAG            *rag.RAG
	Sessions       *session.Store
	MaxUploadBytes int64
}

type Server struct {
	catalog   *catalog.Catalog
	coord     *indexing.Coordinator
	blobs     blobstore.Store
	rag       *rag.RAG
	sessions  *session.Store
	maxUpload int64
	engine    *gin.Engine
}

func New(d Deps) *Server {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 32 << 20
	}
	s := &Server{
		catalog:   d.Catalog,
		coord:     d.Coordinator,
		blobs:     d.Blobs,
		rag:       d.RAG,
		sessions:  d.Sessions,
		maxUpload: d.MaxUploadBytes,
		engine:    gin.New(),
	}
	s.engine.Use(gin.Recovery(), requestID, requestLog, allowCORS)
	s.routes(&s.engine.RouterGroup)
	// the browser frontend reaches the API through an /api proxy prefix
	s.routes(s.engine.Group("/api"))
	return s
}

func (s *Server) routes(r *gin.RouterGroup) {
	r.GET("/health", s.handleHealth)
	r.POST("/upload-file", s.handleUpload)
	r.GET("/files", s.handleListFiles)
	r.GET("/files/:file_id/status", s.handleFileStatus)
	r.POST("/files/:file_id/reindex", s.handleReindex)
	r.DELETE("/files/:file_id", s.handleDeleteFile)
	r.POST("/pre-indexed-file", s.handlePreIndexed)
	r.POST("/chat-file", s.handleChatFile)
	r.POST("/chat", s.handleChat)
	r.GET("/chat-history", s.handleListSessions)
	r.GET("/chat-history/:session_id", s.handleGetSession)
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains requests and background indexing.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Bool("readonly", s.blobs.ReadOnly()).Msg("Listening on http")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Graceful shutdown failed")
		}
	}
	s.coord.Close()
	return nil
}

// FileResolver joins catalog records with live indexing status.
type FileResolver struct {
	Catalog     *catalog.Catalog
	Coordinator *indexing.Coordinator
}

func (r FileResolver) Resolve(fileID string) (models.File, bool) {
	f, ok := r.Catalog.Get(fileID)
	if !ok {
		return models.File{}, false
	}
	return withState(f, r.Coordinator.Status(fileID)), true
}

func withState(f models.File, st indexing.State) models.File {
	f.IndexingStatus = st.Status
	f.IndexingMessage = st.Message
	f.ChunkCount = st.ChunkCount
	return f
}

func writeError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput),
		errors.Is(err, models.ErrUnsupportedFormat),
		errors.Is(err, models.ErrExtraction):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrEmbeddingService),
		errors.Is(err, models.ErrCompletionService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
