package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"docchat/internal/api"
	"docchat/internal/helper"
	"docchat/internal/models"
	"docchat/internal/parser"
	"docchat/internal/vectorindex"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{Status: "ok", Readonly: s.blobs.ReadOnly()})
}

func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, http.StatusBadRequest, errors.New("multipart field \"file\" is required"))
		return
	}
	filename := filepath.Base(fh.Filename)
	if !parser.Supported(filename) {
		writeError(c, http.StatusBadRequest, fmt.Errorf("%w %q, supported: %s",
			models.ErrUnsupportedFormat, filepath.Ext(filename), strings.Join(parser.SupportedExtensions(), ", ")))
		return
	}
	if fh.Size > s.maxUpload {
		writeError(c, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds %d bytes", s.maxUpload))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, s.maxUpload+1))
	f.Close()
	if err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("read upload: %w", err))
		return
	}

	ctx := c.Request.Context()
	logger := log.Ctx(ctx)
	file := models.File{
		FileID:           helper.GenerateUUID(),
		OriginalFilename: filename,
		UploadedAt:       time.Now().UTC(),
		StorageLocation:  models.LocationServer,
		SizeBytes:        int64(len(data)),
	}

	stored := !s.blobs.ReadOnly()
	if stored {
		if err := s.blobs.Put(ctx, file.FileID, filename, data); err != nil {
			logger.Warn().Err(err).Str("file_id", file.FileID).Msg("Server storage failed, handing file to client")
			stored = false
		}
	}

	if !stored {
		file.StorageLocation = models.LocationClient
		s.catalog.Put(file)
		state := s.coord.Register(file.FileID)
		logger.Info().Str("file_id", file.FileID).Str("filename", filename).Msg("Upload kept client side")
		c.JSON(http.StatusOK, api.UploadResponse{
			Filename:          filename,
			FileID:            file.FileID,
			Message:           "Server storage is read-only. Keep the file in browser storage and index it client-side.",
			IndexingStatus:    state.Status,
			UseBrowserStorage: true,
			FileContent:       base64.StdEncoding.EncodeToString(data),
		})
		return
	}

	s.catalog.Put(file)
	state := s.coord.Submit(file.FileID, filename, data)
	logger.Info().Str("file_id", file.FileID).Str("filename", filename).Int("bytes", len(data)).Msg("Upload stored")
	c.JSON(http.StatusOK, api.UploadResponse{
		Filename:       filename,
		FileID:         file.FileID,
		Message:        "File uploaded successfully, indexing started",
		IndexingStatus: state.Status,
	})
}

func (s *Server) handleListFiles(c *gin.Context) {
	files := s.catalog.List()
	for i := range files {
		files[i] = withState(files[i], s.coord.Status(files[i].FileID))
	}
	c.JSON(http.StatusOK, api.FilesResponse{Files: files})
}

func (s *Server) handleFileStatus(c *gin.Context) {
	st := s.coord.Status(c.Param("file_id"))
	c.JSON(http.StatusOK, api.FileStatusResponse{FileID: st.FileID, Status: st.Status, Message: st.Message})
}

// handleReindex is the explicit retry. Failed files go back to pending and
// are indexed again from server storage when the bytes are here.
func (s *Server) handleReindex(c *gin.Context) {
	fileID := c.Param("file_id")
	ctx := c.Request.Context()

	st := s.coord.Status(fileID)
	switch st.Status {
	case models.StatusCompleted, models.StatusIndexing:
		c.JSON(http.StatusOK, api.ReindexResponse{FileID: fileID, Status: st.Status, Message: st.Message})
		return
	case models.StatusFailed:
		var err error
		if st, err = s.coord.Retry(fileID); err != nil {
			writeError(c, statusFor(err), err)
			return
		}
	}

	file, known := s.catalog.Get(fileID)
	if known && st.Status == models.StatusUnknown {
		st = s.coord.Register(fileID)
	}
	data, err := s.blobs.Get(ctx, fileID)
	if !known || err != nil {
		c.JSON(http.StatusOK, api.ReindexResponse{
			FileID:            fileID,
			Status:            st.Status,
			Message:           "file content is not held by the server, index it client-side",
			UseBrowserStorage: true,
		})
		return
	}

	st = s.coord.Submit(fileID, file.OriginalFilename, data)
	c.JSON(http.StatusOK, api.ReindexResponse{FileID: fileID, Status: st.Status, Message: "indexing restarted"})
}

// handleDeleteFile succeeds for ids the server never saw.
func (s *Server) handleDeleteFile(c *gin.Context) {
	fileID := c.Param("file_id")
	ctx := c.Request.Context()

	if err := s.coord.Forget(ctx, fileID); err != nil {
		writeError(c, http.StatusInternalServerError, fmt.Errorf("purge index: %w", err))
		return
	}
	if err := s.blobs.Delete(ctx, fileID); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("file_id", fileID).Msg("Failed to delete stored bytes")
	}
	s.catalog.Delete(fileID)
	c.JSON(http.StatusOK, api.MessageResponse{Message: "File deleted successfully"})
}

func (s *Server) handlePreIndexed(c *gin.Context) {
	var req api.PreIndexedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	req.FileID = strings.TrimSpace(req.FileID)
	if req.FileID == "" || strings.TrimSpace(req.Filename) == "" {
		writeError(c, http.StatusBadRequest, errors.New("file_id and filename are required"))
		return
	}
	if len(req.Sources) > 0 && len(req.Sources) != len(req.Chunks) {
		writeError(c, http.StatusBadRequest, errors.New("sources must match chunks"))
		return
	}

	var chunks []models.Chunk
	if req.Error == "" {
		chunks = make([]models.Chunk, len(req.Chunks))
		for i, text := range req.Chunks {
			chunks[i] = models.Chunk{Text: text, FileID: req.FileID, OrderIndex: i}
			if len(req.Sources) > 0 {
				chunks[i].Source = req.Sources[i]
			}
		}
		if err := vectorindex.ValidateBatch(chunks, req.Embeddings, 0); err != nil {
			writeError(c, statusFor(err), err)
			return
		}
	}

	if _, ok := s.catalog.Get(req.FileID); !ok {
		s.catalog.Put(models.File{
			FileID:           req.FileID,
			OriginalFilename: filepath.Base(req.Filename),
			UploadedAt:       time.Now().UTC(),
			StorageLocation:  models.LocationClient,
		})
	}

	if req.Error != "" {
		st := s.coord.Fail(c.Request.Context(), req.FileID, req.Error)
		log.Ctx(c.Request.Context()).Info().Str("file_id", req.FileID).Str("reason", req.Error).Msg("Client reported indexing failure")
		c.JSON(http.StatusOK, api.PreIndexedResponse{FileID: req.FileID, Status: st.Status, Message: st.Message})
		return
	}

	st, err := s.coord.IndexPrecomputed(c.Request.Context(), req.FileID, chunks, req.Embeddings)
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, api.PreIndexedResponse{
		FileID:     req.FileID,
		Status:     st.Status,
		Message:    st.Message,
		ChunkCount: st.ChunkCount,
	})
}
