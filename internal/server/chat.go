package server

import (
	"fmt"
	"net/http"
	"strings"

	"docchat/internal/api"
	"docchat/internal/rag"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// tokenWriter streams plain-text tokens. Headers go out with the first token
// so a failure before any output can still be reported as JSON.
type tokenWriter struct {
	c       *gin.Context
	started bool
}

func (w *tokenWriter) write(tok string) error {
	if !w.started {
		w.c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.c.Writer.Header().Set("Cache-Control", "no-cache")
		w.c.Status(http.StatusOK)
		w.started = true
	}
	if _, err := w.c.Writer.WriteString(tok); err != nil {
		return err
	}
	w.c.Writer.Flush()
	return nil
}

// finish reports err as JSON when nothing was streamed yet; otherwise the
// stream is simply cut short.
func (w *tokenWriter) finish(err error) {
	if err == nil {
		if !w.started {
			// empty completion
			w.c.Writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.c.Status(http.StatusOK)
			w.c.Writer.WriteHeaderNow()
		}
		return
	}
	log.Ctx(w.c.Request.Context()).Error().Err(err).Bool("partial", w.started).Msg("Completion stream failed")
	if !w.started {
		writeError(w.c, statusFor(err), err)
	}
}

func (s *Server) handleChatFile(c *gin.Context) {
	var req api.ChatFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	ctx := c.Request.Context()

	plan, err := s.rag.Prepare(ctx, rag.Request{
		Query:     req.UserMessage,
		FileIDs:   req.FileIDs,
		SessionID: req.SessionID,
		Model:     req.Model,
	})
	if err != nil {
		writeError(c, statusFor(err), err)
		return
	}
	log.Ctx(ctx).Info().
		Str("session_id", plan.SessionID).
		Int("files", len(plan.FileIDs)).
		Int("sources", len(plan.Sources)).
		Bool("grounded", plan.Grounded).
		Msg("Answering question")

	c.Header(api.SessionHeader, plan.SessionID)
	if len(plan.Skipped) > 0 {
		c.Header("X-Skipped-Files", strings.Join(plan.Skipped, ","))
	}
	w := &tokenWriter{c: c}
	_, err = s.rag.Stream(ctx, plan, w.write)
	w.finish(err)
}

func (s *Server) handleChat(c *gin.Context) {
	var req api.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	w := &tokenWriter{c: c}
	err := s.rag.Chat(c.Request.Context(), rag.ChatRequest{
		DeveloperMessage: req.DeveloperMessage,
		UserMessage:      req.UserMessage,
		Model:            req.Model,
	}, w.write)
	w.finish(err)
}

func (s *Server) handleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, api.SessionsResponse{Sessions: s.sessions.List()})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, ok := s.sessions.Get(c.Param("session_id"))
	if !ok {
		writeError(c, http.StatusNotFound, fmt.Errorf("session %q not found", c.Param("session_id")))
		return
	}
	c.JSON(http.StatusOK, sess)
}
