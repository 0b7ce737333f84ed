package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docchat/internal/embedding"
	"docchat/internal/helper"
	"docchat/internal/llmservice"
	"docchat/internal/models"
	"docchat/internal/session"
	"docchat/internal/vectorindex"

	"github.com/rs/zerolog/log"
)

// FileResolver reports the current record of a file, status included.
type FileResolver interface {
	Resolve(fileID string) (models.File, bool)
}

type Config struct {
	Embedder     embedding.Embedder
	Index        vectorindex.Index
	Completer    llmservice.Completer
	Sessions     *session.Store
	Files        FileResolver
	TopK         int
	HistoryLimit int
	Model        string
}

// RAG answers questions over indexed files and records the exchange.
type RAG struct {
	embedder     embedding.Embedder
	index        vectorindex.Index
	completer    llmservice.Completer
	sessions     *session.Store
	files        FileResolver
	topK         int
	historyLimit int
	model        string
}

func NewRAG(cfg Config) (*RAG, error) {
	if cfg.Embedder == nil || cfg.Index == nil || cfg.Completer == nil || cfg.Sessions == nil || cfg.Files == nil {
		return nil, errors.New("rag: embedder, index, completer, sessions and files are required")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = models.DefaultTopK
	}
	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}
	return &RAG{
		embedder:     cfg.Embedder,
		index:        cfg.Index,
		completer:    cfg.Completer,
		sessions:     cfg.Sessions,
		files:        cfg.Files,
		topK:         cfg.TopK,
		historyLimit: cfg.HistoryLimit,
		model:        cfg.Model,
	}, nil
}

type Request struct {
	Query     string
	FileIDs   []string
	SessionID string
	Model     string
}

// Plan is a fully assembled prompt, ready to stream.
type Plan struct {
	SessionID string
	FileIDs   []string
	Query     string
	Grounded  bool
	Model     string
	Messages  []llmservice.Message
	Sources   []models.Source
	Skipped   []string
}

// Prepare does every step that can fail before an answer starts streaming:
// validation, file resolution, query embedding, search and prompt assembly.
// With no file ids retrieval is skipped entirely.
func (r *RAG) Prepare(ctx context.Context, req Request) (*Plan, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: message is required", models.ErrInvalidInput)
	}

	plan := &Plan{
		SessionID: strings.TrimSpace(req.SessionID),
		FileIDs:   dedupe(req.FileIDs),
		Query:     query,
		Model:     req.Model,
	}
	if plan.SessionID == "" {
		plan.SessionID = helper.GenerateUUID()
	}
	if plan.Model == "" {
		plan.Model = r.model
	}
	history := r.sessions.History(plan.SessionID, r.historyLimit)

	if len(plan.FileIDs) == 0 {
		plan.Messages = buildMessages(models.UngroundedSystemPrompt, history, query)
		return plan, nil
	}

	ready, filenames, skipped := r.resolve(plan.FileIDs)
	if len(ready) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrNotFound, strings.Join(skipped, ", "))
	}
	if len(skipped) > 0 {
		log.Warn().Strs("file_ids", skipped).Msg("Ignoring files that are missing or not indexed")
	}
	plan.Skipped = skipped

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected one query vector, got %d", models.ErrEmbeddingService, len(vectors))
	}
	results, err := r.index.Search(ctx, vectors[0], ready, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	contextText, sources := buildContext(results, filenames)
	plan.Grounded = true
	plan.Sources = sources
	plan.Messages = buildMessages(models.GroundedSystemPrompt, history,
		fmt.Sprintf(models.ContextPromptTemplate, contextText, query))
	return plan, nil
}

// Stream sends the plan to the model and forwards tokens in order. The
// exchange is appended to the session only when the stream completes.
func (r *RAG) Stream(ctx context.Context, plan *Plan, onToken func(string) error) (string, error) {
	var answer strings.Builder
	err := r.completer.Stream(ctx, plan.Model, plan.Messages, func(tok string) error {
		answer.WriteString(tok)
		return onToken(tok)
	})
	if err != nil {
		return answer.String(), err
	}

	_, err = r.sessions.Append(plan.SessionID, plan.FileIDs,
		models.Message{Role: models.RoleUser, Content: plan.Query},
		models.Message{Role: models.RoleAssistant, Content: answer.String()},
	)
	if err != nil {
		return answer.String(), fmt.Errorf("save session: %w", err)
	}
	return answer.String(), nil
}

// Answer prepares and streams in one call.
func (r *RAG) Answer(ctx context.Context, req Request, onToken func(string) error) (*Plan, string, error) {
	plan, err := r.Prepare(ctx, req)
	if err != nil {
		return nil, "", err
	}
	answer, err := r.Stream(ctx, plan, onToken)
	return plan, answer, err
}

type ChatRequest struct {
	DeveloperMessage string
	UserMessage      string
	Model            string
}

// Chat is a plain completion without retrieval or session tracking.
func (r *RAG) Chat(ctx context.Context, req ChatRequest, onToken func(string) error) error {
	if strings.TrimSpace(req.UserMessage) == "" {
		return fmt.Errorf("%w: user_message is required", models.ErrInvalidInput)
	}
	var msgs []llmservice.Message
	if dev := strings.TrimSpace(req.DeveloperMessage); dev != "" {
		msgs = append(msgs, llmservice.Message{Role: llmservice.RoleDeveloper, Content: dev})
	}
	msgs = append(msgs, llmservice.Message{Role: llmservice.RoleUser, Content: req.UserMessage})

	model := req.Model
	if model == "" {
		model = r.model
	}
	return r.completer.Stream(ctx, model, msgs, onToken)
}

func (r *RAG) resolve(fileIDs []string) (ready []string, filenames map[string]string, skipped []string) {
	filenames = make(map[string]string, len(fileIDs))
	for _, id := range fileIDs {
		f, ok := r.files.Resolve(id)
		if !ok || f.IndexingStatus != models.StatusCompleted {
			skipped = append(skipped, id)
			continue
		}
		ready = append(ready, id)
		filenames[id] = f.OriginalFilename
	}
	return ready, filenames, skipped
}

func buildContext(results []models.SearchResult, filenames map[string]string) (string, []models.Source) {
	if len(results) == 0 {
		return "(no matching passages)\n", nil
	}
	var sb strings.Builder
	sources := make([]models.Source, 0, len(results))
	for i, res := range results {
		name := filenames[res.Chunk.FileID]
		location := "source: " + name
		if res.Chunk.Source != "" {
			location += ", " + res.Chunk.Source
		}
		fmt.Fprintf(&sb, "[%d] (%s)\n%s\n\n", i+1, location, res.Chunk.Text)
		sources = append(sources, models.Source{
			FileID:   res.Chunk.FileID,
			Filename: name,
			Location: res.Chunk.Source,
			Score:    res.Score,
		})
	}
	return sb.String(), sources
}

func buildMessages(system string, history []models.Message, user string) []llmservice.Message {
	msgs := make([]llmservice.Message, 0, len(history)+2)
	msgs = append(msgs, llmservice.Message{Role: llmservice.RoleSystem, Content: system})
	for _, h := range history {
		role := llmservice.RoleUser
		if h.Role == models.RoleAssistant {
			role = llmservice.RoleAssistant
		}
		msgs = append(msgs, llmservice.Message{Role: role, Content: h.Content})
	}
	return append(msgs, llmservice.Message{Role: llmservice.RoleUser, Content: user})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
