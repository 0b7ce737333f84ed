package rag

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"docchat/internal/embedding"
	"docchat/internal/llmservice"
	"docchat/internal/models"
	"docchat/internal/session"
	"docchat/internal/vectorindex"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	tokens   []string
	err      error
	messages []llmservice.Message
	model    string
}

func (f *fakeCompleter) Stream(ctx context.Context, model string, messages []llmservice.Message, onToken func(string) error) error {
	f.model = model
	f.messages = messages
	for _, tok := range f.tokens {
		if err := onToken(tok); err != nil {
			return err
		}
	}
	return f.err
}

type countingEmbedder struct {
	inner embedding.Embedder
	calls atomic.Int32
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, texts)
}

type fileMap map[string]models.File

func (m fileMap) Resolve(id string) (models.File, bool) {
	f, ok := m[id]
	return f, ok
}

type fixture struct {
	rag       *RAG
	embedder  *countingEmbedder
	completer *fakeCompleter
	sessions  *session.Store
	files     fileMap
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	hash := embedding.NewHashEmbedder(256)
	idx := vectorindex.NewMemoryIndex()

	add := func(fileID string, texts ...string) {
		chunks := make([]models.Chunk, len(texts))
		for i, tx := range texts {
			chunks[i] = models.Chunk{Text: tx, FileID: fileID, OrderIndex: i, Source: "page 1"}
		}
		vecs, err := hash.Embed(ctx, texts)
		require.NoError(t, err)
		require.NoError(t, idx.Add(ctx, fileID, chunks, vecs))
	}
	add("sky", "The sky is blue.", "Grass is green.")
	add("other", "Sky facts: the sky appears blue because of scattering.")

	f := &fixture{
		embedder:  &countingEmbedder{inner: hash},
		completer: &fakeCompleter{tokens: []string{"The sky ", "is blue."}},
		sessions:  session.NewStore(),
		files: fileMap{
			"sky":     {FileID: "sky", OriginalFilename: "facts.txt", IndexingStatus: models.StatusCompleted},
			"other":   {FileID: "other", OriginalFilename: "other.txt", IndexingStatus: models.StatusCompleted},
			"pending": {FileID: "pending", OriginalFilename: "p.txt", IndexingStatus: models.StatusIndexing},
		},
	}
	r, err := NewRAG(Config{
		Embedder:     f.embedder,
		Index:        idx,
		Completer:    f.completer,
		Sessions:     f.sessions,
		Files:        f.files,
		TopK:         1,
		HistoryLimit: 4,
		Model:        "gpt-4.1-mini",
	})
	require.NoError(t, err)
	f.rag = r
	return f
}

func collect(out *[]string) func(string) error {
	return func(tok string) error {
		*out = append(*out, tok)
		return nil
	}
}

func TestGroundedAnswer(t *testing.T) {
	f := newFixture(t)
	var toks []string

	plan, answer, err := f.rag.Answer(context.Background(), Request{Query: "What color is the sky?", FileIDs: []string{"sky"}}, collect(&toks))
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", answer)
	assert.Equal(t, []string{"The sky ", "is blue."}, toks)

	assert.True(t, plan.Grounded)
	require.Len(t, plan.Sources, 1)
	assert.Equal(t, "sky", plan.Sources[0].FileID)
	assert.Equal(t, "facts.txt", plan.Sources[0].Filename)

	prompt := f.completer.messages[len(f.completer.messages)-1].Content
	assert.Contains(t, prompt, "[1] (source: facts.txt, page 1)\nThe sky is blue.")
	assert.Contains(t, prompt, "Query: What color is the sky?")
	assert.NotContains(t, prompt, "scattering")
	assert.Equal(t, llmservice.RoleSystem, f.completer.messages[0].Role)
	assert.Equal(t, "gpt-4.1-mini", f.completer.model)

	sess, ok := f.sessions.Get(plan.SessionID)
	require.True(t, ok)
	assert.Equal(t, []string{"sky"}, sess.FileIDs)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, models.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "The sky is blue.", sess.Messages[1].Content)
}

func TestNoFilesSkipsRetrieval(t *testing.T) {
	f := newFixture(t)
	var toks []string

	plan, _, err := f.rag.Answer(context.Background(), Request{Query: "What color is the sky?"}, collect(&toks))
	require.NoError(t, err)
	assert.False(t, plan.Grounded)
	assert.Empty(t, plan.Sources)
	assert.Zero(t, f.embedder.calls.Load())
	assert.Equal(t, "What color is the sky?", f.completer.messages[len(f.completer.messages)-1].Content)
}

func TestFilesNotIndexedFailFast(t *testing.T) {
	f := newFixture(t)

	_, err := f.rag.Prepare(context.Background(), Request{Query: "q", FileIDs: []string{"pending", "ghost"}})
	require.ErrorIs(t, err, models.ErrNotFound)
	assert.Contains(t, err.Error(), "pending")
	assert.Contains(t, err.Error(), "ghost")
	assert.Zero(t, f.embedder.calls.Load())
	assert.Empty(t, f.sessions.List())
}

func TestPartiallyIndexedUsesReadyFiles(t *testing.T) {
	f := newFixture(t)
	plan, err := f.rag.Prepare(context.Background(), Request{Query: "sky", FileIDs: []string{"ghost", "sky", "sky"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"ghost"}, plan.Skipped)
	assert.Equal(t, []string{"ghost", "sky"}, plan.FileIDs)
}

func TestEmptyQueryRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.rag.Prepare(context.Background(), Request{Query: "   ", FileIDs: []string{"sky"}})
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestStreamErrorDoesNotRecordSession(t *testing.T) {
	f := newFixture(t)
	f.completer.err = models.ErrCompletionService

	plan, err := f.rag.Prepare(context.Background(), Request{Query: "sky?", FileIDs: []string{"sky"}})
	require.NoError(t, err)
	_, err = f.rag.Stream(context.Background(), plan, func(string) error { return nil })
	require.ErrorIs(t, err, models.ErrCompletionService)
	_, ok := f.sessions.Get(plan.SessionID)
	assert.False(t, ok)
}

func TestHistoryIsIncluded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	plan, _, err := f.rag.Answer(ctx, Request{Query: "first question", FileIDs: []string{"sky"}}, func(string) error { return nil })
	require.NoError(t, err)

	_, _, err = f.rag.Answer(ctx, Request{Query: "follow up", FileIDs: []string{"sky"}, SessionID: plan.SessionID}, func(string) error { return nil })
	require.NoError(t, err)

	msgs := f.completer.messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "first question", msgs[1].Content)
	assert.Equal(t, llmservice.RoleAssistant, msgs[2].Role)

	sess, _ := f.sessions.Get(plan.SessionID)
	assert.Len(t, sess.Messages, 4)
}

func TestChat(t *testing.T) {
	f := newFixture(t)
	var toks []string

	err := f.rag.Chat(context.Background(), ChatRequest{DeveloperMessage: "be terse", UserMessage: "hi", Model: "other-model"}, collect(&toks))
	require.NoError(t, err)
	assert.Equal(t, "The sky is blue.", strings.Join(toks, ""))
	assert.Equal(t, "other-model", f.completer.model)
	require.Len(t, f.completer.messages, 2)
	assert.Equal(t, llmservice.RoleDeveloper, f.completer.messages[0].Role)
	assert.Empty(t, f.sessions.List())

	err = f.rag.Chat(context.Background(), ChatRequest{UserMessage: ""}, collect(&toks))
	require.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestStreamStopsOnCallbackError(t *testing.T) {
	f := newFixture(t)
	gone := errors.New("client disconnected")
	_, _, err := f.rag.Answer(context.Background(), Request{Query: "q"}, func(string) error { return gone })
	require.ErrorIs(t, err, gone)
	assert.Empty(t, f.sessions.List())
}
