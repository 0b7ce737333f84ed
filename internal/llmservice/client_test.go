package llmservice

import (
	"context"
	"errors"
	"testing"

	"docchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel replays tokens through the streaming option.
type fakeModel struct {
	tokens []string
	err    error
	got    []llms.MessageContent
	model  string
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = messages
	var opts llms.CallOptions
	for _, o := range options {
		o(&opts)
	}
	f.model = opts.Model
	for _, tok := range f.tokens {
		if err := opts.StreamingFunc(ctx, []byte(tok)); err != nil {
			return nil, err
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not used")
}

func TestStreamForwardsTokens(t *testing.T) {
	fake := &fakeModel{tokens: []string{"The ", "sky ", "is blue."}}
	c := NewLLMClient(fake, "gpt-4.1-mini")

	var out []string
	err := c.Stream(context.Background(), "", []Message{
		{Role: RoleDeveloper, Content: "be brief"},
		{Role: RoleUser, Content: "sky?"},
		{Role: RoleAssistant, Content: "earlier"},
	}, func(tok string) error {
		out = append(out, tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"The ", "sky ", "is blue."}, out)
	assert.Equal(t, "gpt-4.1-mini", fake.model)

	require.Len(t, fake.got, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, fake.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, fake.got[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, fake.got[2].Role)
}

func TestStreamStopsWhenCallbackFails(t *testing.T) {
	fake := &fakeModel{tokens: []string{"a", "b", "c"}}
	stop := errors.New("client gone")

	var n int
	err := NewLLMClient(fake, "m").Stream(context.Background(), "override", nil, func(string) error {
		n++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
	assert.Equal(t, "override", fake.model)
}

func TestStreamWrapsServiceErrors(t *testing.T) {
	fake := &fakeModel{err: errors.New("429 quota")}
	err := NewLLMClient(fake, "m").Stream(context.Background(), "", nil, func(string) error { return nil })
	require.ErrorIs(t, err, models.ErrCompletionService)
}
