package embedding

import (
	"context"
	"errors"
	"testing"

	"docchat/internal/config"
	"docchat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocEmbedder struct {
	vectors [][]float32
	err     error
	calls   int
}

func (f *fakeDocEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	return f.vectors, f.err
}

func (f *fakeDocEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not used")
}

func TestLangchainEmbedderBatches(t *testing.T) {
	fake := &fakeDocEmbedder{vectors: [][]float32{{1, 0}, {0, 1}}}
	e := NewLangchainEmbedder(fake, "test-model")

	got, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, got)
	assert.Equal(t, 1, fake.calls)
}

func TestLangchainEmbedderErrors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeDocEmbedder
	}{
		{"transport", &fakeDocEmbedder{err: errors.New("connection refused")}},
		{"short response", &fakeDocEmbedder{vectors: [][]float32{{1, 0}}}},
		{"empty vector", &fakeDocEmbedder{vectors: [][]float32{{1, 0}, {}}}},
		{"mixed dimensions", &fakeDocEmbedder{vectors: [][]float32{{1, 0}, {1, 0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLangchainEmbedder(tt.fake, "m").Embed(context.Background(), []string{"a", "b"})
			require.ErrorIs(t, err, models.ErrEmbeddingService)
			assert.Nil(t, got)
		})
	}
}

func TestEmptyBatchSkipsService(t *testing.T) {
	fake := &fakeDocEmbedder{}
	got, err := NewLangchainEmbedder(fake, "m").Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, fake.calls)
}

func TestHashEmbedderDeterministic(t *testing.T) {
	h := NewHashEmbedder(64)
	a, err := h.Embed(context.Background(), []string{"The sky is blue", "Grass is green"})
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), []string{"The sky is blue", "Grass is green"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.Len(t, a[0], 64)
	assert.NotEqual(t, a[0], a[1])
}

func TestNewFactory(t *testing.T) {
	e, err := New(&config.LLMConfig{Provider: "hash", Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, e.(*HashEmbedder).Dimension())

	_, err = New(&config.LLMConfig{Provider: "nope"})
	require.Error(t, err)
}
