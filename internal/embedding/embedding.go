package embedding

import (
	"context"
	"fmt"
	"strings"

	"docchat/internal/config"
	"docchat/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder turns a batch of texts into vectors, one per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// New builds the embedder selected by cfg.Provider.
func New(cfg *config.LLMConfig) (Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama":
		return NewOllamaEmbedder(cfg)
	case "hash":
		return NewHashEmbedder(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// LangchainEmbedder adapts a langchaingo embedder to Embedder.
type LangchainEmbedder struct {
	impl  embeddings.Embedder
	model string
}

func NewLangchainEmbedder(impl embeddings.Embedder, model string) *LangchainEmbedder {
	return &LangchainEmbedder{impl: impl, model: model}
}

// NewOpenAIEmbedder works against any OpenAI compatible endpoint.
func NewOpenAIEmbedder(cfg *config.LLMConfig) (*LangchainEmbedder, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Creating openai embedder")

	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewLangchainEmbedder(impl, cfg.Model), nil
}

// NewOllamaEmbedder uses a local ollama server.
func NewOllamaEmbedder(cfg *config.LLMConfig) (*LangchainEmbedder, error) {
	log.Debug().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Msg("Creating ollama embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	impl, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return NewLangchainEmbedder(impl, cfg.Model), nil
}

// Embed sends the whole batch in one request. Any failure discards the batch.
func (e *LangchainEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.impl.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrEmbeddingService, e.model, err)
	}
	if err := Validate(len(texts), vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Validate checks that a batch response has one non-empty vector per input
// and a single dimensionality.
func Validate(want int, vectors [][]float32) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", models.ErrEmbeddingService, len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector at %d", models.ErrEmbeddingService, i)
		}
		if len(v) != len(vectors[0]) {
			return fmt.Errorf("%w: vector %d has dimension %d, expected %d",
				models.ErrEmbeddingService, i, len(v), len(vectors[0]))
		}
	}
	return nil
}
