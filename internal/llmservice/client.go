package llmservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docchat/internal/config"
	"docchat/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Role of a prompt message. Developer maps to the system role upstream.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Completer streams a completion token by token. Returning an error from
// onToken stops consumption of the upstream stream.
type Completer interface {
	Stream(ctx context.Context, model string, messages []Message, onToken func(string) error) error
}

// LLMClient is a Completer backed by a langchaingo model.
type LLMClient struct {
	llm          llms.Model
	defaultModel string
}

func NewLLMClient(llm llms.Model, defaultModel string) *LLMClient {
	return &LLMClient{llm: llm, defaultModel: defaultModel}
}

// New builds the completer selected by cfg.Provider.
func New(cfg *config.LLMConfig) (*LLMClient, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("Creating completion client")

	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	case "ollama":
		llm, err = ollama.New(ollama.WithServerURL(cfg.BaseURL), ollama.WithModel(cfg.Model))
	default:
		return nil, fmt.Errorf("unknown completion provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}
	return NewLLMClient(llm, cfg.Model), nil
}

func (c *LLMClient) Stream(ctx context.Context, model string, messages []Message, onToken func(string) error) error {
	if model == "" {
		model = c.defaultModel
	}

	var cbErr error
	_, err := c.llm.GenerateContent(ctx, toMessageContent(messages),
		llms.WithModel(model),
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			if err := onToken(string(chunk)); err != nil {
				cbErr = err
				return err
			}
			return nil
		}),
	)
	if cbErr != nil {
		return cbErr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", models.ErrCompletionService, err)
	}
	return nil
}

func toMessageContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		var role llms.ChatMessageType
		switch m.Role {
		case RoleSystem, RoleDeveloper:
			role = llms.ChatMessageTypeSystem
		case RoleAssistant:
			role = llms.ChatMessageTypeAI
		default:
			role = llms.ChatMessageTypeHuman
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}
