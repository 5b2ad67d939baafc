package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// Generator produces a reply from a system instruction, prior turns and a
// new user message.
type Generator interface {
	Generate(ctx context.Context, system string, history []domain.Turn, user string) (string, error)
}

// Config configures the OpenAI-compatible chat client.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// ChatModel implements Generator on top of a langchaingo model.
type ChatModel struct {
	model   llms.Model
	options []llms.CallOption
}

// NewOpenAI creates a generator for any OpenAI-compatible chat completions
// endpoint (Groq, OpenAI, Ollama, ...).
func NewOpenAI(cfg Config) (*ChatModel, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing LLM API key")
	}
	t := cfg.Timeout
	if t == 0 {
		t = 60 * time.Second
	}
	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: t}),
	)
	if err != nil {
		return nil, err
	}
	return NewChatModel(client, cfg.Temperature, cfg.MaxTokens), nil
}

// NewChatModel wraps an existing langchaingo model.
func NewChatModel(model llms.Model, temperature float64, maxTokens int) *ChatModel {
	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}
	return &ChatModel{model: model, options: opts}
}

// Generate issues one chat completion.
func (m *ChatModel) Generate(ctx context.Context, system string, history []domain.Turn, user string) (string, error) {
	msgs := make([]llms.MessageContent, 0, len(history)+2)
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, turn := range history {
		msgs = append(msgs, llms.TextParts(messageType(turn.Role), turn.Text))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, user))

	resp, err := m.model.GenerateContent(ctx, msgs, m.options...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGeneration, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", domain.ErrGeneration)
	}
	return resp.Choices[0].Content, nil
}

func messageType(role domain.Role) llms.ChatMessageType {
	if role == domain.RoleAssistant {
		return llms.ChatMessageTypeAI
	}
	return llms.ChatMessageTypeHuman
}
