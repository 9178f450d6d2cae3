package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// systemPrompt directs grounded, conversational answers. The
// general-knowledge fallback is a discoverable instruction to the model,
// not a hard constraint.
const systemPrompt = "You are a helpful assistant. Answer the user's question based on the following context. " +
	"Keep your response concise and conversational. If the context doesn't contain relevant information, " +
	"say you don't have enough information but provide a general response if possible."

// Generator produces a spoken answer from a query and retrieved context.
type Generator interface {
	Generate(ctx context.Context, query, contextText string) (string, error)
}

type OpenAIGeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
}

type OpenAIGenerator struct {
	client      openai.Client
	model       string
	maxTokens   int
	temperature float64
}

func NewOpenAIGenerator(cfg OpenAIGeneratorConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Generate builds the fixed two-part prompt and calls the model with bounded
// output. Empty context is valid; the system prompt covers that case.
func (g *OpenAIGenerator) Generate(ctx context.Context, query, contextText string) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(fmt.Sprintf("Context: %s\n\nQuestion: %s", contextText, query)),
		},
		MaxTokens:   openai.Int(int64(g.maxTokens)),
		Temperature: openai.Float(g.temperature),
	})
	if err != nil {
		return "", &GenerationError{Kind: GenerationModelUnavailable, wrapped: err}
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", &GenerationError{Kind: GenerationEmptyCompletion}
	}
	return resp.Choices[0].Message.Content, nil
}
