package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// ClientConfig contains all required parameters for the OpenAI-backed client.
type ClientConfig struct {
	APIKey         string
	BaseURL        string // Optional: OpenAI-compatible endpoint override
	ChatModel      string // Streaming chat model (e.g. "gpt-5-mini")
	GuardrailModel string // Non-streaming classifier model (e.g. "gpt-4o")
	EmbeddingModel string // Embedding model (e.g. "text-embedding-3-small")
	EmbeddingDims  int    // Requested embedding dimensionality; 0 = model default

	// RateLimiter paces all outbound API calls. Nil uses a default of
	// 10 requests/sec sustained with a burst of 20.
	RateLimiter *rate.Limiter

	Logger *slog.Logger
}

func (cfg ClientConfig) validate() error {
	if cfg.APIKey == "" {
		return errors.New("api key is required")
	}
	if cfg.ChatModel == "" {
		return errors.New("chat model is required")
	}
	if cfg.EmbeddingModel == "" {
		return errors.New("embedding model is required")
	}
	return nil
}

// Client implements Streamer, Completer, and Embedder over the OpenAI API.
// Safe for concurrent use by multiple sessions.
type Client struct {
	api            *openai.Client
	chatModel      string
	guardrailModel string
	embeddingModel string
	embeddingDims  int
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// Interface conformance checks.
var (
	_ Streamer  = (*Client)(nil)
	_ Completer = (*Client)(nil)
	_ Embedder  = (*Client)(nil)
)

// NewClient creates a Client with the given configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(10, 20)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	guardrailModel := cfg.GuardrailModel
	if guardrailModel == "" {
		guardrailModel = cfg.ChatModel
	}

	return &Client{
		api:            openai.NewClientWithConfig(apiCfg),
		chatModel:      cfg.ChatModel,
		guardrailModel: guardrailModel,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDims:  cfg.EmbeddingDims,
		limiter:        limiter,
		logger:         logger,
	}, nil
}

// StreamComplete opens a streaming chat completion and yields one Delta per
// upstream event. Iteration stops on the first turn-finish signal, on error,
// or when the caller stops consuming; the underlying stream is always closed.
func (c *Client) StreamComplete(ctx context.Context, messages []Message, tools []ToolSchema) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		if err := c.limiter.Wait(ctx); err != nil {
			yield(Delta{}, fmt.Errorf("rate limit wait: %w", err))
			return
		}

		req := openai.ChatCompletionRequest{
			Model:    c.chatModel,
			Messages: toAPIMessages(messages),
			Tools:    toAPITools(tools),
			Stream:   true,
		}

		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			yield(Delta{}, fmt.Errorf("opening completion stream: %w", err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Delta{}, fmt.Errorf("receiving stream event: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]

			if choice.Delta.Content != "" {
				if !yield(Delta{Content: choice.Delta.Content}, nil) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				delta := ToolCallDelta{
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				}
				if tc.Index != nil {
					delta.Index = *tc.Index
				}
				if !yield(Delta{ToolCall: &delta}, nil) {
					return
				}
			}
			if choice.FinishReason != "" {
				yield(Delta{FinishReason: string(choice.FinishReason)}, nil)
				return
			}
		}
	}
}

// Complete performs a single non-streaming completion.
// An empty opts.Model falls back to the configured guardrail model.
func (c *Client) Complete(ctx context.Context, messages []Message, opts CompleteOptions) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = c.guardrailModel
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toAPIMessages(messages),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Embed computes embedding vectors for the given texts in a single request.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(c.embeddingModel),
		Dimensions: c.embeddingDims,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// toAPIMessages converts internal messages to the SDK representation.
func toAPIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, call := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

// toAPITools converts tool schemas to the SDK representation.
func toAPITools(tools []ToolSchema) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}
