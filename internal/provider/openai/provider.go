// Package openai implements ports.LLM and ports.Embedder over the OpenAI API
// and OpenAI-compatible servers.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "openai"

const (
	DefaultChatModel      = "gpt-4o-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// ErrAPIKeyNotSet is returned when talking to api.openai.com without a key.
var ErrAPIKeyNotSet = errors.New("openai api key not set")

// ProviderOption configures the client.
type ProviderOption func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
}

// WithBaseURL points the client at an OpenAI-compatible server.
func WithBaseURL(baseURL string) ProviderOption {
	return func(o *clientOptions) {
		o.baseURL = baseURL
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ProviderOption {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

// WithMaxRetries overrides the SDK's retry count.
func WithMaxRetries(n int) ProviderOption {
	return func(o *clientOptions) {
		o.maxRetries = n
	}
}

func newClient(apiKey string, opts []ProviderOption) openai.Client {
	o := clientOptions{maxRetries: -1}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}
	if o.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(o.httpClient))
	}
	if o.maxRetries >= 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(o.maxRetries))
	}
	return openai.NewClient(reqOpts...)
}

// LLM generates replies with the chat completions API.
type LLM struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewLLM creates a chat completions client for model.
func NewLLM(apiKey, model string, temperature float64, maxTokens int, opts ...ProviderOption) *LLM {
	if model == "" {
		model = DefaultChatModel
	}
	return &LLM{
		client:      newClient(apiKey, opts),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// CreateLLMFromConfig creates an LLM from configuration. A key is required
// unless a custom base URL is set (local servers often need none).
func CreateLLMFromConfig(cfg config.LLMConfig) (ports.LLM, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ErrAPIKeyNotSet
	}
	var opts []ProviderOption
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return NewLLM(cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens, opts...), nil
}

func (l *LLM) ModelName() string {
	return l.model
}

// Complete sends the prompt and returns the first choice.
func (l *LLM) Complete(ctx context.Context, req *ports.CompletionRequest) (*ports.CompletionResponse, error) {
	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(l.model),
		Messages: toMessageParams(req.Messages),
	}

	temperature := l.temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}

	maxTokens := l.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	completion, err := l.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, toAPIError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, domain.NewAPIError(domain.ErrorTypeUpstream, "no completion choices returned")
	}

	return &ports.CompletionResponse{
		Content:          completion.Choices[0].Message.Content,
		Model:            completion.Model,
		PromptTokens:     int(completion.Usage.PromptTokens),
		CompletionTokens: int(completion.Usage.CompletionTokens),
		UsageReported:    completion.Usage.TotalTokens > 0,
	}, nil
}

func toMessageParams(turns []ports.ChatTurn) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case ports.ChatRoleSystem:
			out = append(out, openai.SystemMessage(turn.Content))
		case ports.ChatRoleAssistant:
			out = append(out, openai.AssistantMessage(turn.Content))
		default:
			out = append(out, openai.UserMessage(turn.Content))
		}
	}
	return out
}

// Embedder creates embeddings with the embeddings API.
type Embedder struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewEmbedder creates an embeddings client. dimensions is sent to models that
// accept it (text-embedding-3 and later).
func NewEmbedder(apiKey, model string, dimensions int, opts ...ProviderOption) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{
		client:     newClient(apiKey, opts),
		model:      model,
		dimensions: dimensions,
	}
}

// CreateEmbedderFromConfig creates an Embedder from configuration.
func CreateEmbedderFromConfig(cfg config.EmbedderConfig) (ports.Embedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, ErrAPIKeyNotSet
	}
	var opts []ProviderOption
	if cfg.BaseURL != "" {
		opts = append(opts, WithBaseURL(cfg.BaseURL))
	}
	return NewEmbedder(cfg.APIKey, cfg.Model, cfg.Dimensions, opts...), nil
}

func (e *Embedder) ModelName() string {
	return e.model
}

func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// Embed returns the embedding of text.
func (e *Embedder) Embed(ctx context.Context, text string) (*ports.EmbeddingResponse, error) {
	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	}
	if e.dimensions > 0 && acceptsDimensions(e.model) {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, toAPIError(err)
	}
	if len(resp.Data) == 0 {
		return nil, domain.NewAPIError(domain.ErrorTypeUpstream, "no embeddings returned")
	}

	return &ports.EmbeddingResponse{
		Vector:        resp.Data[0].Embedding,
		Model:         resp.Model,
		PromptTokens:  int(resp.Usage.PromptTokens),
		UsageReported: resp.Usage.TotalTokens > 0,
	}, nil
}

func acceptsDimensions(model string) bool {
	return !strings.HasPrefix(model, "text-embedding-ada")
}

// toAPIError maps SDK errors to upstream API errors; context errors pass
// through unchanged.
func toAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return domain.NewAPIError(domain.ErrorTypeUpstream,
			fmt.Sprintf("model provider returned %d: %s", apiErr.StatusCode, apiErr.Message)).
			WithCause(err)
	}
	return domain.NewAPIError(domain.ErrorTypeUpstream, "model provider unreachable").WithCause(err)
}
