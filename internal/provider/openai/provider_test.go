package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/testutil"
)

const chatResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1714564800,
  "model": "gpt-4o-mini",
  "choices": [
    {"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "meow"}}
  ],
  "usage": {"prompt_tokens": 7, "completion_tokens": 2, "total_tokens": 9}
}`

const embeddingResponse = `{
  "object": "list",
  "model": "text-embedding-3-small",
  "data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5, 1]}],
  "usage": {"prompt_tokens": 3, "total_tokens": 3}
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv.URL + "/v1/"
}

func TestLLM_Complete(t *testing.T) {
	var got map[string]any
	baseURL := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s, want /v1/chat/completions", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(chatResponse))
	})

	llm := NewLLM("sk-test", "", 0.5, 0, WithBaseURL(baseURL), WithMaxRetries(0))
	resp, err := llm.Complete(context.Background(), &ports.CompletionRequest{
		Messages: []ports.ChatTurn{
			{Role: ports.ChatRoleSystem, Content: "You are a cat."},
			{Role: ports.ChatRoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Content != "meow" {
		t.Errorf("Content = %q, want meow", resp.Content)
	}
	if !resp.UsageReported || resp.PromptTokens != 7 || resp.CompletionTokens != 2 {
		t.Errorf("usage = %+v", resp)
	}
	if got["model"] != DefaultChatModel {
		t.Errorf("request model = %v, want %s", got["model"], DefaultChatModel)
	}
	if got["temperature"] != 0.5 {
		t.Errorf("request temperature = %v, want 0.5", got["temperature"])
	}
	msgs, _ := got["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("request messages = %v", got["messages"])
	}
	if first, _ := msgs[0].(map[string]any); first["role"] != "system" {
		t.Errorf("messages[0].role = %v, want system", first["role"])
	}
}

func TestLLM_CompleteUpstreamError(t *testing.T) {
	baseURL := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"message": "bad key", "type": "invalid_request_error", "code": "invalid_api_key"}}`))
	})

	llm := NewLLM("sk-wrong", "gpt-4o", 0, 0, WithBaseURL(baseURL), WithMaxRetries(0))
	_, err := llm.Complete(context.Background(), &ports.CompletionRequest{
		Messages: []ports.ChatTurn{{Role: ports.ChatRoleUser, Content: "hi"}},
	})

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Complete() error = %v, want *domain.APIError", err)
	}
	if apiErr.Type != domain.ErrorTypeUpstream {
		t.Errorf("Type = %v, want upstream", apiErr.Type)
	}
	if apiErr.HTTPStatusCode() != http.StatusBadGateway {
		t.Errorf("HTTPStatusCode() = %d, want 502", apiErr.HTTPStatusCode())
	}
}

func TestEmbedder_Embed(t *testing.T) {
	var got map[string]any
	baseURL := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("path = %s, want /v1/embeddings", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(embeddingResponse))
	})

	emb := NewEmbedder("sk-test", "", 3, WithBaseURL(baseURL), WithMaxRetries(0))
	resp, err := emb.Embed(context.Background(), "what is a cat")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	want := []float64{0.25, -0.5, 1}
	if len(resp.Vector) != len(want) {
		t.Fatalf("Vector = %v, want %v", resp.Vector, want)
	}
	for i := range want {
		if resp.Vector[i] != want[i] {
			t.Errorf("Vector[%d] = %v, want %v", i, resp.Vector[i], want[i])
		}
	}
	if !resp.UsageReported || resp.PromptTokens != 3 {
		t.Errorf("usage = %+v", resp)
	}
	if got["input"] != "what is a cat" {
		t.Errorf("request input = %v", got["input"])
	}
	if got["dimensions"] != float64(3) {
		t.Errorf("request dimensions = %v, want 3", got["dimensions"])
	}
	if emb.Dimensions() != 3 || emb.ModelName() != DefaultEmbeddingModel {
		t.Errorf("Dimensions() = %d, ModelName() = %q", emb.Dimensions(), emb.ModelName())
	}
}

// vcrKey returns the key to record with, skipping when none is set.
func vcrKey(t *testing.T, replayKey string) string {
	t.Helper()
	if !testutil.Recording() {
		return replayKey
	}
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		t.Skip("Skipping test: OPENAI_API_KEY not set")
	}
	return key
}

func TestLLM_Complete_Cassette(t *testing.T) {
	client := testutil.VCRHTTPClient(testutil.NewVCRRecorder(t, "openai_complete"))

	llm := NewLLM(vcrKey(t, "sk-test"), "", 0.5, 0, WithHTTPClient(client), WithMaxRetries(0))
	resp, err := llm.Complete(context.Background(), &ports.CompletionRequest{
		Messages: []ports.ChatTurn{
			{Role: ports.ChatRoleSystem, Content: "You are a cat."},
			{Role: ports.ChatRoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if resp.Content == "" {
		t.Error("Content is empty")
	}
	if resp.Model == "" {
		t.Error("Model is empty")
	}
	if !resp.UsageReported || resp.PromptTokens == 0 || resp.CompletionTokens == 0 {
		t.Errorf("usage = %+v, want reported token counts", resp)
	}
}

func TestLLM_CompleteError_Cassette(t *testing.T) {
	client := testutil.VCRHTTPClient(testutil.NewVCRRecorder(t, "openai_error"))

	// Always the wrong key: the cassette is the 401.
	llm := NewLLM("sk-wrong", "gpt-4o", 0, 0, WithHTTPClient(client), WithMaxRetries(0))
	_, err := llm.Complete(context.Background(), &ports.CompletionRequest{
		Messages: []ports.ChatTurn{{Role: ports.ChatRoleUser, Content: "hi"}},
	})

	var apiErr *domain.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Complete() error = %v, want *domain.APIError", err)
	}
	if apiErr.Type != domain.ErrorTypeUpstream {
		t.Errorf("Type = %v, want upstream", apiErr.Type)
	}
}

func TestEmbedder_Embed_Cassette(t *testing.T) {
	client := testutil.VCRHTTPClient(testutil.NewVCRRecorder(t, "openai_embed"))

	emb := NewEmbedder(vcrKey(t, "sk-test"), "", 4, WithHTTPClient(client), WithMaxRetries(0))
	resp, err := emb.Embed(context.Background(), "what is a cat")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if len(resp.Vector) != 4 {
		t.Errorf("len(Vector) = %d, want 4", len(resp.Vector))
	}
	if !resp.UsageReported || resp.PromptTokens == 0 {
		t.Errorf("usage = %+v, want reported prompt tokens", resp)
	}
}

func TestAcceptsDimensions(t *testing.T) {
	if acceptsDimensions("text-embedding-ada-002") {
		t.Error("ada-002 should not be sent dimensions")
	}
	if !acceptsDimensions("text-embedding-3-large") {
		t.Error("text-embedding-3 should be sent dimensions")
	}
}

func TestCreateFromConfig(t *testing.T) {
	if _, err := CreateLLMFromConfig(config.LLMConfig{Type: "openai"}); !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("CreateLLMFromConfig() error = %v, want ErrAPIKeyNotSet", err)
	}
	llm, err := CreateLLMFromConfig(config.LLMConfig{Type: "openai", BaseURL: "http://localhost:11434/v1/", Model: "llama3"})
	if err != nil {
		t.Fatalf("CreateLLMFromConfig() error = %v", err)
	}
	if llm.ModelName() != "llama3" {
		t.Errorf("ModelName() = %q, want llama3", llm.ModelName())
	}

	if _, err := CreateEmbedderFromConfig(config.EmbedderConfig{Type: "openai"}); !errors.Is(err, ErrAPIKeyNotSet) {
		t.Errorf("CreateEmbedderFromConfig() error = %v, want ErrAPIKeyNotSet", err)
	}
}
