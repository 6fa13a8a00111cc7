// Package dummy provides placeholder models used until real ones are
// configured, so the conversation pipeline runs end to end.
package dummy

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// ProviderType is the provider type identifier used in configuration.
const ProviderType = "dummy"

// Reply is what the placeholder LLM always answers.
const Reply = "You did not configure a Language Model. Do it in the settings!"

const (
	llmModelName      = "dummy-llm"
	embedderModelName = "dummy-embedder"
)

// LLM answers every prompt with Reply. It reports no usage.
type LLM struct{}

func NewLLM() *LLM { return &LLM{} }

func (l *LLM) ModelName() string { return llmModelName }

func (l *LLM) Complete(ctx context.Context, req *ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ports.CompletionResponse{Content: Reply, Model: llmModelName}, nil
}

// Embedder maps text to a deterministic unit vector derived from SHA-256.
// Equal texts get equal vectors; it reports no usage.
type Embedder struct {
	dimensions int
}

// NewEmbedder returns an embedder of the given size (at least 1).
func NewEmbedder(dimensions int) *Embedder {
	if dimensions < 1 {
		dimensions = 1
	}
	return &Embedder{dimensions: dimensions}
}

func (e *Embedder) ModelName() string { return embedderModelName }

func (e *Embedder) Dimensions() int { return e.dimensions }

func (e *Embedder) Embed(ctx context.Context, text string) (*ports.EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float64, e.dimensions)
	var norm float64
	block := sha256.Sum256([]byte(text))
	for i := range vec {
		// Each 32-byte block yields 8 components; rehash for more.
		if i > 0 && i%8 == 0 {
			block = sha256.Sum256(block[:])
		}
		u := binary.BigEndian.Uint32(block[(i%8)*4:])
		vec[i] = float64(u)/math.MaxUint32*2 - 1
		norm += vec[i] * vec[i]
	}

	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}

	return &ports.EmbeddingResponse{Vector: vec, Model: embedderModelName}, nil
}
