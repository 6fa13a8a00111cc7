package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// ModelType tags which kind of model an interaction was made with.
type ModelType string

const (
	ModelTypeLLM      ModelType = "llm"
	ModelTypeEmbedder ModelType = "embedder"
)

// Valid reports whether t is one of the recognized model tags.
func (t ModelType) Valid() bool {
	return t == ModelTypeLLM || t == ModelTypeEmbedder
}

// DefaultEmbedderSource is the source assigned to embedder interactions that
// don't name one. Embeddings are almost always computed for memory recall.
const DefaultEmbedderSource = "recall"

// Interaction is a logged snapshot of a single model call.
// The set of implementations is closed: LLMInteraction and EmbedderInteraction.
type Interaction interface {
	// Kind returns the model tag of the interaction.
	Kind() ModelType

	// Common returns the fields shared by every interaction.
	Common() ModelInteraction

	sealed()
}

// ModelInteraction holds the fields common to every model call.
type ModelInteraction struct {
	// Type is the discriminator tag.
	Type ModelType `json:"model_type"`

	// Source names the subsystem that issued the call (e.g. "main", "recall").
	Source string `json:"source"`

	// Prompt is the input sent to the model.
	Prompt string `json:"prompt"`

	// InputTokens is the number of tokens consumed by the prompt.
	InputTokens int `json:"input_tokens"`

	// StartedAt is when the call began.
	StartedAt time.Time `json:"started_at"`
}

// LLMInteraction records a completed call to a text-generation model.
type LLMInteraction struct {
	ModelInteraction

	Reply        string
	OutputTokens int
	EndedAt      time.Time
}

// EmbedderInteraction records a call to an embedding model.
type EmbedderInteraction struct {
	ModelInteraction

	// Reply is the embedding vector.
	Reply []float64
}

// Kind implements Interaction.
func (i LLMInteraction) Kind() ModelType { return ModelTypeLLM }

// Common implements Interaction.
func (i LLMInteraction) Common() ModelInteraction { return i.ModelInteraction }

func (LLMInteraction) sealed() {}

// Kind implements Interaction.
func (i EmbedderInteraction) Kind() ModelType { return ModelTypeEmbedder }

// Common implements Interaction.
func (i EmbedderInteraction) Common() ModelInteraction { return i.ModelInteraction }

func (EmbedderInteraction) sealed() {}

// Duration returns the wall-clock time the LLM call took.
func (i LLMInteraction) Duration() time.Duration {
	return i.EndedAt.Sub(i.StartedAt)
}

// Dimensions returns the length of the embedding vector.
func (i EmbedderInteraction) Dimensions() int {
	return len(i.Reply)
}

// LLMParams are the raw field values for NewLLMInteraction.
type LLMParams struct {
	// ModelType may be left empty; if set it must be "llm".
	ModelType    ModelType
	Source       string
	Prompt       string
	InputTokens  int
	Reply        string
	OutputTokens int
	// StartedAt defaults to the now passed to the constructor.
	StartedAt time.Time
	EndedAt   time.Time
}

// EmbedderParams are the raw field values for NewEmbedderInteraction.
type EmbedderParams struct {
	// ModelType may be left empty; if set it must be "embedder".
	ModelType ModelType
	// Source defaults to DefaultEmbedderSource.
	Source      string
	Prompt      string
	InputTokens int
	Reply       []float64
	// StartedAt defaults to the now passed to the constructor.
	StartedAt time.Time
}

// NewLLMInteraction validates p and builds an LLM interaction record.
// now is used for StartedAt when p leaves it unset.
func NewLLMInteraction(p LLMParams, now time.Time) (LLMInteraction, error) {
	verr := &ValidationError{Model: "LLMInteraction"}

	switch p.ModelType {
	case "", ModelTypeLLM:
	default:
		verr.Add("model_type", fmt.Sprintf("input should be %q", ModelTypeLLM))
	}
	if p.Source == "" {
		verr.Add("source", "field required")
	}
	if p.EndedAt.IsZero() {
		verr.Add("ended_at", "field required")
	}
	if verr.HasErrors() {
		return LLMInteraction{}, verr
	}

	started := p.StartedAt
	if started.IsZero() {
		started = now
	}

	return LLMInteraction{
		ModelInteraction: ModelInteraction{
			Type:        ModelTypeLLM,
			Source:      p.Source,
			Prompt:      p.Prompt,
			InputTokens: p.InputTokens,
			StartedAt:   started,
		},
		Reply:        p.Reply,
		OutputTokens: p.OutputTokens,
		EndedAt:      p.EndedAt,
	}, nil
}

// NewEmbedderInteraction validates p and builds an embedder interaction record.
// now is used for StartedAt when p leaves it unset.
func NewEmbedderInteraction(p EmbedderParams, now time.Time) (EmbedderInteraction, error) {
	verr := &ValidationError{Model: "EmbedderInteraction"}

	switch p.ModelType {
	case "", ModelTypeEmbedder:
	default:
		verr.Add("model_type", fmt.Sprintf("input should be %q", ModelTypeEmbedder))
	}
	if p.Reply == nil {
		verr.Add("reply", "field required")
	}
	if verr.HasErrors() {
		return EmbedderInteraction{}, verr
	}

	source := p.Source
	if source == "" {
		source = DefaultEmbedderSource
	}
	started := p.StartedAt
	if started.IsZero() {
		started = now
	}

	reply := make([]float64, len(p.Reply))
	copy(reply, p.Reply)

	return EmbedderInteraction{
		ModelInteraction: ModelInteraction{
			Type:        ModelTypeEmbedder,
			Source:      source,
			Prompt:      p.Prompt,
			InputTokens: p.InputTokens,
			StartedAt:   started,
		},
		Reply: reply,
	}, nil
}

// Wire format. Timestamps travel as fractional unix seconds.

type interactionWire struct {
	ModelType    *ModelType      `json:"model_type,omitempty"`
	Source       *string         `json:"source,omitempty"`
	Prompt       *string         `json:"prompt,omitempty"`
	InputTokens  *int            `json:"input_tokens,omitempty"`
	StartedAt    *float64        `json:"started_at,omitempty"`
	Reply        json.RawMessage `json:"reply,omitempty"`
	OutputTokens *int            `json:"output_tokens,omitempty"`
	EndedAt      *float64        `json:"ended_at,omitempty"`
}

type llmJSON struct {
	ModelType    ModelType `json:"model_type"`
	Source       string    `json:"source"`
	Prompt       string    `json:"prompt"`
	InputTokens  int       `json:"input_tokens"`
	StartedAt    float64   `json:"started_at"`
	Reply        string    `json:"reply"`
	OutputTokens int       `json:"output_tokens"`
	EndedAt      float64   `json:"ended_at"`
}

type embedderJSON struct {
	ModelType   ModelType `json:"model_type"`
	Source      string    `json:"source"`
	Prompt      string    `json:"prompt"`
	InputTokens int       `json:"input_tokens"`
	StartedAt   float64   `json:"started_at"`
	Reply       []float64 `json:"reply"`
}

// MarshalJSON encodes the interaction with its model_type tag.
func (i LLMInteraction) MarshalJSON() ([]byte, error) {
	return json.Marshal(llmJSON{
		ModelType:    ModelTypeLLM,
		Source:       i.Source,
		Prompt:       i.Prompt,
		InputTokens:  i.InputTokens,
		StartedAt:    unixSeconds(i.StartedAt),
		Reply:        i.Reply,
		OutputTokens: i.OutputTokens,
		EndedAt:      unixSeconds(i.EndedAt),
	})
}

// MarshalJSON encodes the interaction with its model_type tag.
func (i EmbedderInteraction) MarshalJSON() ([]byte, error) {
	reply := i.Reply
	if reply == nil {
		reply = []float64{}
	}
	return json.Marshal(embedderJSON{
		ModelType:   ModelTypeEmbedder,
		Source:      i.Source,
		Prompt:      i.Prompt,
		InputTokens: i.InputTokens,
		StartedAt:   unixSeconds(i.StartedAt),
		Reply:       reply,
	})
}

// DecodeInteraction decodes a tagged interaction record. Field presence is
// enforced the same way the constructors enforce it, plus prompt, input_tokens
// and the reply fields must be present in the document. now fills a missing
// started_at.
func DecodeInteraction(data []byte, now time.Time) (Interaction, error) {
	var w interactionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode interaction: %w", err)
	}

	if w.ModelType == nil {
		verr := &ValidationError{Model: "ModelInteraction"}
		verr.Add("model_type", "field required")
		return nil, verr
	}

	switch *w.ModelType {
	case ModelTypeLLM:
		return decodeLLM(w, now)
	case ModelTypeEmbedder:
		return decodeEmbedder(w, now)
	default:
		verr := &ValidationError{Model: "ModelInteraction"}
		verr.Add("model_type", fmt.Sprintf("input should be %q or %q", ModelTypeLLM, ModelTypeEmbedder))
		return nil, verr
	}
}

func decodeLLM(w interactionWire, now time.Time) (Interaction, error) {
	verr := &ValidationError{Model: "LLMInteraction"}
	if w.Prompt == nil {
		verr.Add("prompt", "field required")
	}
	if w.InputTokens == nil {
		verr.Add("input_tokens", "field required")
	}
	if w.OutputTokens == nil {
		verr.Add("output_tokens", "field required")
	}

	var reply string
	if len(w.Reply) == 0 || string(w.Reply) == "null" {
		verr.Add("reply", "field required")
	} else if err := json.Unmarshal(w.Reply, &reply); err != nil {
		verr.Add("reply", "input should be a valid string")
	}
	if verr.HasErrors() {
		// Report constructor-level problems alongside presence problems.
		p := LLMParams{Source: deref(w.Source)}
		if w.EndedAt != nil {
			p.EndedAt = fromUnixSeconds(*w.EndedAt)
		}
		if _, err := NewLLMInteraction(p, now); err != nil {
			if cerr, ok := err.(*ValidationError); ok {
				verr.Errors = append(verr.Errors, cerr.Errors...)
			}
		}
		return nil, verr
	}

	p := LLMParams{
		ModelType:    ModelTypeLLM,
		Source:       deref(w.Source),
		Prompt:       *w.Prompt,
		InputTokens:  *w.InputTokens,
		Reply:        reply,
		OutputTokens: *w.OutputTokens,
	}
	if w.StartedAt != nil {
		p.StartedAt = fromUnixSeconds(*w.StartedAt)
	}
	if w.EndedAt != nil {
		p.EndedAt = fromUnixSeconds(*w.EndedAt)
	}
	return NewLLMInteraction(p, now)
}

func decodeEmbedder(w interactionWire, now time.Time) (Interaction, error) {
	verr := &ValidationError{Model: "EmbedderInteraction"}
	if w.Prompt == nil {
		verr.Add("prompt", "field required")
	}
	if w.InputTokens == nil {
		verr.Add("input_tokens", "field required")
	}

	var reply []float64
	if len(w.Reply) == 0 || string(w.Reply) == "null" {
		verr.Add("reply", "field required")
	} else if err := json.Unmarshal(w.Reply, &reply); err != nil {
		verr.Add("reply", "input should be a valid list of numbers")
	}
	if verr.HasErrors() {
		return nil, verr
	}
	if reply == nil {
		reply = []float64{}
	}

	p := EmbedderParams{
		ModelType:   ModelTypeEmbedder,
		Source:      deref(w.Source),
		Prompt:      *w.Prompt,
		InputTokens: *w.InputTokens,
		Reply:       reply,
	}
	if w.StartedAt != nil {
		p.StartedAt = fromUnixSeconds(*w.StartedAt)
	}
	return NewEmbedderInteraction(p, now)
}

func unixSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

func fromUnixSeconds(s float64) time.Time {
	return time.UnixMicro(int64(math.Round(s * 1e6)))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
