// Package tokens counts prompt and reply tokens for models that do not report
// usage themselves.
package tokens

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// Counter counts tokens for the models it supports.
type Counter interface {
	// CountText counts the tokens of a single piece of text.
	CountText(model, text string) (int, error)

	// CountChat counts a chat prompt including per-message framing.
	CountChat(model string, turns []ports.ChatTurn) (int, error)

	SupportsModel(model string) bool
}

// Registry picks a counter per model.
// Registered counters are tried in order, then the fallback estimator.
type Registry struct {
	counters []Counter
	fallback Counter
}

// NewRegistry creates a registry with the tiktoken counter registered and
// the character estimator as fallback.
func NewRegistry() *Registry {
	r := &Registry{fallback: NewEstimator()}
	r.Register(NewOpenAICounter())
	return r
}

// Register adds a token counter to the registry.
func (r *Registry) Register(counter Counter) {
	r.counters = append(r.counters, counter)
}

// SetFallback sets the fallback counter for unsupported models.
func (r *Registry) SetFallback(counter Counter) {
	r.fallback = counter
}

// GetCounter returns the appropriate counter for a model.
func (r *Registry) GetCounter(model string) Counter {
	for _, counter := range r.counters {
		if counter.SupportsModel(model) {
			return counter
		}
	}
	return r.fallback
}

// CountText counts text for model. If the model's counter fails the fallback
// is used.
func (r *Registry) CountText(model, text string) (int, error) {
	counter := r.GetCounter(model)
	if counter == nil {
		return 0, fmt.Errorf("no token counter available for model: %s", model)
	}
	n, err := counter.CountText(model, text)
	if err != nil && r.fallback != nil && counter != r.fallback {
		return r.fallback.CountText(model, text)
	}
	return n, err
}

// CountChat counts a chat prompt for model.
func (r *Registry) CountChat(model string, turns []ports.ChatTurn) (int, error) {
	counter := r.GetCounter(model)
	if counter == nil {
		return 0, fmt.Errorf("no token counter available for model: %s", model)
	}
	n, err := counter.CountChat(model, turns)
	if err != nil && r.fallback != nil && counter != r.fallback {
		return r.fallback.CountChat(model, turns)
	}
	return n, err
}

// Estimator provides token count estimation based on character counts.
// This is a fallback for models without a known tokenizer.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		CharsPerToken: 4.0,
	}
}

// CountText estimates the tokens in text. Non-empty text is at least one token.
func (e *Estimator) CountText(model, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	n := int(float64(len(text)) / e.CharsPerToken)
	if n == 0 {
		n = 1
	}
	return n, nil
}

// CountChat estimates a chat prompt.
func (e *Estimator) CountChat(model string, turns []ports.ChatTurn) (int, error) {
	totalChars := 0
	for _, turn := range turns {
		totalChars += len(turn.Role)
		totalChars += len(turn.Content)
		// role tokens + separators
		totalChars += 4
	}
	return int(float64(totalChars) / e.CharsPerToken), nil
}

// SupportsModel returns true - estimator supports all models as a fallback.
func (e *Estimator) SupportsModel(model string) bool {
	return true
}

// ModelMatcher helps match model names to provider patterns.
type ModelMatcher struct {
	prefixes []string
	exact    []string
}

// NewModelMatcher creates a new model matcher.
func NewModelMatcher(prefixes, exact []string) *ModelMatcher {
	return &ModelMatcher{
		prefixes: prefixes,
		exact:    exact,
	}
}

// Matches returns true if the model matches any pattern.
func (m *ModelMatcher) Matches(model string) bool {
	model = strings.ToLower(model)
	for _, e := range m.exact {
		if model == e {
			return true
		}
	}
	for _, p := range m.prefixes {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
