package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/provider/dummy"
	"github.com/tjfontaine/agentgate/internal/provider/openai"
)

// Registry creates providers from configuration using registered factories.
type Registry struct {
	mu        sync.RWMutex
	llms      map[string]LLMFactory
	embedders map[string]EmbedderFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		llms:      make(map[string]LLMFactory),
		embedders: make(map[string]EmbedderFactory),
	}
}

// NewDefaultRegistry creates a registry with the built-in providers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterLLM(LLMFactory{
		Type:        openai.ProviderType,
		Description: "OpenAI or OpenAI-compatible chat completions",
		Create:      openai.CreateLLMFromConfig,
	})
	r.RegisterLLM(LLMFactory{
		Type:        dummy.ProviderType,
		Description: "Placeholder used until a language model is configured",
		Create: func(config.LLMConfig) (ports.LLM, error) {
			return dummy.NewLLM(), nil
		},
	})
	r.RegisterEmbedder(EmbedderFactory{
		Type:        openai.ProviderType,
		Description: "OpenAI or OpenAI-compatible embeddings",
		Create:      openai.CreateEmbedderFromConfig,
	})
	r.RegisterEmbedder(EmbedderFactory{
		Type:        dummy.ProviderType,
		Description: "Deterministic hash embedder",
		Create: func(cfg config.EmbedderConfig) (ports.Embedder, error) {
			return dummy.NewEmbedder(cfg.Dimensions), nil
		},
	})
	return r
}

// RegisterLLM registers an LLM factory.
// Panics if the factory is incomplete or its type is already registered.
func (r *Registry) RegisterLLM(f LLMFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.Type == "" {
		panic("llm factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("llm factory %q must have a Create function", f.Type))
	}
	if _, exists := r.llms[f.Type]; exists {
		panic(fmt.Sprintf("llm factory %q already registered", f.Type))
	}
	r.llms[f.Type] = f
}

// RegisterEmbedder registers an embedder factory.
// Panics if the factory is incomplete or its type is already registered.
func (r *Registry) RegisterEmbedder(f EmbedderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f.Type == "" {
		panic("embedder factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("embedder factory %q must have a Create function", f.Type))
	}
	if _, exists := r.embedders[f.Type]; exists {
		panic(fmt.Sprintf("embedder factory %q already registered", f.Type))
	}
	r.embedders[f.Type] = f
}

// CreateLLM creates the language model described by cfg.
func (r *Registry) CreateLLM(cfg config.LLMConfig) (ports.LLM, error) {
	r.mu.RLock()
	f, ok := r.llms[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown llm type: %q (registered: %v)", cfg.Type, r.LLMTypes())
	}
	llm, err := f.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s llm: %w", cfg.Type, err)
	}
	return llm, nil
}

// CreateEmbedder creates the embedder described by cfg.
func (r *Registry) CreateEmbedder(cfg config.EmbedderConfig) (ports.Embedder, error) {
	r.mu.RLock()
	f, ok := r.embedders[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown embedder type: %q (registered: %v)", cfg.Type, r.EmbedderTypes())
	}
	emb, err := f.Create(cfg)
	if err != nil {
		return nil, fmt.Errorf("create %s embedder: %w", cfg.Type, err)
	}
	return emb, nil
}

// LLMTypes returns the registered LLM types, sorted.
func (r *Registry) LLMTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.llms))
	for t := range r.llms {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// EmbedderTypes returns the registered embedder types, sorted.
func (r *Registry) EmbedderTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.embedders))
	for t := range r.embedders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
