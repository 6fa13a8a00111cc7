// Package provider builds the language model and embedder a deployment talks
// to from configuration.
//
// # Adding a New Provider
//
// Implement ports.LLM and/or ports.Embedder in a sub-package and register its
// constructors on a Registry:
//
//	r.RegisterLLM(LLMFactory{
//	    Type:        "gemini",
//	    Description: "Google Gemini",
//	    Create:      gemini.CreateLLMFromConfig,
//	})
//
// NewDefaultRegistry wires the built-in providers. Registration is explicit;
// provider packages have no init() side effects.
package provider

import (
	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// LLMFactory defines how to create a language model of a specific type.
type LLMFactory struct {
	// Type is the identifier used in configuration (llm.type).
	Type string

	// Description provides a human-readable description of the provider
	Description string

	Create func(cfg config.LLMConfig) (ports.LLM, error)
}

// EmbedderFactory defines how to create an embedder of a specific type.
type EmbedderFactory struct {
	// Type is the identifier used in configuration (embedder.type).
	Type string

	// Description provides a human-readable description of the provider
	Description string

	Create func(cfg config.EmbedderConfig) (ports.Embedder, error)
}
