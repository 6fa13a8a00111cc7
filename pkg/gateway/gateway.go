// Package gateway is the public API for embedding agentgate in another
// program.
package gateway

import (
	"github.com/tjfontaine/agentgate/internal/runtime"
)

// Gateway serves the agent HTTP API.
// See internal/runtime.Gateway for full documentation.
type Gateway = runtime.Gateway

// Option is a functional option for configuring a Gateway.
type Option = runtime.Option

// New creates a new Gateway with the given options.
// Example:
//
//	gw, err := gateway.New(
//	    gateway.WithFileConfig("config.yaml"),
//	    gateway.WithPlugins(myPlugin),
//	)
var New = runtime.New

// Configuration options
var (
	// Config sources
	WithFileConfig     = runtime.WithFileConfig
	WithConfig         = runtime.WithConfig
	WithConfigProvider = runtime.WithConfigProvider

	// Models
	WithLLM              = runtime.WithLLM
	WithEmbedder         = runtime.WithEmbedder
	WithProviderRegistry = runtime.WithProviderRegistry

	// Storage
	WithStore = runtime.WithStore

	// Extensions
	WithPlugins = runtime.WithPlugins

	// Advanced options
	WithLogger       = runtime.WithLogger
	WithMetadataPath = runtime.WithMetadataPath
	WithListener     = runtime.WithListener
)
