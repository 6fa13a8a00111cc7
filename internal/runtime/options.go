package runtime

import (
	"fmt"
	"log/slog"
	"net"

	"github.com/tjfontaine/agentgate/internal/adapters/config/file"
	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/plugin"
	"github.com/tjfontaine/agentgate/internal/provider"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithFileConfig uses file-based configuration with hot-reload.
// The path should point to a config.yaml file that will be watched for changes.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		p, err := file.NewProvider(path, g.logger)
		if err != nil {
			return fmt.Errorf("create file config provider: %w", err)
		}
		g.configProvider = p
		return nil
	}
}

// WithConfigProvider sets a custom config provider.
func WithConfigProvider(p ports.ConfigProvider) Option {
	return func(g *Gateway) error {
		g.configProvider = p
		return nil
	}
}

// WithConfig uses a fixed configuration. Nothing is watched.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		if logger != nil {
			g.logger = logger
		}
		return nil
	}
}

// WithStore uses store instead of the one named by storage.type. The caller
// keeps ownership: Shutdown does not close it.
func WithStore(store ports.InteractionStore) Option {
	return func(g *Gateway) error {
		g.store = store
		return nil
	}
}

// WithLLM uses llm instead of the configured language model.
func WithLLM(llm ports.LLM) Option {
	return func(g *Gateway) error {
		g.llm = llm
		return nil
	}
}

// WithEmbedder uses e instead of the configured embedder.
func WithEmbedder(e ports.Embedder) Option {
	return func(g *Gateway) error {
		g.embedder = e
		return nil
	}
}

// WithProviderRegistry replaces the built-in model provider factories.
func WithProviderRegistry(r *provider.Registry) Option {
	return func(g *Gateway) error {
		g.providers = r
		return nil
	}
}

// WithPlugins installs plugins at start. Ones listed in plugins.disabled
// start inactive.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(g *Gateway) error {
		g.plugins = append(g.plugins, plugins...)
		return nil
	}
}

// WithMetadataPath overrides metadata.path.
func WithMetadataPath(path string) Option {
	return func(g *Gateway) error {
		g.metadataPath = path
		return nil
	}
}

// WithListener serves on ln instead of listening on server.port.
func WithListener(ln net.Listener) Option {
	return func(g *Gateway) error {
		g.listener = ln
		return nil
	}
}
