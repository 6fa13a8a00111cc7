// Package runtime assembles agentgate from configuration and manages its
// lifecycle.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/tjfontaine/agentgate/internal/agent"
	"github.com/tjfontaine/agentgate/internal/api"
	"github.com/tjfontaine/agentgate/internal/auth"
	"github.com/tjfontaine/agentgate/internal/config"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/metadata"
	"github.com/tjfontaine/agentgate/internal/plugin"
	"github.com/tjfontaine/agentgate/internal/policy"
	"github.com/tjfontaine/agentgate/internal/provider"
	"github.com/tjfontaine/agentgate/internal/recorder"
	"github.com/tjfontaine/agentgate/internal/server"
	"github.com/tjfontaine/agentgate/internal/session"
	"github.com/tjfontaine/agentgate/internal/tokens"
)

// Gateway owns the HTTP server, the session manager and the interaction
// store. It can be embedded in larger applications or run standalone.
type Gateway struct {
	// Dependencies (injected via options)
	configProvider ports.ConfigProvider
	cfg            *config.Config
	store          ports.InteractionStore
	llm            ports.LLM
	embedder       ports.Embedder
	providers      *provider.Registry
	plugins        []plugin.Plugin
	metadataPath   string
	listener       net.Listener
	logger         *slog.Logger

	// Built by Start
	ownsStore     bool
	authenticator *auth.Authenticator
	sessions      *session.Manager
	registry      *plugin.Registry
	server        *server.Server

	// Lifecycle management
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// New creates a Gateway with the given options. A config source is required.
func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if g.cfg == nil && g.configProvider == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithFileConfig)")
	}
	if g.providers == nil {
		g.providers = provider.NewDefaultRegistry()
	}
	return g, nil
}

// Start builds the dependency graph and starts serving. It returns once the
// listener is open.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started {
		return fmt.Errorf("gateway already started")
	}

	cfg := g.cfg
	if cfg == nil {
		loaded, err := g.configProvider.Load(ctx)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	if err := g.build(ctx, cfg); err != nil {
		_ = g.closeStore()
		return err
	}

	ln := g.listener
	if ln == nil {
		var err error
		ln, err = g.server.Listen()
		if err != nil {
			_ = g.closeStore()
			return err
		}
		g.listener = ln
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g.cancel = cancel

	if cfg.Session.IdleTTL > 0 {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.sessions.RunSweeper(runCtx, cfg.Session.SweepInterval)
		}()
	}

	if g.configProvider != nil {
		if err := g.configProvider.Watch(runCtx, g.onConfigChange); err != nil {
			g.logger.Warn("config hot reload disabled", slog.String("error", err.Error()))
		}
	}

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		if err := g.server.Serve(ln); err != nil {
			g.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	g.started = true
	g.logger.Info("gateway started",
		slog.String("addr", ln.Addr().String()),
		slog.String("storage", cfg.Storage.Type),
		slog.String("llm", g.llm.ModelName()),
		slog.String("embedder", g.embedder.ModelName()),
		slog.Bool("open_auth", g.authenticator.Open()),
		slog.Int("plugins", len(g.plugins)))
	return nil
}

func (g *Gateway) build(ctx context.Context, cfg *config.Config) error {
	if g.store == nil {
		store, err := openStore(cfg.Storage)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		if store != nil {
			g.store = store
			g.ownsStore = true
		}
	}

	if g.llm == nil {
		llm, err := g.providers.CreateLLM(cfg.LLM)
		if err != nil {
			return fmt.Errorf("init llm: %w", err)
		}
		g.llm = llm
	}
	if g.embedder == nil {
		embedder, err := g.providers.CreateEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("init embedder: %w", err)
		}
		g.embedder = embedder
	}

	authenticator, err := auth.NewAuthenticator(cfg.Auth.APIKeys)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	g.authenticator = authenticator
	if authenticator.Open() {
		g.logger.Warn("no API keys configured, every request gets full permissions")
	}

	engine, err := policy.NewEngineFromFile(ctx, cfg.Auth.PolicyFile)
	if err != nil {
		return fmt.Errorf("init policy: %w", err)
	}

	// Every built-in store also keeps memory points.
	memoryStore, _ := g.store.(ports.MemoryStore)

	rec := recorder.New(g.store, cfg.Storage.RecordTimeout, g.logger)
	a := agent.New(g.llm, g.embedder,
		agent.WithRecorder(rec),
		agent.WithMemory(memoryStore),
		agent.WithRecallK(cfg.Session.RecallK),
		agent.WithTokenCounter(tokens.NewRegistry()),
		agent.WithPreamble(cfg.LLM.Preamble),
		agent.WithHistoryWindow(cfg.Session.HistoryWindow),
		agent.WithLogger(g.logger),
	)
	g.sessions = session.NewManager(a,
		session.WithIdleTTL(cfg.Session.IdleTTL),
		session.WithLogger(g.logger),
	)

	g.server = server.New(server.Options{
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout,
		ServiceName:    cfg.Tracing.ServiceName,
	}, g.logger, authenticator)

	metadataPath := g.metadataPath
	if metadataPath == "" {
		metadataPath = cfg.Metadata.Path
	}
	api.New(api.Deps{
		Sessions:   g.sessions,
		Store:      g.store,
		Memory:     memoryStore,
		Embedder:   g.embedder,
		Metadata:   metadata.NewReader(metadataPath),
		Authorizer: engine,
		Logger:     g.logger,
	}).Mount(g.server.Router)

	g.registry = plugin.NewRegistry(g.sessions, engine, g.logger)
	for _, p := range g.plugins {
		if err := g.registry.Register(p); err != nil {
			return fmt.Errorf("register plugin: %w", err)
		}
	}
	for _, id := range cfg.Plugins.Disabled {
		if err := g.registry.SetActive(id, false); err != nil {
			g.logger.Warn("cannot disable plugin", slog.String("plugin_id", id), slog.String("error", err.Error()))
		}
	}
	g.registry.Mount(g.server.Router)
	g.server.Router.NotFound(g.registry.ServeHTTP)

	return nil
}

// onConfigChange applies the parts of a reloaded config that can change
// without a restart.
func (g *Gateway) onConfigChange(cfg *config.Config) {
	if err := g.authenticator.SetKeys(cfg.Auth.APIKeys); err != nil {
		g.logger.Error("failed to reload API keys", slog.String("error", err.Error()))
		return
	}
	g.logger.Info("API keys reloaded", slog.Int("count", len(cfg.Auth.APIKeys)))
}

// Addr returns the address the gateway listens on, or nil before Start.
func (g *Gateway) Addr() net.Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return nil
	}
	return g.listener.Addr()
}

// Handler returns the root HTTP handler, or nil before Start.
func (g *Gateway) Handler() http.Handler {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.server == nil {
		return nil
	}
	return g.server.Router
}

// Plugins returns the plugin registry, or nil before Start.
func (g *Gateway) Plugins() *plugin.Registry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.registry
}

// Shutdown gracefully stops the gateway.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.started {
		return nil
	}
	g.logger.Info("shutting down gateway")

	var errs []error
	if err := g.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown server: %w", err))
	}

	g.cancel()
	g.wg.Wait()

	if g.configProvider != nil {
		if err := g.configProvider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close config: %w", err))
		}
	}
	if err := g.closeStore(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}

	g.started = false
	g.logger.Info("gateway shutdown complete")
	return errors.Join(errs...)
}

func (g *Gateway) closeStore() error {
	if !g.ownsStore || g.store == nil {
		return nil
	}
	err := g.store.Close()
	g.store = nil
	g.ownsStore = false
	return err
}
