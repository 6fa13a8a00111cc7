package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

const (
	DefaultIdleTTL       = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Manager hands out per-user sessions, creating them on first use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	runner  Runner
	idleTTL time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

var _ ports.SessionResolver = (*Manager)(nil)

// Option configures a Manager.
type Option func(*Manager)

// WithIdleTTL sets how long an unused session survives. Zero keeps sessions
// forever.
func WithIdleTTL(d time.Duration) Option {
	return func(m *Manager) { m.idleTTL = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a manager whose sessions run turns with runner.
func NewManager(runner Runner, opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		runner:   runner,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve returns the session for userID, creating it if needed.
func (m *Manager) Resolve(ctx context.Context, userID string) (ports.Conversation, error) {
	s, err := m.Session(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Session is Resolve with the concrete type.
func (m *Manager) Session(ctx context.Context, userID string) (*Session, error) {
	if userID == "" {
		return nil, domain.ErrInvalidRequest("user id is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		s.touch()
		return s, nil
	}

	s := newSession(userID, m.runner, m.now)
	m.sessions[userID] = s
	m.logger.Debug("session created", slog.String("user_id", userID))
	return s, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the TTL. Sessions with a turn in
// progress are kept. It returns the number evicted.
func (m *Manager) Sweep() int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if !s.LastUsed().Before(cutoff) {
			continue
		}
		if !s.tryLock() {
			continue
		}
		delete(m.sessions, id)
		s.unlock()
		evicted++
	}

	if evicted > 0 {
		m.logger.Info("evicted idle sessions", slog.Int("count", evicted), slog.Int("remaining", len(m.sessions)))
	}
	return evicted
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
