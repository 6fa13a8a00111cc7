// Package session keeps one conversation per user and evicts idle ones.
package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/tjfontaine/agentgate/internal/convo"
	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// Runner produces the reply for one turn of userID's session. The human turn
// is already in the memory's history when Run is called.
type Runner interface {
	Run(ctx context.Context, userID string, msg domain.UserMessage, mem *convo.WorkingMemory) (*domain.ChatMessage, error)
}

// Session is the conversation of a single user. Turns are serialized.
type Session struct {
	userID   string
	memory   *convo.WorkingMemory
	runner   Runner
	now      func() time.Time
	turn     chan struct{} // one slot; held for the duration of a turn
	lastUsed atomic.Int64  // unix nanos
}

var _ ports.Conversation = (*Session)(nil)

func newSession(userID string, runner Runner, now func() time.Time) *Session {
	s := &Session{
		userID: userID,
		memory: convo.NewWorkingMemory(),
		runner: runner,
		now:    now,
		turn:   make(chan struct{}, 1),
	}
	s.touch()
	return s
}

// UserID returns the user the session belongs to.
func (s *Session) UserID() string { return s.userID }

// Handle runs one turn. payload must carry a string text and a user_id.
// It waits for any turn already in progress, or for ctx to end. The turn
// belongs to the session's user even when payload names another.
func (s *Session) Handle(ctx context.Context, payload map[string]any) (*domain.ChatMessage, error) {
	msg, err := domain.UserMessageFromPayload(payload)
	if err != nil {
		return nil, err
	}

	select {
	case s.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() {
		s.touch()
		<-s.turn
	}()
	s.touch()

	s.memory.UpdateHistory(msg, s.now())

	reply, err := s.runner.Run(ctx, s.userID, msg, s.memory)
	if err != nil {
		return nil, err
	}

	s.memory.UpdateHistory(*reply, s.now())
	return reply, nil
}

// History returns a copy of the conversation history.
func (s *Session) History() []domain.HistoryEntry {
	s.touch()
	return s.memory.History()
}

// ClearHistory drops the conversation history.
func (s *Session) ClearHistory() {
	s.touch()
	s.memory.ClearHistory()
}

func (s *Session) touch() {
	s.lastUsed.Store(s.now().UnixNano())
}

// LastUsed reports when the session was last active.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// tryLock takes the turn slot without waiting.
func (s *Session) tryLock() bool {
	select {
	case s.turn <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Session) unlock() { <-s.turn }
