// Package convo holds the volatile per-session state of a conversation.
package convo

import (
	"sync"
	"time"

	"github.com/tjfontaine/agentgate/internal/core/domain"
)

// WorkingMemory is the scratch space of one session: its conversation history
// and the model interactions of the turn in progress. Safe for concurrent use.
type WorkingMemory struct {
	mu           sync.RWMutex
	history      []domain.HistoryEntry
	interactions []domain.Interaction
	userMessage  *domain.UserMessage
	recallQuery  string
}

// NewWorkingMemory returns an empty working memory.
func NewWorkingMemory() *WorkingMemory {
	return &WorkingMemory{}
}

// UpdateHistory appends content to the history.
func (m *WorkingMemory) UpdateHistory(content domain.Message, when time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, domain.HistoryEntry{When: when, Content: content})
}

// History returns a copy of the full history, oldest first.
func (m *WorkingMemory) History() []domain.HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.HistoryEntry, len(m.history))
	copy(out, m.history)
	return out
}

// RecentHistory returns at most the last n entries, oldest first.
// n <= 0 returns the full history.
func (m *WorkingMemory) RecentHistory(n int) []domain.HistoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if n > 0 && len(m.history) > n {
		start = len(m.history) - n
	}
	out := make([]domain.HistoryEntry, len(m.history)-start)
	copy(out, m.history[start:])
	return out
}

// ClearHistory drops the history.
func (m *WorkingMemory) ClearHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
}

// SetUserMessage records the message being answered.
func (m *WorkingMemory) SetUserMessage(msg domain.UserMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userMessage = &msg
}

// UserMessage returns the message being answered, if any.
func (m *WorkingMemory) UserMessage() (domain.UserMessage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.userMessage == nil {
		return domain.UserMessage{}, false
	}
	return *m.userMessage, true
}

// SetRecallQuery records the text used for memory recall this turn.
func (m *WorkingMemory) SetRecallQuery(q string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recallQuery = q
}

// RecallQuery returns the current recall query.
func (m *WorkingMemory) RecallQuery() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recallQuery
}

// RecordInteraction appends a model interaction to the current turn.
func (m *WorkingMemory) RecordInteraction(i domain.Interaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, i)
}

// DrainInteractions returns the interactions of the current turn in the order
// they were recorded and resets the list.
func (m *WorkingMemory) DrainInteractions() []domain.Interaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.interactions
	m.interactions = nil
	if out == nil {
		out = []domain.Interaction{}
	}
	return out
}
