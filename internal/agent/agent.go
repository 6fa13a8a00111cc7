// Package agent runs one conversational turn: it embeds the user's text as a
// recall query, recalls related episodic memories, asks the language model
// for a reply, and records every model call it makes.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/agentgate/internal/convo"
	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/recorder"
	"github.com/tjfontaine/agentgate/internal/telemetry"
	"github.com/tjfontaine/agentgate/internal/tokens"
)

const (
	// SourceRecall tags the embedding of the recall query.
	SourceRecall = domain.DefaultEmbedderSource
	// SourceMain tags the call that produces the reply.
	SourceMain = "main"

	// DefaultPreamble is the system prompt used when none is configured.
	DefaultPreamble = "You are a curious, playful assistant. Answer the Human briefly and stay on topic."

	// DefaultHistoryWindow is how many history entries go into the prompt.
	DefaultHistoryWindow = 10

	// DefaultRecallK is how many episodic memories are recalled per turn.
	DefaultRecallK = 3
)

// Agent turns a user message into a chat reply.
type Agent struct {
	llm           ports.LLM
	embedder      ports.Embedder
	counter       *tokens.Registry
	recorder      *recorder.Recorder
	memory        ports.MemoryStore
	preamble      string
	historyWindow int
	recallK       int
	logger        *slog.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

// Option configures an Agent.
type Option func(*Agent)

// WithRecorder persists every interaction through r.
func WithRecorder(r *recorder.Recorder) Option {
	return func(a *Agent) { a.recorder = r }
}

// WithMemory recalls episodic memories from store and saves every human turn
// into it.
func WithMemory(store ports.MemoryStore) Option {
	return func(a *Agent) { a.memory = store }
}

// WithRecallK caps the episodic memories recalled per turn.
func WithRecallK(k int) Option {
	return func(a *Agent) {
		if k > 0 {
			a.recallK = k
		}
	}
}

// WithTokenCounter sets the fallback token counter used when a provider does
// not report usage.
func WithTokenCounter(r *tokens.Registry) Option {
	return func(a *Agent) { a.counter = r }
}

// WithPreamble sets the system prompt.
func WithPreamble(p string) Option {
	return func(a *Agent) {
		if p != "" {
			a.preamble = p
		}
	}
}

// WithHistoryWindow caps the history entries sent to the model.
func WithHistoryWindow(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.historyWindow = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Agent) {
		if now != nil {
			a.now = now
		}
	}
}

// New creates an agent over the given models.
func New(llm ports.LLM, embedder ports.Embedder, opts ...Option) *Agent {
	a := &Agent{
		llm:           llm,
		embedder:      embedder,
		counter:       tokens.NewRegistry(),
		preamble:      DefaultPreamble,
		historyWindow: DefaultHistoryWindow,
		recallK:       DefaultRecallK,
		logger:        slog.Default(),
		tracer:        telemetry.Tracer(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes one turn of userID's session for msg. The human turn must
// already be in mem's history; the caller records the reply. Records and the
// reply belong to userID whatever msg carries.
func (a *Agent) Run(ctx context.Context, userID string, msg domain.UserMessage, mem *convo.WorkingMemory) (*domain.ChatMessage, error) {
	ctx, span := a.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("user_id", userID),
	))
	defer span.End()

	// Leftovers of a failed turn do not belong to this one.
	mem.DrainInteractions()
	mem.SetUserMessage(msg)
	mem.SetRecallQuery(msg.Text)

	recalled, err := a.recall(ctx, userID, msg, mem)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recall failed")
		mem.DrainInteractions()
		return nil, err
	}

	reply, err := a.complete(ctx, userID, recalled, mem)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		mem.DrainInteractions()
		return nil, err
	}

	memory := map[string]any{"recall_query": mem.RecallQuery()}
	if a.memory != nil {
		memory[ports.CollectionEpisodic] = recalled
	}
	why := &domain.MessageWhy{
		Input:             msg.Text,
		IntermediateSteps: []any{},
		Memory:            memory,
		ModelInteractions: mem.DrainInteractions(),
	}
	return domain.NewChatMessage(userID, reply, why), nil
}

// recall embeds the recall query, looks up the closest episodic memories and
// then saves the human turn as a new one.
func (a *Agent) recall(ctx context.Context, userID string, msg domain.UserMessage, mem *convo.WorkingMemory) ([]ports.ScoredPoint, error) {
	ctx, span := a.tracer.Start(ctx, "agent.recall")
	defer span.End()

	model := a.embedder.ModelName()
	started := a.now()
	resp, err := a.embedder.Embed(ctx, msg.Text)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embed recall query: %w", err)
	}

	inputTokens := resp.PromptTokens
	if !resp.UsageReported {
		inputTokens = a.countText(model, msg.Text)
	}

	inter, err := domain.NewEmbedderInteraction(domain.EmbedderParams{
		Source:      SourceRecall,
		Prompt:      msg.Text,
		InputTokens: inputTokens,
		Reply:       resp.Vector,
		StartedAt:   started,
	}, started)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("model", model),
		attribute.Int("dimensions", inter.Dimensions()),
		attribute.Int("input_tokens", inputTokens),
	)

	a.track(ctx, userID, modelOr(resp.Model, model), inter, mem)

	recalled := []ports.ScoredPoint{}
	if a.memory == nil || len(resp.Vector) == 0 {
		return recalled, nil
	}

	hits, err := a.memory.SearchPoints(ctx, ports.PointSearch{
		UserID:     userID,
		Collection: ports.CollectionEpisodic,
		Vector:     resp.Vector,
		K:          a.recallK,
	})
	if err != nil {
		a.logger.WarnContext(ctx, "episodic recall failed", slog.String("user_id", userID), slog.String("error", err.Error()))
	} else {
		for _, h := range hits {
			h.Vector = nil
			recalled = append(recalled, h)
		}
	}
	span.SetAttributes(attribute.Int("recalled", len(recalled)))

	point := &ports.MemoryPoint{
		UserID:     userID,
		Collection: ports.CollectionEpisodic,
		Content:    msg.Text,
		Vector:     resp.Vector,
		Metadata:   map[string]any{"source": userID, "when": float64(started.UnixMicro()) / 1e6},
	}
	if err := a.memory.SavePoint(ctx, point); err != nil {
		a.logger.WarnContext(ctx, "failed to save episodic memory", slog.String("user_id", userID), slog.String("error", err.Error()))
	}
	return recalled, nil
}

func (a *Agent) complete(ctx context.Context, userID string, recalled []ports.ScoredPoint, mem *convo.WorkingMemory) (string, error) {
	ctx, span := a.tracer.Start(ctx, "agent.complete")
	defer span.End()

	turns := a.buildPrompt(mem.RecentHistory(a.historyWindow), recalled)
	model := a.llm.ModelName()

	started := a.now()
	resp, err := a.llm.Complete(ctx, &ports.CompletionRequest{Messages: turns})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("complete: %w", err)
	}
	ended := a.now()

	inputTokens, outputTokens := resp.PromptTokens, resp.CompletionTokens
	if !resp.UsageReported {
		inputTokens = a.countChat(model, turns)
		outputTokens = a.countText(model, resp.Content)
	}
	span.SetAttributes(
		attribute.String("model", modelOr(resp.Model, model)),
		attribute.Int("input_tokens", inputTokens),
		attribute.Int("output_tokens", outputTokens),
	)

	inter, err := domain.NewLLMInteraction(domain.LLMParams{
		Source:       SourceMain,
		Prompt:       RenderPrompt(turns),
		InputTokens:  inputTokens,
		Reply:        resp.Content,
		OutputTokens: outputTokens,
		StartedAt:    started,
		EndedAt:      ended,
	}, started)
	if err != nil {
		return "", err
	}

	a.track(ctx, userID, modelOr(resp.Model, model), inter, mem)
	return resp.Content, nil
}

// track keeps i on the turn's working memory and persists it.
func (a *Agent) track(ctx context.Context, userID, model string, i domain.Interaction, mem *convo.WorkingMemory) {
	mem.RecordInteraction(i)
	a.recorder.Record(ctx, recorder.Meta{UserID: userID, Model: model}, i)
}

// buildPrompt turns the preamble, recalled memories and history into chat
// turns.
func (a *Agent) buildPrompt(history []domain.HistoryEntry, recalled []ports.ScoredPoint) []ports.ChatTurn {
	turns := make([]ports.ChatTurn, 0, len(history)+2)
	if a.preamble != "" {
		turns = append(turns, ports.ChatTurn{Role: ports.ChatRoleSystem, Content: a.preamble})
	}
	if len(recalled) > 0 {
		var b strings.Builder
		b.WriteString("Context of things the Human said in the past:")
		for _, p := range recalled {
			b.WriteString("\n - ")
			b.WriteString(p.Content)
		}
		turns = append(turns, ports.ChatTurn{Role: ports.ChatRoleSystem, Content: b.String()})
	}
	for _, h := range history {
		if h.Content == nil {
			continue
		}
		role := ports.ChatRoleUser
		if h.Role() == domain.RoleAI {
			role = ports.ChatRoleAssistant
		}
		turns = append(turns, ports.ChatTurn{Role: role, Content: h.Content.Body()})
	}
	return turns
}

// RenderPrompt flattens chat turns into the text stored on an LLM interaction.
func RenderPrompt(turns []ports.ChatTurn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n")
		}
		switch t.Role {
		case ports.ChatRoleSystem:
			b.WriteString("System: ")
		case ports.ChatRoleAssistant:
			b.WriteString(string(domain.RoleAI) + ": ")
		default:
			b.WriteString(string(domain.RoleHuman) + ": ")
		}
		b.WriteString(t.Content)
	}
	return b.String()
}

func (a *Agent) countText(model, text string) int {
	n, err := a.counter.CountText(model, text)
	if err != nil {
		a.logger.Warn("token count failed", slog.String("model", model), slog.String("error", err.Error()))
		return 0
	}
	return n
}

func (a *Agent) countChat(model string, turns []ports.ChatTurn) int {
	n, err := a.counter.CountChat(model, turns)
	if err != nil {
		a.logger.Warn("token count failed", slog.String("model", model), slog.String("error", err.Error()))
		return 0
	}
	return n
}

func modelOr(reported, configured string) string {
	if reported != "" {
		return reported
	}
	return configured
}
