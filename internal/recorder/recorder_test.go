package recorder

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
	"github.com/tjfontaine/agentgate/internal/server"
	"github.com/tjfontaine/agentgate/internal/storage/memory"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testInteraction(t *testing.T) domain.Interaction {
	t.Helper()
	i, err := domain.NewLLMInteraction(domain.LLMParams{Source: "main", Prompt: "p", Reply: "r", EndedAt: t0}, t0)
	if err != nil {
		t.Fatal(err)
	}
	return i
}

func TestRecorder_Record(t *testing.T) {
	store := memory.New()
	r := New(store, 0, nil)

	ctx := server.WithRequestID(context.Background(), "req-42")
	id := r.Record(ctx, Meta{UserID: "u1", Model: "gpt-4o-mini"}, testInteraction(t))
	if !strings.HasPrefix(id, "mi_") {
		t.Fatalf("Record() = %q, want mi_ prefixed id", id)
	}

	rec, err := store.GetInteraction(context.Background(), id)
	if err != nil {
		t.Fatalf("GetInteraction() error = %v", err)
	}
	if rec.UserID != "u1" || rec.Model != "gpt-4o-mini" || rec.RequestID != "req-42" {
		t.Errorf("record = %+v", rec)
	}
}

func TestRecorder_SurvivesCanceledRequest(t *testing.T) {
	store := memory.New()
	r := New(store, time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if id := r.Record(ctx, Meta{UserID: "u1"}, testInteraction(t)); id == "" {
		t.Error("Record() with canceled request context should still persist")
	}
}

type failingStore struct {
	ports.InteractionStore
}

func (failingStore) SaveInteraction(context.Context, *ports.InteractionRecord) error {
	return errors.New("disk full")
}

func TestRecorder_LogsFailures(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	r := New(failingStore{}, 0, logger)

	if id := r.Record(context.Background(), Meta{UserID: "u1"}, testInteraction(t)); id != "" {
		t.Errorf("Record() = %q, want empty id on failure", id)
	}
	if !strings.Contains(logs.String(), "disk full") {
		t.Errorf("log output missing error: %s", logs.String())
	}
}

func TestRecorder_NilStore(t *testing.T) {
	r := New(nil, 0, nil)
	if id := r.Record(context.Background(), Meta{UserID: "u1"}, testInteraction(t)); id != "" {
		t.Errorf("Record() = %q, want empty", id)
	}

	var nilRecorder *Recorder
	if id := nilRecorder.Record(context.Background(), Meta{}, testInteraction(t)); id != "" {
		t.Errorf("nil Recorder Record() = %q, want empty", id)
	}
}
