package sqldb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/storage"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func llmRecord(t *testing.T, user string, created time.Time) *storage.InteractionRecord {
	t.Helper()
	inter, err := domain.NewLLMInteraction(domain.LLMParams{
		Source: "main", Prompt: "hi", InputTokens: 3, Reply: "meow", OutputTokens: 1,
		StartedAt: t0, EndedAt: t0.Add(1500 * time.Millisecond),
	}, t0)
	require.NoError(t, err)
	return &storage.InteractionRecord{UserID: user, Model: "gpt-4o-mini", Interaction: inter, CreatedAt: created}
}

func embedderRecord(t *testing.T, user string, created time.Time) *storage.InteractionRecord {
	t.Helper()
	inter, err := domain.NewEmbedderInteraction(domain.EmbedderParams{
		Prompt: "hi", InputTokens: 1, Reply: []float64{0.5, -0.25}, StartedAt: t0,
	}, t0)
	require.NoError(t, err)
	return &storage.InteractionRecord{UserID: user, RequestID: "req-1", Interaction: inter, CreatedAt: created}
}

func TestSQLDBStore_SaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := llmRecord(t, "u1", t0)
	require.NoError(t, store.SaveInteraction(ctx, rec))
	require.NotEmpty(t, rec.ID, "SaveInteraction should assign an id")

	got, err := store.GetInteraction(ctx, rec.ID)
	require.NoError(t, err)

	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.True(t, got.CreatedAt.Equal(t0))

	llm, ok := got.Interaction.(domain.LLMInteraction)
	require.True(t, ok, "got %T, want LLMInteraction", got.Interaction)
	assert.Equal(t, "meow", llm.Reply)
	assert.Equal(t, 1, llm.OutputTokens)
	assert.Equal(t, 1500*time.Millisecond, llm.Duration())
	assert.True(t, llm.StartedAt.Equal(t0))
}

func TestSQLDBStore_EmbedderVector(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := embedderRecord(t, "u1", t0)
	require.NoError(t, store.SaveInteraction(ctx, rec))

	got, err := store.GetInteraction(ctx, rec.ID)
	require.NoError(t, err)

	emb, ok := got.Interaction.(domain.EmbedderInteraction)
	require.True(t, ok, "got %T, want EmbedderInteraction", got.Interaction)
	assert.Equal(t, []float64{0.5, -0.25}, emb.Reply)
	assert.Equal(t, "recall", emb.Source)
	assert.Equal(t, "req-1", got.RequestID)
}

func TestSQLDBStore_GetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetInteraction(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLDBStore_ListInteractions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveInteraction(ctx, llmRecord(t, "u1", t0.Add(time.Duration(i)*time.Second))))
	}
	require.NoError(t, store.SaveInteraction(ctx, embedderRecord(t, "u1", t0.Add(10*time.Second))))
	require.NoError(t, store.SaveInteraction(ctx, llmRecord(t, "u2", t0)))

	tests := []struct {
		name  string
		opts  storage.InteractionListOptions
		count int
		first domain.ModelType
	}{
		{"all for user, newest first", storage.InteractionListOptions{UserID: "u1"}, 4, domain.ModelTypeEmbedder},
		{"by type", storage.InteractionListOptions{UserID: "u1", ModelType: domain.ModelTypeLLM}, 3, domain.ModelTypeLLM},
		{"by source", storage.InteractionListOptions{Source: "recall"}, 1, domain.ModelTypeEmbedder},
		{"limit", storage.InteractionListOptions{UserID: "u1", Limit: 2}, 2, domain.ModelTypeEmbedder},
		{"offset only", storage.InteractionListOptions{UserID: "u1", Offset: 1}, 3, domain.ModelTypeLLM},
		{"everyone", storage.InteractionListOptions{}, 5, domain.ModelTypeEmbedder},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListInteractions(ctx, tt.opts)
			require.NoError(t, err)
			require.Len(t, got, tt.count)
			assert.Equal(t, tt.first, got[0].Interaction.Kind())
			for i := 1; i < len(got); i++ {
				assert.False(t, got[i].CreatedAt.After(got[i-1].CreatedAt), "records not newest first")
			}
		})
	}
}

func TestSQLDBStore_DeleteInteractions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveInteraction(ctx, llmRecord(t, "u1", t0)))
	require.NoError(t, store.SaveInteraction(ctx, embedderRecord(t, "u1", t0)))
	require.NoError(t, store.SaveInteraction(ctx, llmRecord(t, "u2", t0)))

	n, err := store.DeleteInteractions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := store.ListInteractions(ctx, storage.InteractionListOptions{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "u2", left[0].UserID)
}

func TestSQLDBStore_SaveRejectsIncompleteRecords(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.SaveInteraction(ctx, &storage.InteractionRecord{UserID: "u1"}))
	rec := llmRecord(t, "", t0)
	assert.Error(t, store.SaveInteraction(ctx, rec))
}

func TestSQLDBStore_DuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := llmRecord(t, "u1", t0)
	rec.ID = "fixed"
	require.NoError(t, store.SaveInteraction(ctx, rec))

	dup := llmRecord(t, "u1", t0)
	dup.ID = "fixed"
	assert.Error(t, store.SaveInteraction(ctx, dup))
}

func TestNew_UnsupportedDriver(t *testing.T) {
	_, err := New(Config{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestSQLDBStore_Points(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	save := func(user, collection, content string, created time.Time, vector ...float64) *storage.MemoryPoint {
		p := &storage.MemoryPoint{
			UserID: user, Collection: collection, Content: content, Vector: vector,
			Metadata: map[string]any{"source": user}, CreatedAt: created,
		}
		require.NoError(t, store.SavePoint(ctx, p))
		return p
	}
	first := save("u1", "episodic", "hello", t0, 1, 0)
	save("u1", "episodic", "goodbye", t0.Add(time.Second), 0, 1)
	save("u1", "episodic", "wider", t0.Add(2*time.Second), 1, 0, 0)
	save("u2", "episodic", "not yours", t0, 1, 0)

	list, err := store.ListPoints(ctx, storage.PointListOptions{UserID: "u1", Collection: "episodic"})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "hello", list[0].Content)
	assert.Equal(t, map[string]any{"source": "u1"}, list[0].Metadata)
	assert.Equal(t, []float64{1, 0}, list[0].Vector)
	assert.True(t, list[0].CreatedAt.Equal(t0))

	page, err := store.ListPoints(ctx, storage.PointListOptions{UserID: "u1", Collection: "episodic", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "goodbye", page[0].Content)

	hits, err := store.SearchPoints(ctx, storage.PointSearch{UserID: "u1", Collection: "episodic", Vector: []float64{0.9, 0.1}, K: 5})
	require.NoError(t, err)
	require.Len(t, hits, 2, "points of another dimension are skipped")
	assert.Equal(t, first.ID, hits[0].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	declarative, err := store.ListPoints(ctx, storage.PointListOptions{UserID: "u1", Collection: "declarative"})
	require.NoError(t, err)
	assert.Empty(t, declarative)

	assert.ErrorIs(t, store.DeletePoint(ctx, "u2", "episodic", first.ID), storage.ErrNotFound)
	require.NoError(t, store.DeletePoint(ctx, "u1", "episodic", first.ID))
	assert.ErrorIs(t, store.DeletePoint(ctx, "u1", "episodic", first.ID), storage.ErrNotFound)
}
