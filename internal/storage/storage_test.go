package storage

import (
	"math"
	"testing"
	"time"

	"github.com/tjfontaine/agentgate/internal/core/domain"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestPrepareRecord(t *testing.T) {
	inter, err := domain.NewLLMInteraction(domain.LLMParams{Source: "main", EndedAt: t0}, t0)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		rec     *InteractionRecord
		wantErr bool
	}{
		{"nil record", nil, true},
		{"no interaction", &InteractionRecord{UserID: "u1"}, true},
		{"no user", &InteractionRecord{Interaction: inter}, true},
		{"complete", &InteractionRecord{UserID: "u1", Interaction: inter}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PrepareRecord(tt.rec, t0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PrepareRecord() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.rec.ID == "" {
				t.Error("PrepareRecord() left ID empty")
			}
			if !tt.rec.CreatedAt.Equal(t0) {
				t.Errorf("CreatedAt = %v, want %v", tt.rec.CreatedAt, t0)
			}
		})
	}
}

func TestPrepareRecord_KeepsExisting(t *testing.T) {
	inter, _ := domain.NewLLMInteraction(domain.LLMParams{Source: "main", EndedAt: t0}, t0)
	created := t0.Add(-time.Hour)
	rec := &InteractionRecord{ID: "keep", UserID: "u1", Interaction: inter, CreatedAt: created}

	if err := PrepareRecord(rec, t0); err != nil {
		t.Fatalf("PrepareRecord() error = %v", err)
	}
	if rec.ID != "keep" || !rec.CreatedAt.Equal(created) {
		t.Errorf("PrepareRecord() = %+v, want id and created_at kept", rec)
	}
}

func TestCloneRecord(t *testing.T) {
	inter, err := domain.NewEmbedderInteraction(domain.EmbedderParams{Reply: []float64{1, 2}}, t0)
	if err != nil {
		t.Fatal(err)
	}
	rec := &InteractionRecord{ID: "a", UserID: "u1", Interaction: inter}

	clone := CloneRecord(rec)
	inter.Reply[0] = 42

	got := clone.Interaction.(domain.EmbedderInteraction).Reply
	if got[0] != 1 {
		t.Errorf("clone Reply[0] = %v, want 1", got[0])
	}
}

func TestPreparePoint(t *testing.T) {
	tests := []struct {
		name    string
		point   *MemoryPoint
		wantErr bool
	}{
		{"nil point", nil, true},
		{"no user", &MemoryPoint{Collection: "episodic", Vector: []float64{1}}, true},
		{"unknown collection", &MemoryPoint{UserID: "u1", Collection: "procedural", Vector: []float64{1}}, true},
		{"no vector", &MemoryPoint{UserID: "u1", Collection: "episodic"}, true},
		{"complete", &MemoryPoint{UserID: "u1", Collection: "declarative", Vector: []float64{1}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PreparePoint(tt.point, t0)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PreparePoint() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if tt.point.ID == "" || tt.point.Metadata == nil || !tt.point.CreatedAt.Equal(t0) {
				t.Errorf("PreparePoint() = %+v, want id, metadata and created_at set", tt.point)
			}
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"same direction", []float64{1, 2}, []float64{2, 4}, 1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"length mismatch", []float64{1}, []float64{1, 0}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cosine(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRankPoints(t *testing.T) {
	points := []*MemoryPoint{
		{ID: "far", Vector: []float64{0, 1}},
		{ID: "near", Vector: []float64{1, 0.1}},
		{ID: "other-dim", Vector: []float64{1, 0, 0}},
		{ID: "mid", Vector: []float64{1, 1}},
	}

	got := RankPoints(points, []float64{1, 0}, 2)
	if len(got) != 2 {
		t.Fatalf("len(RankPoints()) = %d, want 2", len(got))
	}
	if got[0].ID != "near" || got[1].ID != "mid" {
		t.Errorf("RankPoints() order = %s, %s, want near, mid", got[0].ID, got[1].ID)
	}
	if all := RankPoints(points, []float64{1, 0}, 0); len(all) != 3 {
		t.Errorf("len(RankPoints(k=0)) = %d, want 3", len(all))
	}
}
