// Package storage holds what the interaction store implementations share.
package storage

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/core/ports"
)

// Re-export storage interfaces and types from core/ports for convenience.
type (
	InteractionStore       = ports.InteractionStore
	InteractionRecord      = ports.InteractionRecord
	InteractionListOptions = ports.InteractionListOptions
	MemoryStore            = ports.MemoryStore
	MemoryPoint            = ports.MemoryPoint
	ScoredPoint            = ports.ScoredPoint
	PointListOptions       = ports.PointListOptions
	PointSearch            = ports.PointSearch
)

// ErrNotFound is returned (wrapped) when a record does not exist.
var ErrNotFound = ports.ErrNotFound

// PrepareRecord validates rec and fills in its ID and CreatedAt when unset.
func PrepareRecord(rec *InteractionRecord, now time.Time) error {
	if rec == nil {
		return errors.New("interaction record is nil")
	}
	if rec.Interaction == nil {
		return errors.New("interaction record has no interaction")
	}
	if rec.UserID == "" {
		return errors.New("interaction record has no user id")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	return nil
}

// CloneInteraction returns a copy of i that shares no mutable state.
func CloneInteraction(i domain.Interaction) domain.Interaction {
	if emb, ok := i.(domain.EmbedderInteraction); ok && emb.Reply != nil {
		emb.Reply = append([]float64(nil), emb.Reply...)
		return emb
	}
	return i
}

// CloneRecord returns a deep copy of rec.
func CloneRecord(rec *InteractionRecord) *InteractionRecord {
	out := *rec
	out.Interaction = CloneInteraction(rec.Interaction)
	return &out
}

// PreparePoint validates p and fills in its ID, CreatedAt and Metadata when
// unset.
func PreparePoint(p *MemoryPoint, now time.Time) error {
	if p == nil {
		return errors.New("memory point is nil")
	}
	if p.UserID == "" {
		return errors.New("memory point has no user id")
	}
	if !ports.ValidCollection(p.Collection) {
		return fmt.Errorf("unknown collection %q", p.Collection)
	}
	if len(p.Vector) == 0 {
		return errors.New("memory point has no vector")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	return nil
}

// ClonePoint returns a deep copy of p.
func ClonePoint(p *MemoryPoint) *MemoryPoint {
	out := *p
	out.Vector = append([]float64(nil), p.Vector...)
	out.Metadata = maps.Clone(p.Metadata)
	return &out
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either is zero.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankPoints scores points against vector and keeps the best k. Points of a
// different dimension are skipped. k <= 0 keeps all.
func RankPoints(points []*MemoryPoint, vector []float64, k int) []ScoredPoint {
	scored := make([]ScoredPoint, 0, len(points))
	for _, p := range points {
		if len(p.Vector) != len(vector) {
			continue
		}
		scored = append(scored, ScoredPoint{MemoryPoint: *p, Score: Cosine(vector, p.Vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
