package ports

import (
	"context"
	"time"
)

// Memory collections a point can live in.
const (
	CollectionEpisodic    = "episodic"
	CollectionDeclarative = "declarative"
)

// Collections lists the writable memory collections.
var Collections = []string{CollectionEpisodic, CollectionDeclarative}

// ValidCollection reports whether name is a known collection.
func ValidCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// MemoryPoint is one embedded piece of text kept in long term memory.
type MemoryPoint struct {
	ID         string         `json:"id"`
	UserID     string         `json:"-"`
	Collection string         `json:"collection"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Vector     []float64      `json:"vector,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ScoredPoint is a search hit. Score is the cosine similarity to the query.
type ScoredPoint struct {
	MemoryPoint
	Score float64 `json:"score"`
}

// PointListOptions filters ListPoints.
type PointListOptions struct {
	UserID     string
	Collection string
	Limit      int
	Offset     int
}

// PointSearch is a nearest neighbour query.
type PointSearch struct {
	UserID     string
	Collection string
	Vector     []float64
	K          int
}

// MemoryStore persists memory points and finds the ones closest to a vector.
type MemoryStore interface {
	SavePoint(ctx context.Context, p *MemoryPoint) error

	// ListPoints returns matching points, oldest first.
	ListPoints(ctx context.Context, opts PointListOptions) ([]*MemoryPoint, error)

	// SearchPoints returns at most K points of the same dimension as Vector,
	// most similar first.
	SearchPoints(ctx context.Context, q PointSearch) ([]ScoredPoint, error)

	// DeletePoint removes one point. A point of another user or collection
	// is reported as ErrNotFound.
	DeletePoint(ctx context.Context, userID, collection, id string) error
}
