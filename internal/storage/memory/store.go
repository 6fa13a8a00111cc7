// Package memory is an in-memory implementation of ports.InteractionStore and
// ports.MemoryStore.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tjfontaine/agentgate/internal/storage"
)

// Store keeps interaction records in memory. Records are copied on the way in
// and out.
type Store struct {
	mu      sync.RWMutex
	records map[string]*entry
	points  map[string]*pointEntry
	seq     uint64
}

type pointEntry struct {
	point *storage.MemoryPoint
	seq   uint64
}

type entry struct {
	rec *storage.InteractionRecord
	seq uint64
}

var (
	_ storage.InteractionStore = (*Store)(nil)
	_ storage.MemoryStore      = (*Store)(nil)
)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		records: make(map[string]*entry),
		points:  make(map[string]*pointEntry),
	}
}

func (s *Store) SaveInteraction(ctx context.Context, rec *storage.InteractionRecord) error {
	if err := storage.PrepareRecord(rec, time.Now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("interaction %s already exists", rec.ID)
	}

	s.seq++
	s.records[rec.ID] = &entry{rec: storage.CloneRecord(rec), seq: s.seq}
	return nil
}

func (s *Store) GetInteraction(ctx context.Context, id string) (*storage.InteractionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.records[id]
	if !exists {
		return nil, fmt.Errorf("interaction %s: %w", id, storage.ErrNotFound)
	}
	return storage.CloneRecord(e.rec), nil
}

// ListInteractions returns matching records, newest first. Records created at
// the same instant come back in reverse insertion order.
func (s *Store) ListInteractions(ctx context.Context, opts storage.InteractionListOptions) ([]*storage.InteractionRecord, error) {
	s.mu.RLock()
	var matched []*entry
	for _, e := range s.records {
		if opts.UserID != "" && e.rec.UserID != opts.UserID {
			continue
		}
		if opts.ModelType != "" && e.rec.Interaction.Kind() != opts.ModelType {
			continue
		}
		if opts.Source != "" && e.rec.Interaction.Common().Source != opts.Source {
			continue
		}
		matched = append(matched, e)
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.seq > b.seq
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*storage.InteractionRecord, len(matched))
	for i, e := range matched {
		out[i] = storage.CloneRecord(e.rec)
	}
	return out, nil
}

func (s *Store) DeleteInteractions(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.records {
		if e.rec.UserID == userID {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) SavePoint(ctx context.Context, p *storage.MemoryPoint) error {
	if err := storage.PreparePoint(p, time.Now()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.points[p.ID]; exists {
		return fmt.Errorf("memory point %s already exists", p.ID)
	}

	s.seq++
	s.points[p.ID] = &pointEntry{point: storage.ClonePoint(p), seq: s.seq}
	return nil
}

// ListPoints returns matching points in insertion order.
func (s *Store) ListPoints(ctx context.Context, opts storage.PointListOptions) ([]*storage.MemoryPoint, error) {
	matched := s.matchPoints(opts.UserID, opts.Collection)

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	return matched, nil
}

func (s *Store) SearchPoints(ctx context.Context, q storage.PointSearch) ([]storage.ScoredPoint, error) {
	return storage.RankPoints(s.matchPoints(q.UserID, q.Collection), q.Vector, q.K), nil
}

func (s *Store) DeletePoint(ctx context.Context, userID, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.points[id]
	if !exists || e.point.UserID != userID || e.point.Collection != collection {
		return fmt.Errorf("memory point %s: %w", id, storage.ErrNotFound)
	}
	delete(s.points, id)
	return nil
}

// matchPoints returns copies of the points of one user and collection,
// oldest first.
func (s *Store) matchPoints(userID, collection string) []*storage.MemoryPoint {
	s.mu.RLock()
	var matched []*pointEntry
	for _, e := range s.points {
		if e.point.UserID == userID && e.point.Collection == collection {
			matched = append(matched, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	out := make([]*storage.MemoryPoint, len(matched))
	for i, e := range matched {
		out[i] = storage.ClonePoint(e.point)
	}
	return out
}

func (s *Store) Close() error {
	return nil
}
