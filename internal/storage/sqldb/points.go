package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tjfontaine/agentgate/internal/storage"
)

const selectPointColumns = `SELECT id, user_id, collection, content, metadata, vector, created_at
	FROM memory_points`

// SavePoint inserts p, assigning an ID and creation time when unset.
func (s *Store) SavePoint(ctx context.Context, p *storage.MemoryPoint) error {
	if err := storage.PreparePoint(p, time.Now()); err != nil {
		return err
	}

	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	vector, err := s.dialect.EncodeVector(p.Vector)
	if err != nil {
		return err
	}

	query := s.dialect.Rebind(`INSERT INTO memory_points (
		id, user_id, collection, content, metadata, vector, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, query,
		p.ID, p.UserID, p.Collection, p.Content, string(metadata), vector, p.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("failed to save memory point: %w", err)
	}
	return nil
}

// ListPoints returns matching points, oldest first.
func (s *Store) ListPoints(ctx context.Context, opts storage.PointListOptions) ([]*storage.MemoryPoint, error) {
	query := selectPointColumns + ` WHERE user_id = ? AND collection = ? ORDER BY created_at, id`
	args := []any{opts.UserID, opts.Collection}

	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}
	return s.queryPoints(ctx, query, args...)
}

// SearchPoints ranks in the database when the dialect can, and in Go
// otherwise.
func (s *Store) SearchPoints(ctx context.Context, q storage.PointSearch) ([]storage.ScoredPoint, error) {
	filter, order := s.dialect.NearestNeighbours("vector")
	if order == "" {
		points, err := s.ListPoints(ctx, storage.PointListOptions{UserID: q.UserID, Collection: q.Collection})
		if err != nil {
			return nil, err
		}
		return storage.RankPoints(points, q.Vector, q.K), nil
	}

	vector, err := s.dialect.EncodeVector(q.Vector)
	if err != nil {
		return nil, err
	}
	where := []string{"user_id = ?", "collection = ?", filter}
	args := []any{q.UserID, q.Collection, len(q.Vector), vector}
	query := selectPointColumns + " WHERE " + strings.Join(where, " AND ") + " ORDER BY " + order
	if q.K > 0 {
		query += " LIMIT ?"
		args = append(args, q.K)
	}

	points, err := s.queryPoints(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return storage.RankPoints(points, q.Vector, 0), nil
}

// DeletePoint removes one point of userID in collection.
func (s *Store) DeletePoint(ctx context.Context, userID, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		s.dialect.Rebind(`DELETE FROM memory_points WHERE id = ? AND user_id = ? AND collection = ?`),
		id, userID, collection)
	if err != nil {
		return fmt.Errorf("failed to delete memory point: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted memory points: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("memory point %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

func (s *Store) queryPoints(ctx context.Context, query string, args ...any) ([]*storage.MemoryPoint, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query memory points: %w", err)
	}
	defer rows.Close()

	var points []*storage.MemoryPoint
	for rows.Next() {
		p, err := s.scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query memory points: %w", err)
	}
	return points, nil
}

func (s *Store) scanPoint(rows *sql.Rows) (*storage.MemoryPoint, error) {
	var (
		p         storage.MemoryPoint
		metadata  string
		createdAt int64
	)
	vector := s.dialect.NewVectorScanner()

	if err := rows.Scan(&p.ID, &p.UserID, &p.Collection, &p.Content, &metadata, vector, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan memory point: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
		return nil, fmt.Errorf("memory point %s: decode metadata: %w", p.ID, err)
	}
	p.Vector = vector.Vector()
	p.CreatedAt = time.Unix(0, createdAt)
	return &p, nil
}
