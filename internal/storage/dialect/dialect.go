// Package dialect provides database dialect abstractions for multi-database support.
package dialect

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	pgvector "github.com/pgvector/pgvector-go"
)

// Dialect represents a SQL database dialect.
type Dialect interface {
	// Name returns the dialect name (e.g., "sqlite", "postgres")
	Name() string

	// DriverName returns the database/sql driver name to use
	DriverName() string

	// Rebind converts ? placeholders to the dialect's format.
	// For example, PostgreSQL uses $1, $2, etc.
	Rebind(query string) string

	// TextType returns the SQL type for large text fields
	TextType() string

	// VectorType returns the SQL type of an embedding column
	VectorType() string

	// InitStatements returns statements run once per connection pool
	// (PRAGMAs for SQLite, extensions for PostgreSQL)
	InitStatements() []string

	// EncodeVector converts an embedding into a value for the vector column.
	// A nil vector encodes as NULL.
	EncodeVector(v []float64) (any, error)

	// NewVectorScanner returns a destination for scanning the vector column.
	NewVectorScanner() VectorScanner

	// NearestNeighbours returns a WHERE condition keeping rows whose vector
	// column has the bound dimension, and an ORDER BY expression ranking them
	// by cosine distance to the bound vector. Both are empty when the
	// database cannot rank vectors and the caller ranks in Go.
	NearestNeighbours(column string) (filter, order string)
}

// VectorScanner scans a vector column. Vector returns nil for NULL.
type VectorScanner interface {
	sql.Scanner
	Vector() []float64
}

// DialectType represents supported database types
type DialectType string

const (
	SQLite   DialectType = "sqlite"
	Postgres DialectType = "postgres"
)

// New creates a new Dialect based on the dialect type
func New(dialectType DialectType) (Dialect, error) {
	switch dialectType {
	case SQLite:
		return &sqliteDialect{}, nil
	case Postgres:
		return &postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialectType)
	}
}

// FromDriverName returns the dialect for a given driver name
func FromDriverName(driverName string) (Dialect, error) {
	switch strings.ToLower(driverName) {
	case "sqlite", "sqlite3":
		return &sqliteDialect{}, nil
	case "postgres", "postgresql", "pgx":
		return &postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driverName)
	}
}

// sqliteDialect implements Dialect for SQLite. Vectors are stored as JSON text.
type sqliteDialect struct{}

func (d *sqliteDialect) Name() string {
	return "sqlite"
}

func (d *sqliteDialect) DriverName() string {
	return "sqlite"
}

func (d *sqliteDialect) Rebind(query string) string {
	return query // SQLite uses ?
}

func (d *sqliteDialect) TextType() string {
	return "TEXT"
}

func (d *sqliteDialect) VectorType() string {
	return "TEXT"
}

func (d *sqliteDialect) InitStatements() []string {
	return []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
}

func (d *sqliteDialect) EncodeVector(v []float64) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode vector: %w", err)
	}
	return string(b), nil
}

func (d *sqliteDialect) NewVectorScanner() VectorScanner {
	return &jsonVector{}
}

func (d *sqliteDialect) NearestNeighbours(column string) (string, string) {
	return "", ""
}

type jsonVector struct {
	v []float64
}

func (j *jsonVector) Scan(src any) error {
	var data []byte
	switch src := src.(type) {
	case nil:
		j.v = nil
		return nil
	case string:
		data = []byte(src)
	case []byte:
		data = src
	default:
		return fmt.Errorf("unsupported vector column type %T", src)
	}
	var v []float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode vector: %w", err)
	}
	if v == nil {
		v = []float64{}
	}
	j.v = v
	return nil
}

func (j *jsonVector) Vector() []float64 {
	return j.v
}

// postgresDialect implements Dialect for PostgreSQL with the pgvector extension.
type postgresDialect struct{}

func (d *postgresDialect) Name() string {
	return "postgres"
}

func (d *postgresDialect) DriverName() string {
	return "pgx"
}

func (d *postgresDialect) Rebind(query string) string {
	// Convert ? placeholders to $1, $2, etc.
	var result strings.Builder
	idx := 1
	for _, ch := range query {
		if ch == '?' {
			result.WriteString(fmt.Sprintf("$%d", idx))
			idx++
		} else {
			result.WriteRune(ch)
		}
	}
	return result.String()
}

func (d *postgresDialect) TextType() string {
	return "TEXT"
}

func (d *postgresDialect) VectorType() string {
	return "vector"
}

func (d *postgresDialect) InitStatements() []string {
	return []string{"CREATE EXTENSION IF NOT EXISTS vector"}
}

// EncodeVector narrows to float32, the precision pgvector stores.
func (d *postgresDialect) EncodeVector(v []float64) (any, error) {
	if v == nil {
		return nil, nil
	}
	f32 := make([]float32, len(v))
	for i, x := range v {
		f32[i] = float32(x)
	}
	return pgvector.NewVector(f32), nil
}

func (d *postgresDialect) NewVectorScanner() VectorScanner {
	return &pgVector{}
}

// NearestNeighbours uses pgvector's cosine distance operator. The column is
// unsized, so rows of another dimension are filtered out first.
func (d *postgresDialect) NearestNeighbours(column string) (string, string) {
	return fmt.Sprintf("vector_dims(%s) = ?", column), fmt.Sprintf("%s <=> ?", column)
}

type pgVector struct {
	vec   pgvector.Vector
	valid bool
}

func (p *pgVector) Scan(src any) error {
	if src == nil {
		p.valid = false
		return nil
	}
	if err := p.vec.Scan(src); err != nil {
		return err
	}
	p.valid = true
	return nil
}

func (p *pgVector) Vector() []float64 {
	if !p.valid {
		return nil
	}
	f32 := p.vec.Slice()
	out := make([]float64, len(f32))
	for i, x := range f32 {
		out[i] = float64(x)
	}
	return out
}
