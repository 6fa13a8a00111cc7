// Package sqldb is a SQL implementation of ports.InteractionStore and
// ports.MemoryStore supporting SQLite and PostgreSQL.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/agentgate/internal/core/domain"
	"github.com/tjfontaine/agentgate/internal/storage"
	"github.com/tjfontaine/agentgate/internal/storage/dialect"
)

// Store persists model interactions in a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect dialect.Dialect
}

var (
	_ storage.InteractionStore = (*Store)(nil)
	_ storage.MemoryStore      = (*Store)(nil)
)

// Config holds database connection configuration
type Config struct {
	Driver string // Driver name: sqlite, postgres
	DSN    string // Data source name / connection string
}

// New creates a new SQL store with the specified configuration.
func New(cfg Config) (*Store, error) {
	d, err := dialect.FromDriverName(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("unsupported database driver: %w", err)
	}

	db, err := sqlx.Open(d.DriverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Run dialect-specific initialization (e.g., PRAGMA for SQLite)
	for _, stmt := range d.InitStatements() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute init statement %q: %w", stmt, err)
		}
	}

	store := &Store{db: db, dialect: d}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLite creates a new SQLite store.
func NewSQLite(dbPath string) (*Store, error) {
	return New(Config{Driver: "sqlite", DSN: dbPath})
}

// NewPostgres creates a new PostgreSQL store. The pgvector extension must be
// installable by the connecting role.
func NewPostgres(dsn string) (*Store, error) {
	return New(Config{Driver: "postgres", DSN: dsn})
}

// Timestamps are stored as integers: started_at/ended_at in microseconds,
// created_at in nanoseconds so listing order is stable.
func (s *Store) initSchema() error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS model_interactions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	request_id TEXT,
	model TEXT,
	model_type TEXT NOT NULL,
	source TEXT NOT NULL,
	prompt %[1]s NOT NULL,
	input_tokens INTEGER NOT NULL,
	output_tokens INTEGER,
	reply_text %[1]s,
	reply_vector %[2]s,
	started_at BIGINT NOT NULL,
	ended_at BIGINT,
	created_at BIGINT NOT NULL
)`, s.dialect.TextType(), s.dialect.VectorType()),
		`CREATE INDEX IF NOT EXISTS idx_model_interactions_user ON model_interactions(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_model_interactions_type ON model_interactions(model_type)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS memory_points (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	collection TEXT NOT NULL,
	content %[1]s NOT NULL,
	metadata %[1]s NOT NULL,
	vector %[2]s NOT NULL,
	created_at BIGINT NOT NULL
)`, s.dialect.TextType(), s.dialect.VectorType()),
		`CREATE INDEX IF NOT EXISTS idx_memory_points_user ON memory_points(user_id, collection, created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// SaveInteraction inserts rec, assigning an ID and creation time when unset.
func (s *Store) SaveInteraction(ctx context.Context, rec *storage.InteractionRecord) error {
	if err := storage.PrepareRecord(rec, time.Now()); err != nil {
		return err
	}

	common := rec.Interaction.Common()

	var (
		outputTokens sql.NullInt64
		replyText    sql.NullString
		endedAt      sql.NullInt64
		vector       []float64
	)
	switch i := rec.Interaction.(type) {
	case domain.LLMInteraction:
		outputTokens = sql.NullInt64{Int64: int64(i.OutputTokens), Valid: true}
		replyText = sql.NullString{String: i.Reply, Valid: true}
		endedAt = sql.NullInt64{Int64: i.EndedAt.UnixMicro(), Valid: true}
	case domain.EmbedderInteraction:
		vector = i.Reply
		if vector == nil {
			vector = []float64{}
		}
	default:
		return fmt.Errorf("unsupported interaction type %T", rec.Interaction)
	}

	encoded, err := s.dialect.EncodeVector(vector)
	if err != nil {
		return err
	}

	query := s.dialect.Rebind(`INSERT INTO model_interactions (
		id, user_id, request_id, model, model_type, source, prompt, input_tokens,
		output_tokens, reply_text, reply_vector, started_at, ended_at, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.UserID, rec.RequestID, rec.Model, string(common.Type), common.Source,
		common.Prompt, common.InputTokens, outputTokens, replyText, encoded,
		common.StartedAt.UnixMicro(), endedAt, rec.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, user_id, request_id, model, model_type, source, prompt, input_tokens,
	output_tokens, reply_text, reply_vector, started_at, ended_at, created_at
	FROM model_interactions`

// GetInteraction returns the record with the given id.
func (s *Store) GetInteraction(ctx context.Context, id string) (*storage.InteractionRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(selectColumns+` WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get interaction: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get interaction: %w", err)
		}
		return nil, fmt.Errorf("interaction %s: %w", id, storage.ErrNotFound)
	}
	return s.scanRecord(rows)
}

// ListInteractions returns matching records, newest first.
func (s *Store) ListInteractions(ctx context.Context, opts storage.InteractionListOptions) ([]*storage.InteractionRecord, error) {
	var (
		where []string
		args  []any
	)
	if opts.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.ModelType != "" {
		where = append(where, "model_type = ?")
		args = append(args, string(opts.ModelType))
	}
	if opts.Source != "" {
		where = append(where, "source = ?")
		args = append(args, opts.Source)
	}

	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = math.MaxInt32
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	defer rows.Close()

	var records []*storage.InteractionRecord
	for rows.Next() {
		rec, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list interactions: %w", err)
	}
	return records, nil
}

// DeleteInteractions removes every record of userID.
func (s *Store) DeleteInteractions(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`DELETE FROM model_interactions WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete interactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted interactions: %w", err)
	}
	return int(n), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) scanRecord(rows *sql.Rows) (*storage.InteractionRecord, error) {
	var (
		rec          storage.InteractionRecord
		requestID    sql.NullString
		model        sql.NullString
		modelType    string
		source       string
		prompt       string
		inputTokens  int
		outputTokens sql.NullInt64
		replyText    sql.NullString
		startedAt    int64
		endedAt      sql.NullInt64
		createdAt    int64
	)
	vector := s.dialect.NewVectorScanner()

	if err := rows.Scan(&rec.ID, &rec.UserID, &requestID, &model, &modelType, &source, &prompt,
		&inputTokens, &outputTokens, &replyText, vector, &startedAt, &endedAt, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan interaction: %w", err)
	}

	rec.RequestID = requestID.String
	rec.Model = model.String
	rec.CreatedAt = time.Unix(0, createdAt)
	started := time.UnixMicro(startedAt)

	var err error
	switch domain.ModelType(modelType) {
	case domain.ModelTypeLLM:
		rec.Interaction, err = domain.NewLLMInteraction(domain.LLMParams{
			ModelType:    domain.ModelTypeLLM,
			Source:       source,
			Prompt:       prompt,
			InputTokens:  inputTokens,
			Reply:        replyText.String,
			OutputTokens: int(outputTokens.Int64),
			StartedAt:    started,
			EndedAt:      time.UnixMicro(endedAt.Int64),
		}, started)
	case domain.ModelTypeEmbedder:
		reply := vector.Vector()
		if reply == nil {
			reply = []float64{}
		}
		rec.Interaction, err = domain.NewEmbedderInteraction(domain.EmbedderParams{
			ModelType:   domain.ModelTypeEmbedder,
			Source:      source,
			Prompt:      prompt,
			InputTokens: inputTokens,
			Reply:       reply,
			StartedAt:   started,
		}, started)
	default:
		err = fmt.Errorf("unknown model_type %q", modelType)
	}
	if err != nil {
		return nil, fmt.Errorf("interaction %s: %w", rec.ID, err)
	}
	return &rec, nil
}
