package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallnest/stepgraph/store"
)

// DBPool is the subset of pgxpool.Pool the checkpointer needs.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Checkpointer stores one row per saved checkpoint.
type Checkpointer[S any] struct {
	pool      DBPool
	tableName string
	codec     store.Codec[S]
}

var (
	_ store.HistoryCheckpointer[int] = (*Checkpointer[int])(nil)
	_ store.Clearer                  = (*Checkpointer[int])(nil)
)

// Options configures the Postgres connection.
type Options struct {
	ConnString string
	TableName  string // Default "checkpoints"
}

// NewCheckpointer opens a connection pool and creates the table if needed.
func NewCheckpointer[S any](ctx context.Context, opts Options) (*Checkpointer[S], error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	s := NewCheckpointerWithPool[S](pool, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewCheckpointerWithPool uses an existing pool; the schema is not created.
func NewCheckpointerWithPool[S any](pool DBPool, tableName string) *Checkpointer[S] {
	if tableName == "" {
		tableName = "checkpoints"
	}
	return &Checkpointer[S]{
		pool:      pool,
		tableName: tableName,
		codec:     store.JSONCodec[S]{},
	}
}

// WithCodec replaces the state codec.
func (s *Checkpointer[S]) WithCodec(codec store.Codec[S]) *Checkpointer[S] {
	s.codec = codec
	return s
}

// InitSchema creates the checkpoint table and its run index.
func (s *Checkpointer[S]) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node TEXT NOT NULL,
			state JSONB NOT NULL,
			paused_before TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id, seq);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *Checkpointer[S]) Close() {
	s.pool.Close()
}

// Save inserts the checkpoint as the newest row of its run.
func (s *Checkpointer[S]) Save(ctx context.Context, cp store.Checkpoint[S]) error {
	if err := store.ValidateRunID(cp.RunID); err != nil {
		return err
	}
	stateJSON, err := s.codec.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	query := fmt.Sprintf("INSERT INTO %s (run_id, step, node, state, paused_before, created_at) VALUES ($1, $2, $3, $4, $5, $6)", s.tableName)
	_, err = s.pool.Exec(ctx, query,
		cp.RunID,
		cp.Step,
		cp.Node,
		stateJSON,
		cp.PausedBefore,
		store.Timestamp(cp.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the newest row of runID, or nil.
func (s *Checkpointer[S]) Load(ctx context.Context, runID string) (*store.Checkpoint[S], error) {
	query := fmt.Sprintf("SELECT run_id, step, node, state, paused_before, created_at FROM %s WHERE run_id = $1 ORDER BY seq DESC LIMIT 1", s.tableName)

	var (
		cp        store.Checkpoint[S]
		stateJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&cp.RunID,
		&cp.Step,
		&cp.Node,
		&stateJSON,
		&cp.PausedBefore,
		&cp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if cp.State, err = s.codec.Unmarshal(stateJSON); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	cp.CreatedAt = cp.CreatedAt.UTC()
	return &cp, nil
}

// List returns the history of runID, oldest first.
func (s *Checkpointer[S]) List(ctx context.Context, runID string) ([]store.Metadata, error) {
	query := fmt.Sprintf("SELECT seq, step, node, created_at FROM %s WHERE run_id = $1 ORDER BY seq ASC", s.tableName)

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	out := []store.Metadata{}
	for rows.Next() {
		var (
			meta      store.Metadata
			createdAt time.Time
		)
		if err := rows.Scan(&meta.Seq, &meta.Step, &meta.Node, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		meta.CreatedAt = createdAt.UTC()
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return out, nil
}

// Clear deletes every row of runID.
func (s *Checkpointer[S]) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}
