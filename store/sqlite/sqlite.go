package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/stepgraph/store"
)

// Checkpointer stores checkpoints in a SQLite table, one row per save.
type Checkpointer[S any] struct {
	db        *sql.DB
	tableName string
	codec     store.Codec[S]
}

var (
	_ store.HistoryCheckpointer[int] = (*Checkpointer[int])(nil)
	_ store.Clearer                  = (*Checkpointer[int])(nil)
)

// Options configures the SQLite database.
type Options struct {
	Path      string
	TableName string // Default "checkpoints"
}

// NewCheckpointer opens the database file and creates the table if needed.
func NewCheckpointer[S any](opts Options) (*Checkpointer[S], error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	// go-sqlite3 serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	tableName := opts.TableName
	if tableName == "" {
		tableName = "checkpoints"
	}

	s := &Checkpointer[S]{
		db:        db,
		tableName: tableName,
		codec:     store.JSONCodec[S]{},
	}
	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
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
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			node TEXT NOT NULL,
			state TEXT NOT NULL,
			paused_before TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_run_id ON %s (run_id, seq);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Checkpointer[S]) Close() error {
	return s.db.Close()
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

	query := fmt.Sprintf("INSERT INTO %s (run_id, step, node, state, paused_before, created_at) VALUES (?, ?, ?, ?, ?, ?)", s.tableName)
	_, err = s.db.ExecContext(ctx, query,
		cp.RunID,
		cp.Step,
		cp.Node,
		string(stateJSON),
		cp.PausedBefore,
		cp.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Load returns the newest row of runID, or nil.
func (s *Checkpointer[S]) Load(ctx context.Context, runID string) (*store.Checkpoint[S], error) {
	query := fmt.Sprintf("SELECT run_id, step, node, state, paused_before, created_at FROM %s WHERE run_id = ? ORDER BY seq DESC LIMIT 1", s.tableName)

	var (
		cp        store.Checkpoint[S]
		stateJSON string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, query, runID).Scan(
		&cp.RunID,
		&cp.Step,
		&cp.Node,
		&stateJSON,
		&cp.PausedBefore,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if cp.State, err = s.codec.Unmarshal([]byte(stateJSON)); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if cp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	return &cp, nil
}

// List returns the history of runID, oldest first.
func (s *Checkpointer[S]) List(ctx context.Context, runID string) ([]store.Metadata, error) {
	query := fmt.Sprintf("SELECT seq, step, node, created_at FROM %s WHERE run_id = ? ORDER BY seq ASC", s.tableName)

	rows, err := s.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	out := []store.Metadata{}
	for rows.Next() {
		var (
			meta      store.Metadata
			createdAt string
		)
		if err := rows.Scan(&meta.Seq, &meta.Step, &meta.Node, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		if meta.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at: %w", err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return out, nil
}

// Clear deletes every row of runID.
func (s *Checkpointer[S]) Clear(ctx context.Context, runID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE run_id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, runID); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}
