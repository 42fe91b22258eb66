package config

import (
	"context"
	"fmt"

	"github.com/smallnest/stepgraph/log"
	"github.com/smallnest/stepgraph/store"
	"github.com/smallnest/stepgraph/store/file"
	"github.com/smallnest/stepgraph/store/memory"
	"github.com/smallnest/stepgraph/store/postgres"
	"github.com/smallnest/stepgraph/store/redis"
	"github.com/smallnest/stepgraph/store/sqlite"
)

// OpenCheckpointer builds the store cfg selects. The returned function
// releases its connections; it is never nil.
func OpenCheckpointer[S any](ctx context.Context, cfg CheckpointConfig) (store.HistoryCheckpointer[S], func() error, error) {
	noop := func() error { return nil }
	if err := cfg.Validate(); err != nil {
		return nil, noop, fmt.Errorf("config: %w", err)
	}

	switch cfg.Backend {
	case BackendMemory:
		return memory.NewCheckpointer[S](), noop, nil

	case BackendFile:
		cp, err := file.NewCheckpointer[S](cfg.Dir)
		if err != nil {
			return nil, noop, err
		}
		return cp, noop, nil

	case BackendRedis:
		ttl, _ := cfg.ttl()
		cp := redis.NewCheckpointer[S](redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			Prefix:   cfg.Prefix,
			TTL:      ttl,
		})
		return cp, cp.Close, nil

	case BackendPostgres:
		cp, err := postgres.NewCheckpointer[S](ctx, postgres.Options{ConnString: cfg.DSN, TableName: cfg.Table})
		if err != nil {
			return nil, noop, err
		}
		return cp, func() error { cp.Close(); return nil }, nil

	case BackendSQLite:
		cp, err := sqlite.NewCheckpointer[S](sqlite.Options{Path: cfg.DSN, TableName: cfg.Table})
		if err != nil {
			return nil, noop, err
		}
		return cp, cp.Close, nil
	}
	return nil, noop, fmt.Errorf("config: unknown checkpoint backend %q", cfg.Backend)
}

// NewLogger builds a golog-backed logger at the configured level.
func NewLogger(cfg LogConfig) (*log.GologLogger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return log.NewGologLoggerWithLevel(level), nil
}
