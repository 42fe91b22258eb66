package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/stepgraph/store"
)

// Checkpointer stores checkpoints in Redis. Each run owns two keys:
// <prefix>{run:<id>}:latest holds the newest encoded checkpoint and
// <prefix>{run:<id>}:history is a list of every encoded checkpoint.
type Checkpointer[S any] struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	codec  store.Codec[S]
}

var (
	_ store.HistoryCheckpointer[int] = (*Checkpointer[int])(nil)
	_ store.Clearer                  = (*Checkpointer[int])(nil)
)

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "stepgraph:"
	TTL      time.Duration // Expiration for a run's keys, default 0 (no expiration)
}

// NewCheckpointer connects to Redis with opts.
func NewCheckpointer[S any](opts Options) *Checkpointer[S] {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewCheckpointerWithClient[S](client, opts.Prefix, opts.TTL)
}

// NewCheckpointerWithClient uses an existing client, e.g. a cluster client.
func NewCheckpointerWithClient[S any](client redis.UniversalClient, prefix string, ttl time.Duration) *Checkpointer[S] {
	if prefix == "" {
		prefix = "stepgraph:"
	}
	return &Checkpointer[S]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		codec:  store.JSONCodec[S]{},
	}
}

// WithCodec replaces the state codec.
func (s *Checkpointer[S]) WithCodec(codec store.Codec[S]) *Checkpointer[S] {
	s.codec = codec
	return s
}

// Close closes the underlying client.
func (s *Checkpointer[S]) Close() error {
	return s.client.Close()
}

// Both keys of a run share the {run:<id>} hash tag so a cluster places them
// in one slot.
func (s *Checkpointer[S]) latestKey(runID string) string {
	return fmt.Sprintf("%s{run:%s}:latest", s.prefix, runID)
}

func (s *Checkpointer[S]) historyKey(runID string) string {
	return fmt.Sprintf("%s{run:%s}:history", s.prefix, runID)
}

// Save writes the checkpoint as latest and appends it to the history in one transaction.
func (s *Checkpointer[S]) Save(ctx context.Context, cp store.Checkpoint[S]) error {
	if err := store.ValidateRunID(cp.RunID); err != nil {
		return err
	}
	data, err := store.EncodeCheckpoint(s.codec, cp)
	if err != nil {
		return err
	}

	latest, history := s.latestKey(cp.RunID), s.historyKey(cp.RunID)
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, latest, data, s.ttl)
	pipe.RPush(ctx, history, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, history, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}
	return nil
}

// Load returns the latest checkpoint of runID, or nil.
func (s *Checkpointer[S]) Load(ctx context.Context, runID string) (*store.Checkpoint[S], error) {
	if err := store.ValidateRunID(runID); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.latestKey(runID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}
	return store.DecodeCheckpoint(s.codec, data)
}

// List returns the history of runID, oldest first.
func (s *Checkpointer[S]) List(ctx context.Context, runID string) ([]store.Metadata, error) {
	if err := store.ValidateRunID(runID); err != nil {
		return nil, err
	}
	entries, err := s.client.LRange(ctx, s.historyKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints for run %s: %w", runID, err)
	}
	out := make([]store.Metadata, 0, len(entries))
	for i, entry := range entries {
		meta, err := store.DecodeMetadata(int64(i+1), []byte(entry))
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// Clear deletes both keys of runID.
func (s *Checkpointer[S]) Clear(ctx context.Context, runID string) error {
	if err := store.ValidateRunID(runID); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.latestKey(runID), s.historyKey(runID)).Err(); err != nil {
		return fmt.Errorf("failed to clear checkpoints: %w", err)
	}
	return nil
}
