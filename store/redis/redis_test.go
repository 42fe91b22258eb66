package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/smallnest/stepgraph/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Title    string   `json:"title"`
	Sections []string `json:"sections"`
}

func TestRedisCheckpointer(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cp := NewCheckpointer[doc](Options{Addr: mr.Addr()})
	defer cp.Close()

	ctx := context.Background()
	runID := "draft-123"

	loaded, err := cp.Load(ctx, runID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	first := store.Checkpoint[doc]{
		RunID:     runID,
		Step:      1,
		Node:      "outline",
		CreatedAt: time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC),
		State:     doc{Title: "Plan", Sections: []string{"intro"}},
	}
	second := first
	second.Step = 2
	second.Node = "write"
	second.State = doc{Title: "Plan", Sections: []string{"intro", "body"}}

	require.NoError(t, cp.Save(ctx, first))
	require.NoError(t, cp.Save(ctx, second))

	loaded, err = cp.Load(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, second, *loaded)

	assert.True(t, mr.Exists("stepgraph:{run:draft-123}:latest"))

	history, err := cp.List(ctx, runID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, store.Metadata{Seq: 1, Step: 1, Node: "outline", CreatedAt: first.CreatedAt}, history[0])
	assert.Equal(t, "write", history[1].Node)

	require.NoError(t, cp.Clear(ctx, runID))
	loaded, err = cp.Load(ctx, runID)
	assert.NoError(t, err)
	assert.Nil(t, loaded)

	history, err = cp.List(ctx, runID)
	assert.NoError(t, err)
	assert.Empty(t, history)
}

func TestRedisCheckpointer_TTLAndPrefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cp := NewCheckpointer[doc](Options{Addr: mr.Addr(), Prefix: "tenant-a:", TTL: time.Hour})
	ctx := context.Background()

	require.NoError(t, cp.Save(ctx, store.Checkpoint[doc]{RunID: "r1", Step: 1, Node: "n"}))

	assert.Equal(t, time.Hour, mr.TTL("tenant-a:{run:r1}:latest"))
	assert.Equal(t, time.Hour, mr.TTL("tenant-a:{run:r1}:history"))

	mr.FastForward(2 * time.Hour)
	loaded, err := cp.Load(ctx, "r1")
	assert.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisCheckpointer_KeysShareHashTag(t *testing.T) {
	cp := NewCheckpointerWithClient[doc](nil, "tenant-a:", 0)

	tag := func(key string) string {
		start := strings.IndexByte(key, '{')
		end := strings.IndexByte(key[start+1:], '}')
		require.True(t, start >= 0 && end > 0, key)
		return key[start+1 : start+1+end]
	}

	latest, history := cp.latestKey("job-7"), cp.historyKey("job-7")
	assert.Equal(t, "tenant-a:{run:job-7}:latest", latest)
	assert.Equal(t, "run:job-7", tag(latest))
	assert.Equal(t, tag(latest), tag(history))
	assert.NotEqual(t, tag(latest), tag(cp.latestKey("job-8")))
}

func TestRedisCheckpointer_InvalidRunID(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cp := NewCheckpointer[doc](Options{Addr: mr.Addr()})
	ctx := context.Background()

	err = cp.Save(ctx, store.Checkpoint[doc]{RunID: "run:{x}"})
	assert.ErrorIs(t, err, store.ErrInvalidRunID)

	_, err = cp.Load(ctx, "a*")
	assert.ErrorIs(t, err, store.ErrInvalidRunID)
}

func TestRedisCheckpointer_ConnectionError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cp := NewCheckpointer[doc](Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = cp.Save(ctx, store.Checkpoint[doc]{RunID: "r"})
	assert.ErrorContains(t, err, "failed to save checkpoint to redis")

	_, err = cp.Load(ctx, "r")
	assert.ErrorContains(t, err, "failed to load checkpoint from redis")
}
