package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smallnest/stepgraph/store"
)

type order struct {
	ID    string `json:"id"`
	Items int    `json:"items"`
}

func TestCheckpointer_New(t *testing.T) {
	t.Parallel()

	t.Run("creates directory if missing", func(t *testing.T) {
		t.Parallel()
		checkpointPath := filepath.Join(t.TempDir(), "checkpoints")

		cp, err := NewCheckpointer[order](checkpointPath)
		if err != nil {
			t.Fatalf("Failed to create checkpointer: %v", err)
		}
		if cp == nil {
			t.Fatal("Checkpointer should not be nil")
		}
		if _, err := os.Stat(checkpointPath); os.IsNotExist(err) {
			t.Error("Directory should have been created")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		t.Parallel()
		if _, err := NewCheckpointer[order](t.TempDir()); err != nil {
			t.Fatalf("Failed to create checkpointer: %v", err)
		}
	})
}

func TestCheckpointer_SaveAndLoad(t *testing.T) {
	t.Parallel()

	t.Run("round trip preserves every field", func(t *testing.T) {
		t.Parallel()
		fc, err := NewCheckpointer[order](t.TempDir())
		if err != nil {
			t.Fatalf("Failed to create checkpointer: %v", err)
		}
		ctx := context.Background()

		cp := store.Checkpoint[order]{
			RunID:        "order-77",
			Step:         4,
			Node:         "ship",
			CreatedAt:    time.Date(2025, 6, 1, 8, 0, 0, 42, time.UTC),
			State:        order{ID: "o-77", Items: 3},
			PausedBefore: "invoice",
		}
		if err := fc.Save(ctx, cp); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}

		loaded, err := fc.Load(ctx, "order-77")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if loaded == nil || *loaded != cp {
			t.Errorf("Round trip mismatch: got %+v, want %+v", loaded, cp)
		}
	})

	t.Run("missing run loads nil", func(t *testing.T) {
		t.Parallel()
		fc, _ := NewCheckpointer[order](t.TempDir())
		loaded, err := fc.Load(context.Background(), "ghost")
		if err != nil || loaded != nil {
			t.Errorf("Expected nil, nil; got %+v, %v", loaded, err)
		}
	})

	t.Run("appends one line per save", func(t *testing.T) {
		t.Parallel()
		fc, _ := NewCheckpointer[order](t.TempDir())
		ctx := context.Background()
		for step := 1; step <= 3; step++ {
			if err := fc.Save(ctx, store.Checkpoint[order]{RunID: "r", Step: step, Node: "n"}); err != nil {
				t.Fatalf("Failed to save: %v", err)
			}
		}

		data, err := os.ReadFile(fc.Path("r"))
		if err != nil {
			t.Fatalf("Failed to read file: %v", err)
		}
		if n := strings.Count(string(data), "\n"); n != 3 {
			t.Errorf("Expected 3 lines, got %d", n)
		}

		loaded, _ := fc.Load(ctx, "r")
		if loaded.Step != 3 {
			t.Errorf("Expected latest step 3, got %d", loaded.Step)
		}
	})

	t.Run("sanitized collisions stay separate", func(t *testing.T) {
		t.Parallel()
		fc, _ := NewCheckpointer[order](t.TempDir())
		ctx := context.Background()
		if fc.Path("a/b") != fc.Path("a_b") {
			t.Fatal("Expected both ids to share a file")
		}
		_ = fc.Save(ctx, store.Checkpoint[order]{RunID: "a/b", Step: 1, Node: "slash"})
		_ = fc.Save(ctx, store.Checkpoint[order]{RunID: "a_b", Step: 5, Node: "underscore"})

		loaded, err := fc.Load(ctx, "a/b")
		if err != nil {
			t.Fatalf("Failed to load: %v", err)
		}
		if loaded.Node != "slash" {
			t.Errorf("Expected checkpoint of a/b, got %+v", loaded)
		}
		history, _ := fc.List(ctx, "a_b")
		if len(history) != 1 || history[0].Node != "underscore" {
			t.Errorf("Unexpected history for a_b: %+v", history)
		}
	})

	t.Run("rejects invalid run id", func(t *testing.T) {
		t.Parallel()
		fc, _ := NewCheckpointer[order](t.TempDir())
		if err := fc.Save(context.Background(), store.Checkpoint[order]{RunID: "bad*id"}); err == nil {
			t.Error("Expected an error")
		}
	})
}

func TestCheckpointer_ListAndClear(t *testing.T) {
	t.Parallel()

	fc, _ := NewCheckpointer[order](t.TempDir())
	ctx := context.Background()
	nodes := []string{"validate", "reserve", "ship"}
	for i, n := range nodes {
		if err := fc.Save(ctx, store.Checkpoint[order]{RunID: "run", Step: i + 1, Node: n}); err != nil {
			t.Fatalf("Failed to save: %v", err)
		}
	}

	history, err := fc.List(ctx, "run")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(history) != len(nodes) {
		t.Fatalf("Expected %d entries, got %d", len(nodes), len(history))
	}
	for i, meta := range history {
		if meta.Node != nodes[i] || meta.Seq != int64(i+1) {
			t.Errorf("Entry %d: %+v", i, meta)
		}
	}

	if err := fc.Clear(ctx, "run"); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}
	if _, err := os.Stat(fc.Path("run")); !os.IsNotExist(err) {
		t.Error("File should be removed")
	}
	if err := fc.Clear(ctx, "run"); err != nil {
		t.Errorf("Clearing twice should succeed: %v", err)
	}
}

func TestCheckpointer_Corrupt(t *testing.T) {
	t.Parallel()

	fc, _ := NewCheckpointer[order](t.TempDir())
	if err := os.WriteFile(fc.Path("broken"), []byte("{not json\n"), 0o644); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	if _, err := fc.Load(context.Background(), "broken"); err == nil {
		t.Error("Expected decode error")
	}
}

func TestCheckpointer_Concurrent(t *testing.T) {
	t.Parallel()

	fc, _ := NewCheckpointer[order](t.TempDir())
	ctx := context.Background()

	var wg sync.WaitGroup
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			runID := fmt.Sprintf("run-%d", r)
			for step := 1; step <= 10; step++ {
				if err := fc.Save(ctx, store.Checkpoint[order]{RunID: runID, Step: step}); err != nil {
					t.Errorf("save: %v", err)
					return
				}
			}
		}(r)
	}
	wg.Wait()

	for r := 0; r < 8; r++ {
		loaded, err := fc.Load(ctx, fmt.Sprintf("run-%d", r))
		if err != nil || loaded == nil || loaded.Step != 10 {
			t.Errorf("run-%d: got %+v, %v", r, loaded, err)
		}
	}
}
