package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds[S any](events []GraphEvent[S]) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = string(e.Kind)
		if e.Node != "" {
			out[i] += ":" + e.Node
		}
	}
	return out
}

func TestStream_EventOrder(t *testing.T) {
	program, err := chain("a", "b").
		WithCheckpointer(NewMemoryCheckpointer[counterState](), "stream").
		Compile()
	require.NoError(t, err)

	var events []GraphEvent[counterState]
	for ev := range program.Stream(context.Background(), counterState{}) {
		events = append(events, ev)
	}

	assert.Equal(t, []string{
		"node_enter:a", "checkpoint_saved:a", "node_exit:a",
		"node_enter:b", "checkpoint_saved:b", "node_exit:b",
		"completed",
	}, kinds(events))

	last := events[len(events)-1]
	assert.True(t, last.Terminal())
	assert.Equal(t, 2, last.State.Count)
	assert.Equal(t, 2, last.Step)
	for _, ev := range events {
		assert.Equal(t, "stream", ev.RunID)
		assert.False(t, ev.Timestamp.IsZero())
	}
	assert.Equal(t, 0, events[0].Step)
	assert.Equal(t, 1, events[2].Step)
}

func TestStream_WithoutCheckpointer(t *testing.T) {
	program, err := chain("a").Compile()
	require.NoError(t, err)

	var got []GraphEvent[counterState]
	for ev := range program.Stream(context.Background(), counterState{}) {
		got = append(got, ev)
	}
	assert.Equal(t, []string{"node_enter:a", "node_exit:a", "completed"}, kinds(got))
}

func TestStream_TerminalEvents(t *testing.T) {
	t.Run("interrupted", func(t *testing.T) {
		program, err := chain("a", "b").WithInterruptAfter("a").Compile()
		require.NoError(t, err)

		var got []GraphEvent[counterState]
		for ev := range program.Stream(context.Background(), counterState{}) {
			got = append(got, ev)
		}
		assert.Equal(t, []string{"node_enter:a", "node_exit:a", "interrupted:a"}, kinds(got))
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		g := chain("a")
		g.AddNodeFunc("a", func(context.Context, GraphState[counterState]) (StateUpdate[counterState], error) {
			return StateUpdate[counterState]{}, boom
		})
		program, err := g.Compile()
		require.NoError(t, err)

		var got []GraphEvent[counterState]
		for ev := range program.Stream(context.Background(), counterState{}) {
			got = append(got, ev)
		}
		assert.Equal(t, []string{"node_enter:a", "error:a"}, kinds(got))
		assert.ErrorIs(t, got[1].Err, boom)
		assert.True(t, got[1].Terminal())
	})
}

func TestStream_BreakStopsRun(t *testing.T) {
	ran := map[string]int{}
	g := NewStateGraph[counterState]()
	for _, name := range []string{"a", "b", "c"} {
		g.AddNodeFunc(name, func(ctx context.Context, s GraphState[counterState]) (StateUpdate[counterState], error) {
			ran[name]++
			return step(name, 1)(ctx, s)
		})
	}
	g.SetEntryPoint("a").AddEdge("a", "b").AddEdge("b", "c")

	program, err := g.Compile()
	require.NoError(t, err)

	for ev := range program.Stream(context.Background(), counterState{}) {
		if ev.Kind == EventNodeExit && ev.Node == "a" {
			break
		}
	}
	assert.Equal(t, map[string]int{"a": 1}, ran)
}

func TestStreamResume(t *testing.T) {
	program, err := chain("a", "b").WithInterruptBefore("b").Compile()
	require.NoError(t, err)

	outcome := program.Run(context.Background(), counterState{})
	require.Equal(t, StatusInterrupted, outcome.Status)

	var got []GraphEvent[counterState]
	for ev := range program.StreamResume(context.Background(), outcome.Checkpoint()) {
		got = append(got, ev)
	}
	assert.Equal(t, []string{"node_enter:b", "node_exit:b", "completed"}, kinds(got))
	assert.Equal(t, 2, got[len(got)-1].State.Count)
}
