package graph

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSchema_Merge(t *testing.T) {
	schema := NewMapSchema().
		RegisterReducer("messages", AppendReducer).
		RegisterReducer("total", SumReducer)

	current := map[string]any{"messages": []string{"hi"}, "total": 1, "keep": true}
	merged := schema.Merge(current, map[string]any{
		"messages": []string{"there"},
		"total":    2,
		"name":     "bob",
	})

	assert.Equal(t, map[string]any{
		"messages": []string{"hi", "there"},
		"total":    3,
		"keep":     true,
		"name":     "bob",
	}, merged)
	assert.Equal(t, []string{"hi"}, current["messages"], "current must not be mutated")
}

func TestAppendReducer(t *testing.T) {
	tests := []struct {
		name    string
		current any
		update  any
		want    any
	}{
		{"nil current with slice", nil, []int{1, 2}, []int{1, 2}},
		{"nil current with element", nil, "a", []string{"a"}},
		{"same typed slices", []int{1}, []int{2, 3}, []int{1, 2, 3}},
		{"single element", []string{"a"}, "b", []string{"a", "b"}},
		{"mismatched element", []int{1}, "x", []any{1, "x"}},
		{"mismatched slices", []int{1}, []string{"x"}, []any{1, "x"}},
		{"scalar current", 5, []int{6}, []any{5, 6}},
		{"nil update", []int{1}, nil, []any{1, nil}},
		{"decoded strings regain type", []any{"a"}, []string{"b"}, []string{"a", "b"}},
		{"decoded whole numbers regain type", []any{1.0, 2.0}, []int{3}, []int{1, 2, 3}},
		{"update widened to current", []float64{1.5}, []int{2}, []float64{1.5, 2}},
		{"mixed decoded values", []any{"a", 1.0}, "b", []any{"a", 1.0, "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AppendReducer(tt.current, tt.update))
		})
	}
}

func TestSumReducer(t *testing.T) {
	assert.Equal(t, 5, SumReducer(2, 3))
	assert.Equal(t, int64(5), SumReducer(int64(2), int64(3)))
	assert.Equal(t, 1.5, SumReducer(1.0, 0.5))
	assert.Equal(t, "new", SumReducer(1, "new"))
	assert.Equal(t, 3, SumReducer(nil, 3))

	// Values read back from a JSON checkpoint are float64 or json.Number.
	assert.Equal(t, 3, SumReducer(1.0, 2))
	assert.Equal(t, 5, SumReducer(json.Number("2"), 3))
	assert.Equal(t, 2.5, SumReducer(1.5, 1))
	assert.Equal(t, 5, SumReducer(int64(2), 3))
	assert.Equal(t, int32(7), SumReducer(int8(3), int32(4)))
	assert.Equal(t, -2.0, SumReducer(-3.0, uint(1)))
	assert.Equal(t, "x", OverwriteReducer("old", "x"))
}

func TestFieldHelpers(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, AppendSlice([]int{1}, []int{2, 3}))
	assert.Nil(t, AppendSlice[int](nil, nil))
	assert.Equal(t, 7, AddCounter(3, 4))
	assert.Equal(t, 1.25, AddCounter(1.0, 0.25))
	assert.Equal(t, map[string]int{"a": 1, "b": 3}, MergeMap(map[string]int{"a": 1, "b": 2}, map[string]int{"b": 3}))
	assert.Nil(t, MergeMap[string, int](nil, nil))
	assert.Equal(t, "new", Override("old", "new"))

	base := []int{1}
	out := AppendSlice(base[:1:1], []int{2})
	assert.Equal(t, []int{1}, base)
	assert.Equal(t, []int{1, 2}, out)
}

func TestGraphWithMapSchema(t *testing.T) {
	g := NewStateGraph[map[string]any]().
		WithSchema(NewMapSchema().RegisterReducer("log", AppendReducer))
	for _, name := range []string{"a", "b"} {
		g.AddNodeFunc(name, func(context.Context, GraphState[map[string]any]) (StateUpdate[map[string]any], error) {
			return NewStateUpdate(map[string]any{"log": name, "last": name}), nil
		})
	}
	g.SetEntryPoint("a").AddEdge("a", "b").AddEdge("b", END)

	program, err := g.Compile()
	require.NoError(t, err)

	final, err := program.Invoke(context.Background(), map[string]any{"input": 1})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"input": 1,
		"log":   []string{"a", "b"},
		"last":  "b",
	}, final)
}
