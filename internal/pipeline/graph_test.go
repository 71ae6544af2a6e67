package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func noop(context.Context, *Run) error { return nil }

func TestGraph_LevelsStable(t *testing.T) {
	g := NewGraph("p")
	g.MustAdd(Task{Name: "c", DependsOn: []string{"a", "b"}, Run: noop})
	g.MustAdd(Task{Name: "b", Run: noop})
	g.MustAdd(Task{Name: "a", Run: noop})
	g.MustAdd(Task{Name: "d", DependsOn: []string{"c"}, Run: noop})
	g.MustAdd(Task{Name: "e", DependsOn: []string{"a"}, Run: noop})

	levels, err := g.Levels()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b", "a"}, {"c", "e"}, {"d"}}, levels)

	for i := 0; i < 10; i++ {
		order, err := g.Order()
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a", "c", "e", "d"}, order)
	}
}

func TestGraph_RejectsUnknownDependency(t *testing.T) {
	g := NewGraph("p")
	g.MustAdd(Task{Name: "a", DependsOn: []string{"ghost"}, Run: noop})
	assert.ErrorIs(t, g.Validate(), ErrUnknownDependency)
}

func TestGraph_RejectsCycles(t *testing.T) {
	self := NewGraph("self")
	self.MustAdd(Task{Name: "a", DependsOn: []string{"a"}, Run: noop})
	assert.ErrorIs(t, self.Validate(), ErrCycle)

	loop := NewGraph("loop")
	loop.MustAdd(Task{Name: "root", Run: noop})
	loop.MustAdd(Task{Name: "a", DependsOn: []string{"root", "c"}, Run: noop})
	loop.MustAdd(Task{Name: "b", DependsOn: []string{"a"}, Run: noop})
	loop.MustAdd(Task{Name: "c", DependsOn: []string{"b"}, Run: noop})
	err := loop.Validate()
	assert.ErrorIs(t, err, ErrCycle)
	assert.Contains(t, err.Error(), "[a b c]")
}

func TestGraph_AddErrors(t *testing.T) {
	g := NewGraph("p")
	assert.Error(t, g.Add(Task{Run: noop}))
	assert.Error(t, g.Add(Task{Name: "x"}))
	require.NoError(t, g.Add(Task{Name: "x", Run: noop}))
	assert.ErrorIs(t, g.Add(Task{Name: "x", Run: noop}), ErrDuplicateTask)
	assert.Panics(t, func() { g.MustAdd(Task{Name: "x", Run: noop}) })
}

func TestGraph_DuplicateDependencyCountsOnce(t *testing.T) {
	g := NewGraph("p")
	g.MustAdd(Task{Name: "a", Run: noop})
	g.MustAdd(Task{Name: "b", DependsOn: []string{"a", "a"}, Run: noop})
	order, err := g.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestGraph_Describe(t *testing.T) {
	g := NewGraph("graph-publish")
	g.MustAdd(Task{Name: "create", Description: "create thing", Run: noop, Cleanup: noop})
	g.MustAdd(Task{Name: "use", DependsOn: []string{"create"}, Run: noop})

	plan, err := g.Describe()
	require.NoError(t, err)
	assert.Equal(t, "graph-publish", plan.Pipeline)
	require.Len(t, plan.Tasks, 2)
	assert.True(t, plan.Tasks[0].Cleanup)
	assert.Equal(t, []string{"create"}, plan.Tasks[1].DependsOn)

	out, err := plan.YAML()
	require.NoError(t, err)

	var back Plan
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.Equal(t, plan, back)
	assert.Contains(t, string(out), "dependsOn:")
}
