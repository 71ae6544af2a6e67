// Package pipeline runs workflows declared as an explicit DAG of named
// tasks. Tasks exchange typed outputs through the Run they execute in
// instead of threading fields through an untyped payload.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors returned by Graph validation.
var (
	ErrDuplicateTask     = errors.New("pipeline: duplicate task")
	ErrUnknownDependency = errors.New("pipeline: unknown dependency")
	ErrCycle             = errors.New("pipeline: dependency cycle")
)

// Task is one node of a pipeline graph.
type Task struct {
	Name        string
	Description string
	DependsOn   []string
	Run         func(ctx context.Context, run *Run) error

	// Cleanup, if set, runs when this task succeeded but the run as a whole
	// failed afterwards. Cleanups run in reverse completion order on a
	// context that is not cancelled with the run.
	Cleanup func(ctx context.Context, run *Run) error
}

// Graph is a named set of tasks and their dependencies.
type Graph struct {
	name  string
	tasks map[string]*Task
	order []string
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{name: name, tasks: make(map[string]*Task)}
}

// Name returns the pipeline name.
func (g *Graph) Name() string { return g.name }

// Add registers a task. Tasks may be added in any order; dependencies are
// checked by Validate.
func (g *Graph) Add(t Task) error {
	if t.Name == "" {
		return fmt.Errorf("pipeline %s: task name is required", g.name)
	}
	if t.Run == nil {
		return fmt.Errorf("pipeline %s: task %s has no Run func", g.name, t.Name)
	}
	if _, ok := g.tasks[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
	}
	task := t
	g.tasks[t.Name] = &task
	g.order = append(g.order, t.Name)
	return nil
}

// MustAdd is Add for statically declared graphs; it panics on error.
func (g *Graph) MustAdd(t Task) *Graph {
	if err := g.Add(t); err != nil {
		panic(err)
	}
	return g
}

// Task returns the named task.
func (g *Graph) Task(name string) (Task, bool) {
	t, ok := g.tasks[name]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Validate checks that every dependency names a known task and that the
// graph is acyclic.
func (g *Graph) Validate() error {
	_, err := g.Levels()
	return err
}

// Levels groups the tasks into dependency levels: every task's dependencies
// are in strictly earlier levels. Within a level, tasks keep the order in
// which they were added, so the result is stable for a given graph.
func (g *Graph) Levels() ([][]string, error) {
	pos := make(map[string]int, len(g.order))
	for i, name := range g.order {
		pos[name] = i
	}

	indegree := make(map[string]int, len(g.tasks))
	dependents := make(map[string][]string, len(g.tasks))
	for _, name := range g.order {
		t := g.tasks[name]
		seen := make(map[string]bool, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("%w: task %s depends on %s", ErrUnknownDependency, name, dep)
			}
			if dep == name {
				return nil, fmt.Errorf("%w: task %s depends on itself", ErrCycle, name)
			}
			if seen[dep] {
				continue
			}
			seen[dep] = true
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var current []string
	for _, name := range g.order {
		if indegree[name] == 0 {
			current = append(current, name)
		}
	}

	var (
		levels [][]string
		placed int
	)
	for len(current) > 0 {
		levels = append(levels, current)
		placed += len(current)

		var next []string
		for _, name := range current {
			for _, d := range dependents[name] {
				indegree[d]--
				if indegree[d] == 0 {
					next = append(next, d)
				}
			}
		}
		sort.SliceStable(next, func(i, j int) bool { return pos[next[i]] < pos[next[j]] })
		current = next
	}

	if placed != len(g.tasks) {
		var stuck []string
		for _, name := range g.order {
			if indegree[name] > 0 {
				stuck = append(stuck, name)
			}
		}
		return nil, fmt.Errorf("%w among %v", ErrCycle, stuck)
	}
	return levels, nil
}

// Order returns a stable topological order of all tasks.
func (g *Graph) Order() ([]string, error) {
	levels, err := g.Levels()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(g.tasks))
	for _, l := range levels {
		out = append(out, l...)
	}
	return out, nil
}
