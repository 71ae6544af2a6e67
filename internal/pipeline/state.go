package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Key names a typed output slot of a Run.
type Key[T any] struct {
	name string
}

// NewKey creates a key for outputs of type T.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's name.
func (k Key[T]) Name() string { return k.name }

// Run is the state of one pipeline execution.
type Run struct {
	ID       string
	Pipeline string
	Started  time.Time

	mu      sync.Mutex
	status  types.RunStatus
	outputs map[string]any
	results []types.TaskResult
}

// NewRun creates a pending run. Runners create runs themselves; NewRun is
// exported for tasks tested in isolation.
func NewRun(pipeline, id string) *Run {
	return &Run{
		ID:       id,
		Pipeline: pipeline,
		status:   types.RunPending,
		outputs:  make(map[string]any),
	}
}

// Status returns the run's current lifecycle state.
func (r *Run) Status() types.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Run) transition(to types.RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := Transition(r.status, to); err != nil {
		return err
	}
	r.status = to
	return nil
}

// Results returns a copy of the task results recorded so far, in
// completion order.
func (r *Run) Results() []types.TaskResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.TaskResult, len(r.results))
	copy(out, r.results)
	return out
}

// Result returns the recorded result of the named task.
func (r *Run) Result(task string) (types.TaskResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.results {
		if res.Name == task {
			return res, true
		}
	}
	return types.TaskResult{}, false
}

func (r *Run) record(res types.TaskResult) {
	r.mu.Lock()
	r.results = append(r.results, res)
	r.mu.Unlock()
}

// Set stores v under k, replacing any previous value.
func Set[T any](r *Run, k Key[T], v T) {
	r.mu.Lock()
	r.outputs[k.name] = v
	r.mu.Unlock()
}

// Lookup returns the value stored under k.
func Lookup[T any](r *Run, k Key[T]) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.outputs[k.name]
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

// Get returns the value stored under k or an error naming the missing
// output. Tasks use it to read what their dependencies produced.
func Get[T any](r *Run, k Key[T]) (T, error) {
	v, ok := Lookup(r, k)
	if !ok {
		return v, fmt.Errorf("pipeline %s: output %q not set", r.Pipeline, k.name)
	}
	return v, nil
}
