package pipeline

import (
	"fmt"

	"github.com/ubc-cic/expertise-dashboard/pkg/types"
)

// Transition table: from -> allowed tos
var validTransitions = map[types.RunStatus][]types.RunStatus{
	types.RunPending:   {types.RunRunning, types.RunFailed},
	types.RunRunning:   {types.RunCompleted, types.RunFailed},
	types.RunCompleted: {},
	types.RunFailed:    {},
}

// CanTransition checks if transitioning from one run status to another is valid.
func CanTransition(from, to types.RunStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates a status change.
func Transition(from, to types.RunStatus) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminal returns true if the status is a terminal (final) state.
func IsTerminal(status types.RunStatus) bool {
	return status == types.RunCompleted || status == types.RunFailed
}
