package domain

import "fmt"

// allowedTransitions lists every legal ProcessingState edge.
var allowedTransitions = map[ProcessingState][]ProcessingState{
	StateIdle:     {StateInFlight},
	StateInFlight: {StateIdle, StateError},
	StateError:    {StateIdle},
}

// States lists every ProcessingState in cycle order.
func States() []ProcessingState {
	return []ProcessingState{StateIdle, StateInFlight, StateError}
}

// NextStates returns the states reachable from from in one step.
func NextStates(from ProcessingState) []ProcessingState {
	return append([]ProcessingState(nil), allowedTransitions[from]...)
}

// CanTransition reports whether the state machine permits from -> to.
// Staying in the same state is always allowed.
func CanTransition(from, to ProcessingState) bool {
	if from == to {
		return true
	}
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionLocked moves the session to the given state, refusing illegal
// edges. The caller must hold the session lock.
func (s *Session) TransitionLocked(to ProcessingState) error {
	if !CanTransition(s.State, to) {
		return fmt.Errorf("illegal processing transition %s -> %s", s.State, to)
	}
	s.State = to
	if to != StateError {
		s.LastError = ""
	}
	return nil
}
