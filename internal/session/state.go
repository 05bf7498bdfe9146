package session

import "fmt"

// State is one position in the session lifecycle.
type State string

const (
	// StateActive serves queries against the in-memory index.
	StateActive State = "ACTIVE"

	// StateArchiving is flushing the index to the durable store.
	StateArchiving State = "ARCHIVING"

	// StateArchived holds no index; the chunks live in the durable
	// store only.
	StateArchived State = "ARCHIVED"

	// StateResuming is hydrating a fresh index from the durable store.
	StateResuming State = "RESUMING"
)

// validTransitions is the complete lifecycle graph. Archiving rolls back
// to ACTIVE on store failure; resuming rolls back to ARCHIVED.
var validTransitions = map[State][]State{
	StateActive:    {StateArchiving},
	StateArchiving: {StateArchived, StateActive},
	StateArchived:  {StateResuming},
	StateResuming:  {StateActive, StateArchived},
}

// CanTransitionTo reports whether the lifecycle allows moving from s to
// next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// transition moves the session to next or fails with
// ErrInvalidTransition. Callers hold the session lock.
func (s *Session) transition(next State) error {
	if !s.state.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}
	s.state = next
	return nil
}
