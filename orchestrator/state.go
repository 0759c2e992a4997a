// ABOUTME: Implements the state machine for the tool execution loop - ensures
// ABOUTME: valid state transitions and prevents illegal operation sequences.
package orchestrator

import (
	"fmt"
	"sync"
)

// State represents the current state of one logical exchange.
type State string

const (
	StateIdle             State = "idle"
	StateAwaitingProvider State = "awaiting_provider"
	StateExecutingTools   State = "executing_tools"
	StateDone             State = "done"
	StateError            State = "error"
)

var validTransitions = map[State][]State{
	StateIdle:             {StateAwaitingProvider, StateError},
	StateAwaitingProvider: {StateExecutingTools, StateDone, StateError},
	StateExecutingTools:   {StateAwaitingProvider, StateError},
	StateDone:             {StateIdle},
	StateError:            {StateIdle},
}

// StateMachine manages orchestrator state with validation.
type StateMachine struct {
	mu      sync.RWMutex
	current State
}

// NewStateMachine creates a new StateMachine in Idle state.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: StateIdle}
}

// Current returns the current state.
func (sm *StateMachine) Current() State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// Transition attempts to move to a new state.
func (sm *StateMachine) Transition(to State) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, allowed := range validTransitions[sm.current] {
		if allowed == to {
			sm.current = to
			return nil
		}
	}
	return fmt.Errorf("invalid transition: %s -> %s", sm.current, to)
}

// IsTerminal returns true if in Done or Error state.
func (sm *StateMachine) IsTerminal() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current == StateDone || sm.current == StateError
}

// Reset returns to Idle state.
func (sm *StateMachine) Reset() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.current = StateIdle
}
