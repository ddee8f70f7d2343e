package app

import (
	"fmt"
	"sync"

	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/ports"
)

// State represents the lifecycle state of a capture session.
type State int

const (
	StateCreated State = iota
	StateConfigured
	StateStarted
	StateStopped
	StateDestroyed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateConfigured:
		return "Configured"
	case StateStarted:
		return "Started"
	case StateStopped:
		return "Stopped"
	case StateDestroyed:
		return "Destroyed"
	default:
		return "Unknown"
	}
}

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateCreated:    {StateConfigured, StateStarted, StateDestroyed},
	StateConfigured: {StateCreated, StateStarted, StateDestroyed},
	StateStarted:    {StateStopped},
	StateStopped:    {StateCreated, StateConfigured, StateStarted, StateDestroyed},
}

// Lifecycle manages the state machine for a session.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	logger       ports.Logger
	eventEmitter EventEmitter
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle creates a new lifecycle manager in StateCreated.
func NewLifecycle(logger ports.Logger, emitter EventEmitter) *Lifecycle {
	if logger == nil {
		logger = ports.Discard
	}
	return &Lifecycle{
		state:        StateCreated,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Check reports whether a transition to newState is valid from the current
// state, without performing it.
func (l *Lifecycle) Check(newState State) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return validate(l.state, newState)
}

// TransitionTo attempts to transition to a new state.
// Returns an error wrapping domain.ErrInvalidState if the transition is not
// valid; the state is left unchanged in that case.
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if err := validate(oldState, newState); err != nil {
		l.mu.Unlock()
		return err
	}
	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)

	return nil
}

// CanStart returns true if Start() can be called.
func (l *Lifecycle) CanStart() bool {
	return l.Check(StateStarted) == nil
}

// CanStop returns true if Stop() can be called.
func (l *Lifecycle) CanStop() bool {
	return l.Check(StateStopped) == nil
}

// Destroyed reports whether the lifecycle reached its terminal state.
func (l *Lifecycle) Destroyed() bool {
	return l.State() == StateDestroyed
}

func validate(from, to State) error {
	for _, s := range transitions[from] {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot go from %s to %s", domain.ErrInvalidState, from, to)
}
