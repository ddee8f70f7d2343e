package sigcap

import "github.com/bft-labs/sigcap/internal/app"

// State represents the lifecycle state of a Session.
type State int

const (
	// StateCreated indicates a session with no devices.
	StateCreated State = iota
	// StateConfigured indicates a session with at least one device.
	StateConfigured
	// StateStarted indicates acquisition is running and packets are delivered.
	StateStarted
	// StateStopped indicates acquisition ended; the session can be restarted.
	StateStopped
	// StateDestroyed indicates the session was released.
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

func convertState(s app.State) State {
	switch s {
	case app.StateCreated:
		return StateCreated
	case app.StateConfigured:
		return StateConfigured
	case app.StateStarted:
		return StateStarted
	case app.StateStopped:
		return StateStopped
	case app.StateDestroyed:
		return StateDestroyed
	default:
		return StateDestroyed
	}
}

// StateChangeEvent is emitted when a session changes state.
type StateChangeEvent struct {
	Session  Handle
	Previous State
	Current  State
	Reason   string
}

// PacketEvent is emitted after a packet was handed to the session callback.
type PacketEvent struct {
	Session Handle
	Device  Handle
	Packet  Packet
}

// BackendErrorEvent is emitted when a backend call fails.
type BackendErrorEvent struct {
	Op       string
	Resource Handle
	Err      error
}

// EventHandler receives notifications about sessions and backend calls.
// OnPacket runs on the backend's delivery goroutine while the delivery lock
// is held; implementations should return quickly.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnPacket(PacketEvent)
	OnBackendError(BackendErrorEvent)
}

// BaseEventHandler implements EventHandler with no-ops. Embed it to handle
// only the events you care about.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)   {}
func (BaseEventHandler) OnPacket(PacketEvent)             {}
func (BaseEventHandler) OnBackendError(BackendErrorEvent) {}

// handlers fans events out to every registered handler in order.
type handlers []EventHandler

func (hs handlers) OnStateChange(e StateChangeEvent) {
	for _, h := range hs {
		h.OnStateChange(e)
	}
}

func (hs handlers) OnPacket(e PacketEvent) {
	for _, h := range hs {
		h.OnPacket(e)
	}
}

func (hs handlers) OnBackendError(e BackendErrorEvent) {
	for _, h := range hs {
		h.OnBackendError(e)
	}
}

// sessionEmitter adapts EventHandler to the lifecycle emitter of one session.
type sessionEmitter struct {
	session Handle
	handler EventHandler
}

func (e *sessionEmitter) OnStateChange(previous, current app.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{
		Session:  e.session,
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	})
}
