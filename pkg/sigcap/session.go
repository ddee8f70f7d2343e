package sigcap

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/sigcap/internal/app"
	"github.com/bft-labs/sigcap/internal/ports"
	"github.com/bft-labs/sigcap/pkg/log"
	"github.com/bft-labs/sigcap/pkg/trigger"
)

// PacketFunc receives packets during acquisition. It runs on the backend's
// delivery goroutine, never concurrently with itself, in the order the
// backend produced the packets. device is nil when the backend reports a
// device id the context has no proxy for. It must not call back into the
// session; Stop in particular waits for the callback to return.
type PacketFunc func(device *Device, packet Packet)

// Session is one capture session: a set of devices, an optional trigger and
// a packet callback.
//
// Mutating operations are serialized by the session. Packet delivery is
// serialized separately so that Stop can wait for the in-flight callback.
type Session struct {
	ctx       *Context
	handle    Handle
	logger    ports.Logger
	lifecycle *app.Lifecycle

	mu      sync.Mutex
	devices []*Device
	trigger *trigger.Trigger

	deliveryMu sync.Mutex
	callback   PacketFunc
	pending    map[uint64]struct{}
	done       chan struct{}

	accepting atomic.Bool
	delivered atomic.Uint64
}

func newSession(c *Context, h Handle) *Session {
	logger := log.With(c.logger, log.String("session", h.String()))
	return &Session{
		ctx:       c,
		handle:    h,
		logger:    logger,
		lifecycle: app.NewLifecycle(logger, &sessionEmitter{session: h, handler: c.events}),
	}
}

func (s *Session) Handle() Handle { return s.handle }
func (s *Session) String() string { return s.handle.String() }

// State returns the current lifecycle state.
func (s *Session) State() State {
	return convertState(s.lifecycle.State())
}

// Delivered returns the number of packets handed to the callback since the
// session was created.
func (s *Session) Delivered() uint64 {
	return s.delivered.Load()
}

// Devices returns the participating devices in the order they were added.
func (s *Session) Devices() []*Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Device(nil), s.devices...)
}

func (s *Session) check() error {
	if err := s.ctx.alive(); err != nil {
		return err
	}
	if s.lifecycle.Destroyed() {
		return fmt.Errorf("%w: %s destroyed", ErrInvalidState, s.handle)
	}
	return nil
}

// AddDevice attaches an open device. It fails with ErrInvalidState while the
// session is started, when the device is not open, or when the device
// already belongs to a session.
func (s *Session) AddDevice(d *Device) error {
	if err := s.check(); err != nil {
		return err
	}
	if d == nil || d.ctx != s.ctx {
		return fmt.Errorf("%w: device not owned by this context", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.lifecycle.State()
	if state != app.StateConfigured {
		if err := s.lifecycle.Check(app.StateConfigured); err != nil {
			return err
		}
	}

	d.mu.Lock()
	if d.session != nil {
		owner := d.session.handle
		d.mu.Unlock()
		return fmt.Errorf("%w: %s already belongs to %s", ErrInvalidState, d.handle, owner)
	}
	if !d.open {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s not open", ErrInvalidState, d.handle)
	}
	if err := s.ctx.backend.SessionAddDevice(s.handle.ID, d.handle.ID); err != nil {
		d.mu.Unlock()
		return s.ctx.backendError("session_add_device", s.handle, err)
	}
	d.session = s
	d.mu.Unlock()

	s.devices = append(s.devices, d)
	if state != app.StateConfigured {
		return s.lifecycle.TransitionTo(app.StateConfigured, "device added: "+d.handle.String())
	}
	return nil
}

// RemoveDevice detaches a device. Removing the last device returns the
// session to StateCreated.
func (s *Session) RemoveDevice(d *Device) error {
	if err := s.check(); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.lifecycle.State()
	if state == app.StateStarted {
		return fmt.Errorf("%w: cannot remove devices from a started session", ErrInvalidState)
	}
	idx := -1
	for i, dev := range s.devices {
		if dev == d {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s not in %s", ErrNotFound, d.handle, s.handle)
	}

	if err := s.ctx.backend.SessionRemoveDevice(s.handle.ID, d.handle.ID); err != nil {
		return s.ctx.backendError("session_remove_device", s.handle, err)
	}
	d.mu.Lock()
	d.session = nil
	d.mu.Unlock()
	s.devices = append(s.devices[:idx], s.devices[idx+1:]...)

	next := app.StateConfigured
	if len(s.devices) == 0 {
		next = app.StateCreated
	}
	if next == state {
		return nil
	}
	return s.lifecycle.TransitionTo(next, "device removed: "+d.handle.String())
}

// SetTrigger installs t for the next Start; nil clears it. It fails with
// ErrInvalidState while the session is started.
func (s *Session) SetTrigger(t *trigger.Trigger) error {
	if err := s.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lifecycle.State() == app.StateStarted {
		return fmt.Errorf("%w: cannot change trigger of a started session", ErrInvalidState)
	}
	s.trigger = t
	return nil
}

// ParseTrigger parses expr against the channels of the session devices and
// installs the result.
func (s *Session) ParseTrigger(expr string) (*trigger.Trigger, error) {
	var channels []trigger.Channel
	for _, d := range s.Devices() {
		channels = append(channels, d.TriggerChannels()...)
	}
	t, err := trigger.Parse(expr, channels)
	if err != nil {
		return nil, err
	}
	if err := s.SetTrigger(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Trigger returns the installed trigger, or nil.
func (s *Session) Trigger() *trigger.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trigger
}

// Start begins acquisition and delivers every packet to fn until Stop.
// Starting a started session fails with ErrInvalidState and leaves it
// running.
func (s *Session) Start(fn PacketFunc) error {
	if err := s.check(); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: nil packet callback", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lifecycle.Check(app.StateStarted); err != nil {
		return err
	}

	if setter, ok := s.ctx.backend.(ports.TriggerSetter); ok {
		if err := setter.SessionSetTrigger(s.handle.ID, s.trigger); err != nil {
			return s.ctx.backendError("session_set_trigger", s.handle, err)
		}
	} else if s.trigger != nil {
		return fmt.Errorf("%w: backend does not evaluate triggers", ErrNotSupported)
	}

	s.deliveryMu.Lock()
	s.callback = fn
	s.pending = make(map[uint64]struct{}, len(s.devices))
	for _, d := range s.devices {
		s.pending[d.handle.ID] = struct{}{}
	}
	s.done = make(chan struct{})
	if len(s.pending) == 0 {
		close(s.done)
	}
	s.deliveryMu.Unlock()

	s.accepting.Store(true)
	if err := s.ctx.backend.SessionStart(s.handle.ID, s.deliver); err != nil {
		s.accepting.Store(false)
		return s.ctx.backendError("session_start", s.handle, err)
	}
	return s.lifecycle.TransitionTo(app.StateStarted, "start")
}

// deliver is the backend packet sink of the session.
func (s *Session) deliver(device uint64, pkt Packet) {
	if !s.accepting.Load() {
		return
	}
	s.deliveryMu.Lock()
	defer s.deliveryMu.Unlock()
	if !s.accepting.Load() {
		return
	}

	dev, _ := s.ctx.devices.Lookup(device)
	if dev == nil {
		s.ctx.logger.Warn("packet from unknown device",
			log.Stringer("session", s.handle), log.Uint64("device", device), log.Stringer("type", pkt.Type()))
	}
	s.callback(dev, pkt)
	s.delivered.Add(1)
	s.ctx.events.OnPacket(PacketEvent{Session: s.handle, Device: dev.handleOrZero(), Packet: pkt})

	if pkt.Type() == PacketEnd {
		delete(s.pending, device)
		if len(s.pending) == 0 {
			s.closeDone()
		}
	}
}

// closeDone must be called with deliveryMu held.
func (s *Session) closeDone() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Stop ends acquisition. When it returns no callback is running and none
// will run. Stopping a session that is not started fails with
// ErrInvalidState.
func (s *Session) Stop() error {
	if err := s.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked("stop")
}

func (s *Session) stopLocked(reason string) error {
	if err := s.lifecycle.Check(app.StateStopped); err != nil {
		return err
	}

	// Packets keep flowing to the callback until the backend has stopped.
	if err := s.ctx.backend.SessionStop(s.handle.ID); err != nil {
		return s.ctx.backendError("session_stop", s.handle, err)
	}
	s.detach()
	return s.lifecycle.TransitionTo(app.StateStopped, reason)
}

// detach stops delivery to the callback and waits for the in-flight one,
// if any. Packets arriving afterwards are dropped.
func (s *Session) detach() {
	s.accepting.Store(false)
	s.deliveryMu.Lock()
	s.callback = nil
	if s.done != nil {
		s.closeDone()
	}
	s.deliveryMu.Unlock()
}

// Wait blocks until every device sent its End packet, the session was
// stopped, or ctx is done. It fails with ErrInvalidState if the session was
// never started.
func (s *Session) Wait(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	s.deliveryMu.Lock()
	done := s.done
	s.deliveryMu.Unlock()
	if done == nil {
		return fmt.Errorf("%w: %s never started", ErrInvalidState, s.handle)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Destroy releases the session. A started session is stopped first. The
// devices stay open and can join another session.
func (s *Session) Destroy() error {
	if err := s.check(); err != nil {
		return err
	}
	return s.destroy("destroy")
}

func (s *Session) destroy(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lifecycle.State() == app.StateStarted {
		if err := s.stopLocked(reason); err != nil {
			return err
		}
	}
	if err := s.lifecycle.Check(app.StateDestroyed); err != nil {
		return err
	}

	if err := s.ctx.backend.SessionDestroy(s.handle.ID); err != nil {
		return s.ctx.backendError("session_destroy", s.handle, err)
	}
	for _, d := range s.devices {
		d.mu.Lock()
		d.session = nil
		d.mu.Unlock()
	}
	s.devices = nil
	s.ctx.sessions.Forget(s.handle.ID)
	return s.lifecycle.TransitionTo(app.StateDestroyed, reason)
}
