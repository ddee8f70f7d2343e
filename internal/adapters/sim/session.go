package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/ports"
	"github.com/bft-labs/sigcap/pkg/trigger"
)

type session struct {
	id      uint64
	devices []uint64
	trigger *trigger.Trigger
	cancel  context.CancelFunc
	done    chan struct{}
}

// session must be called with mu held.
func (b *Backend) session(id uint64) (*session, error) {
	s, ok := b.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %d", domain.ErrNotFound, id)
	}
	return s, nil
}

// SessionNew allocates a session.
func (b *Backend) SessionNew() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("session_new"); err != nil {
		return 0, err
	}
	s := &session{id: b.allocID()}
	b.sessions[s.id] = s
	return s.id, nil
}

// SessionAddDevice attaches a device to a stopped session.
func (b *Backend) SessionAddDevice(sid, did uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("session_add_device"); err != nil {
		return err
	}
	s, err := b.session(sid)
	if err != nil {
		return err
	}
	dev, err := b.device(did)
	if err != nil {
		return err
	}
	if s.cancel != nil {
		return fmt.Errorf("%w: session %d running", domain.ErrInvalidState, sid)
	}
	if dev.session != 0 {
		return fmt.Errorf("%w: device %d in session %d", domain.ErrInvalidState, did, dev.session)
	}
	dev.session = sid
	s.devices = append(s.devices, did)
	return nil
}

// SessionRemoveDevice detaches a device from a stopped session.
func (b *Backend) SessionRemoveDevice(sid, did uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("session_remove_device"); err != nil {
		return err
	}
	s, err := b.session(sid)
	if err != nil {
		return err
	}
	if s.cancel != nil {
		return fmt.Errorf("%w: session %d running", domain.ErrInvalidState, sid)
	}
	for i, id := range s.devices {
		if id == did {
			s.devices = append(s.devices[:i], s.devices[i+1:]...)
			if dev, ok := b.devices[did]; ok {
				dev.session = 0
			}
			return nil
		}
	}
	return fmt.Errorf("%w: device %d not in session %d", domain.ErrNotFound, did, sid)
}

// SessionSetTrigger installs the trigger used by the next start.
func (b *Backend) SessionSetTrigger(sid uint64, t *trigger.Trigger) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("session_set_trigger"); err != nil {
		return err
	}
	s, err := b.session(sid)
	if err != nil {
		return err
	}
	if s.cancel != nil {
		return fmt.Errorf("%w: session %d running", domain.ErrInvalidState, sid)
	}
	s.trigger = t
	return nil
}

// SessionStart starts one acquisition goroutine for the session. Every
// device must be open.
func (b *Backend) SessionStart(sid uint64, sink ports.PacketSink) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("session_start"); err != nil {
		return err
	}
	s, err := b.session(sid)
	if err != nil {
		return err
	}
	if s.cancel != nil {
		return fmt.Errorf("%w: session %d already running", domain.ErrInvalidState, sid)
	}

	streams := make([]*stream, 0, len(s.devices))
	for _, did := range s.devices {
		dev, err := b.device(did)
		if err != nil {
			return err
		}
		if !dev.open {
			return fmt.Errorf("%w: device %d not open", domain.ErrInvalidState, did)
		}
		streams = append(streams, newStream(did, dev, s.trigger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go b.run(ctx, streams, sink, s.done)

	b.logger.Debug("sim session started",
		ports.Uint64("session", sid),
		ports.Int("devices", len(streams)))
	return nil
}

// SessionStop cancels the acquisition goroutine and waits for it to exit,
// so the sink is never invoked after SessionStop returns.
func (b *Backend) SessionStop(sid uint64) error {
	b.mu.Lock()
	if err := b.failure("session_stop"); err != nil {
		b.mu.Unlock()
		return err
	}
	s, err := b.session(sid)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("%w: session %d not running", domain.ErrInvalidState, sid)
	}
	cancel()
	<-done
	return nil
}

// SessionDestroy stops the session if needed and releases its devices.
func (b *Backend) SessionDestroy(sid uint64) error {
	b.mu.Lock()
	if err := b.failure("session_destroy"); err != nil {
		b.mu.Unlock()
		return err
	}
	s, err := b.session(sid)
	if err != nil {
		b.mu.Unlock()
		return err
	}
	cancel, done := s.cancel, s.done
	for _, did := range s.devices {
		if dev, ok := b.devices[did]; ok {
			dev.session = 0
		}
	}
	delete(b.sessions, sid)
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// run paces packet generation with a ticker. Each stream sends a Header,
// data packets until its limits are reached, then an End. Cancellation
// ends every stream that is still running.
func (b *Backend) run(ctx context.Context, streams []*stream, sink ports.PacketSink, done chan struct{}) {
	defer close(done)

	start := time.Now()
	for _, st := range streams {
		sink(st.id, domain.Header{StartTime: start})
	}

	tick := time.NewTicker(b.interval)
	defer tick.Stop()
	for {
		active := 0
		for _, st := range streams {
			if st.finished {
				continue
			}
			st.emit(sink, b.chunk, time.Since(start))
			if st.finished {
				sink(st.id, domain.End{})
				continue
			}
			active++
		}
		if active == 0 {
			return
		}

		select {
		case <-ctx.Done():
			for _, st := range streams {
				if !st.finished {
					st.finished = true
					sink(st.id, domain.End{})
				}
			}
			return
		case <-tick.C:
		}
	}
}

// stream generates the samples of one device.
type stream struct {
	id       uint64
	analog   bool
	unitSize int
	mask     uint64
	indices  []int

	limitSamples uint64
	limitTime    time.Duration
	amplitude    float64

	eval     *trigger.Evaluator
	pos      uint64
	sent     uint64
	finished bool
}

func newStream(id uint64, dev *device, t *trigger.Trigger) *stream {
	st := &stream{id: id, analog: dev.analog}
	if v, ok := dev.config[domain.KeyLimitSamples].Uint64(); ok {
		st.limitSamples = v
	}
	if v, ok := dev.config[domain.KeyLimitMsec].Uint64(); ok {
		st.limitTime = time.Duration(v) * time.Millisecond
	}
	if v, ok := dev.config[domain.KeyPatternAmplitude].Float64(); ok {
		st.amplitude = v
	}

	names := make(map[string]bool)
	for _, ch := range dev.channels {
		names[ch.Name] = true
		if !ch.Enabled {
			continue
		}
		st.indices = append(st.indices, ch.Index)
		if ch.Index < 64 {
			st.mask |= 1 << uint(ch.Index)
		}
	}
	st.unitSize = (len(dev.channels) + 7) / 8
	if st.unitSize == 0 {
		st.unitSize = 1
	}

	if t != nil && triggerUses(t, names) {
		st.eval = trigger.NewEvaluator(t)
	}
	return st
}

func triggerUses(t *trigger.Trigger, names map[string]bool) bool {
	for _, s := range t.Stages {
		for _, m := range s.Matches {
			if names[m.Channel.Name] {
				return true
			}
		}
	}
	return false
}

func (st *stream) emit(sink ports.PacketSink, chunk int, elapsed time.Duration) {
	if st.limitTime > 0 && elapsed >= st.limitTime {
		st.finished = true
		return
	}
	n := uint64(chunk)
	if st.limitSamples > 0 {
		if remaining := st.limitSamples - st.sent; remaining < n {
			n = remaining
		}
	}
	if n == 0 {
		st.finished = true
		return
	}

	if st.analog {
		st.emitAnalog(sink, int(n))
	} else {
		st.emitLogic(sink, int(n))
	}
	if st.limitSamples > 0 && st.sent >= st.limitSamples {
		st.finished = true
	}
}

// emitLogic sends an incrementing pattern masked to the enabled channels.
func (st *stream) emitLogic(sink ports.PacketSink, n int) {
	data := make([]byte, n*st.unitSize)
	for i := 0; i < n; i++ {
		v := (st.pos + uint64(i)) & st.mask
		for j := 0; j < st.unitSize; j++ {
			data[i*st.unitSize+j] = byte(v >> (8 * uint(j)))
		}
	}
	st.pos += uint64(n)

	if st.eval != nil && !st.eval.Fired() {
		off := st.eval.Logic(data, st.unitSize)
		if off < 0 {
			return
		}
		sink(st.id, domain.Trigger{})
		data = data[off*st.unitSize:]
	}
	if len(data) == 0 {
		return
	}
	sink(st.id, domain.Logic{UnitSize: st.unitSize, Data: data})
	st.sent += uint64(len(data) / st.unitSize)
}

// emitAnalog sends one phase-shifted sine per enabled channel.
func (st *stream) emitAnalog(sink ports.PacketSink, n int) {
	if len(st.indices) == 0 {
		st.sent += uint64(n)
		return
	}
	channels := append([]int(nil), st.indices...)
	values := make([]float32, n*len(channels))
	for i := 0; i < n; i++ {
		for j, ch := range channels {
			phase := float64(st.pos+uint64(i)+uint64(ch*16)) / 64
			values[i*len(channels)+j] = float32(st.amplitude * math.Sin(2*math.Pi*phase))
		}
	}
	st.pos += uint64(n)

	if st.eval != nil && !st.eval.Fired() {
		off := st.eval.Analog(channels, values)
		if off < 0 {
			return
		}
		sink(st.id, domain.Trigger{})
		values = values[off*len(channels):]
	}
	if len(values) == 0 {
		return
	}
	sink(st.id, domain.Analog{Channels: channels, Values: values, Unit: "V"})
	st.sent += uint64(len(values) / len(channels))
}
