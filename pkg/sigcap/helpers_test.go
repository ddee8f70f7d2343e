package sigcap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/sigcap/internal/adapters/sim"
	"github.com/bft-labs/sigcap/internal/ports"
	"github.com/bft-labs/sigcap/pkg/log"
)

func newTestContext(t *testing.T, opts ...Option) (*Context, *sim.Backend) {
	t.Helper()
	backend := sim.New(sim.WithInterval(time.Millisecond), sim.WithChunkSize(64))
	c, err := New(backend, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Destroy() })
	return c, backend
}

// openDevice scans the named driver and opens its device.
func openDevice(t *testing.T, c *Context, driver string) *Device {
	t.Helper()
	ctx := context.Background()
	drv, err := c.Driver(ctx, driver)
	if err != nil {
		t.Fatalf("Driver(%s) error = %v", driver, err)
	}
	devices, err := drv.Scan(ctx, nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if devices.Len() != 1 {
		t.Fatalf("Scan() found %d devices, want 1", devices.Len())
	}
	dev := devices.Items()[0]
	if err := dev.Open(ctx); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return dev
}

// bareBackend hides the optional capabilities of the wrapped backend.
type bareBackend struct {
	ports.Backend
}

// countingBackend counts Close calls.
type countingBackend struct {
	ports.Backend
	mu     sync.Mutex
	closed []uint64
}

func (b *countingBackend) Close(device uint64) error {
	b.mu.Lock()
	b.closed = append(b.closed, device)
	b.mu.Unlock()
	return b.Backend.Close(device)
}

// recordingHandler records events for assertions.
type recordingHandler struct {
	BaseEventHandler
	mu      sync.Mutex
	states  []StateChangeEvent
	errors  []BackendErrorEvent
	packets int
}

func (h *recordingHandler) OnStateChange(e StateChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.states = append(h.states, e)
}

func (h *recordingHandler) OnPacket(PacketEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.packets++
}

func (h *recordingHandler) OnBackendError(e BackendErrorEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, e)
}

func (h *recordingHandler) States() []StateChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]StateChangeEvent(nil), h.states...)
}

func (h *recordingHandler) Errors() []BackendErrorEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]BackendErrorEvent(nil), h.errors...)
}

func (h *recordingHandler) Packets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.packets
}

// slowStopBackend delays SessionStop and fails it while err is set.
type slowStopBackend struct {
	ports.Backend
	delay time.Duration
	mu    sync.Mutex
	err   error
}

func (b *slowStopBackend) setErr(err error) {
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func (b *slowStopBackend) SessionStop(session uint64) error {
	time.Sleep(b.delay)
	b.mu.Lock()
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return err
	}
	return b.Backend.SessionStop(session)
}

// strayBackend reports one packet from a device id nobody scanned before
// handing the sink to the wrapped backend.
type strayBackend struct {
	ports.Backend
	stray uint64
}

func (b *strayBackend) SessionStart(session uint64, sink ports.PacketSink) error {
	sink(b.stray, TriggerPacket{})
	return b.Backend.SessionStart(session, sink)
}

// warnLogger records Warn messages.
type warnLogger struct {
	log.NoopLogger
	mu    sync.Mutex
	warns []string
}

func (l *warnLogger) Warn(msg string, fields ...log.Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *warnLogger) Warns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}
