package sigcap

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bft-labs/sigcap/internal/adapters/sim"
	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/ports"
)

func TestNew_NilBackend(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("New(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestContext_Drivers(t *testing.T) {
	c, _ := newTestContext(t)
	ctx := context.Background()

	drivers, err := c.Drivers(ctx)
	if err != nil {
		t.Fatalf("Drivers() error = %v", err)
	}
	if !drivers.Present() || drivers.Len() != 2 {
		t.Fatalf("Drivers() = %d drivers (present=%v), want 2", drivers.Len(), drivers.Present())
	}
	if drivers.Items()[0].Name() != sim.DriverLogic {
		t.Errorf("first driver = %s, want %s", drivers.Items()[0].Name(), sim.DriverLogic)
	}

	again, _ := c.Drivers(ctx)
	for i := range drivers.Items() {
		if drivers.Items()[i] != again.Items()[i] {
			t.Errorf("driver %d proxy changed between enumerations", i)
		}
	}

	if _, err := c.Driver(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Driver(nope) error = %v, want ErrNotFound", err)
	}
}

// absentDrivers reports no driver table at all.
type absentDrivers struct {
	ports.Backend
}

func (absentDrivers) Drivers(context.Context) ([]*ports.DriverDescriptor, error) {
	return nil, nil
}

// leadingNilDrivers reports a table whose first entry is the terminator.
type leadingNilDrivers struct {
	ports.Backend
}

func (leadingNilDrivers) Drivers(context.Context) ([]*ports.DriverDescriptor, error) {
	return []*ports.DriverDescriptor{nil, {ID: 1, Name: "hidden"}}, nil
}

func TestContext_Drivers_AbsentVersusEmpty(t *testing.T) {
	tests := []struct {
		name        string
		backend     ports.Backend
		wantPresent bool
	}{
		{"nil table is absent", absentDrivers{sim.New()}, false},
		{"leading terminator is empty", leadingNilDrivers{sim.New()}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.backend)
			if err != nil {
				t.Fatal(err)
			}
			defer c.Destroy()

			drivers, err := c.Drivers(context.Background())
			if err != nil {
				t.Fatalf("Drivers() error = %v", err)
			}
			if drivers.Present() != tt.wantPresent || drivers.Len() != 0 {
				t.Errorf("Drivers() present=%v len=%d, want present=%v len=0",
					drivers.Present(), drivers.Len(), tt.wantPresent)
			}
		})
	}
}

func TestContext_ScanStability(t *testing.T) {
	c, _ := newTestContext(t)
	ctx := context.Background()
	drv, _ := c.Driver(ctx, sim.DriverLogic)

	first, err := drv.Scan(ctx, nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	second, _ := drv.Scan(ctx, nil)
	if first.Items()[0] != second.Items()[0] {
		t.Error("repeated scans should return the same device proxy")
	}

	dev := first.Items()[0]
	if dev.Driver() != drv {
		t.Error("device should point at its driver proxy")
	}
	channels := dev.Channels()
	if channels.Len() != 8 {
		t.Fatalf("got %d channels, want 8", channels.Len())
	}
	ch, err := dev.Channel("D3")
	if err != nil || ch.Index() != 3 || ch.Type() != ChannelLogic || ch.Device() != dev {
		t.Errorf("Channel(D3) = %+v, %v", ch, err)
	}
	if _, err := dev.Channel("X9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Channel(X9) error = %v, want ErrNotFound", err)
	}
}

func TestContext_ScanRejectsBadOptions(t *testing.T) {
	c, _ := newTestContext(t)
	drv, _ := c.Driver(context.Background(), sim.DriverLogic)

	opts := map[ConfigKey]Variant{KeyNumLogicChannels: NewBool(true)}
	if _, err := c.Scan(context.Background(), drv, opts); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Scan() error = %v, want ErrInvalidArgument", err)
	}

	other, _ := newTestContext(t)
	foreign, _ := other.Driver(context.Background(), sim.DriverLogic)
	if _, err := c.Scan(context.Background(), foreign, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Scan(foreign driver) error = %v, want ErrInvalidArgument", err)
	}
}

func TestContext_ScanAll(t *testing.T) {
	c, _ := newTestContext(t)

	devices, err := c.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll() error = %v", err)
	}
	items := devices.Items()
	if len(items) != 2 {
		t.Fatalf("ScanAll() found %d devices, want 2", len(items))
	}
	if items[0].Driver().Name() != sim.DriverLogic || items[1].Driver().Name() != sim.DriverAnalog {
		t.Errorf("devices not in driver order: %s, %s", items[0].Driver().Name(), items[1].Driver().Name())
	}
	if len(c.Devices()) != 2 {
		t.Errorf("Devices() = %d, want 2", len(c.Devices()))
	}
}

func TestContext_ScanAll_PropagatesFailure(t *testing.T) {
	c, backend := newTestContext(t)
	cause := errors.New("probe failed")
	backend.Fail("scan", cause)

	_, err := c.ScanAll(context.Background())
	if !errors.Is(err, ErrBackendFailure) || !errors.Is(err, cause) {
		t.Errorf("ScanAll() error = %v, want backend failure wrapping cause", err)
	}
}

func TestContext_Lookup(t *testing.T) {
	c, _ := newTestContext(t)
	dev := openDevice(t, c, sim.DriverLogic)

	p, err := c.Lookup(Handle{})
	if p != nil || err != nil {
		t.Errorf("Lookup(zero) = %v, %v, want nil, nil", p, err)
	}

	p, err = c.Lookup(dev.Handle())
	if err != nil || p != Proxy(dev) {
		t.Errorf("Lookup(device) = %v, %v, want the device proxy", p, err)
	}

	unknown := domain.NewHandle(domain.KindDevice, 4242)
	if _, err := c.Lookup(unknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(unknown) error = %v, want ErrNotFound", err)
	}
	wrongKind := domain.NewHandle(domain.KindSession, dev.Handle().ID)
	if _, err := c.Lookup(wrongKind); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(wrong kind) error = %v, want ErrNotFound", err)
	}
}

func TestContext_Formats(t *testing.T) {
	c, _ := newTestContext(t)

	in, err := c.InputFormats()
	if err != nil || !in.Present() || in.Len() != 4 {
		t.Errorf("InputFormats() = %d (present=%v), %v", in.Len(), in.Present(), err)
	}
	out, _ := c.OutputFormats()
	if out.Len() != 6 || out.Items()[0].Name() != "bits" {
		t.Errorf("OutputFormats() = %d items", out.Len())
	}

	bare, err := New(bareBackend{sim.New()})
	if err != nil {
		t.Fatal(err)
	}
	defer bare.Destroy()
	none, err := bare.InputFormats()
	if err != nil || none.Present() {
		t.Errorf("InputFormats() without lister = present %v, %v, want absent", none.Present(), err)
	}
}

func TestDevice_OpenClose(t *testing.T) {
	c, _ := newTestContext(t)
	dev := openDevice(t, c, sim.DriverLogic)

	if !dev.IsOpen() {
		t.Error("device should be open")
	}
	if err := dev.Open(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Open() error = %v, want ErrInvalidState", err)
	}
	if err := dev.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := dev.Close(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Close() error = %v, want ErrInvalidState", err)
	}
}

func TestDevice_Config(t *testing.T) {
	c, _ := newTestContext(t)
	dev := openDevice(t, c, sim.DriverLogic)

	if err := dev.SetConfig(KeySamplerate, Uint64Variant(1000000)); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}
	v, err := dev.Config(KeySamplerate)
	if err != nil || v != Uint64Variant(1000000) {
		t.Errorf("Config(samplerate) = %v, %v", v, err)
	}
	if err := dev.SetConfig(KeySamplerate, NewFloat64(1e6)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetConfig(float) error = %v, want ErrInvalidArgument", err)
	}
	if _, err := dev.Config(ConfigKey(99)); !errors.Is(err, ErrNotFound) {
		t.Errorf("Config(unknown) error = %v, want ErrNotFound", err)
	}
	if _, err := dev.Config(KeyPatternAmplitude); !errors.Is(err, ErrNotSupported) {
		t.Errorf("Config(pattern_amplitude) error = %v, want ErrNotSupported", err)
	}
}

func TestChannel_SetEnabled(t *testing.T) {
	c, _ := newTestContext(t)
	dev := openDevice(t, c, sim.DriverLogic)
	ch, _ := dev.Channel("D0")

	if err := ch.SetEnabled(false); err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if ch.Enabled() {
		t.Error("channel should be disabled")
	}

	bare, _ := New(bareBackend{sim.New()})
	defer bare.Destroy()
	bdev := openDevice(t, bare, sim.DriverLogic)
	bch, _ := bdev.Channel("D0")
	if err := bch.SetEnabled(false); !errors.Is(err, ErrNotSupported) {
		t.Errorf("SetEnabled() without enabler = %v, want ErrNotSupported", err)
	}
}

func TestContext_BackendErrors(t *testing.T) {
	h := &recordingHandler{}
	c, backend := newTestContext(t, WithEventHandler(h))
	drv, _ := c.Driver(context.Background(), sim.DriverLogic)
	devices, _ := drv.Scan(context.Background(), nil)
	dev := devices.Items()[0]

	cause := errors.New("usb stall")
	backend.Fail("open", cause)
	err := dev.Open(context.Background())

	if !errors.Is(err, ErrBackendFailure) || !errors.Is(err, cause) {
		t.Fatalf("Open() error = %v, want backend failure wrapping cause", err)
	}
	var be *BackendError
	if !errors.As(err, &be) || be.Op != "open" || be.Resource != dev.Handle() {
		t.Errorf("BackendError = %+v, want op open on %s", be, dev.Handle())
	}
	if dev.IsOpen() {
		t.Error("failed open must not mark the device open")
	}
	if errs := h.Errors(); len(errs) != 1 || errs[0].Op != "open" {
		t.Errorf("OnBackendError events = %+v", errs)
	}
}

func TestContext_Destroy(t *testing.T) {
	counting := &countingBackend{Backend: sim.New()}
	c, err := New(counting)
	if err != nil {
		t.Fatal(err)
	}
	dev := openDevice(t, c, sim.DriverLogic)
	s, _ := c.NewSession()
	_ = s.AddDevice(dev)
	if err := s.Start(func(*Device, Packet) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := c.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}
	if len(counting.closed) != 1 || counting.closed[0] != dev.Handle().ID {
		t.Errorf("closed devices = %v, want [%d]", counting.closed, dev.Handle().ID)
	}
	if s.State() != StateDestroyed {
		t.Errorf("session state = %s, want Destroyed", s.State())
	}

	stale := []struct {
		name string
		call func() error
	}{
		{"drivers", func() error { _, err := c.Drivers(context.Background()); return err }},
		{"new session", func() error { _, err := c.NewSession(); return err }},
		{"lookup", func() error { _, err := c.Lookup(dev.Handle()); return err }},
		{"device open", func() error { return dev.Open(context.Background()) }},
		{"device config", func() error { _, err := dev.Config(KeySamplerate); return err }},
		{"session start", func() error { return s.Start(func(*Device, Packet) {}) }},
		{"session destroy", s.Destroy},
		{"destroy twice", c.Destroy},
	}
	for _, tt := range stale {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidState) {
				t.Errorf("error = %v, want ErrInvalidState", err)
			}
		})
	}
}

// trackingPlugin records initialization and shutdown order.
type trackingPlugin struct {
	BaseEventHandler
	name    string
	mu      *sync.Mutex
	order   *[]string
	initErr error
	packets int
}

func (p *trackingPlugin) Name() string { return p.name }

func (p *trackingPlugin) Initialize(ctx context.Context, cfg PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.Context == nil || cfg.Logger == nil {
		return errors.New("incomplete plugin config")
	}
	*p.order = append(*p.order, "init:"+p.name)
	return p.initErr
}

func (p *trackingPlugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	*p.order = append(*p.order, "shutdown:"+p.name)
	return nil
}

func (p *trackingPlugin) OnPacket(PacketEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.packets++
}

func TestPlugins_Order(t *testing.T) {
	var mu sync.Mutex
	var order []string
	a := &trackingPlugin{name: "a", mu: &mu, order: &order}
	b := &trackingPlugin{name: "b", mu: &mu, order: &order}

	c, err := New(sim.New(), WithPlugin(a), WithPlugin(b))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := c.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	want := []string{"init:a", "init:b", "shutdown:b", "shutdown:a"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestPlugins_InitFailureUnwinds(t *testing.T) {
	var mu sync.Mutex
	var order []string
	a := &trackingPlugin{name: "a", mu: &mu, order: &order}
	b := &trackingPlugin{name: "b", mu: &mu, order: &order, initErr: errors.New("no port")}

	if _, err := New(sim.New(), WithPlugin(a), WithPlugin(b)); err == nil {
		t.Fatal("New() should fail when a plugin fails to initialize")
	}
	want := []string{"init:a", "init:b", "shutdown:a"}
	if len(order) != len(want) || order[2] != want[2] {
		t.Errorf("order = %v, want %v", order, want)
	}
}
