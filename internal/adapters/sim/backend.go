// Package sim provides an in-memory acquisition backend with two demo
// drivers: "demo" (logic channels) and "demo-analog" (analog channels).
// It generates deterministic sample patterns and is useful for tests and
// for trying the CLI without hardware.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/marshal"
	"github.com/bft-labs/sigcap/internal/ports"
)

// Driver names.
const (
	DriverLogic  = "demo"
	DriverAnalog = "demo-analog"
)

const (
	defaultSamplerate     = 200000
	defaultLogicChannels  = 8
	defaultAnalogChannels = 4
	defaultAmplitude      = 10.0
)

// Backend is a simulated acquisition backend. It is safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	interval time.Duration
	chunk    int
	logger   ports.Logger

	nextID   uint64
	drivers  []*ports.DriverDescriptor
	byDriver map[uint64]*device
	devices  map[uint64]*device
	sessions map[uint64]*session
	failures map[string]error

	inputs  []*ports.FormatDescriptor
	outputs []*ports.FormatDescriptor
}

type device struct {
	desc     *ports.DeviceDescriptor
	analog   bool
	channels []*ports.ChannelDescriptor
	config   map[domain.ConfigKey]domain.Variant
	open     bool
	session  uint64
}

// New creates a simulated backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		interval: 10 * time.Millisecond,
		chunk:    256,
		logger:   ports.Discard,
		byDriver: make(map[uint64]*device),
		devices:  make(map[uint64]*device),
		sessions: make(map[uint64]*session),
		failures: make(map[string]error),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.drivers = []*ports.DriverDescriptor{
		{ID: b.allocID(), Name: DriverLogic, LongName: "Demo logic analyzer"},
		{ID: b.allocID(), Name: DriverAnalog, LongName: "Demo analog source"},
	}
	b.inputs = b.formatTable(inputFormats)
	b.outputs = b.formatTable(outputFormats)
	return b
}

func (b *Backend) allocID() uint64 {
	b.nextID++
	return b.nextID
}

// Fail makes every later call of op return err until cleared with a nil
// error. Op names match the BackendError operation names, e.g. "open" or
// "session_start".
func (b *Backend) Fail(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failures, op)
		return
	}
	b.failures[op] = err
}

// failure must be called with mu held.
func (b *Backend) failure(op string) error {
	return b.failures[op]
}

// Drivers returns the nil-terminated driver table.
func (b *Backend) Drivers(ctx context.Context) ([]*ports.DriverDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("drivers"); err != nil {
		return nil, err
	}
	table := make([]*ports.DriverDescriptor, 0, len(b.drivers)+1)
	for _, d := range b.drivers {
		cp := *d
		table = append(table, &cp)
	}
	return append(table, nil), nil
}

// Scan returns the single device of the driver. The device is created on the
// first scan and keeps its identity afterwards; the channel count options
// only apply to that first scan.
func (b *Backend) Scan(ctx context.Context, driver uint64, options map[domain.ConfigKey]domain.Variant) (*marshal.Node[*ports.DeviceDescriptor], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("scan"); err != nil {
		return nil, err
	}

	var drv *ports.DriverDescriptor
	for _, d := range b.drivers {
		if d.ID == driver {
			drv = d
		}
	}
	if drv == nil {
		return nil, fmt.Errorf("%w: driver %d", domain.ErrNotFound, driver)
	}

	dev, ok := b.byDriver[driver]
	if !ok {
		dev = b.newDevice(drv, options)
		b.byDriver[driver] = dev
		b.devices[dev.desc.ID] = dev
		b.logger.Debug("sim device created",
			ports.String("driver", drv.Name),
			ports.Uint64("device", dev.desc.ID))
	}
	return marshal.ListOf(dev.snapshot()), nil
}

func (b *Backend) newDevice(drv *ports.DriverDescriptor, options map[domain.ConfigKey]domain.Variant) *device {
	analog := drv.Name == DriverAnalog
	dev := &device{
		analog: analog,
		config: map[domain.ConfigKey]domain.Variant{
			domain.KeySamplerate:   domain.Uint64Variant(defaultSamplerate),
			domain.KeyLimitSamples: domain.Uint64Variant(0),
			domain.KeyLimitMsec:    domain.Uint64Variant(0),
			domain.KeyContinuous:   domain.NewBool(false),
		},
	}

	if analog {
		n := optionCount(options, domain.KeyNumAnalogChannels, defaultAnalogChannels)
		dev.config[domain.KeyNumAnalogChannels] = domain.Uint64Variant(uint64(n))
		dev.config[domain.KeyPatternAmplitude] = domain.NewFloat64(defaultAmplitude)
		for i := 0; i < n; i++ {
			dev.channels = append(dev.channels, &ports.ChannelDescriptor{
				ID: b.allocID(), Index: i, Name: fmt.Sprintf("A%d", i), Type: ports.ChannelAnalog, Enabled: true,
			})
		}
	} else {
		n := optionCount(options, domain.KeyNumLogicChannels, defaultLogicChannels)
		dev.config[domain.KeyNumLogicChannels] = domain.Uint64Variant(uint64(n))
		dev.config[domain.KeyCaptureRatio] = domain.Uint64Variant(0)
		dev.config[domain.KeyRLE] = domain.NewBool(false)
		for i := 0; i < n; i++ {
			dev.channels = append(dev.channels, &ports.ChannelDescriptor{
				ID: b.allocID(), Index: i, Name: fmt.Sprintf("D%d", i), Type: ports.ChannelLogic, Enabled: true,
			})
		}
	}

	dev.desc = &ports.DeviceDescriptor{
		ID:         b.allocID(),
		Driver:     drv.ID,
		Vendor:     "Demo",
		Model:      drv.LongName,
		Version:    "1.0",
		Connection: "sim:" + drv.Name,
	}
	return dev
}

func optionCount(options map[domain.ConfigKey]domain.Variant, key domain.ConfigKey, def int) int {
	v, ok := options[key]
	if !ok {
		return def
	}
	n, ok := v.Uint64()
	if !ok || n == 0 || n > 64 {
		return def
	}
	return int(n)
}

// snapshot copies the descriptor so callers never share backend state.
// It must be called with mu held.
func (d *device) snapshot() *ports.DeviceDescriptor {
	desc := *d.desc
	cells := make([]*ports.ChannelDescriptor, len(d.channels))
	for i, ch := range d.channels {
		cp := *ch
		cells[i] = &cp
	}
	desc.Channels = marshal.ListOf(cells...)
	return &desc
}

// device must be called with mu held.
func (b *Backend) device(id uint64) (*device, error) {
	dev, ok := b.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: device %d", domain.ErrNotFound, id)
	}
	return dev, nil
}

// Open marks the device open.
func (b *Backend) Open(ctx context.Context, id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("open"); err != nil {
		return err
	}
	dev, err := b.device(id)
	if err != nil {
		return err
	}
	if dev.open {
		return fmt.Errorf("%w: device %d already open", domain.ErrInvalidState, id)
	}
	dev.open = true
	return nil
}

// Close marks the device closed.
func (b *Backend) Close(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("close"); err != nil {
		return err
	}
	dev, err := b.device(id)
	if err != nil {
		return err
	}
	dev.open = false
	return nil
}

// ConfigGet reads a configuration value. Keys the device does not carry
// yield ErrNotSupported.
func (b *Backend) ConfigGet(id uint64, key domain.ConfigKey) (domain.Variant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("config_get"); err != nil {
		return domain.Variant{}, err
	}
	dev, err := b.device(id)
	if err != nil {
		return domain.Variant{}, err
	}
	v, ok := dev.config[key]
	if !ok {
		return domain.Variant{}, fmt.Errorf("%w: %s", domain.ErrNotSupported, key)
	}
	return v, nil
}

// ConfigSet writes a configuration value. Channel counts are fixed after the
// scan.
func (b *Backend) ConfigSet(id uint64, key domain.ConfigKey, value domain.Variant) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("config_set"); err != nil {
		return err
	}
	dev, err := b.device(id)
	if err != nil {
		return err
	}
	if _, ok := dev.config[key]; !ok || key == domain.KeyNumLogicChannels || key == domain.KeyNumAnalogChannels {
		return fmt.Errorf("%w: %s", domain.ErrNotSupported, key)
	}
	if err := key.Check(value); err != nil {
		return err
	}
	if key == domain.KeySamplerate {
		if hz, _ := value.Uint64(); hz == 0 {
			return fmt.Errorf("%w: samplerate must be positive", domain.ErrInvalidArgument)
		}
	}
	dev.config[key] = value
	return nil
}

// ChannelEnable switches a channel on or off.
func (b *Backend) ChannelEnable(id, channel uint64, enabled bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failure("channel_enable"); err != nil {
		return err
	}
	dev, err := b.device(id)
	if err != nil {
		return err
	}
	for _, ch := range dev.channels {
		if ch.ID == channel {
			ch.Enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: channel %d", domain.ErrNotFound, channel)
}

var (
	_ ports.Backend        = (*Backend)(nil)
	_ ports.FormatLister   = (*Backend)(nil)
	_ ports.ChannelEnabler = (*Backend)(nil)
	_ ports.TriggerSetter  = (*Backend)(nil)
)
