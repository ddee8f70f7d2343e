// Package usb is an acquisition backend for USB logic analyzers and sound
// level meters. It enumerates the supported instruments and claims them on
// open. Instrument protocols are not implemented, so configuration and
// acquisition report ErrNotSupported.
package usb

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/marshal"
	"github.com/bft-labs/sigcap/internal/ports"
)

// Backend implements ports.Backend on top of a Bus.
type Backend struct {
	mu     sync.Mutex
	bus    Bus
	logger ports.Logger

	nextID   uint64
	drivers  []*ports.DriverDescriptor
	families map[uint64]family
	devices  map[uint64]*device
	byLoc    map[string]uint64
	sessions map[uint64]map[uint64]bool
}

type device struct {
	desc     *ports.DeviceDescriptor
	info     Info
	channels []*ports.ChannelDescriptor
	conn     Conn
}

// Option configures a USB backend.
type Option func(*Backend)

// WithLogger sets the logger used for backend diagnostics.
func WithLogger(l ports.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a backend over bus.
func New(bus Bus, opts ...Option) *Backend {
	b := &Backend{
		bus:      bus,
		logger:   ports.Discard,
		families: make(map[uint64]family),
		devices:  make(map[uint64]*device),
		byLoc:    make(map[string]uint64),
		sessions: make(map[uint64]map[uint64]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, f := range families {
		d := &ports.DriverDescriptor{ID: b.allocID(), Name: f.Name, LongName: f.LongName}
		b.drivers = append(b.drivers, d)
		b.families[d.ID] = f
	}
	return b
}

// allocID must be called with mu held.
func (b *Backend) allocID() uint64 {
	b.nextID++
	return b.nextID
}

// Drivers returns the nil-terminated driver table.
func (b *Backend) Drivers(ctx context.Context) ([]*ports.DriverDescriptor, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	table := make([]*ports.DriverDescriptor, 0, len(b.drivers)+1)
	for _, d := range b.drivers {
		cp := *d
		table = append(table, &cp)
	}
	return append(table, nil), nil
}

// Scan enumerates the bus for models of the driver. A device keeps its
// identity for as long as it stays at the same bus location.
func (b *Backend) Scan(ctx context.Context, driver uint64, _ map[domain.ConfigKey]domain.Variant) (*marshal.Node[*ports.DeviceDescriptor], error) {
	b.mu.Lock()
	f, ok := b.families[driver]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: driver %d", domain.ErrNotFound, driver)
	}

	infos, err := b.bus.Enumerate(ctx, func(vid, pid uint16) bool {
		_, ok := f.classify(vid, pid)
		return ok
	})
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var found []*ports.DeviceDescriptor
	for _, info := range infos {
		m, ok := f.classify(info.VendorID, info.ProductID)
		if !ok {
			continue
		}
		dev := b.deviceAt(driver, m, info)
		found = append(found, dev.snapshot())
	}
	b.logger.Debug("usb scan complete",
		ports.String("driver", f.Name),
		ports.Int("devices", len(found)))
	return marshal.ListOf(found...), nil
}

// deviceAt must be called with mu held.
func (b *Backend) deviceAt(driver uint64, m model, info Info) *device {
	loc := info.Connection()
	if id, ok := b.byLoc[loc]; ok {
		dev := b.devices[id]
		if dev.info.VendorID == info.VendorID && dev.info.ProductID == info.ProductID {
			return dev
		}
	}

	dev := &device{info: info, channels: m.channels(b.allocID)}
	vendor := info.Manufacturer
	if vendor == "" {
		vendor = m.Vendor
	}
	dev.desc = &ports.DeviceDescriptor{
		ID:           b.allocID(),
		Driver:       driver,
		Vendor:       vendor,
		Model:        m.Model,
		SerialNumber: info.Serial,
		Connection:   loc,
	}
	b.devices[dev.desc.ID] = dev
	b.byLoc[loc] = dev.desc.ID
	return dev
}

// snapshot must be called with mu held.
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

// Open claims the device.
func (b *Backend) Open(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, err := b.device(id)
	if err != nil {
		return err
	}
	if dev.conn != nil {
		return fmt.Errorf("%w: device %d already open", domain.ErrInvalidState, id)
	}
	conn, err := b.bus.Open(dev.info)
	if err != nil {
		return err
	}
	dev.conn = conn
	b.logger.Info("usb device claimed",
		ports.String("model", dev.desc.Model),
		ports.String("conn", dev.desc.Connection))
	return nil
}

// Close releases the device. Closing a closed device is a no-op.
func (b *Backend) Close(id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	dev, err := b.device(id)
	if err != nil {
		return err
	}
	if dev.conn == nil {
		return nil
	}
	err = dev.conn.Close()
	dev.conn = nil
	return err
}

func (b *Backend) ConfigGet(id uint64, key domain.ConfigKey) (domain.Variant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.device(id); err != nil {
		return domain.Variant{}, err
	}
	return domain.Variant{}, fmt.Errorf("%w: %s", domain.ErrNotSupported, key)
}

func (b *Backend) ConfigSet(id uint64, key domain.ConfigKey, _ domain.Variant) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.device(id); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", domain.ErrNotSupported, key)
}

// SessionNew allocates a session. Sessions only track membership.
func (b *Backend) SessionNew() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.allocID()
	b.sessions[id] = make(map[uint64]bool)
	return id, nil
}

func (b *Backend) SessionAddDevice(sid, did uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sid]
	if !ok {
		return fmt.Errorf("%w: session %d", domain.ErrNotFound, sid)
	}
	if _, err := b.device(did); err != nil {
		return err
	}
	s[did] = true
	return nil
}

func (b *Backend) SessionRemoveDevice(sid, did uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sid]
	if !ok {
		return fmt.Errorf("%w: session %d", domain.ErrNotFound, sid)
	}
	if !s[did] {
		return fmt.Errorf("%w: device %d not in session %d", domain.ErrNotFound, did, sid)
	}
	delete(s, did)
	return nil
}

// SessionStart fails: no instrument protocol is implemented.
func (b *Backend) SessionStart(sid uint64, _ ports.PacketSink) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sid]; !ok {
		return fmt.Errorf("%w: session %d", domain.ErrNotFound, sid)
	}
	return fmt.Errorf("%w: acquisition over usb", domain.ErrNotSupported)
}

func (b *Backend) SessionStop(sid uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sid]; !ok {
		return fmt.Errorf("%w: session %d", domain.ErrNotFound, sid)
	}
	return fmt.Errorf("%w: session %d not running", domain.ErrInvalidState, sid)
}

func (b *Backend) SessionDestroy(sid uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sessions[sid]; !ok {
		return fmt.Errorf("%w: session %d", domain.ErrNotFound, sid)
	}
	delete(b.sessions, sid)
	return nil
}

// Shutdown releases every claimed device and the bus.
func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, dev := range b.devices {
		if dev.conn != nil {
			_ = dev.conn.Close()
			dev.conn = nil
		}
	}
	return b.bus.Close()
}

var _ ports.Backend = (*Backend)(nil)
