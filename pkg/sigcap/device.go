package sigcap

import (
	"context"
	"fmt"
	"sync"

	"github.com/bft-labs/sigcap/internal/marshal"
	"github.com/bft-labs/sigcap/internal/ports"
	"github.com/bft-labs/sigcap/pkg/trigger"
)

// Proxy is implemented by every object that stands for a backend resource.
type Proxy interface {
	Handle() Handle
}

// Driver is the proxy of a device driver.
type Driver struct {
	ctx      *Context
	handle   Handle
	name     string
	longName string
}

func (d *Driver) Handle() Handle   { return d.handle }
func (d *Driver) Name() string     { return d.name }
func (d *Driver) LongName() string { return d.longName }
func (d *Driver) String() string   { return d.name }

// Scan probes the driver for devices.
func (d *Driver) Scan(ctx context.Context, opts map[ConfigKey]Variant) (marshal.Seq[*Device], error) {
	return d.ctx.Scan(ctx, d, opts)
}

// Format is the proxy of an input or output format module.
type Format struct {
	handle      Handle
	name        string
	description string
}

func (f *Format) Handle() Handle      { return f.handle }
func (f *Format) Name() string        { return f.name }
func (f *Format) Description() string { return f.description }

// Device is the proxy of a device instance found by a scan.
type Device struct {
	ctx        *Context
	handle     Handle
	driver     *Driver
	vendor     string
	model      string
	version    string
	serial     string
	connection string

	mu       sync.Mutex
	channels marshal.Seq[*Channel]
	open     bool
	session  *Session
}

func (d *Device) Handle() Handle       { return d.handle }
func (d *Device) Driver() *Driver      { return d.driver }
func (d *Device) Vendor() string       { return d.vendor }
func (d *Device) Model() string        { return d.model }
func (d *Device) Version() string      { return d.version }
func (d *Device) SerialNumber() string { return d.serial }
func (d *Device) Connection() string   { return d.connection }

func (d *Device) handleOrZero() Handle {
	if d == nil {
		return Handle{}
	}
	return d.handle
}

func (d *Device) String() string {
	return fmt.Sprintf("%s %s %s", d.vendor, d.model, d.handle)
}

func (d *Device) setChannels(channels marshal.Seq[*Channel]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels = channels
}

// Channels returns the device channels in backend order.
func (d *Device) Channels() marshal.Seq[*Channel] {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels
}

// Channel returns the channel with the given name.
func (d *Device) Channel(name string) (*Channel, error) {
	for _, ch := range d.Channels().Items() {
		if ch.name == name {
			return ch, nil
		}
	}
	return nil, fmt.Errorf("%w: channel %q on %s", ErrNotFound, name, d.handle)
}

// TriggerChannels describes the device channels for trigger parsing.
func (d *Device) TriggerChannels() []trigger.Channel {
	var out []trigger.Channel
	for _, ch := range d.Channels().Items() {
		out = append(out, trigger.Channel{
			Name:   ch.name,
			Index:  ch.index,
			Analog: ch.typ == ports.ChannelAnalog,
		})
	}
	return out
}

// IsOpen reports whether the device was opened.
func (d *Device) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Session returns the session currently owning the device, or nil.
func (d *Device) Session() *Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

// Open acquires the device. Opening an open device is ErrInvalidState.
func (d *Device) Open(ctx context.Context) error {
	if err := d.ctx.alive(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		return fmt.Errorf("%w: %s already open", ErrInvalidState, d.handle)
	}
	if err := d.ctx.backend.Open(ctx, d.handle.ID); err != nil {
		return d.ctx.backendError("open", d.handle, err)
	}
	d.open = true
	d.ctx.logger.Info("device opened",
		ports.String("device", d.handle.String()),
		ports.String("model", d.model))
	return nil
}

// Close releases the device. A device owned by a session cannot be closed.
func (d *Device) Close() error {
	if err := d.ctx.alive(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		return fmt.Errorf("%w: %s not open", ErrInvalidState, d.handle)
	}
	if d.session != nil {
		return fmt.Errorf("%w: %s is owned by %s", ErrInvalidState, d.handle, d.session.handle)
	}
	return d.closeLocked()
}

func (d *Device) closeLocked() error {
	if err := d.ctx.backend.Close(d.handle.ID); err != nil {
		return d.ctx.backendError("close", d.handle, err)
	}
	d.open = false
	d.ctx.logger.Info("device closed", ports.String("device", d.handle.String()))
	return nil
}

// release closes the device during context teardown, ignoring ownership.
func (d *Device) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = nil
	if !d.open {
		return nil
	}
	return d.closeLocked()
}

// Config reads a configuration value from the device.
func (d *Device) Config(key ConfigKey) (Variant, error) {
	if err := d.ctx.alive(); err != nil {
		return Variant{}, err
	}
	if !key.Valid() {
		return Variant{}, fmt.Errorf("%w: config key %d", ErrNotFound, key)
	}
	v, err := d.ctx.backend.ConfigGet(d.handle.ID, key)
	if err != nil {
		return Variant{}, d.ctx.backendError("config_get", d.handle, err)
	}
	return v, nil
}

// SetConfig writes a configuration value to the device. The value kind must
// match the key.
func (d *Device) SetConfig(key ConfigKey, value Variant) error {
	if err := d.ctx.alive(); err != nil {
		return err
	}
	if err := key.Check(value); err != nil {
		return err
	}
	if err := d.ctx.backend.ConfigSet(d.handle.ID, key, value); err != nil {
		return d.ctx.backendError("config_set", d.handle, err)
	}
	d.ctx.logger.Debug("device configured",
		ports.String("device", d.handle.String()),
		ports.String("key", key.String()),
		ports.String("value", value.String()))
	return nil
}

// Channel is the proxy of one device probe.
type Channel struct {
	ctx    *Context
	handle Handle
	device *Device
	index  int
	name   string
	typ    ChannelType

	mu      sync.Mutex
	enabled bool
}

func (c *Channel) Handle() Handle    { return c.handle }
func (c *Channel) Device() *Device   { return c.device }
func (c *Channel) Index() int        { return c.index }
func (c *Channel) Name() string      { return c.name }
func (c *Channel) Type() ChannelType { return c.typ }

// Enabled reports whether the channel takes part in acquisition.
func (c *Channel) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetEnabled switches the channel on or off. It returns ErrNotSupported
// when the backend cannot toggle channels.
func (c *Channel) SetEnabled(enabled bool) error {
	if err := c.ctx.alive(); err != nil {
		return err
	}
	enabler, ok := c.ctx.backend.(ports.ChannelEnabler)
	if !ok {
		return fmt.Errorf("%w: channel enable", ErrNotSupported)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := enabler.ChannelEnable(c.device.handle.ID, c.handle.ID, enabled); err != nil {
		return c.ctx.backendError("channel_enable", c.handle, err)
	}
	c.enabled = enabled
	return nil
}
