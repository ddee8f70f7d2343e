package sigcap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/marshal"
	"github.com/bft-labs/sigcap/internal/ports"
	"github.com/bft-labs/sigcap/internal/registry"
	"github.com/bft-labs/sigcap/pkg/log"
)

// Context is the process-wide entry point to a backend. It owns the proxies
// for every driver, device, session and format it hands out; Destroy
// invalidates all of them.
type Context struct {
	backend ports.Backend
	logger  ports.Logger
	events  handlers
	plugins []Plugin
	opts    options

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	destroyed bool

	drivers  *registry.Registry[*Driver]
	devices  *registry.Registry[*Device]
	channels *registry.Registry[*Channel]
	sessions *registry.Registry[*Session]
	inputs   *registry.Registry[*Format]
	outputs  *registry.Registry[*Format]
}

// New creates a Context on top of backend and initializes plugins.
// If a plugin fails to initialize, the plugins initialized before it are
// shut down and the error is returned.
func New(backend Backend, opts ...Option) (*Context, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrInvalidArgument)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	events := handlers(append([]EventHandler(nil), o.handlers...))
	for _, p := range o.plugins {
		if h, ok := p.(EventHandler); ok {
			events = append(events, h)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Context{
		backend:  backend,
		logger:   o.logger,
		events:   events,
		opts:     o,
		ctx:      ctx,
		cancel:   cancel,
		drivers:  registry.New[*Driver](domain.KindDriver),
		devices:  registry.New[*Device](domain.KindDevice),
		channels: registry.New[*Channel](domain.KindChannel),
		sessions: registry.New[*Session](domain.KindSession),
		inputs:   registry.New[*Format](domain.KindInputFormat),
		outputs:  registry.New[*Format](domain.KindOutputFormat),
	}

	pluginCfg := PluginConfig{Logger: c.logger, Context: c}
	for _, p := range o.plugins {
		if err := p.Initialize(ctx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			c.shutdownPlugins()
			cancel()
			return nil, fmt.Errorf("plugin %s: %w", p.Name(), err)
		}
		c.plugins = append(c.plugins, p)
		c.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	return c, nil
}

// alive returns ErrInvalidState once the context was destroyed.
func (c *Context) alive() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.destroyed {
		return fmt.Errorf("%w: context destroyed", ErrInvalidState)
	}
	return nil
}

// backendError wraps a failed backend call and reports it.
func (c *Context) backendError(op string, resource Handle, err error) error {
	if err == nil {
		return nil
	}
	wrapped := domain.NewBackendError(op, resource, err)
	c.logger.Error("backend call failed",
		ports.String("op", op),
		ports.String("resource", resource.String()),
		ports.Err(err))
	c.events.OnBackendError(BackendErrorEvent{Op: op, Resource: resource, Err: err})
	return wrapped
}

// Drivers lists the drivers known to the backend. The sequence is absent
// when the backend provides no driver table.
func (c *Context) Drivers(ctx context.Context) (marshal.Seq[*Driver], error) {
	if err := c.alive(); err != nil {
		return marshal.Absent[*Driver](), err
	}
	table, err := c.backend.Drivers(ctx)
	if err != nil {
		return marshal.Absent[*Driver](), c.backendError("drivers", Handle{}, err)
	}
	return marshal.FromArray(table, c.driverProxy)
}

func (c *Context) driverProxy(d *ports.DriverDescriptor) (*Driver, bool, error) {
	drv, ok := c.drivers.Resolve(d.ID, func(h Handle) *Driver {
		return &Driver{ctx: c, handle: h, name: d.Name, longName: d.LongName}
	})
	return drv, ok, nil
}

// Driver returns the driver with the given short name.
func (c *Context) Driver(ctx context.Context, name string) (*Driver, error) {
	drivers, err := c.Drivers(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drivers.Items() {
		if d.name == name {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: driver %q", ErrNotFound, name)
}

// Scan probes drv for devices. Options are checked against their key kinds
// before reaching the backend.
func (c *Context) Scan(ctx context.Context, drv *Driver, scanOpts map[ConfigKey]Variant) (marshal.Seq[*Device], error) {
	if err := c.alive(); err != nil {
		return marshal.Absent[*Device](), err
	}
	if drv == nil || drv.ctx != c {
		return marshal.Absent[*Device](), fmt.Errorf("%w: driver not owned by this context", ErrInvalidArgument)
	}
	for k, v := range scanOpts {
		if err := k.Check(v); err != nil {
			return marshal.Absent[*Device](), err
		}
	}

	head, err := c.backend.Scan(ctx, drv.handle.ID, scanOpts)
	if err != nil {
		return marshal.Absent[*Device](), c.backendError("scan", drv.handle, err)
	}
	devices, err := marshal.FromList(head, func(d *ports.DeviceDescriptor) (*Device, bool, error) {
		return c.deviceProxy(drv, d)
	})
	if err != nil {
		return marshal.Absent[*Device](), err
	}
	c.logger.Debug("scan complete",
		ports.String("driver", drv.name),
		ports.Int("devices", devices.Len()))
	return devices, nil
}

func (c *Context) deviceProxy(drv *Driver, d *ports.DeviceDescriptor) (*Device, bool, error) {
	if d.ID == 0 {
		return nil, false, nil
	}
	if dev, ok := c.devices.Lookup(d.ID); ok {
		return dev, true, nil
	}

	owner := drv
	if d.Driver != 0 && d.Driver != drv.handle.ID {
		if other, ok := c.drivers.Lookup(d.Driver); ok {
			owner = other
		}
	}
	dev, ok := c.devices.Resolve(d.ID, func(h Handle) *Device {
		return &Device{
			ctx:        c,
			handle:     h,
			driver:     owner,
			vendor:     d.Vendor,
			model:      d.Model,
			version:    d.Version,
			serial:     d.SerialNumber,
			connection: d.Connection,
		}
	})
	if !ok {
		return nil, false, nil
	}

	channels, err := marshal.FromList(d.Channels, func(ch *ports.ChannelDescriptor) (*Channel, bool, error) {
		return c.channelProxy(dev, ch)
	})
	if err != nil {
		return nil, false, err
	}
	dev.setChannels(channels)
	return dev, true, nil
}

func (c *Context) channelProxy(dev *Device, ch *ports.ChannelDescriptor) (*Channel, bool, error) {
	proxy, ok := c.channels.Resolve(ch.ID, func(h Handle) *Channel {
		return &Channel{
			ctx:     c,
			handle:  h,
			device:  dev,
			index:   ch.Index,
			name:    ch.Name,
			typ:     ch.Type,
			enabled: ch.Enabled,
		}
	})
	return proxy, ok, nil
}

// ScanAll scans every driver concurrently and returns the devices in driver
// order. The first failing scan cancels the others.
func (c *Context) ScanAll(ctx context.Context) (marshal.Seq[*Device], error) {
	drivers, err := c.Drivers(ctx)
	if err != nil {
		return marshal.Absent[*Device](), err
	}

	list := drivers.Items()
	results := make([][]*Device, len(list))
	g, gctx := errgroup.WithContext(ctx)
	for i, drv := range list {
		g.Go(func() error {
			devices, err := c.Scan(gctx, drv, nil)
			if err != nil {
				return err
			}
			results[i] = devices.Items()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return marshal.Absent[*Device](), err
	}

	var all []*Device
	for _, r := range results {
		all = append(all, r...)
	}
	return marshal.Of(all...), nil
}

// Devices returns every device proxy seen so far, ordered by identity.
func (c *Context) Devices() []*Device {
	return c.devices.Proxies()
}

// Lookup resolves a handle to the proxy registered for it. The zero handle
// denotes "no object" and yields (nil, nil).
func (c *Context) Lookup(h Handle) (Proxy, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if h.IsZero() {
		return nil, nil
	}
	switch h.Kind {
	case domain.KindDriver:
		return asProxy(c.drivers.Get(h))
	case domain.KindDevice:
		return asProxy(c.devices.Get(h))
	case domain.KindChannel:
		return asProxy(c.channels.Get(h))
	case domain.KindSession:
		return asProxy(c.sessions.Get(h))
	case domain.KindInputFormat:
		return asProxy(c.inputs.Get(h))
	case domain.KindOutputFormat:
		return asProxy(c.outputs.Get(h))
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, h)
	}
}

func asProxy[P Proxy](p P, err error) (Proxy, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// InputFormats lists the input format modules. The sequence is absent when
// the backend ships none.
func (c *Context) InputFormats() (marshal.Seq[*Format], error) {
	return c.formats(func(l ports.FormatLister) []*ports.FormatDescriptor { return l.InputFormats() }, c.inputs)
}

// OutputFormats lists the output format modules. The sequence is absent
// when the backend ships none.
func (c *Context) OutputFormats() (marshal.Seq[*Format], error) {
	return c.formats(func(l ports.FormatLister) []*ports.FormatDescriptor { return l.OutputFormats() }, c.outputs)
}

func (c *Context) formats(table func(ports.FormatLister) []*ports.FormatDescriptor, reg *registry.Registry[*Format]) (marshal.Seq[*Format], error) {
	if err := c.alive(); err != nil {
		return marshal.Absent[*Format](), err
	}
	lister, ok := c.backend.(ports.FormatLister)
	if !ok {
		return marshal.Absent[*Format](), nil
	}
	return marshal.FromArray(table(lister), func(f *ports.FormatDescriptor) (*Format, bool, error) {
		proxy, ok := reg.Resolve(f.ID, func(h Handle) *Format {
			return &Format{handle: h, name: f.Name, description: f.Description}
		})
		return proxy, ok, nil
	})
}

// NewSession opens a new, empty session owned by this context.
func (c *Context) NewSession() (*Session, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	id, err := c.backend.SessionNew()
	if err != nil {
		return nil, c.backendError("session_new", Handle{}, err)
	}
	s, ok := c.sessions.Resolve(id, func(h Handle) *Session {
		return newSession(c, h)
	})
	if !ok {
		return nil, c.backendError("session_new", Handle{}, errors.New("backend returned no session"))
	}
	c.logger.Debug("session opened", ports.String("session", s.handle.String()))
	return s, nil
}

// Sessions returns the live sessions, ordered by identity.
func (c *Context) Sessions() []*Session {
	return c.sessions.Proxies()
}

// Destroy stops and destroys every live session, closes open devices,
// shuts down plugins and invalidates every proxy handed out by the context.
// Calling Destroy twice returns ErrInvalidState.
func (c *Context) Destroy() error {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return fmt.Errorf("%w: context already destroyed", ErrInvalidState)
	}
	c.destroyed = true
	c.mu.Unlock()

	var errs []error
	for _, s := range c.sessions.Reset() {
		if err := s.destroy("context destroyed"); err != nil && !errors.Is(err, ErrInvalidState) {
			errs = append(errs, err)
		}
		// The session is unreachable from here on, even if its backend
		// failed to stop.
		s.detach()
	}
	for _, d := range c.devices.Reset() {
		if err := d.release(); err != nil {
			errs = append(errs, err)
		}
	}
	c.drivers.Reset()
	c.channels.Reset()
	c.inputs.Reset()
	c.outputs.Reset()

	c.cancel()
	if err := c.shutdownPlugins(); err != nil {
		errs = append(errs, err)
	}

	c.logger.Info("context destroyed")
	return errors.Join(errs...)
}

// shutdownPlugins shuts plugins down in reverse order within the shutdown
// timeout.
func (c *Context) shutdownPlugins() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.shutdownTimeout)
	defer cancel()

	var timedOut bool
	for i := len(c.plugins) - 1; i >= 0; i-- {
		p := c.plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			if errors.Is(err, context.DeadlineExceeded) {
				timedOut = true
			}
			continue
		}
		c.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
	}
	c.plugins = nil

	if timedOut || ctx.Err() != nil {
		return ErrShutdownTimeout
	}
	return nil
}

// Logger returns the context logger bound to the given fields.
func (c *Context) Logger(fields ...log.Field) log.Logger {
	return log.With(c.logger, fields...)
}
