package usb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/gousb"
)

// Info identifies one device on the bus.
type Info struct {
	VendorID     uint16
	ProductID    uint16
	Bus          int
	Address      int
	Manufacturer string
	Product      string
	Serial       string
}

// Connection renders the bus location in "bus.address" form.
func (i Info) Connection() string {
	return fmt.Sprintf("usb:%d.%d", i.Bus, i.Address)
}

// Conn is a claimed device.
type Conn interface {
	Close() error
}

// Bus enumerates and claims USB devices.
type Bus interface {
	// Enumerate lists the devices for which match returns true.
	Enumerate(ctx context.Context, match func(vid, pid uint16) bool) ([]Info, error)

	// Open claims the default interface of the device at info's location.
	Open(info Info) (Conn, error)

	Close() error
}

// GousbBus is the libusb-backed Bus.
type GousbBus struct {
	mu  sync.Mutex
	ctx *gousb.Context
}

// NewGousbBus opens a libusb context.
func NewGousbBus() *GousbBus {
	return &GousbBus{ctx: gousb.NewContext()}
}

// Enumerate opens each matching device briefly to read its string
// descriptors. Devices the process may not access are skipped.
func (b *GousbBus) Enumerate(ctx context.Context, match func(vid, pid uint16) bool) ([]Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return match(uint16(desc.Vendor), uint16(desc.Product))
	})
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(devs))
	for _, d := range devs {
		info := Info{
			VendorID:  uint16(d.Desc.Vendor),
			ProductID: uint16(d.Desc.Product),
			Bus:       d.Desc.Bus,
			Address:   d.Desc.Address,
		}
		// String descriptors are optional; a device without them is still usable.
		info.Manufacturer, _ = d.Manufacturer()
		info.Product, _ = d.Product()
		info.Serial, _ = d.SerialNumber()
		infos = append(infos, info)
	}
	return infos, nil
}

// Open claims the default interface of the device.
func (b *GousbBus) Open(info Info) (Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	devs, err := b.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == info.Bus && desc.Address == info.Address
	})
	if err != nil && len(devs) == 0 {
		return nil, err
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("no device at %s", info.Connection())
	}
	dev := devs[0]
	for _, extra := range devs[1:] {
		extra.Close()
	}

	// Not supported on every platform.
	_ = dev.SetAutoDetach(true)

	_, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("claim interface: %w", err)
	}
	return &gousbConn{dev: dev, done: done}, nil
}

// Close releases the libusb context.
func (b *GousbBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx.Close()
}

type gousbConn struct {
	dev  *gousb.Device
	done func()
}

func (c *gousbConn) Close() error {
	c.done()
	return c.dev.Close()
}
