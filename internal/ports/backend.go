package ports

import (
	"context"

	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/internal/marshal"
	"github.com/bft-labs/sigcap/pkg/trigger"
)

// DriverDescriptor describes one device driver known to the backend.
type DriverDescriptor struct {
	ID       uint64
	Name     string
	LongName string
}

// ChannelType distinguishes logic from analog channels.
type ChannelType uint8

const (
	ChannelLogic ChannelType = iota + 1
	ChannelAnalog
)

// String returns a human-readable representation of the channel type.
func (t ChannelType) String() string {
	switch t {
	case ChannelLogic:
		return "logic"
	case ChannelAnalog:
		return "analog"
	default:
		return "unknown"
	}
}

// ChannelDescriptor describes one probe of a device.
type ChannelDescriptor struct {
	ID      uint64
	Index   int
	Name    string
	Type    ChannelType
	Enabled bool
}

// DeviceDescriptor describes one device instance found by a driver scan.
type DeviceDescriptor struct {
	ID           uint64
	Driver       uint64
	Vendor       string
	Model        string
	Version      string
	SerialNumber string
	Connection   string
	Channels     *marshal.Node[*ChannelDescriptor]
}

// FormatDescriptor describes an input or output format module.
type FormatDescriptor struct {
	ID          uint64
	Name        string
	Description string
}

// PacketSink receives packets produced by the backend. It is invoked on the
// backend's I/O goroutine, one packet at a time, in production order.
type PacketSink func(device uint64, packet domain.Packet)

// Backend is the capability surface of the native acquisition library.
//
// Identities are opaque non-zero integers chosen by the backend; zero means
// "no object". Collections use native shapes: Drivers returns a nil-terminated
// table (nil means the table is not provided) and Scan returns a linked list
// (nil means no devices).
type Backend interface {
	// Drivers enumerates the drivers compiled into the backend.
	Drivers(ctx context.Context) ([]*DriverDescriptor, error)

	// Scan probes a driver for devices. Options are driver scan options
	// such as a connection string; nil means defaults.
	Scan(ctx context.Context, driver uint64, options map[domain.ConfigKey]domain.Variant) (*marshal.Node[*DeviceDescriptor], error)

	// Open acquires the device for use.
	Open(ctx context.Context, device uint64) error

	// Close releases the device.
	Close(device uint64) error

	// ConfigGet reads a configuration value from the device.
	ConfigGet(device uint64, key domain.ConfigKey) (domain.Variant, error)

	// ConfigSet writes a configuration value to the device.
	ConfigSet(device uint64, key domain.ConfigKey, value domain.Variant) error

	// SessionNew allocates a backend session.
	SessionNew() (uint64, error)

	// SessionAddDevice attaches an open device to the session.
	SessionAddDevice(session, device uint64) error

	// SessionRemoveDevice detaches a device from the session.
	SessionRemoveDevice(session, device uint64) error

	// SessionStart begins acquisition. Packets are delivered to sink until
	// SessionStop returns.
	SessionStart(session uint64, sink PacketSink) error

	// SessionStop ends acquisition. It must not return while sink is still
	// being invoked for this session.
	SessionStop(session uint64) error

	// SessionDestroy releases the backend session.
	SessionDestroy(session uint64) error
}

// FormatLister is implemented by backends that ship format modules.
// Either table may be nil when the backend provides none of that kind.
type FormatLister interface {
	InputFormats() []*FormatDescriptor
	OutputFormats() []*FormatDescriptor
}

// ChannelEnabler is implemented by backends that can switch channels on and
// off.
type ChannelEnabler interface {
	ChannelEnable(device, channel uint64, enabled bool) error
}

// TriggerSetter is implemented by backends that evaluate triggers. A nil
// trigger clears the session trigger.
type TriggerSetter interface {
	SessionSetTrigger(session uint64, t *trigger.Trigger) error
}
