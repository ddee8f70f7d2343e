package domain

import "time"

// PacketType identifies the payload of a Packet.
type PacketType uint8

const (
	PacketHeader PacketType = iota + 1
	PacketEnd
	PacketLogic
	PacketAnalog
	PacketTrigger
	PacketMeta
)

// String returns a human-readable representation of the packet type.
func (t PacketType) String() string {
	switch t {
	case PacketHeader:
		return "header"
	case PacketEnd:
		return "end"
	case PacketLogic:
		return "logic"
	case PacketAnalog:
		return "analog"
	case PacketTrigger:
		return "trigger"
	case PacketMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// Packet is one unit of captured data delivered during an active session.
type Packet interface {
	Type() PacketType
	// Size returns the payload size in bytes.
	Size() int
}

// Header opens the stream of a device.
type Header struct {
	StartTime time.Time
}

// End closes the stream of a device.
type End struct{}

// Trigger marks the trigger point in the stream.
type Trigger struct{}

// Logic carries packed logic samples; each sample is UnitSize bytes wide.
type Logic struct {
	UnitSize int
	Data     []byte
}

// Analog carries interleaved analog samples for the listed channel indices.
type Analog struct {
	Channels []int
	Values   []float32
	Unit     string
}

// Meta reports a configuration change that took effect mid-stream.
type Meta struct {
	Config map[ConfigKey]Variant
}

func (Header) Type() PacketType { return PacketHeader }
func (End) Type() PacketType { return PacketEnd }
func (Trigger) Type() PacketType { return PacketTrigger }
func (Logic) Type() PacketType { return PacketLogic }
func (Analog) Type() PacketType { return PacketAnalog }
func (Meta) Type() PacketType { return PacketMeta }

func (Header) Size() int { return 0 }
func (End) Size() int { return 0 }
func (Trigger) Size() int { return 0 }
func (l Logic) Size() int { return len(l.Data) }
func (a Analog) Size() int { return 4 * len(a.Values) }
func (Meta) Size() int { return 0 }

// Samples returns the number of logic samples in the packet.
func (l Logic) Samples() int {
	if l.UnitSize <= 0 {
		return 0
	}
	return len(l.Data) / l.UnitSize
}

// Samples returns the number of samples per channel in the packet.
func (a Analog) Samples() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Values) / len(a.Channels)
}
