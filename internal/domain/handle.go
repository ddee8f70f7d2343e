package domain

import "fmt"

// Kind categorizes backend resources.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDriver
	KindDevice
	KindChannel
	KindSession
	KindInputFormat
	KindOutputFormat
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindDriver:
		return "driver"
	case KindDevice:
		return "device"
	case KindChannel:
		return "channel"
	case KindSession:
		return "session"
	case KindInputFormat:
		return "input-format"
	case KindOutputFormat:
		return "output-format"
	default:
		return "unknown"
	}
}

// Handle is an opaque typed reference to a backend resource.
// Two handles are equal iff they have the same kind and identity.
// A handle never implies ownership of the resource.
type Handle struct {
	Kind Kind
	ID   uint64
}

// NewHandle builds a handle of the given kind.
func NewHandle(kind Kind, id uint64) Handle {
	return Handle{Kind: kind, ID: id}
}

// IsZero reports whether h denotes "no object".
func (h Handle) IsZero() bool {
	return h.ID == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%s#%d", h.Kind, h.ID)
}
