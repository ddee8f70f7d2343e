package sim

import (
	"time"

	"github.com/bft-labs/sigcap/internal/ports"
)

// Option configures a simulated backend.
type Option func(*Backend)

// WithInterval sets the delay between generated packets.
func WithInterval(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.interval = d
		}
	}
}

// WithChunkSize sets the number of samples per data packet.
func WithChunkSize(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.chunk = n
		}
	}
}

// WithLogger sets the logger used for backend diagnostics.
func WithLogger(l ports.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}
