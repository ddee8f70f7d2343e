package sigcap

import (
	"time"

	"github.com/bft-labs/sigcap/internal/adapters/sim"
	"github.com/bft-labs/sigcap/internal/adapters/usb"
	"github.com/bft-labs/sigcap/pkg/log"
)

// Demo driver names.
const (
	DemoLogicDriver  = sim.DriverLogic
	DemoAnalogDriver = sim.DriverAnalog
)

// DemoBackendConfig tunes the in-memory demo backend. Zero values select
// defaults.
type DemoBackendConfig struct {
	// Interval is the delay between generated packets.
	Interval time.Duration
	// ChunkSize is the number of samples per data packet.
	ChunkSize int
	Logger    log.Logger
}

// NewDemoBackend returns an in-memory backend with a logic and an analog
// demo driver. It generates deterministic patterns and evaluates triggers.
func NewDemoBackend(cfg DemoBackendConfig) Backend {
	return sim.New(
		sim.WithInterval(cfg.Interval),
		sim.WithChunkSize(cfg.ChunkSize),
		sim.WithLogger(cfg.Logger),
	)
}

// USBBackend enumerates and claims supported USB instruments.
type USBBackend = usb.Backend

// NewUSBBackend opens a libusb context. Call Shutdown on the result once the
// Context using it is destroyed.
func NewUSBBackend(logger log.Logger) *USBBackend {
	return usb.New(usb.NewGousbBus(), usb.WithLogger(logger))
}
