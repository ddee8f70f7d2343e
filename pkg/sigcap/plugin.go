package sigcap

import (
	"context"

	"github.com/bft-labs/sigcap/pkg/log"
)

// Plugin extends a Context with optional behavior such as metrics or
// profile reloading.
type Plugin interface {
	// Name returns the plugin identifier used in logs.
	Name() string

	// Initialize is called once while the Context is created. The context
	// passed in is cancelled when the Context is destroyed.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called once by Context.Destroy, in reverse registration
	// order.
	Shutdown(ctx context.Context) error
}

// PluginConfig carries what a plugin needs from its host.
type PluginConfig struct {
	Logger  log.Logger
	Context *Context
}
