package sigcap

import (
	"time"

	"github.com/bft-labs/sigcap/pkg/log"
)

// DefaultShutdownTimeout bounds plugin shutdown in Context.Destroy.
const DefaultShutdownTimeout = 30 * time.Second

// Option configures optional behavior of a Context.
type Option func(*options)

type options struct {
	logger          log.Logger
	handlers        []EventHandler
	plugins         []Plugin
	shutdownTimeout time.Duration
}

func defaultOptions() options {
	return options{
		logger:          log.Discard,
		shutdownTimeout: DefaultShutdownTimeout,
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler adds a handler for session and backend events.
// Handlers are called synchronously in registration order.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		if handler != nil {
			o.handlers = append(o.handlers, handler)
		}
	}
}

// WithPlugin registers a plugin to be initialized when the Context is
// created. Plugins are initialized in registration order and shut down in
// reverse order by Destroy. A plugin that also implements EventHandler
// receives events.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		if plugin != nil {
			o.plugins = append(o.plugins, plugin)
		}
	}
}

// WithShutdownTimeout bounds how long Destroy waits for plugins to shut down.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}
