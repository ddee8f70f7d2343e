// Package metrics exports capture statistics as Prometheus metrics. The
// plugin counts delivered packets and bytes, session state transitions and
// backend failures, and can serve them over HTTP.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bft-labs/sigcap/pkg/log"
	"github.com/bft-labs/sigcap/pkg/sigcap"
)

// Config holds configuration options for the metrics plugin.
type Config struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables
	// the server.
	Addr string

	// Path is the HTTP path metrics are served on.
	// Default: /metrics
	Path string

	// Registerer receives the collectors. Default: a private registry,
	// which is also what the server exposes.
	Registerer prometheus.Registerer

	// Gatherer is what the server exposes when Registerer is set.
	// Default: Registerer itself if it is a Gatherer, such as a
	// *prometheus.Registry, otherwise prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Plugin collects capture metrics. It is a sigcap.Plugin and a
// sigcap.EventHandler.
type Plugin struct {
	cfg      Config
	gatherer prometheus.Gatherer

	PacketsTotal       *prometheus.CounterVec
	BytesTotal         prometheus.Counter
	TransitionsTotal   *prometheus.CounterVec
	SessionsStarted    prometheus.Gauge
	BackendErrorsTotal *prometheus.CounterVec

	mu     sync.Mutex
	logger log.Logger
	server *http.Server
	addr   net.Addr
	done   chan struct{}
}

// New creates a metrics plugin and registers its collectors.
func New(cfg Config) *Plugin {
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	p := &Plugin{
		cfg:    cfg,
		logger: log.Discard,
		PacketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigcap_packets_total",
			Help: "Packets delivered to session callbacks, by packet type",
		}, []string{"type"}),
		BytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sigcap_payload_bytes_total",
			Help: "Payload bytes delivered to session callbacks",
		}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigcap_session_transitions_total",
			Help: "Session state transitions, by target state",
		}, []string{"state"}),
		SessionsStarted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sigcap_sessions_started",
			Help: "Sessions currently acquiring",
		}),
		BackendErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sigcap_backend_errors_total",
			Help: "Failed backend operations, by operation",
		}, []string{"op"}),
	}

	reg := cfg.Registerer
	switch {
	case reg == nil:
		registry := prometheus.NewRegistry()
		reg, p.gatherer = registry, registry
	case cfg.Gatherer != nil:
		p.gatherer = cfg.Gatherer
	default:
		p.gatherer = prometheus.DefaultGatherer
		if g, ok := reg.(prometheus.Gatherer); ok {
			p.gatherer = g
		}
	}
	reg.MustRegister(
		p.PacketsTotal,
		p.BytesTotal,
		p.TransitionsTotal,
		p.SessionsStarted,
		p.BackendErrorsTotal,
	)
	return p
}

// WithMetrics returns a sigcap Option that enables the metrics plugin.
func WithMetrics(cfg Config) sigcap.Option {
	return sigcap.WithPlugin(New(cfg))
}

func (p *Plugin) Name() string {
	return "metrics"
}

// Initialize starts the HTTP server when an address is configured.
func (p *Plugin) Initialize(ctx context.Context, cfg sigcap.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.Logger != nil {
		p.logger = cfg.Logger
	}
	if p.cfg.Addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", p.cfg.Addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle(p.cfg.Path, p.handler())
	p.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	p.addr = ln.Addr()
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := p.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("metrics server failed", log.Err(err))
		}
	}()
	p.logger.Info("metrics server listening", log.String("addr", p.addr.String()), log.String("path", p.cfg.Path))
	return nil
}

func (p *Plugin) handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// Addr returns the bound server address, or nil when no server runs.
func (p *Plugin) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

// Shutdown stops the HTTP server.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv, done := p.server, p.done
	p.server = nil
	p.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	return err
}

func (p *Plugin) OnPacket(e sigcap.PacketEvent) {
	p.PacketsTotal.WithLabelValues(e.Packet.Type().String()).Inc()
	if n := e.Packet.Size(); n > 0 {
		p.BytesTotal.Add(float64(n))
	}
}

func (p *Plugin) OnStateChange(e sigcap.StateChangeEvent) {
	p.TransitionsTotal.WithLabelValues(e.Current.String()).Inc()
	if e.Current == sigcap.StateStarted {
		p.SessionsStarted.Inc()
	}
	if e.Previous == sigcap.StateStarted {
		p.SessionsStarted.Dec()
	}
}

func (p *Plugin) OnBackendError(e sigcap.BackendErrorEvent) {
	p.BackendErrorsTotal.WithLabelValues(e.Op).Inc()
}

var (
	_ sigcap.Plugin       = (*Plugin)(nil)
	_ sigcap.EventHandler = (*Plugin)(nil)
)
