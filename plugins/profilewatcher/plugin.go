// Package profilewatcher reloads a capture profile when its file changes
// and applies it to the open devices it matches.
package profilewatcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/sigcap/internal/profile"
	"github.com/bft-labs/sigcap/pkg/log"
	"github.com/bft-labs/sigcap/pkg/sigcap"
)

// Config holds configuration options for the profile watcher plugin.
type Config struct {
	// Path is the profile file to watch.
	Path string

	// DebounceDelay is the delay to wait after a file change before
	// reloading.
	// Default: 100 milliseconds
	DebounceDelay time.Duration

	// OnReload replaces the default apply step. It receives every profile
	// that loaded successfully.
	OnReload func(*profile.Profile)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// Plugin implements profile watching.
type Plugin struct {
	mu sync.Mutex

	path          string
	debounceDelay time.Duration
	onReload      func(*profile.Profile)

	sc       *sigcap.Context
	logger   log.Logger
	current  *profile.Profile
	reloads  int
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// New creates a new profile watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
		onReload:      cfg.OnReload,
		logger:        log.Discard,
	}
}

// WithProfileWatcher returns a sigcap Option that enables profile watching.
func WithProfileWatcher(cfg Config) sigcap.Option {
	return sigcap.WithPlugin(New(cfg))
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "profilewatcher"
}

// Initialize loads the profile once and starts the watcher loop. A profile
// that fails to load at startup is an error.
func (p *Plugin) Initialize(ctx context.Context, cfg sigcap.PluginConfig) error {
	p.mu.Lock()
	p.sc = cfg.Context
	if cfg.Logger != nil {
		p.logger = log.With(cfg.Logger, log.String("plugin", p.Name()))
	}
	p.mu.Unlock()

	if p.path == "" {
		return fmt.Errorf("profilewatcher: no profile path")
	}
	prof, err := profile.Load(p.path)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.current = prof
	p.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("profilewatcher: %w", err)
	}
	// Watch the directory so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("profilewatcher: watch %s: %w", p.path, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("profile watcher initialized", log.String("path", p.path))
	return nil
}

// Shutdown stops the watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()
	return nil
}

// Profile returns the last profile that loaded successfully.
func (p *Plugin) Profile() *profile.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Reloads returns how many times the profile was reloaded after startup.
func (p *Plugin) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounceReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("profile watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debounceReload(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		p.reload()
	})
}

// reload keeps the previous profile when the new one does not load.
func (p *Plugin) reload() {
	prof, err := profile.Load(p.path)
	if err != nil {
		p.logger.Warn("profile reload failed, keeping previous", log.Err(err))
		return
	}

	p.mu.Lock()
	p.current = prof
	p.reloads++
	onReload := p.onReload
	p.mu.Unlock()

	p.logger.Info("profile reloaded", log.String("profile", prof.Name))
	if onReload != nil {
		onReload(prof)
		return
	}
	p.apply(prof)
}

// apply writes prof to every open matching device. Devices in a started
// session are skipped until the next reload.
func (p *Plugin) apply(prof *profile.Profile) {
	if p.sc == nil {
		return
	}
	for _, dev := range p.sc.Devices() {
		if !dev.IsOpen() || !prof.Matches(dev) {
			continue
		}
		s := dev.Session()
		if s != nil && s.State() == sigcap.StateStarted {
			p.logger.Info("device busy, profile not applied", log.Stringer("device", dev))
			continue
		}
		if err := prof.Apply(dev); err != nil {
			p.logger.Warn("apply profile failed", log.Stringer("device", dev), log.Err(err))
			continue
		}
		if s != nil {
			if err := prof.ApplySession(s); err != nil {
				p.logger.Warn("apply profile trigger failed", log.Stringer("session", s), log.Err(err))
			}
		}
	}
}

// Ensure Plugin implements sigcap.Plugin.
var _ sigcap.Plugin = (*Plugin)(nil)
