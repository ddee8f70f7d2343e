package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/sigcap/internal/domain"
)

// Backend names accepted by --backend.
const (
	BackendDemo = "demo"
	BackendUSB  = "usb"
)

// Config holds CLI configuration for sigcap.
type Config struct {
	Backend string
	Driver  string

	Samplerate uint64
	Samples    uint64
	Duration   time.Duration
	Channels   string
	Trigger    string

	Profile string
	Watch   bool

	MetricsAddr string
	LogLevel    string

	Interval        time.Duration
	ChunkSize       int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Backend:         BackendDemo,
		Driver:          "demo",
		LogLevel:        "info",
		Interval:        10 * time.Millisecond,
		ChunkSize:       256,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendDemo, BackendUSB:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendDemo, BackendUSB)
	}
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	if c.Watch && c.Profile == "" {
		return fmt.Errorf("watch requires a profile")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ChannelList splits the comma-separated channel selection.
func (c *Config) ChannelList() []string {
	var out []string
	for _, name := range strings.Split(c.Channels, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setSize parses a size with an optional SI suffix ("1M", "20 kHz").
func (s *configSetter) setSize(flag, value string, dst *uint64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	n, err := domain.ParseSize(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = n
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
