package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML-friendly strings for sizes and
// durations.
type FileConfig struct {
	Backend         string `toml:"backend"`
	Driver          string `toml:"driver"`
	Samplerate      string `toml:"samplerate"`
	Samples         string `toml:"samples"`
	Duration        string `toml:"duration"`
	Channels        string `toml:"channels"`
	Trigger         string `toml:"trigger"`
	Profile         string `toml:"profile"`
	Watch           *bool  `toml:"watch"`
	MetricsAddr     string `toml:"metrics_addr"`
	LogLevel        string `toml:"log_level"`
	Interval        string `toml:"interval"`
	ChunkSize       int    `toml:"chunk_size"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.sigcap/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".sigcap", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("backend", fc.Backend, &cfg.Backend)
	s.setString("driver", fc.Driver, &cfg.Driver)
	s.setString("channels", fc.Channels, &cfg.Channels)
	s.setString("trigger", fc.Trigger, &cfg.Trigger)
	s.setString("profile", fc.Profile, &cfg.Profile)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setSize("samplerate", fc.Samplerate, &cfg.Samplerate); err != nil {
		return err
	}
	if err := s.setSize("samples", fc.Samples, &cfg.Samples); err != nil {
		return err
	}
	if err := s.setDuration("duration", fc.Duration, &cfg.Duration); err != nil {
		return err
	}
	if err := s.setDuration("interval", fc.Interval, &cfg.Interval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setInt("chunk-size", fc.ChunkSize, &cfg.ChunkSize)
	s.setBool("watch", fc.Watch, &cfg.Watch)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
