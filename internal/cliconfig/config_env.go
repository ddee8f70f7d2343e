package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (SIGCAP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("backend", os.Getenv("SIGCAP_BACKEND"), &cfg.Backend)
	s.setString("driver", os.Getenv("SIGCAP_DRIVER"), &cfg.Driver)
	s.setString("channels", os.Getenv("SIGCAP_CHANNELS"), &cfg.Channels)
	s.setString("trigger", os.Getenv("SIGCAP_TRIGGER"), &cfg.Trigger)
	s.setString("profile", os.Getenv("SIGCAP_PROFILE"), &cfg.Profile)
	s.setString("metrics-addr", os.Getenv("SIGCAP_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("SIGCAP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setSize("samplerate", os.Getenv("SIGCAP_SAMPLERATE"), &cfg.Samplerate); err != nil {
		return err
	}
	if err := s.setSize("samples", os.Getenv("SIGCAP_SAMPLES"), &cfg.Samples); err != nil {
		return err
	}
	if err := s.setDuration("duration", os.Getenv("SIGCAP_DURATION"), &cfg.Duration); err != nil {
		return err
	}
	if err := s.setDuration("interval", os.Getenv("SIGCAP_INTERVAL"), &cfg.Interval); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("SIGCAP_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}
	if err := s.setIntFromString("chunk-size", os.Getenv("SIGCAP_CHUNK_SIZE"), &cfg.ChunkSize); err != nil {
		return err
	}

	s.setBoolFromString("watch", os.Getenv("SIGCAP_WATCH"), &cfg.Watch)

	return nil
}
