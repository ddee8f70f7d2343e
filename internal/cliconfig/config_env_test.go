package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"SIGCAP_BACKEND":          "usb",
				"SIGCAP_DRIVER":           "hantek-4032l",
				"SIGCAP_SAMPLERATE":       "20 kHz",
				"SIGCAP_SAMPLES":          "1M",
				"SIGCAP_DURATION":         "1m",
				"SIGCAP_CHANNELS":         "D0",
				"SIGCAP_TRIGGER":          "D0=1",
				"SIGCAP_PROFILE":          "/p.yaml",
				"SIGCAP_METRICS_ADDR":     "127.0.0.1:9100",
				"SIGCAP_LOG_LEVEL":        "warn",
				"SIGCAP_INTERVAL":         "20ms",
				"SIGCAP_SHUTDOWN_TIMEOUT": "1s",
				"SIGCAP_CHUNK_SIZE":       "512",
				"SIGCAP_WATCH":            "1",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Backend:         "usb",
				Driver:          "hantek-4032l",
				Samplerate:      20000,
				Samples:         1000000,
				Duration:        time.Minute,
				Channels:        "D0",
				Trigger:         "D0=1",
				Profile:         "/p.yaml",
				MetricsAddr:     "127.0.0.1:9100",
				LogLevel:        "warn",
				Interval:        20 * time.Millisecond,
				ShutdownTimeout: time.Second,
				ChunkSize:       512,
				Watch:           true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"SIGCAP_DRIVER":  "demo-analog",
				"SIGCAP_SAMPLES": "100",
			},
			changed:  map[string]bool{"driver": true},
			initial:  Config{Driver: "demo"},
			expected: Config{Driver: "demo", Samples: 100},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"SIGCAP_INTERVAL": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"SIGCAP_CHUNK_SIZE": "not-a-number"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid size",
			envVars: map[string]string{"SIGCAP_SAMPLERATE": "-5"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"SIGCAP_WATCH": "false"},
			changed:  map[string]bool{},
			initial:  Config{Watch: true},
			expected: Config{Watch: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
