package profile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/sigcap/internal/domain"
	"github.com/bft-labs/sigcap/pkg/sigcap"
)

const tomlProfile = `
driver = "demo"
channels = ["D0", "D2"]
trigger = "D0=r"

[config]
samplerate = "1M"
limit_samples = 5000
rle = true
`

const yamlProfile = `
name: analog
driver: demo-analog
model: analog
config:
  samplerate: 20k
  pattern_amplitude: 2.5
  limit_msec: 100
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		file    string
		content string
		name    string
		driver  string
		want    map[domain.ConfigKey]domain.Variant
	}{
		{
			file:    "uart.toml",
			content: tomlProfile,
			name:    "uart",
			driver:  "demo",
			want: map[domain.ConfigKey]domain.Variant{
				domain.KeySamplerate:   domain.Uint64Variant(1000000),
				domain.KeyLimitSamples: domain.Uint64Variant(5000),
				domain.KeyRLE:          domain.NewBool(true),
			},
		},
		{
			file:    "a.yml",
			content: yamlProfile,
			name:    "analog",
			driver:  "demo-analog",
			want: map[domain.ConfigKey]domain.Variant{
				domain.KeySamplerate:       domain.Uint64Variant(20000),
				domain.KeyPatternAmplitude: domain.NewFloat64(2.5),
				domain.KeyLimitMsec:        domain.Uint64Variant(100),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			p, err := Load(writeFile(t, tt.file, tt.content))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if p.Name != tt.name || p.Driver != tt.driver {
				t.Errorf("Load() = name %q driver %q, want %q %q", p.Name, p.Driver, tt.name, tt.driver)
			}
			got, err := p.Variants()
			if err != nil {
				t.Fatalf("Variants() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Variants() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		format  string
		wantErr error
	}{
		{"unknown format", "driver = 'demo'", ".ini", domain.ErrNotSupported},
		{"unknown key", "[config]\nsample_speed = 1", ".toml", domain.ErrNotFound},
		{"bool for uint", "[config]\nsamplerate = true", ".toml", domain.ErrInvalidArgument},
		{"negative uint", "config:\n  limit_samples: -4", ".yaml", domain.ErrInvalidArgument},
		{"float for uint", "[config]\nlimit_samples = 1.5", ".toml", domain.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data), tt.format); !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Parse([]byte("driver: demo\nbogus: 1"), ".yaml"); err == nil {
		t.Error("Parse() should reject unknown yaml fields")
	}
}

func openDemo(t *testing.T, driver string) (*sigcap.Context, *sigcap.Device) {
	t.Helper()
	c, err := sigcap.New(sigcap.NewDemoBackend(sigcap.DemoBackendConfig{Interval: time.Millisecond}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Destroy() })
	ctx := context.Background()
	drv, err := c.Driver(ctx, driver)
	if err != nil {
		t.Fatal(err)
	}
	devices, err := drv.Scan(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	dev := devices.Items()[0]
	if err := dev.Open(ctx); err != nil {
		t.Fatal(err)
	}
	return c, dev
}

func TestApply(t *testing.T) {
	c, dev := openDemo(t, sigcap.DemoLogicDriver)
	p, err := Parse([]byte(tomlProfile), ".toml")
	if err != nil {
		t.Fatal(err)
	}

	if err := p.Apply(dev); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if v, _ := dev.Config(domain.KeySamplerate); v != domain.Uint64Variant(1000000) {
		t.Errorf("samplerate = %v, want 1000000", v)
	}
	for _, ch := range dev.Channels().Items() {
		want := ch.Name() == "D0" || ch.Name() == "D2"
		if ch.Enabled() != want {
			t.Errorf("%s enabled = %v, want %v", ch.Name(), ch.Enabled(), want)
		}
	}

	s, _ := c.NewSession()
	_ = s.AddDevice(dev)
	if err := p.ApplySession(s); err != nil {
		t.Fatalf("ApplySession() error = %v", err)
	}
	if s.Trigger() == nil || s.Trigger().String() != "D0=r" {
		t.Errorf("trigger = %v, want D0=r", s.Trigger())
	}

	p.Trigger = ""
	if err := p.ApplySession(s); err != nil || s.Trigger() != nil {
		t.Errorf("empty trigger should clear: %v, %v", err, s.Trigger())
	}
}

func TestApply_Mismatch(t *testing.T) {
	_, dev := openDemo(t, sigcap.DemoLogicDriver)

	p, _ := Parse([]byte(yamlProfile), ".yaml")
	if p.Matches(dev) {
		t.Error("analog profile should not match the logic device")
	}
	if err := p.Apply(dev); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Apply() error = %v, want ErrInvalidArgument", err)
	}

	p = &Profile{Channels: []string{"D99"}}
	if err := p.Apply(dev); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Apply(unknown channel) error = %v, want ErrNotFound", err)
	}
}
