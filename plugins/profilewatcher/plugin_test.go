package profilewatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bft-labs/sigcap/internal/profile"
	"github.com/bft-labs/sigcap/pkg/sigcap"
)

func writeProfile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPlugin_ReloadAppliesToDevices(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.toml")
	writeProfile(t, path, "driver = \"demo\"\n[config]\nsamplerate = \"100k\"\n")

	plugin := New(Config{Path: path, DebounceDelay: 10 * time.Millisecond})
	c, err := sigcap.New(sigcap.NewDemoBackend(sigcap.DemoBackendConfig{}), sigcap.WithPlugin(plugin))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Destroy()

	if plugin.Profile() == nil || plugin.Profile().Name != "capture" {
		t.Fatalf("initial profile = %+v", plugin.Profile())
	}

	ctx := context.Background()
	drv, _ := c.Driver(ctx, sigcap.DemoLogicDriver)
	devices, _ := drv.Scan(ctx, nil)
	dev := devices.Items()[0]
	if err := dev.Open(ctx); err != nil {
		t.Fatal(err)
	}

	writeProfile(t, path, "driver = \"demo\"\n[config]\nsamplerate = \"2M\"\n")
	eventually(t, "samplerate update", func() bool {
		v, _ := dev.Config(sigcap.KeySamplerate)
		return v == sigcap.Uint64Variant(2000000)
	})
	if plugin.Reloads() < 1 {
		t.Errorf("Reloads() = %d, want >= 1", plugin.Reloads())
	}

	reloads := plugin.Reloads()
	writeProfile(t, path, "[config]\nsamplerate = \"fast\"\n")
	time.Sleep(200 * time.Millisecond)
	if plugin.Reloads() != reloads {
		t.Error("a broken profile should not count as a reload")
	}
	if v, _ := dev.Config(sigcap.KeySamplerate); v != sigcap.Uint64Variant(2000000) {
		t.Errorf("samplerate = %v, broken profile should keep previous", v)
	}
}

func TestPlugin_OnReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.yaml")
	writeProfile(t, path, "trigger: D0=1\n")

	got := make(chan *profile.Profile, 4)
	plugin := New(Config{
		Path:          path,
		DebounceDelay: 10 * time.Millisecond,
		OnReload:      func(p *profile.Profile) { got <- p },
	})
	c, err := sigcap.New(sigcap.NewDemoBackend(sigcap.DemoBackendConfig{}), sigcap.WithPlugin(plugin))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Destroy()

	// Unrelated files in the directory are ignored.
	writeProfile(t, filepath.Join(dir, "other.yaml"), "trigger: D1=1\n")
	writeProfile(t, path, "trigger: D0=0\n")

	select {
	case p := <-got:
		if p.Trigger != "D0=0" {
			t.Errorf("reloaded trigger = %q, want D0=0", p.Trigger)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("OnReload was not called")
	}
}

func TestPlugin_InitializeErrors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"no path", ""},
		{"missing file", filepath.Join(t.TempDir(), "absent.toml")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sigcap.New(sigcap.NewDemoBackend(sigcap.DemoBackendConfig{}), WithProfileWatcher(DefaultConfig(tt.path)))
			if err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestPlugin_ShutdownWithoutInitialize(t *testing.T) {
	if err := New(DefaultConfig("x.toml")).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
