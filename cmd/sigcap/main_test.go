package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// run executes the root command with an isolated HOME and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	if testing.Verbose() && errOut.Len() > 0 {
		t.Log(errOut.String())
	}
	return out.String(), err
}

func TestDrivers(t *testing.T) {
	out, err := run(t, "drivers")
	if err != nil {
		t.Fatalf("drivers: %v", err)
	}
	for _, want := range []string{"demo ", "Demo logic analyzer", "demo-analog", "Demo analog source"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestScan(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
		not  []string
	}{
		{
			name: "all drivers",
			args: []string{"scan"},
			want: []string{"Detected devices:", "Demo logic analyzer [demo]", "Demo analog source [demo-analog]", "D0", "A0"},
		},
		{
			name: "one driver",
			args: []string{"scan", "--driver", "demo-analog"},
			want: []string{"[demo-analog]", "A0"},
			not:  []string{"[demo]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, tt.args...)
			if err != nil {
				t.Fatalf("scan: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(out, n) {
					t.Errorf("output contains %q:\n%s", n, out)
				}
			}
		})
	}

	if _, err := run(t, "scan", "--driver", "nope"); err == nil {
		t.Error("scan with unknown driver should fail")
	}
}

func TestFormats(t *testing.T) {
	out, err := run(t, "formats")
	if err != nil {
		t.Fatalf("formats: %v", err)
	}
	if !strings.Contains(out, "Input formats:") || !strings.Contains(out, "Output formats:") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCapture(t *testing.T) {
	out, err := run(t, "capture", "--samples", "1k", "--chunk-size", "100", "--interval", "1ms", "-q")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !strings.Contains(out, "run 1: 12 packets, 1000 bytes") {
		t.Errorf("unexpected summary:\n%s", out)
	}
	if !strings.Contains(out, ": 1000 samples") {
		t.Errorf("missing sample count:\n%s", out)
	}
	if strings.Contains(out, " logic ") {
		t.Errorf("quiet capture printed packets:\n%s", out)
	}
}

func TestCapture_Trigger(t *testing.T) {
	out, err := run(t, "capture", "--samples", "4", "--chunk-size", "4", "--interval", "1ms", "--trigger", "D3=r")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var types []string
	for _, l := range lines {
		if fields := strings.Fields(l); len(fields) > 1 && strings.HasPrefix(l, "device#") {
			types = append(types, fields[1])
		}
	}
	want := []string{"header", "trigger", "logic", "end"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("packet types = %v, want %v\n%s", types, want, out)
	}
	if !strings.Contains(out, ", triggered") {
		t.Errorf("summary should report the trigger:\n%s", out)
	}
}

func TestCapture_Profile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analog.yaml")
	profile := "driver: demo-analog\nchannels: [A1]\nconfig:\n  limit_samples: 50\n"
	if err := os.WriteFile(path, []byte(profile), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "capture", "--profile", path, "--chunk-size", "50", "--interval", "1ms")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !strings.Contains(out, "analog 50 samples x 1 channels [V]") {
		t.Errorf("profile was not applied:\n%s", out)
	}
}

func TestCapture_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown backend", []string{"capture", "--backend", "serial"}},
		{"watch without profile", []string{"capture", "--watch"}},
		{"unknown channel", []string{"capture", "--samples", "1", "--channels", "D99"}},
		{"bad trigger", []string{"capture", "--samples", "1", "--trigger", "D0=?"}},
		{"bad size", []string{"capture", "--samples", "lots"}},
		{"missing profile", []string{"capture", "--profile", "/nonexistent/p.toml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v: expected error", tt.args)
			}
		})
	}
}

func TestConfigPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, ".sigcap"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg := "driver = \"demo-analog\"\nsamples = \"20\"\n"
	if err := os.WriteFile(filepath.Join(home, ".sigcap", "config.toml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SIGCAP_SAMPLES", "10")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"capture", "--interval", "1ms", "-q"})
	if err := root.Execute(); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !strings.Contains(out.String(), ": 10 samples") {
		t.Errorf("env should override the config file:\n%s", out.String())
	}
}
