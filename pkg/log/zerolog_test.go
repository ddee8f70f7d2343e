package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]interface{}
		if err := dec.Decode(&m); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		out = append(out, m)
	}
	return out
}

func TestZerologAdapter_Fields(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapterWithLogger(zerolog.New(&buf))

	z.Info("session started",
		String("session", "session#1"),
		Int("devices", 2),
		Uint64("samplerate", 1000000),
		Bool("continuous", true),
		Duration("elapsed", time.Second),
		Err(errors.New("boom")),
	)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	line := lines[0]
	if line["message"] != "session started" || line["level"] != "info" {
		t.Errorf("unexpected line: %v", line)
	}
	if line["session"] != "session#1" || line["devices"] != float64(2) {
		t.Errorf("missing fields: %v", line)
	}
	if line["error"] != "boom" {
		t.Errorf("error field = %v, want boom", line["error"])
	}
}

func TestZerologAdapter_Level(t *testing.T) {
	var buf bytes.Buffer
	z := NewZerologAdapter(&buf, zerolog.WarnLevel)
	z.Debug("hidden")
	z.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn level, got %q", buf.String())
	}
	z.Warn("shown")
	if buf.Len() == 0 {
		t.Error("expected warn output")
	}
}

type recordingLogger struct {
	NoopLogger
	fields [][]Field
}

func (r *recordingLogger) Info(msg string, fields ...Field) {
	r.fields = append(r.fields, fields)
}

func TestWith(t *testing.T) {
	rec := &recordingLogger{}
	l := With(With(rec, String("a", "1")), String("b", "2"))
	l.Info("x", String("c", "3"))

	if len(rec.fields) != 1 {
		t.Fatalf("got %d entries, want 1", len(rec.fields))
	}
	var keys []string
	for _, f := range rec.fields[0] {
		keys = append(keys, f.Key)
	}
	if len(keys) != 3 || keys[0] != "a" || keys[1] != "b" || keys[2] != "c" {
		t.Errorf("keys = %v, want [a b c]", keys)
	}
	if With(rec) != Logger(rec) {
		t.Error("With without fields should return the logger unchanged")
	}
}
