package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

// keepLevel restores the shared level after the test.
func keepLevel(t *testing.T) {
	t.Helper()
	prev := level.Level()
	t.Cleanup(func() { level.Set(prev) })
}

func newJSONLogger(t *testing.T, buf *bytes.Buffer, lvl string) Logger {
	t.Helper()
	keepLevel(t)
	l, err := New(Config{Level: lvl, Format: "json", Output: buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantJSON bool
		wantErr  bool
	}{
		{"defaults", Config{}, true, false},
		{"json", Config{Level: "debug", Format: "json"}, true, false},
		{"text", Config{Level: "warn", Format: "text"}, false, false},
		{"console", Config{Format: "Console"}, false, false},
		{"unknown format", Config{Format: "xml"}, false, true},
		{"unknown level", Config{Level: "verbose"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keepLevel(t)
			var buf bytes.Buffer
			tt.cfg.Output = &buf

			l, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("New() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}

			l.Error("started")
			isJSON := strings.HasPrefix(buf.String(), "{")
			if isJSON != tt.wantJSON {
				t.Errorf("output %q: json = %v, want %v", buf.String(), isJSON, tt.wantJSON)
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf, "debug")

	tests := []struct {
		log  func(string, ...any)
		want string
	}{
		{l.Debug, "DEBUG"},
		{l.Info, "INFO"},
		{l.Warn, "WARN"},
		{l.Error, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			buf.Reset()
			tt.log("event", "user_id", 7)

			entry := decodeEntry(t, &buf)
			if entry["level"] != tt.want {
				t.Errorf("level = %v, want %s", entry["level"], tt.want)
			}
			if entry["user_id"] != float64(7) {
				t.Errorf("user_id = %v", entry["user_id"])
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf, "warn")

	l.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info written at warn level: %s", buf.String())
	}
	l.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Error("warn not written at warn level")
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf, "info")

	if err := SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if got := GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q, want debug", got)
	}
	l.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Error("debug not written after SetLevel(debug)")
	}

	if err := SetLevel("loud"); err == nil {
		t.Error("SetLevel(loud) error = nil")
	}
	if got := GetLevel(); got != "debug" {
		t.Errorf("GetLevel() = %q after a rejected change, want debug", got)
	}

	if err := SetLevel("warning"); err != nil {
		t.Fatalf("SetLevel(warning) error = %v", err)
	}
	if got := GetLevel(); got != "warn" {
		t.Errorf("GetLevel() = %q, want warn", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(t, &buf, "info").With("component", "cache")

	l.Info("flushed", "written", 3)

	entry := decodeEntry(t, &buf)
	if entry["component"] != "cache" || entry["written"] != float64(3) {
		t.Errorf("entry = %v", entry)
	}
}

func TestSetDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetDefault(newJSONLogger(t, &buf, "info"))

	slog.Info("from the default logger", "password", "hunter2")

	entry := decodeEntry(t, &buf)
	if entry["msg"] != "from the default logger" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["password"] != redactedValue {
		t.Errorf("password = %v, want redacted", entry["password"])
	}
}
