package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestLevelFiltersStderr(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Level: "warn", Stderr: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("ARM SUCCESSFUL")
	l.Warn("ARM FAIL", "attempts", 3)

	out := buf.String()
	if strings.Contains(out, "ARM SUCCESSFUL") {
		t.Errorf("info record passed a warn level logger: %s", out)
	}
	if !strings.Contains(out, "ARM FAIL") || !strings.Contains(out, "attempts=3") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestFileSinkWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.log")
	var buf bytes.Buffer
	l, err := New(Options{Level: "info", File: path, Stderr: &buf})
	if err != nil {
		t.Fatal(err)
	}
	l.With("component", "command").Info("LAND SUCCESSFUL")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var found bool
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec map[string]any
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("log line is not JSON: %q", sc.Text())
		}
		if rec["msg"] == "LAND SUCCESSFUL" && rec["component"] == "command" {
			found = true
		}
	}
	if !found {
		t.Error("record not found in log file")
	}
	if !strings.Contains(buf.String(), "LAND SUCCESSFUL") {
		t.Error("record not mirrored to stderr")
	}
}
