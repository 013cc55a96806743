package log

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

func TestInit_FileHandlerWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chartstream.log")
	var console bytes.Buffer

	Init(Options{Level: "debug", Format: "console", File: path, Writer: &console})
	t.Cleanup(func() { _ = Close() })

	l := WithOperation(WithComponent("segment"), "parse")
	l.Debug("chart block dropped", slog.Int("start", 7))

	if err := Close(); err != nil {
		t.Fatalf("close log file: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var last string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines written")
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if m["app"] != appName {
		t.Errorf("app attr mismatch: %v", m["app"])
	}
	if m["component"] != "segment" || m["op"] != "parse" {
		t.Errorf("context attrs mismatch: %v", m)
	}
	if m["msg"] != "chart block dropped" {
		t.Errorf("msg mismatch: %v", m["msg"])
	}

	if !strings.Contains(console.String(), "chart block dropped") {
		t.Errorf("console handler did not receive record: %q", console.String())
	}
}

func TestInit_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Level: "warn", Format: "json", Writer: &buf})

	L().Info("hidden")
	L().Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record should be filtered: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("CHARTSTREAM_LOG_LEVEL", "debug")
	t.Setenv("CHARTSTREAM_LOG_FORMAT", "json")
	t.Setenv("CHARTSTREAM_LOG_SOURCE", "TRUE")
	t.Setenv("CHARTSTREAM_LOG_FILE", "/tmp/x.log")

	o := FromEnv()
	if o.Level != "debug" || o.Format != "json" || !o.AddSource || o.File != "/tmp/x.log" {
		t.Errorf("unexpected options: %+v", o)
	}
}
