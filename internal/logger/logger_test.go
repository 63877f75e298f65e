package logger

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// helper to close non-nil closers and ignore errors
func closeIf(c io.Closer) {
	if c != nil {
		_ = c.Close()
	}
}

func TestProcessWriters_ExplicitPaths(t *testing.T) {
	dir := t.TempDir()
	sp := filepath.Join(dir, "s.out.log")
	ep := filepath.Join(dir, "s.err.log")
	outW, errW := Output{StdoutPath: sp, StderrPath: ep}.ProcessWriters()
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers non-nil when explicit paths provided")
	}
	_, _ = outW.Write([]byte("x"))
	_, _ = errW.Write([]byte("y"))
	closeIf(outW)
	closeIf(errW)
	if _, err := os.Stat(sp); err != nil {
		t.Fatalf("stdout path not created: %v", err)
	}
	if _, err := os.Stat(ep); err != nil {
		t.Fatalf("stderr path not created: %v", err)
	}
}

func TestProcessWriters_EmptyDiscards(t *testing.T) {
	outW, errW := Output{}.ProcessWriters()
	if outW != nil || errW != nil {
		t.Fatalf("expected nil writers for empty paths")
	}
}

func TestProcessWriters_SharedFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "both.log")
	outW, errW := Output{StdoutPath: p, StderrPath: p}.ProcessWriters()
	_, _ = outW.Write([]byte("out\n"))
	_, _ = errW.Write([]byte("err\n"))
	closeIf(errW)
	closeIf(outW)
	b, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "out\nerr\n" {
		t.Fatalf("unexpected content %q", b)
	}
}

func TestRotation_Defaults(t *testing.T) {
	w := Rotation{}.Writer(filepath.Join(t.TempDir(), "d.log"))
	l, ok := w.(*lj.Logger)
	if !ok {
		t.Fatalf("expected *lumberjack.Logger, got %T", w)
	}
	if l.MaxSize != DefaultMaxSizeMB || l.MaxBackups != DefaultMaxBackups || l.MaxAge != DefaultMaxAgeDays {
		t.Fatalf("defaults not applied: %+v", l)
	}
	if l.Compress {
		t.Fatalf("compress should default to false")
	}
}

func TestRotation_Overrides(t *testing.T) {
	w := Rotation{MaxSizeMB: 1, MaxBackups: 9, MaxAgeDays: 2, Compress: true}.Writer("x.log")
	l := w.(*lj.Logger)
	if l.MaxSize != 1 || l.MaxBackups != 9 || l.MaxAge != 2 || !l.Compress {
		t.Fatalf("overrides not applied: %+v", l)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNew_FileAndConsole(t *testing.T) {
	file := filepath.Join(t.TempDir(), "sup.log")
	var console bytes.Buffer
	log, closer, err := New(Config{File: file, Level: "debug", Console: &console, Color: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug("hello", "program", "web")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	b, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"hello"`) || !strings.Contains(string(b), `"program":"web"`) {
		t.Fatalf("file log missing record: %s", b)
	}
	if !strings.Contains(console.String(), "hello") || !strings.Contains(console.String(), "\033[36m") {
		t.Fatalf("console log missing colored record: %q", console.String())
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var console bytes.Buffer
	log, _, err := New(Config{Level: "warn", Console: &console})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("quiet")
	log.Warn("loud")
	if strings.Contains(console.String(), "quiet") || !strings.Contains(console.String(), "loud") {
		t.Fatalf("level filter not applied: %q", console.String())
	}
}

func TestColorTextHandler_WithAttrsKeepsColor(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, nil, false)
	slog.New(h).With("k", "v").Error("boom")
	out := buf.String()
	if !strings.Contains(out, "\033[31m") || !strings.Contains(out, "k=v") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "time=") {
		t.Fatalf("time should be hidden: %q", out)
	}
}
