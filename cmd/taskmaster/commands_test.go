package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loykin/taskmaster/internal/config"
)

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := buildRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	p := filepath.Join(t.TempDir(), "taskmaster.toml")
	body := `
[programs.web]
command = "/usr/bin/python3 -m http.server"
autorestart = "always"

[programs.cron]
command = "/bin/true"
autostart = false
stopsignal = "USR1"
`
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execRoot(t, "check", "--config", p)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !strings.Contains(out, "ok, 2 program(s)") {
		t.Fatalf("missing summary: %s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected summary, header and 2 rows, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[2], "0 ") || !strings.Contains(lines[2], "cron") || !strings.Contains(lines[2], "SIGUSR1") {
		t.Fatalf("unexpected first row %q", lines[2])
	}
	if !strings.Contains(lines[3], "web") || !strings.Contains(lines[3], "always") {
		t.Fatalf("unexpected second row %q", lines[3])
	}
}

func TestCheckCommand_Invalid(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(p, []byte("[programs.x]\nautorestart = \"sometimes\"\ncommand = \"true\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := execRoot(t, "check", "-c", p)
	var ce *config.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *config.Error, got %v", err)
	}
}

func TestCheckCommand_MissingFile(t *testing.T) {
	_, err := execRoot(t, "check", "--config", filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execRoot(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "taskmaster dev" {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestRootRejectsArgs(t *testing.T) {
	if _, err := execRoot(t, "stray"); err == nil {
		t.Fatal("expected error for unexpected argument")
	}
}
