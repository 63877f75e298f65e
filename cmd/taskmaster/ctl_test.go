package main

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/taskmaster/internal/env"
	"github.com/loykin/taskmaster/internal/lifecycle"
	"github.com/loykin/taskmaster/internal/program"
	"github.com/loykin/taskmaster/internal/registry"
	"github.com/loykin/taskmaster/internal/server"
)

func startAPI(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctl := lifecycle.New(registry.New(map[string]program.Config{
		"api": {
			Command:    "/bin/sh",
			Args:       []string{"-c", "sleep 30"},
			StopSignal: syscall.SIGTERM,
			StopWait:   time.Second,
			ExitCodes:  []int{0},
		},
	}), lifecycle.WithEnv(env.New().WithSet("PATH", os.Getenv("PATH"))))
	ts := httptest.NewServer(server.NewRouter(ctl, "").Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = ctl.StopAll(ctx)
	})
	return ts.URL
}

func TestCtlCommands(t *testing.T) {
	url := startAPI(t)

	out, err := execRoot(t, "ctl", "--api", url, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "api => not launched") {
		t.Fatalf("unexpected list output %q", out)
	}

	out, err = execRoot(t, "ctl", "--api", url, "launch", "api")
	if err != nil || !strings.Contains(out, "api: launch ok") {
		t.Fatalf("launch: %v %q", err, out)
	}
	out, err = execRoot(t, "ctl", "--api", url, "status", "api")
	if err != nil || !strings.Contains(out, "pid:") {
		t.Fatalf("status: %v %q", err, out)
	}
	out, err = execRoot(t, "ctl", "--api", url, "kill", "api")
	if err != nil || !strings.Contains(out, "api: kill ok") {
		t.Fatalf("kill: %v %q", err, out)
	}
	if _, err = execRoot(t, "ctl", "--api", url, "kill", "api"); err == nil || !strings.Contains(err.Error(), "409") {
		t.Fatalf("expected conflict on second kill, got %v", err)
	}
	if _, err = execRoot(t, "ctl", "--api", url, "status", "nope"); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected not found, got %v", err)
	}
}
