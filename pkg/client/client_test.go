package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
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

func newDaemon(t *testing.T) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctl := lifecycle.New(registry.New(map[string]program.Config{
		"web": {
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
	return New(Config{BaseURL: ts.URL + "/"})
}

func TestClient_RoundTrip(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()
	if !c.IsReachable(ctx) {
		t.Fatal("daemon should be reachable")
	}

	rows, err := c.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "web" || rows[0].Status != "not launched" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if _, err := c.Launch(ctx, "web"); err != nil {
		t.Fatalf("launch: %v", err)
	}
	d, err := c.Describe(ctx, "web")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if d.PID == 0 || d.Resources == nil {
		t.Fatalf("expected running detail, got %+v", d)
	}

	res, err := c.Kill(ctx, "web")
	if err != nil {
		t.Fatalf("kill: %v", err)
	}
	if res.Action != "kill" || res.Program != "web" {
		t.Fatalf("unexpected kill result %+v", res)
	}
	if _, err := c.Restart(ctx, "web"); err != nil {
		t.Fatalf("restart: %v", err)
	}
}

func TestClient_ErrorsCarryStatus(t *testing.T) {
	c := newDaemon(t)
	ctx := context.Background()

	_, err := c.Describe(ctx, "missing")
	var ae *APIError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 APIError, got %v", err)
	}
	_, err = c.Kill(ctx, "web")
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 APIError, got %v", err)
	}
	_, err = c.Reload(ctx)
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501 APIError, got %v", err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	if c.IsReachable(context.Background()) {
		t.Fatal("nothing listens on port 1")
	}
	if _, err := c.List(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}
}
