package program

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/taskmaster/internal/procstate"
)

func shConfig(script string) Config {
	return Config{Command: "/bin/sh", Args: []string{"-c", script}, StopSignal: syscall.SIGTERM}
}

func waitUntil(timeout time.Duration, fn func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestEntry_NeverLaunched(t *testing.T) {
	e := New("idle", validConfig())
	st, err := e.Observe()
	require.NoError(t, err)
	assert.Equal(t, NotLaunched, st.Kind)
	assert.Equal(t, "not launched", st.String())
	assert.False(t, e.ExitPending)
}

func TestEntry_ObserveRunningThenExit(t *testing.T) {
	e := New("short", shConfig("sleep 0.3; exit 4"))
	h, err := Spawn(e.Config, nil)
	require.NoError(t, err)
	e.Attach(h)

	st, err := e.Observe()
	require.NoError(t, err)
	assert.Equal(t, Running, st.Kind)
	assert.NotEqual(t, procstate.Zombie, st.State)

	ok := waitUntil(3*time.Second, func() bool {
		st, err = e.Observe()
		return err == nil && st.Kind != Running
	})
	require.True(t, ok, "exit not observed")
	assert.Equal(t, ExitedWithCode, st.Kind)
	assert.Equal(t, "exited with code: 4", st.String())
	assert.Nil(t, e.Handle)
	assert.True(t, e.ExitPending)
}

func TestEntry_SignalRenderingDiffersFromCode(t *testing.T) {
	e := New("sig", shConfig("sleep 30"))
	h, err := Spawn(e.Config, nil)
	require.NoError(t, err)
	e.Attach(h)
	require.NoError(t, h.Signal(syscall.SIGKILL))
	_, done := h.WaitTimeout(3 * time.Second)
	require.True(t, done)

	st, err := e.Observe()
	require.NoError(t, err)
	assert.Equal(t, ExitedBySignal, st.Kind)
	assert.Equal(t, "killed by signal: 9 (SIGKILL)", st.String())
	assert.NotContains(t, st.String(), "exited with code")
}

func TestEntry_ReapWhileStoppingDoesNotMarkPending(t *testing.T) {
	e := New("x", validConfig())
	e.Stopping = true
	e.Reap(procstate.Exit{Code: 0})
	assert.False(t, e.ExitPending)
	assert.NotNil(t, e.LastExit)
}

func TestStatus_FailedSuffix(t *testing.T) {
	st := Status{Kind: ExitedWithCode, Code: 1, Failed: true, Restarts: 2}
	assert.Equal(t, "exited with code: 1 (gave up after 2 restarts)", st.String())
}

func TestSpawn_Failure(t *testing.T) {
	_, err := Spawn(Config{Command: "/definitely/not/here"}, nil)
	assert.Error(t, err)
}

func TestSpawn_RedirectsOutputAndEnv(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.log")
	errp := filepath.Join(dir, "err.log")
	cfg := shConfig(`echo "$GREETING"; echo oops >&2`)
	cfg.Stdout, cfg.Stderr, cfg.WorkDir = out, errp, dir
	h, err := Spawn(cfg, append(os.Environ(), "GREETING=hello"))
	require.NoError(t, err)
	_, done := h.WaitTimeout(3 * time.Second)
	require.True(t, done)

	b, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(string(b)))
	b, err = os.ReadFile(errp)
	require.NoError(t, err)
	assert.Equal(t, "oops", strings.TrimSpace(string(b)))
}

func TestHandle_SignalAfterExitIsNoop(t *testing.T) {
	h, err := Spawn(shConfig("exit 0"), nil)
	require.NoError(t, err)
	_, done := h.WaitTimeout(3 * time.Second)
	require.True(t, done)
	assert.NoError(t, h.Signal(syscall.SIGTERM))
}

func TestRuntimeError(t *testing.T) {
	err := &RuntimeError{Program: "web", Op: "spawn", Err: os.ErrNotExist}
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "spawn web")
}
