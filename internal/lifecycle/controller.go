// Package lifecycle launches, stops and restarts programs and applies the
// restart policy when one exits on its own.
package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/loykin/taskmaster/internal/env"
	"github.com/loykin/taskmaster/internal/history"
	"github.com/loykin/taskmaster/internal/logger"
	"github.com/loykin/taskmaster/internal/metrics"
	"github.com/loykin/taskmaster/internal/procstate"
	"github.com/loykin/taskmaster/internal/program"
	"github.com/loykin/taskmaster/internal/registry"
)

// DefaultKillGrace bounds the wait for a process to disappear after SIGKILL.
const DefaultKillGrace = 5 * time.Second

type Controller struct {
	reg       *registry.Registry
	log       *slog.Logger
	hist      *history.Recorder
	env       atomic.Pointer[env.Env]
	killGrace time.Duration
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option { return func(c *Controller) { c.log = l } }

func WithHistory(r *history.Recorder) Option { return func(c *Controller) { c.hist = r } }

func WithEnv(e *env.Env) Option { return func(c *Controller) { c.env.Store(e) } }

func WithKillGrace(d time.Duration) Option { return func(c *Controller) { c.killGrace = d } }

func New(reg *registry.Registry, opts ...Option) *Controller {
	c := &Controller{reg: reg, log: logger.Discard(), killGrace: DefaultKillGrace}
	c.env.Store(env.FromOS())
	for _, o := range opts {
		o(c)
	}
	return c
}

// Registry exposes the registry the controller acts on.
func (c *Controller) Registry() *registry.Registry { return c.reg }

// SetGlobalEnv replaces the environment layer used for future launches.
func (c *Controller) SetGlobalEnv(e *env.Env) { c.env.Store(e) }

// Launch starts name as an operator request: the restart counter and the
// failed flag are reset.
func (c *Controller) Launch(name string) error {
	return c.reg.With(func(v *registry.View) error {
		e, err := v.Get(name)
		if err != nil {
			return err
		}
		return c.LaunchLocked(e, true)
	})
}

// LaunchLocked starts e. The caller must hold the registry lock. An exit
// that happened since the last observation is reaped first.
func (c *Controller) LaunchLocked(e *program.Entry, operator bool) error {
	if e.Stopping {
		return fmt.Errorf("launch %s: %w", e.Name, program.ErrStopping)
	}
	if _, err := e.Observe(); err != nil {
		c.log.Warn("probe failed", "program", e.Name, "error", err)
	}
	if e.Handle != nil {
		return fmt.Errorf("launch %s: %w", e.Name, program.ErrAlreadyLaunched)
	}
	if operator {
		e.Restarts = 0
		e.Failed = false
	}
	if err := c.spawn(e); err != nil {
		return err
	}
	c.record(e, history.EventLaunch)
	return nil
}

func (c *Controller) spawn(e *program.Entry) error {
	h, err := program.Spawn(e.Config, c.env.Load().Merge(e.Config.Env))
	if err != nil {
		c.log.Error("spawn failed", "program", e.Name, "command", e.Config.CommandLine(), "error", err)
		return &program.RuntimeError{Program: e.Name, Op: "spawn", Err: err}
	}
	e.Attach(h)
	metrics.IncStart(e.Name)
	c.log.Info("program launched", "program", e.Name, "pid", h.Pid())
	return nil
}

// LaunchAutostart launches every entry configured with autostart. Failures
// are logged and joined; they do not stop other entries from launching.
func (c *Controller) LaunchAutostart() error {
	var errs []error
	_ = c.reg.With(func(v *registry.View) error {
		for _, e := range v.Entries() {
			if !e.Config.AutoStart {
				continue
			}
			if err := c.LaunchLocked(e, true); err != nil {
				errs = append(errs, err)
			}
		}
		return nil
	})
	return errors.Join(errs...)
}

// StopResult describes how a graceful stop ended.
type StopResult struct {
	Exit   procstate.Exit
	Forced bool // SIGKILL was needed
}

// Stop gracefully stops name: the configured stop signal goes to the
// process group, then SIGKILL once StopWait elapses. The wait happens
// outside the registry lock. A stop never triggers auto-restart.
func (c *Controller) Stop(name string) (StopResult, error) {
	var e *program.Entry
	err := c.reg.With(func(v *registry.View) error {
		var err error
		e, err = v.Get(name)
		return err
	})
	if err != nil {
		return StopResult{}, err
	}
	return c.StopEntry(e)
}

// StopEntry stops e, which may already be detached from the registry.
func (c *Controller) StopEntry(e *program.Entry) (StopResult, error) {
	var (
		h    *program.Handle
		wait time.Duration
	)
	err := c.reg.With(func(*registry.View) error {
		var err error
		h, wait, err = c.beginStop(e)
		return err
	})
	if err != nil {
		return StopResult{}, err
	}
	return c.finishStop(e, h, wait)
}

func (c *Controller) beginStop(e *program.Entry) (*program.Handle, time.Duration, error) {
	if e.Stopping {
		return nil, 0, fmt.Errorf("stop %s: %w", e.Name, program.ErrStopping)
	}
	if _, err := e.Observe(); err != nil {
		c.log.Warn("probe failed", "program", e.Name, "error", err)
	}
	if e.Handle == nil {
		// a crash nobody handled yet is accounted for, but not restarted
		if e.ExitPending && e.LastExit != nil {
			e.ExitPending = false
			c.noteExit(e)
		}
		e.RespawnPending = false
		return nil, 0, fmt.Errorf("stop %s: %w", e.Name, program.ErrNotLaunched)
	}
	h := e.Handle
	e.Stopping = true
	if err := h.Signal(e.Config.StopSignal); err != nil {
		e.Stopping = false
		return nil, 0, &program.RuntimeError{Program: e.Name, Op: "signal", Err: err}
	}
	c.log.Info("stopping program", "program", e.Name, "pid", h.Pid(), "signal", program.SignalName(e.Config.StopSignal))
	return h, e.Config.StopWait, nil
}

func (c *Controller) finishStop(e *program.Entry, h *program.Handle, wait time.Duration) (StopResult, error) {
	ps, done := h.WaitTimeout(wait)
	forced := false
	if !done {
		forced = true
		c.log.Warn("stop timed out, sending SIGKILL", "program", e.Name, "pid", h.Pid(), "waited", wait)
		if err := h.Signal(syscall.SIGKILL); err != nil {
			c.log.Error("SIGKILL failed", "program", e.Name, "pid", h.Pid(), "error", err)
		}
		ps, done = h.WaitTimeout(c.killGrace)
	}

	var res StopResult
	var err error
	_ = c.reg.With(func(*registry.View) error {
		if !done {
			// the handle stays attached so a later stop can retry
			e.Stopping = false
			err = &program.RuntimeError{Program: e.Name, Op: "stop", Err: errors.New("process survived SIGKILL")}
			return nil
		}
		res = StopResult{Exit: procstate.ExitFromState(ps), Forced: forced}
		if e.Handle == h {
			e.Reap(res.Exit)
		} else if e.LastExit != nil {
			res.Exit = *e.LastExit
		}
		e.Stopping = false
		e.ExitPending = false
		metrics.IncStop(e.Name, forced)
		metrics.ClearResources(e.Name)
		c.record(e, history.EventStop)
		c.log.Info("program stopped", "program", e.Name, "forced", forced)
		return nil
	})
	return res, err
}

// Restart stops name if it is running and launches it again.
func (c *Controller) Restart(name string) error {
	if _, err := c.Stop(name); err != nil && !errors.Is(err, program.ErrNotLaunched) {
		return err
	}
	return c.Launch(name)
}

// EvaluateAutoRestart applies e's restart policy to an exit observed outside
// a stop, or retries a relaunch whose spawn failed. The caller must hold the
// registry lock.
func (c *Controller) EvaluateAutoRestart(e *program.Entry) {
	if e.Handle != nil || e.Stopping {
		return
	}
	if e.RespawnPending {
		c.respawn(e)
		return
	}
	if !e.ExitPending || e.LastExit == nil {
		return
	}
	e.ExitPending = false
	expected := c.noteExit(e)

	switch e.Config.AutoRestart {
	case program.RestartNever:
		return
	case program.RestartUnexpected:
		if expected {
			return
		}
		if e.Restarts >= e.Config.MaxRestarts {
			c.giveUp(e)
			return
		}
	}
	c.respawn(e)
}

// noteExit accounts for e's last exit exactly once: metrics, history and
// log. It reports whether the exit was expected.
func (c *Controller) noteExit(e *program.Entry) bool {
	ex := *e.LastExit
	expected := e.Config.Expected(ex.Code, ex.Signaled, e.LastUptime)
	metrics.IncExit(e.Name, expected)
	metrics.ClearResources(e.Name)
	c.record(e, history.EventExit)
	c.log.Info("program exited", "program", e.Name, "code", ex.Code, "signaled", ex.Signaled,
		"expected", expected, "uptime", e.LastUptime)
	return expected
}

// respawn relaunches e as an automatic restart. A failed spawn is retried on
// the next sweep while the restart budget lasts.
func (c *Controller) respawn(e *program.Entry) {
	e.RespawnPending = false
	e.Restarts++
	metrics.IncRestart(e.Name)
	if err := c.spawn(e); err != nil {
		if e.Restarts < e.Config.MaxRestarts {
			e.RespawnPending = true
			return
		}
		c.giveUp(e)
		return
	}
	c.record(e, history.EventRestart)
}

func (c *Controller) giveUp(e *program.Entry) {
	e.Failed = true
	metrics.IncGiveUp(e.Name)
	c.record(e, history.EventGiveUp)
	c.log.Warn("giving up on program", "program", e.Name, "restarts", e.Restarts)
}

// Forget records the removal of a detached entry and drops its metric
// series. The entry must already be stopped.
func (c *Controller) Forget(e *program.Entry) {
	c.record(e, history.EventRemove)
	metrics.Forget(e.Name)
	c.log.Info("program removed", "program", e.Name)
}

func (c *Controller) record(e *program.Entry, typ history.EventType) {
	if c.hist == nil {
		return
	}
	ev := history.Event{Type: typ, Program: e.Name, Restarts: e.Restarts}
	if e.Handle != nil {
		ev.PID = e.Handle.Pid()
		ev.Status = "running"
	} else if e.LastExit != nil {
		ev.ExitCode = e.LastExit.Code
		if e.LastExit.Signaled {
			ev.Signal = program.SignalName(e.LastExit.Signal)
		}
	}
	if ev.Status == "" {
		st, _ := e.Observe()
		ev.Status = st.String()
	}
	c.hist.Record(ev)
}
