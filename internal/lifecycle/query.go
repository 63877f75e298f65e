package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loykin/taskmaster/internal/metrics"
	"github.com/loykin/taskmaster/internal/program"
	"github.com/loykin/taskmaster/internal/registry"
)

// Snapshot observes every entry and returns them in display order. A probe
// failure is reported on the row instead of failing the whole snapshot.
func (c *Controller) Snapshot() []program.Info {
	var out []program.Info
	_ = c.reg.With(func(v *registry.View) error {
		out = make([]program.Info, 0, v.Len())
		for i, e := range v.Entries() {
			out = append(out, c.observeInfo(i, e))
		}
		return nil
	})
	return out
}

func (c *Controller) observeInfo(i int, e *program.Entry) program.Info {
	st, err := e.Observe()
	if err != nil {
		c.log.Warn("probe failed", "program", e.Name, "error", err)
		metrics.IncProbeError(e.Name)
		in := e.Info(i, program.Status{Kind: program.Running})
		in.Status = "unknown"
		in.Error = err.Error()
		return in
	}
	return e.Info(i, st)
}

// Detail is the extended view of one program.
type Detail struct {
	program.Info
	Uptime    time.Duration      `json:"uptime"`
	Resources *metrics.Resources `json:"resources,omitempty"`
}

// Describe observes one entry and, while it runs, samples its resource use
// outside the registry lock.
func (c *Controller) Describe(name string) (Detail, error) {
	var d Detail
	err := c.reg.With(func(v *registry.View) error {
		e, err := v.Get(name)
		if err != nil {
			return err
		}
		d.Info = c.observeInfo(v.IndexOf(name), e)
		if e.Handle != nil {
			d.Uptime = e.Handle.Uptime()
		} else {
			d.Uptime = e.LastUptime
		}
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	if d.PID > 0 {
		if r, err := metrics.Sample(d.PID); err == nil {
			d.Resources = &r
		} else {
			c.log.Debug("resource sample failed", "program", name, "pid", d.PID, "error", err)
		}
	}
	return d, nil
}

// StopBudget is the longest a StopAll can need: the largest configured
// StopWait plus the SIGKILL grace period.
func (c *Controller) StopBudget() time.Duration {
	var longest time.Duration
	_ = c.reg.With(func(v *registry.View) error {
		for _, e := range v.Entries() {
			longest = max(longest, e.Config.StopWait)
		}
		return nil
	})
	return longest + c.killGrace
}

// StopAll gracefully stops every running entry in parallel and waits for
// all of them. Entries that are not running are skipped. When ctx is done
// first, every process still attached is sent SIGKILL and waited for up to
// the kill grace period, so none outlives the call.
func (c *Controller) StopAll(ctx context.Context) error {
	var entries []*program.Entry
	_ = c.reg.With(func(v *registry.View) error {
		entries = v.Entries()
		return nil
	})

	g := new(errgroup.Group)
	var errs = make([]error, len(entries))
	for i, e := range entries {
		g.Go(func() error {
			_, err := c.StopEntry(e)
			if err != nil && !errors.Is(err, program.ErrNotLaunched) && !errors.Is(err, program.ErrStopping) {
				errs[i] = err
			}
			return nil
		})
	}
	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
		return errors.Join(errs...)
	case <-ctx.Done():
	}

	killed := c.killAttached(entries)
	c.log.Warn("stop deadline passed, sent SIGKILL", "programs", killed, "error", ctx.Err())
	select {
	case <-done:
		return nil
	case <-time.After(c.killGrace):
		return fmt.Errorf("stop all: processes survived SIGKILL: %w", ctx.Err())
	}
}

// killAttached sends SIGKILL to every entry that still has a handle.
func (c *Controller) killAttached(entries []*program.Entry) int {
	n := 0
	_ = c.reg.With(func(*registry.View) error {
		for _, e := range entries {
			if e.Handle == nil {
				continue
			}
			if err := e.Handle.Signal(syscall.SIGKILL); err != nil {
				c.log.Error("SIGKILL failed", "program", e.Name, "pid", e.Handle.Pid(), "error", err)
				continue
			}
			n++
		}
		return nil
	})
	return n
}
