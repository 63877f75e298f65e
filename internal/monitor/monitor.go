// Package monitor periodically observes every launched program and hands
// detected exits to the restart policy.
package monitor

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/loykin/taskmaster/internal/lifecycle"
	"github.com/loykin/taskmaster/internal/logger"
	"github.com/loykin/taskmaster/internal/metrics"
	"github.com/loykin/taskmaster/internal/registry"
)

// DefaultInterval is the sweep period when none is configured.
const DefaultInterval = 500 * time.Millisecond

type Monitor struct {
	ctl      *lifecycle.Controller
	log      *slog.Logger
	interval time.Duration
	running  *atomic.Bool
}

// New returns a monitor. running is the supervisor-wide flag; the monitor
// exits once it is cleared. A nil flag is treated as always set.
func New(ctl *lifecycle.Controller, interval time.Duration, running *atomic.Bool, log *slog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logger.Discard()
	}
	if running == nil {
		running = &atomic.Bool{}
		running.Store(true)
	}
	return &Monitor{ctl: ctl, log: log, interval: interval, running: running}
}

// Run sweeps until ctx is done or the running flag is cleared.
func (m *Monitor) Run(ctx context.Context) error {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	m.log.Debug("monitor started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if !m.running.Load() {
				return nil
			}
			m.Sweep()
		}
	}
}

type sample struct {
	name string
	pid  int
}

// Sweep observes every launched entry under one registry lock and applies
// the restart policy to exits found by this or any other observer.
func (m *Monitor) Sweep() {
	start := time.Now()
	var live []sample
	_ = m.ctl.Registry().With(func(v *registry.View) error {
		for _, e := range v.Entries() {
			if e.Stopping {
				continue
			}
			if e.Handle != nil {
				if _, err := e.Observe(); err != nil {
					m.log.Warn("probe failed", "program", e.Name, "error", err)
					metrics.IncProbeError(e.Name)
					continue
				}
			}
			if e.ExitPending || e.RespawnPending {
				m.ctl.EvaluateAutoRestart(e)
			}
			if e.Handle != nil {
				live = append(live, sample{name: e.Name, pid: e.Handle.Pid()})
			}
		}
		return nil
	})
	metrics.ObserveSweep(time.Since(start).Seconds())

	if !metrics.Enabled() {
		return
	}
	for _, s := range live {
		r, err := metrics.Sample(s.pid)
		if err != nil {
			continue
		}
		metrics.SetResources(s.name, r)
	}
}
