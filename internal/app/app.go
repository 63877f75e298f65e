// Package app wires the supervisor together: configuration, logging, the
// instance lock, the registry and controller, and the background loops.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/loykin/taskmaster/internal/command"
	"github.com/loykin/taskmaster/internal/config"
	"github.com/loykin/taskmaster/internal/history"
	"github.com/loykin/taskmaster/internal/history/factory"
	"github.com/loykin/taskmaster/internal/instance"
	"github.com/loykin/taskmaster/internal/lifecycle"
	"github.com/loykin/taskmaster/internal/logger"
	"github.com/loykin/taskmaster/internal/metrics"
	"github.com/loykin/taskmaster/internal/monitor"
	"github.com/loykin/taskmaster/internal/registry"
	"github.com/loykin/taskmaster/internal/reload"
	"github.com/loykin/taskmaster/internal/server"
)

// Options configures New.
type Options struct {
	ConfigPath string
	// Console mirrors the supervisor log when set (--verbose).
	Console io.Writer
	Color   bool
	// Out receives informational command output.
	Out io.Writer
}

// App is the explicit application context shared by the interactive loop,
// the monitor and the reload handler.
type App struct {
	cfg       *config.Config
	log       *slog.Logger
	logCloser io.Closer
	lock      *instance.Lock
	recorder  *history.Recorder

	ctl        *lifecycle.Controller
	dispatcher *command.Dispatcher
	monitor    *monitor.Monitor
	reload     *reload.Handler
	servers    []*http.Server

	running *atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
	stopped atomic.Bool
}

// New loads the configuration, acquires the instance lock and builds every
// component. Nothing is launched until Start.
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	log, logCloser, err := logger.New(logger.Config{
		File:     cfg.Global.LogFile,
		Level:    cfg.Global.LogLevel,
		Rotation: cfg.Global.Log,
		Console:  opts.Console,
		Color:    opts.Color,
	})
	if err != nil {
		return nil, &config.Error{Path: cfg.Path, Err: err}
	}

	a := &App{cfg: cfg, log: log, logCloser: logCloser, running: &atomic.Bool{}}
	ok := false
	defer func() {
		if !ok {
			a.release()
		}
	}()

	if a.lock, err = instance.Acquire(cfg.Global.LockFile); err != nil {
		return nil, err
	}

	sinks, err := factory.NewSinks(cfg.Global.History)
	if err != nil {
		return nil, err
	}
	a.recorder = history.NewRecorder(log, sinks...)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	genv, err := cfg.Global.Environment()
	if err != nil {
		return nil, &config.Error{Path: cfg.Path, Err: err}
	}
	a.ctl = lifecycle.New(registry.New(cfg.Programs),
		lifecycle.WithLogger(log),
		lifecycle.WithHistory(a.recorder),
		lifecycle.WithEnv(genv),
	)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	a.dispatcher = command.NewDispatcher(a.ctl, a.running, out)
	a.monitor = monitor.New(a.ctl, cfg.Global.MonitorInterval, a.running, log)
	a.reload = reload.New(cfg.Path, a.ctl, reload.WithLogger(log), reload.WithWatch(cfg.Global.WatchConfig))

	if addr := cfg.Global.APIListen; addr != "" {
		r := server.NewRouter(a.ctl, "", server.WithReloader(a.reload), server.WithLogger(log))
		a.servers = append(a.servers, server.NewServer(addr, r.Handler()))
	}
	if addr := cfg.Global.MetricsListen; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		a.servers = append(a.servers, server.NewServer(addr, mux))
	}

	ok = true
	return a, nil
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Logger() *slog.Logger { return a.log }
func (a *App) Controller() *lifecycle.Controller { return a.ctl }

// Running reports whether the supervisor should keep accepting commands.
func (a *App) Running() bool { return a.running.Load() }

// RequestExit clears the running flag, as the exit command does.
func (a *App) RequestExit() { a.running.Store(false) }

// Dispatch executes one operator command.
func (a *App) Dispatch(ctx context.Context, cmd command.Command) error {
	return a.dispatcher.Dispatch(ctx, cmd)
}

// Start launches autostart programs and starts the monitor, the reload
// handler and the optional HTTP listeners. Autostart failures are logged;
// the monitor retries them under the restart policy.
func (a *App) Start(ctx context.Context) error {
	a.running.Store(true)
	if err := a.ctl.LaunchAutostart(); err != nil {
		a.log.Error("autostart failures", "error", err)
	}

	ctx, a.cancel = context.WithCancel(ctx)
	a.group = new(errgroup.Group)
	a.group.Go(func() error { return a.monitor.Run(ctx) })
	a.group.Go(func() error { return a.reload.Run(ctx) })
	for _, srv := range a.servers {
		a.log.Info("http listener starting", "addr", srv.Addr)
		a.group.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				// the supervisor keeps running without the listener
				a.log.Error("http listener failed", "addr", srv.Addr, "error", err)
				return err
			}
			return nil
		})
	}
	a.log.Info("taskmaster started", "config", a.cfg.Path, "programs", len(a.cfg.Programs))
	return nil
}

// Shutdown stops the background loops, joins them within the configured
// shutdown timeout, stops every program (stop signal, stopwaitsecs, then
// SIGKILL), flushes history and releases the instance lock. It is safe to
// call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	if !a.stopped.CompareAndSwap(false, true) {
		return nil
	}
	a.running.Store(false)
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Global.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range a.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http %s: %w", srv.Addr, err))
		}
	}
	if a.cancel != nil {
		a.cancel()
		done := make(chan error, 1)
		go func() { done <- a.group.Wait() }()
		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			a.log.Warn("background loops did not finish in time")
		}
	}

	// program cleanup gets its own budget: the loop join may have used up ctx
	stopCtx, stopCancel := context.WithTimeout(context.Background(), a.ctl.StopBudget())
	defer stopCancel()
	a.log.Info("stopping all programs")
	if err := a.ctl.StopAll(stopCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop programs: %w", err))
	}
	a.release()
	return errors.Join(errs...)
}

func (a *App) release() {
	flush, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.recorder.Close(flush); err != nil {
		a.log.Warn("history flush incomplete", "error", err, "dropped", a.recorder.Dropped())
	}
	if err := a.lock.Release(); err != nil {
		a.log.Warn("release instance lock", "error", err)
	}
	a.log.Info("taskmaster stopped")
	_ = a.logCloser.Close()
}
