// Package reload re-reads the configuration on SIGHUP or file change and
// merges it into the running registry.
package reload

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/loykin/taskmaster/internal/config"
	"github.com/loykin/taskmaster/internal/lifecycle"
	"github.com/loykin/taskmaster/internal/logger"
	"github.com/loykin/taskmaster/internal/metrics"
	"github.com/loykin/taskmaster/internal/program"
	"github.com/loykin/taskmaster/internal/registry"
)

// debounce coalesces bursts of file events from editors that write in steps.
var debounce = 500 * time.Millisecond

// Result lists the programs touched by one reload.
type Result struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Updated []string `json:"updated"`
}

// Changed reports whether the reload altered anything.
func (r Result) Changed() bool {
	return len(r.Added)+len(r.Removed)+len(r.Updated) > 0
}

type Handler struct {
	path  string
	ctl   *lifecycle.Controller
	log   *slog.Logger
	watch bool

	wake chan struct{}
	mu   sync.Mutex // one reload at a time
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option { return func(h *Handler) { h.log = l } }

// WithWatch enables reloading when the configuration file changes on disk.
func WithWatch(on bool) Option { return func(h *Handler) { h.watch = on } }

func New(path string, ctl *lifecycle.Controller, opts ...Option) *Handler {
	h := &Handler{path: path, ctl: ctl, log: logger.Discard(), wake: make(chan struct{}, 1)}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Trigger requests a reload from Run without blocking. Requests made while
// one is already queued are coalesced.
func (h *Handler) Trigger() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run waits for SIGHUP, file changes (when enabled) and Trigger calls and
// reloads on each. It returns when ctx is done.
func (h *Handler) Run(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	if h.watch {
		stop, err := h.watchFile(ctx)
		if err != nil {
			h.log.Error("config watch disabled", "path", h.path, "error", err)
		} else {
			defer stop()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			h.log.Info("SIGHUP received, reloading configuration")
		case <-h.wake:
		}
		if _, err := h.Reload(); err != nil {
			h.log.Error("reload failed, keeping current configuration", "error", err)
		}
	}
}

// watchFile watches the directory holding the config file so that editors
// replacing the file by rename are seen too.
func (h *Handler) watchFile(ctx context.Context) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(h.path)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, err
	}
	h.log.Info("watching config for changes", "path", abs)

	done := make(chan struct{})
	go func() {
		defer close(done)
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				h.log.Debug("config file changed", "file", ev.Name, "op", ev.Op)
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, h.Trigger)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				h.log.Warn("config watcher error", "error", err)
			}
		}
	}()
	return func() {
		_ = w.Close()
		<-done
	}, nil
}

// Reload reads the configuration and merges it into the registry. On any
// load error the registry is left untouched. Existing entries keep their
// process and restart counter and take the new configuration for their next
// launch. New programs are appended and launched when autostart is set.
// Removed programs are detached under the lock and stopped outside it.
func (h *Handler) Reload() (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cfg, err := config.Load(h.path)
	if err != nil {
		metrics.IncReload(false)
		return Result{}, err
	}
	genv, err := cfg.Global.Environment()
	if err != nil {
		metrics.IncReload(false)
		return Result{}, err
	}
	h.ctl.SetGlobalEnv(genv)

	var res Result
	var removed []*program.Entry
	_ = h.ctl.Registry().With(func(v *registry.View) error {
		for _, e := range v.Entries() {
			nc, ok := cfg.Programs[e.Name]
			if !ok {
				v.Detach(e.Name)
				removed = append(removed, e)
				res.Removed = append(res.Removed, e.Name)
				continue
			}
			if !reflect.DeepEqual(e.Config, nc) {
				e.Config = nc
				res.Updated = append(res.Updated, e.Name)
			}
		}
		for _, name := range cfg.Names() {
			if _, err := v.Get(name); err == nil {
				continue
			}
			e := v.Add(name, cfg.Programs[name])
			res.Added = append(res.Added, name)
			if e.Config.AutoStart {
				if err := h.ctl.LaunchLocked(e, true); err != nil {
					h.log.Error("launch of added program failed", "program", name, "error", err)
				}
			}
		}
		return nil
	})

	for _, e := range removed {
		if _, err := h.ctl.StopEntry(e); err != nil && !errors.Is(err, program.ErrNotLaunched) {
			h.log.Error("stop of removed program failed", "program", e.Name, "error", err)
		}
		h.ctl.Forget(e)
	}

	sort.Strings(res.Removed)
	sort.Strings(res.Updated)
	metrics.IncReload(true)
	h.log.Info("configuration reloaded", "added", res.Added, "removed", res.Removed, "updated", res.Updated)
	return res, nil
}
