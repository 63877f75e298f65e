package program

import (
	"time"

	"github.com/loykin/taskmaster/internal/procstate"
)

// Entry is the supervisor's record of one declared program. All access goes
// through the registry lock.
type Entry struct {
	Name   string
	Config Config
	Handle *Handle // nil when not running

	Restarts int  // automatic relaunches since the last operator launch
	Failed   bool // restart budget exhausted

	LastExit   *procstate.Exit
	LastUptime time.Duration
	ExitedAt   time.Time

	// Stopping is set while a graceful stop is in flight so that the exit it
	// causes is not treated as a crash.
	Stopping bool
	// ExitPending marks an exit observed outside a stop that has not yet been
	// handed to the restart policy.
	ExitPending bool
	// RespawnPending marks an automatic relaunch whose spawn failed. The exit
	// was already accounted for; only the spawn is retried.
	RespawnPending bool
}

// New returns an entry that has never been launched.
func New(name string, cfg Config) *Entry {
	return &Entry{Name: name, Config: cfg}
}

// Observe probes the entry's process. A detected exit clears the handle and
// records the exit; unless a stop is in flight it also sets ExitPending.
func (e *Entry) Observe() (Status, error) {
	if e.Handle == nil {
		return e.status(), nil
	}
	obs, err := procstate.Probe(e.Handle)
	if err != nil {
		return Status{}, err
	}
	if obs.Exited {
		e.Reap(obs.Exit)
		return e.status(), nil
	}
	return Status{Kind: Running, State: obs.State, Restarts: e.Restarts}, nil
}

// Reap records the termination of the current handle and drops it.
func (e *Entry) Reap(ex procstate.Exit) {
	if e.Handle != nil {
		e.LastUptime = e.Handle.Uptime()
	}
	e.Handle = nil
	e.LastExit = &ex
	e.ExitedAt = time.Now()
	if !e.Stopping {
		e.ExitPending = true
	}
}

// Attach installs a freshly spawned handle.
func (e *Entry) Attach(h *Handle) {
	e.Handle = h
	e.ExitPending = false
	e.RespawnPending = false
}

func (e *Entry) status() Status {
	st := Status{Kind: NotLaunched, Failed: e.Failed, Restarts: e.Restarts}
	if e.LastExit == nil {
		return st
	}
	if e.LastExit.Signaled {
		st.Kind = ExitedBySignal
		st.Signal = e.LastExit.Signal
	} else {
		st.Kind = ExitedWithCode
		st.Code = e.LastExit.Code
	}
	return st
}

// Info combines st with the entry's bookkeeping.
func (e *Entry) Info(index int, st Status) Info {
	in := Info{
		Index:     index,
		Name:      e.Name,
		Status:    st.String(),
		Kind:      st.Kind.String(),
		Restarts:  e.Restarts,
		Failed:    e.Failed,
		Command:   e.Config.CommandLine(),
		AutoStart: e.Config.AutoStart,
		Policy:    e.Config.AutoRestart.String(),
		ExitedAt:  e.ExitedAt,
	}
	if e.Handle != nil {
		in.PID = e.Handle.Pid()
		in.StartedAt = e.Handle.Started()
	}
	return in
}
