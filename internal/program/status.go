package program

import (
	"fmt"
	"syscall"
	"time"

	"github.com/loykin/taskmaster/internal/procstate"
)

// Kind distinguishes the variants of Status.
type Kind int

const (
	NotLaunched Kind = iota
	Running
	ExitedWithCode
	ExitedBySignal
)

func (k Kind) String() string {
	switch k {
	case Running:
		return "running"
	case ExitedWithCode:
		return "exited"
	case ExitedBySignal:
		return "killed"
	default:
		return "not_launched"
	}
}

// Status is computed fresh on every query and never cached.
type Status struct {
	Kind     Kind
	State    procstate.State // Running
	Code     int             // ExitedWithCode
	Signal   syscall.Signal  // ExitedBySignal
	Failed   bool
	Restarts int
}

func (s Status) String() string {
	var out string
	switch s.Kind {
	case Running:
		out = s.State.String()
	case ExitedWithCode:
		out = fmt.Sprintf("exited with code: %d", s.Code)
	case ExitedBySignal:
		out = fmt.Sprintf("killed by signal: %d (%s)", int(s.Signal), SignalName(s.Signal))
	default:
		out = "not launched"
	}
	if s.Failed {
		out += fmt.Sprintf(" (gave up after %d restarts)", s.Restarts)
	}
	return out
}

// Info is a serializable snapshot of an entry.
type Info struct {
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Kind      string    `json:"kind"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
	ExitedAt  time.Time `json:"exited_at,omitzero"`
	Restarts  int       `json:"restarts"`
	Failed    bool      `json:"failed"`
	Command   string    `json:"command"`
	AutoStart bool      `json:"autostart"`
	Policy    string    `json:"autorestart"`
	Error     string    `json:"error,omitempty"`
}
