package procstate

import (
	"fmt"
	"os"
	"syscall"
)

// Waiter is a handle on a spawned child that can report termination without blocking.
type Waiter interface {
	Pid() int
	// TryWait returns the exit state and true once the child has been reaped.
	TryWait() (*os.ProcessState, bool)
}

// Exit describes how a process terminated.
type Exit struct {
	Code     int
	Signal   syscall.Signal
	Signaled bool
}

// ExitFromState classifies an *os.ProcessState. A nil state (reap failed)
// is reported as exit code -1.
func ExitFromState(ps *os.ProcessState) Exit {
	if ps == nil {
		return Exit{Code: -1}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Exit{Code: -1, Signal: ws.Signal(), Signaled: true}
	}
	return Exit{Code: ps.ExitCode()}
}

// Observation is the result of one probe.
type Observation struct {
	Exited bool
	Exit   Exit  // valid when Exited
	State  State // valid when !Exited
}

// ProbeError reports that the OS could not be queried about a live process,
// for instance because it vanished between the exit check and the read.
type ProbeError struct {
	PID int
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe pid %d: %v", e.PID, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Probe checks whether w has exited and, if not, asks the OS for its state.
func Probe(w Waiter) (Observation, error) {
	if ps, done := w.TryWait(); done {
		return Observation{Exited: true, Exit: ExitFromState(ps)}, nil
	}
	pid := w.Pid()
	st, err := ReadState(pid)
	if err != nil {
		return Observation{}, &ProbeError{PID: pid, Err: err}
	}
	return Observation{State: st}, nil
}
