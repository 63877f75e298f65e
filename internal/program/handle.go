package program

import (
	"errors"
	"os"
	"syscall"
	"time"
)

// pipeDrain bounds how long Wait keeps copying output after the child exits,
// in case a grandchild still holds the pipe.
const pipeDrain = time.Second

// Handle owns one spawned child. A waiter goroutine reaps the child and
// closes done, so exit detection never blocks.
type Handle struct {
	pid     int
	started time.Time
	done    chan struct{}
	state   *os.ProcessState // set before done is closed
}

// Spawn starts cfg in its own process group with the given environment.
// Stdin is /dev/null; stdout and stderr go to the configured targets or are
// discarded.
func Spawn(cfg Config, env []string) (*Handle, error) {
	cmd := cfg.BuildCommand()
	if cfg.WorkDir != "" {
		cmd.Dir = cfg.WorkDir
	}
	if len(env) > 0 {
		cmd.Env = env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.WaitDelay = pipeDrain

	outW, errW := cfg.Output().ProcessWriters()
	if outW != nil {
		cmd.Stdout = outW
	}
	if errW != nil {
		cmd.Stderr = errW
	}
	closeLogs := func() {
		if outW != nil {
			_ = outW.Close()
		}
		if errW != nil {
			_ = errW.Close()
		}
	}
	if err := cmd.Start(); err != nil {
		closeLogs()
		return nil, err
	}
	h := &Handle{
		pid:     cmd.Process.Pid,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go func() {
		_ = cmd.Wait()
		h.state = cmd.ProcessState
		closeLogs()
		close(h.done)
	}()
	return h, nil
}

func (h *Handle) Pid() int { return h.pid }

func (h *Handle) Started() time.Time { return h.started }

// Uptime is the time since the child was started.
func (h *Handle) Uptime() time.Duration { return time.Since(h.started) }

// Done is closed once the child has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// TryWait reports the exit state without blocking.
func (h *Handle) TryWait() (*os.ProcessState, bool) {
	select {
	case <-h.done:
		return h.state, true
	default:
		return nil, false
	}
}

// WaitTimeout blocks until the child is reaped or d elapses.
func (h *Handle) WaitTimeout(d time.Duration) (*os.ProcessState, bool) {
	if d <= 0 {
		return h.TryWait()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-h.done:
		return h.state, true
	case <-t.C:
		return nil, false
	}
}

// Signal delivers sig to the child's process group, falling back to the
// child alone when the group is gone.
func (h *Handle) Signal(sig syscall.Signal) error {
	err := syscall.Kill(-h.pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		err = syscall.Kill(h.pid, sig)
	}
	if errors.Is(err, syscall.ESRCH) {
		// already exited; the waiter goroutine will reap it
		return nil
	}
	return err
}

