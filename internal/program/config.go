package program

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/loykin/taskmaster/internal/logger"
)

// RestartPolicy decides what happens after a program exits on its own.
type RestartPolicy int

const (
	RestartUnexpected RestartPolicy = iota
	RestartAlways
	RestartNever
)

func (p RestartPolicy) String() string {
	switch p {
	case RestartAlways:
		return "always"
	case RestartNever:
		return "never"
	default:
		return "unexpected"
	}
}

// ParseRestartPolicy accepts always, never or unexpected. Booleans are
// accepted as aliases for always and never.
func ParseRestartPolicy(s string) (RestartPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unexpected":
		return RestartUnexpected, nil
	case "always", "true", "1":
		return RestartAlways, nil
	case "never", "false", "0":
		return RestartNever, nil
	}
	return RestartUnexpected, fmt.Errorf("invalid autorestart %q (want always, never or unexpected)", s)
}

// ParseSignal resolves "TERM", "SIGTERM" or "15".
func ParseSignal(s string) (syscall.Signal, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return syscall.SIGTERM, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 || n > 64 {
			return 0, fmt.Errorf("invalid signal number %d", n)
		}
		return syscall.Signal(n), nil
	}
	if !strings.HasPrefix(s, "SIG") {
		s = "SIG" + s
	}
	sig := unix.SignalNum(s)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", s)
	}
	return sig, nil
}

// SignalName returns the conventional name of sig, e.g. SIGTERM.
func SignalName(sig syscall.Signal) string {
	if n := unix.SignalName(sig); n != "" {
		return n
	}
	return "SIG" + strconv.Itoa(int(sig))
}

// Config is the declared configuration of one program.
type Config struct {
	Command     string
	Args        []string
	AutoStart   bool
	AutoRestart RestartPolicy
	ExitCodes   []int
	MaxRestarts int
	StartSecs   time.Duration // minimum uptime for an exit to count as expected
	StopSignal  syscall.Signal
	StopWait    time.Duration // grace period before SIGKILL
	WorkDir     string
	Stdout      string
	Stderr      string
	Env         []string // KEY=VALUE overrides
	Log         logger.Rotation
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("command is required")
	}
	if c.MaxRestarts < 0 {
		return fmt.Errorf("startretries must be >= 0")
	}
	if c.StartSecs < 0 {
		return fmt.Errorf("startsecs must be >= 0")
	}
	if c.StopWait < 0 {
		return fmt.Errorf("stopwaitsecs must be >= 0")
	}
	if c.StopSignal <= 0 {
		return fmt.Errorf("stopsignal must be set")
	}
	for _, kv := range c.Env {
		if !strings.Contains(kv, "=") {
			return fmt.Errorf("env entry %q is not KEY=VALUE", kv)
		}
	}
	return nil
}

// Expected reports whether an exit with code after running for uptime counts as an
// expected termination: a listed exit code and at least StartSecs of uptime.
// Deaths by signal are never expected.
func (c Config) Expected(code int, signaled bool, uptime time.Duration) bool {
	if signaled || uptime < c.StartSecs {
		return false
	}
	if len(c.ExitCodes) == 0 {
		return code == 0
	}
	return slices.Contains(c.ExitCodes, code)
}

// CommandLine renders the command and arguments for display.
func (c Config) CommandLine() string {
	if len(c.Args) == 0 {
		return c.Command
	}
	return c.Command + " " + strings.Join(c.Args, " ")
}

// Output returns the redirection targets with this program's rotation knobs.
func (c Config) Output() logger.Output {
	return logger.Output{StdoutPath: c.Stdout, StderrPath: c.Stderr, Rotation: c.Log}
}
