package procstate

import (
	"errors"
	"fmt"
	"strings"
)

// State is the scheduler condition of a live process as reported by the OS.
// Names follow the Linux /proc vocabulary; other platforms are mapped onto it.
type State int

const (
	Unknown State = iota
	Running
	Sleeping
	WaitingOnIO
	Zombie
	Stopped
	TracingStop
	Idle
	Dead
)

var stateNames = [...]string{
	Unknown:     "unknown",
	Running:     "running",
	Sleeping:    "sleeping",
	WaitingOnIO: "waiting on io",
	Zombie:      "zombie",
	Stopped:     "stopped",
	TracingStop: "tracing stop",
	Idle:        "idle",
	Dead:        "dead",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return stateNames[Unknown]
	}
	return stateNames[s]
}

// ErrMalformedStatus is returned when a status line does not carry a state field.
var ErrMalformedStatus = errors.New("malformed process status line")

// FromCode maps the single-letter state code used by /proc/<pid>/status and
// /proc/<pid>/stat. Unrecognized codes yield Unknown.
func FromCode(code string) State {
	switch code {
	case "R":
		return Running
	case "S":
		return Sleeping
	case "D":
		return WaitingOnIO
	case "Z":
		return Zombie
	case "T":
		return Stopped
	case "t":
		return TracingStop
	case "I":
		return Idle
	case "X", "x":
		return Dead
	default:
		return Unknown
	}
}

// ParseStatusLine decodes a "State:\tS (sleeping)" line. The single letter is
// authoritative; the parenthesized word is only used when the letter is absent.
func ParseStatusLine(line string) (State, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), "State:")
	if !ok {
		return Unknown, fmt.Errorf("%w: %q", ErrMalformedStatus, line)
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return Unknown, fmt.Errorf("%w: %q", ErrMalformedStatus, line)
	}
	if !strings.HasPrefix(fields[0], "(") {
		return FromCode(fields[0]), nil
	}
	return fromWord(strings.Trim(strings.Join(fields, " "), "()")), nil
}

func fromWord(w string) State {
	for i, name := range stateNames {
		if name == w {
			return State(i)
		}
	}
	switch w {
	case "disk sleep":
		return WaitingOnIO
	case "stopped (tracing)", "tracing stop":
		return TracingStop
	}
	return Unknown
}
