package program

import (
	"errors"
	"fmt"
)

var (
	ErrNotLaunched     = errors.New("program is not launched")
	ErrAlreadyLaunched = errors.New("program is already launched")
	ErrStopping        = errors.New("program is being stopped")
)

// RuntimeError reports an OS-level failure while acting on a program:
// spawning it or delivering a signal.
type RuntimeError struct {
	Program string
	Op      string
	Err     error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Program, e.Err)
}

func (e *RuntimeError) Unwrap() error { return e.Err }
