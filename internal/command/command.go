// Package command parses operator verbs and executes them against the
// lifecycle controller.
package command

import (
	"errors"
	"fmt"
	"strings"
)

type Verb int

const (
	List Verb = iota
	Status
	Kill
	Launch
	Restart
	Help
	Exit
)

var verbNames = map[string]Verb{
	"list":    List,
	"status":  Status,
	"kill":    Kill,
	"launch":  Launch,
	"restart": Restart,
	"help":    Help,
	"exit":    Exit,
}

func (v Verb) String() string {
	for n, x := range verbNames {
		if x == v {
			return n
		}
	}
	return fmt.Sprintf("verb(%d)", int(v))
}

// NeedsIndex reports whether the verb addresses one program.
func (v Verb) NeedsIndex() bool {
	switch v {
	case Status, Kill, Launch, Restart:
		return true
	}
	return false
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingParams  = errors.New("missing program index")
)

// Command is a validated operator request. Index is meaningful only for
// verbs that address a program.
type Command struct {
	Verb  Verb
	Index int
}

// Parse validates a verb and its optional index argument.
func Parse(verb string, arg *int) (Command, error) {
	v, ok := verbNames[strings.ToLower(verb)]
	if !ok {
		return Command{}, fmt.Errorf("%w: %q (try help)", ErrUnknownCommand, verb)
	}
	if !v.NeedsIndex() {
		return Command{Verb: v}, nil
	}
	if arg == nil {
		return Command{}, fmt.Errorf("%w: usage: %s <index>", ErrMissingParams, v)
	}
	return Command{Verb: v, Index: *arg}, nil
}
