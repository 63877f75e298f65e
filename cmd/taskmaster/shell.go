package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/loykin/taskmaster/internal/command"
)

const promptText = "taskmaster> "

var errTooManyArgs = errors.New("too many arguments")

// session is the part of the application the shell drives.
type session interface {
	Dispatch(ctx context.Context, cmd command.Command) error
	Running() bool
}

type shell struct {
	session session
	in      io.Reader
	out     io.Writer
	errOut  io.Writer
	prompt  bool
}

// tokenize splits a line into a verb and an optional index. A blank line
// yields an empty verb.
func tokenize(line string) (string, *int, error) {
	fields := strings.Fields(line)
	switch len(fields) {
	case 0:
		return "", nil, nil
	case 1:
		return fields[0], nil, nil
	case 2:
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return "", nil, fmt.Errorf("%w: %q is not a program index", command.ErrMissingParams, fields[1])
		}
		return fields[0], &n, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", errTooManyArgs, line)
	}
}

// run reads commands until exit, end of input, a termination signal or ctx
// cancellation. The last three behave like exit.
func (s *shell) run(ctx context.Context, sigs <-chan os.Signal) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(s.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			fmt.Fprintln(s.errOut, "read error:", err)
		}
	}()

	for s.session.Running() {
		if s.prompt {
			fmt.Fprint(s.out, promptText)
		}
		select {
		case <-ctx.Done():
			s.exit(context.Background())
			return
		case sig := <-sigs:
			fmt.Fprintf(s.errOut, "\nreceived %s, exiting\n", sig)
			s.exit(ctx)
			return
		case line, ok := <-lines:
			if !ok {
				if s.prompt {
					fmt.Fprintln(s.out)
				}
				s.exit(ctx)
				return
			}
			s.handle(ctx, line)
		}
	}
}

func (s *shell) handle(ctx context.Context, line string) {
	verb, idx, err := tokenize(line)
	if err == nil && verb == "" {
		return
	}
	var cmd command.Command
	if err == nil {
		cmd, err = command.Parse(verb, idx)
	}
	if err == nil {
		err = s.session.Dispatch(ctx, cmd)
	}
	if err != nil {
		fmt.Fprintln(s.errOut, "error:", err)
	}
}

func (s *shell) exit(ctx context.Context) {
	if err := s.session.Dispatch(ctx, command.Command{Verb: command.Exit}); err != nil {
		fmt.Fprintln(s.errOut, "error:", err)
	}
}
