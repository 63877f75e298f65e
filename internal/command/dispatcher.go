package command

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/loykin/taskmaster/internal/lifecycle"
	"github.com/loykin/taskmaster/internal/registry"
)

const helpText = `commands:
  list             show every program and its status
  status <index>   show details of one program
  launch <index>   start a program that is not running
  kill <index>     stop a program gracefully (SIGKILL after stopwaitsecs)
  restart <index>  stop then launch a program
  help             show this text
  exit             stop every program and quit
`

type Dispatcher struct {
	ctl     *lifecycle.Controller
	running *atomic.Bool
	out     io.Writer
}

// NewDispatcher returns a dispatcher writing informational output to out.
// exit clears running.
func NewDispatcher(ctl *lifecycle.Controller, running *atomic.Bool, out io.Writer) *Dispatcher {
	return &Dispatcher{ctl: ctl, running: running, out: out}
}

// Dispatch executes cmd. Errors are returned for the caller to report; they
// never leave the registry half-modified.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch cmd.Verb {
	case List:
		d.list()
		return nil
	case Help:
		_, err := io.WriteString(d.out, helpText)
		return err
	case Exit:
		d.running.Store(false)
		return nil
	}

	name, err := d.resolve(cmd.Index)
	if err != nil {
		return err
	}
	switch cmd.Verb {
	case Status:
		return d.status(name)
	case Kill:
		res, err := d.ctl.Stop(name)
		if err != nil {
			return err
		}
		how := "stopped"
		if res.Forced {
			how = "stopped with SIGKILL"
		}
		fmt.Fprintf(d.out, "%s: %s\n", name, how)
		return nil
	case Launch:
		if err := d.ctl.Launch(name); err != nil {
			return err
		}
		fmt.Fprintf(d.out, "%s: launched\n", name)
		return nil
	case Restart:
		if err := d.ctl.Restart(name); err != nil {
			return err
		}
		fmt.Fprintf(d.out, "%s: restarted\n", name)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Verb)
}

// resolve maps a display index to the stable program name under the lock.
func (d *Dispatcher) resolve(idx int) (string, error) {
	var name string
	err := d.ctl.Registry().With(func(v *registry.View) error {
		e, err := v.At(idx)
		if err != nil {
			return err
		}
		name = e.Name
		return nil
	})
	return name, err
}

func (d *Dispatcher) list() {
	rows := d.ctl.Snapshot()
	if len(rows) == 0 {
		fmt.Fprintln(d.out, "no programs configured")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(d.out, "%3d  %s => %s\n", r.Index, r.Name, r.Status)
	}
}

func (d *Dispatcher) status(name string) error {
	det, err := d.ctl.Describe(name)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(d.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s => %s\n", det.Name, det.Status)
	fmt.Fprintf(tw, "  command:\t%s\n", det.Command)
	fmt.Fprintf(tw, "  autorestart:\t%s\n", det.Policy)
	fmt.Fprintf(tw, "  restarts:\t%d\n", det.Restarts)
	if det.PID > 0 {
		fmt.Fprintf(tw, "  pid:\t%d\n", det.PID)
		fmt.Fprintf(tw, "  uptime:\t%s\n", det.Uptime.Truncate(time.Second))
	} else if !det.ExitedAt.IsZero() {
		fmt.Fprintf(tw, "  exited at:\t%s\n", det.ExitedAt.Format(time.RFC3339))
		fmt.Fprintf(tw, "  ran for:\t%s\n", det.Uptime.Truncate(time.Millisecond))
	}
	if r := det.Resources; r != nil {
		fmt.Fprintf(tw, "  cpu:\t%.1f%%\n", r.CPUPercent)
		fmt.Fprintf(tw, "  rss:\t%.1f MiB\n", float64(r.RSS)/1024/1024)
		fmt.Fprintf(tw, "  threads:\t%d\n", r.NumThreads)
	}
	if det.Error != "" {
		fmt.Fprintf(tw, "  probe error:\t%s\n", det.Error)
	}
	return tw.Flush()
}
