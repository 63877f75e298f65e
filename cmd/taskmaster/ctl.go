package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/loykin/taskmaster/pkg/client"
)

// CtlFlags holds the remote daemon connection.
type CtlFlags struct {
	APIUrl     string
	APITimeout time.Duration
}

// ctlCmd drives a running supervisor through its HTTP API.
func ctlCmd() *cobra.Command {
	var f CtlFlags
	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running supervisor through its HTTP API",
	}
	def := client.DefaultConfig()
	cmd.PersistentFlags().StringVar(&f.APIUrl, "api", def.BaseURL, "base URL of the control API")
	cmd.PersistentFlags().DurationVar(&f.APITimeout, "api-timeout", def.Timeout, "request timeout")
	newClient := func() *client.Client {
		return client.New(client.Config{BaseURL: f.APIUrl, Timeout: f.APITimeout})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List programs and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows, err := newClient().List(cmd.Context())
			if err != nil {
				return err
			}
			printRemoteList(cmd.OutOrStdout(), rows)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status <name>",
		Short: "Show details of one program",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newClient().Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRemoteDetail(cmd.OutOrStdout(), d)
			return nil
		},
	})
	for _, verb := range []string{"launch", "kill", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   verb + " <name>",
			Short: strings.ToUpper(verb[:1]) + verb[1:] + " a program",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c := newClient()
				var (
					res client.ActionResult
					err error
				)
				switch verb {
				case "launch":
					res, err = c.Launch(cmd.Context(), args[0])
				case "kill":
					res, err = c.Kill(cmd.Context(), args[0])
				default:
					res, err = c.Restart(cmd.Context(), args[0])
				}
				if err != nil {
					return err
				}
				msg := res.Action + " ok"
				if res.Forced {
					msg += " (SIGKILL)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", res.Program, msg)
				return nil
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Reread the supervisor's configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := newClient().Reload(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added: %v\nremoved: %v\nupdated: %v\n", res.Added, res.Removed, res.Updated)
			return nil
		},
	})
	return cmd
}

func printRemoteList(w io.Writer, rows []client.Program) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "no programs configured")
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%3d  %s => %s\n", r.Index, r.Name, r.Status)
	}
}

func printRemoteDetail(w io.Writer, d client.ProgramDetail) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s => %s\n", d.Name, d.Status)
	fmt.Fprintf(tw, "  command:\t%s\n", d.Command)
	fmt.Fprintf(tw, "  autorestart:\t%s\n", d.Policy)
	fmt.Fprintf(tw, "  restarts:\t%d\n", d.Restarts)
	if d.PID > 0 {
		fmt.Fprintf(tw, "  pid:\t%d\n", d.PID)
		fmt.Fprintf(tw, "  uptime:\t%s\n", d.Uptime.Truncate(time.Second))
	}
	if r := d.Resources; r != nil {
		fmt.Fprintf(tw, "  cpu:\t%.1f%%\n", r.CPUPercent)
		fmt.Fprintf(tw, "  rss:\t%.1f MiB\n", float64(r.RSS)/1024/1024)
		fmt.Fprintf(tw, "  threads:\t%d\n", r.NumThreads)
	}
	_ = tw.Flush()
}
