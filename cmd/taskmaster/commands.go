package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/loykin/taskmaster/internal/app"
	"github.com/loykin/taskmaster/internal/config"
	"github.com/loykin/taskmaster/internal/program"
)

const defaultConfig = "taskmaster.toml"

// buildRoot creates the root command. Running it without a subcommand
// starts the supervisor and its interactive shell.
func buildRoot() *cobra.Command {
	var f RootFlags
	root := &cobra.Command{
		Use:           "taskmaster",
		Short:         "Supervise a set of programs and control them interactively",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSupervisor(cmd.Context(), f, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&f.ConfigPath, "config", "c", defaultConfig, "path to the TOML configuration file")
	root.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "mirror the supervisor log on stderr")
	root.Flags().BoolVar(&f.NoPrompt, "no-prompt", false, "do not print the interactive prompt")

	root.AddCommand(checkCmd(&f), ctlCmd(), versionCmd())
	return root
}

func runSupervisor(ctx context.Context, f RootFlags, in io.Reader, out, errOut io.Writer) error {
	opts := app.Options{ConfigPath: f.ConfigPath, Out: out}
	if f.Verbose {
		opts.Console = errOut
		opts.Color = isTerminal(errOut)
	}
	a, err := app.New(opts)
	if err != nil {
		return err
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	if err := a.Start(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	sh := &shell{
		session: a,
		in:      in,
		out:     out,
		errOut:  errOut,
		prompt:  !f.NoPrompt && isTerminal(in),
	}
	sh.run(ctx, sigs)
	return a.Shutdown(context.Background())
}

func isTerminal(v any) bool {
	fd, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(fd.Fd()))
}

func checkCmd(f *RootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration without launching anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.ConfigPath)
			if err != nil {
				return err
			}
			printPrograms(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printPrograms(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "%s: ok, %d program(s)\n", cfg.Path, len(cfg.Programs))
	if len(cfg.Programs) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tNAME\tAUTOSTART\tAUTORESTART\tRETRIES\tSTOPSIGNAL\tCOMMAND")
	for i, name := range cfg.Names() {
		pc := cfg.Programs[name]
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%d\t%s\t%s\n",
			i, name, pc.AutoStart, pc.AutoRestart, pc.MaxRestarts, program.SignalName(pc.StopSignal), pc.CommandLine())
	}
	_ = tw.Flush()
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "taskmaster", version)
		},
	}
}
