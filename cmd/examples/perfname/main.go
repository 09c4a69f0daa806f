package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"

	"github.com/dylandreimerink/goperf"
	"github.com/dylandreimerink/goperf/perfsys"
	"github.com/dylandreimerink/goperf/perftypes"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// This example is a small perf-stat like tool. It lists the known event names, shows the perf_event_attr an event
// name encodes to and counts events of a command.

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	flagVerbose bool
	flagStrict  bool
	flagEvents  []string
)

var logger = zap.NewNop().Sugar()

func rootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "perfname",
		Short: "Inspect and count perf events by name",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !flagVerbose {
				return nil
			}

			l, err := zap.NewDevelopment()
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			logger = l.Sugar()
			return nil
		},
	}

	c.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log the opening and closing of counters")

	c.AddCommand(
		listCmd(),
		attrCmd(),
		statCmd(),
	)

	return c
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all named events",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range []perftypes.Type{
				perftypes.PERF_TYPE_HARDWARE,
				perftypes.PERF_TYPE_SOFTWARE,
				perftypes.PERF_TYPE_HW_CACHE,
			} {
				for _, ev := range perftypes.Events(t) {
					fmt.Fprintf(w, "%s\t%s\t0x%x\n", ev, t, ev.Config())
				}
			}
			fmt.Fprintln(w, "<category>:<name>\tPERF_TYPE_TRACEPOINT\t")
			fmt.Fprintln(w, "r<hex>\tPERF_TYPE_RAW\t")
			fmt.Fprintln(w, "mem:<addr>[/len][:rwx]\tPERF_TYPE_BREAKPOINT\t")
			w.Flush()
		},
	}
}

func attrCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "attr {event name}",
		Short: "Print the perf_event_attr of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			counter, err := goperf.NewNamedCounter(args[0], perfsys.AttrOpts{Strict: flagStrict})
			if err != nil {
				return err
			}

			attr := counter.Attr()
			attr.Size = perfsys.AttrSize
			raw, err := attr.MarshalBinary()
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), attr)
			fmt.Fprint(cmd.OutOrStdout(), hex.Dump(raw))
			return nil
		},
	}

	c.Flags().BoolVar(&flagStrict, "strict", false, "Validate the attribute options against the counter type")
	return c
}

func statCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "stat -e {event name} [-e ...] -- {command} [args...]",
		Short: "Count events of a command and its children",
		Long: "Count events of a command and its children. Counting starts right after the command is started, " +
			"so the first instructions of the command are not counted.",
		Args: cobra.MinimumNArgs(1),
		RunE: stat,
	}

	c.Flags().StringArrayVarP(&flagEvents, "event", "e", []string{"task-clock"}, "Event to count, can be repeated")
	return c
}

type namedFD struct {
	name string
	fd   perfsys.FD
}

func stat(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	attrs := make([]perfsys.Attr, 0, len(flagEvents))
	for _, name := range flagEvents {
		counter, err := goperf.NewNamedCounter(name, perfsys.AttrOpts{
			Flags: perftypes.AttrFlagsInherit,
		}, goperf.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("event '%s': %w", name, err)
		}
		attrs = append(attrs, counter.Attr())
	}

	child := exec.Command(args[0], args[1:]...)
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	if err := child.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	fds := make([]namedFD, 0, len(attrs))
	defer func() {
		for _, nfd := range fds {
			if err := nfd.fd.Close(); err != nil {
				logger.Warnw("failed to close counter", "event", nfd.name, "err", err)
			}
		}
	}()

	for i, attr := range attrs {
		fd, err := perfsys.PerfEventOpen(
			attr,
			child.Process.Pid,
			perfsys.AnyCPU,
			perfsys.NoGroup,
			perfsys.OpenFlagFDCloseOnExec,
		)
		if err != nil {
			_ = child.Process.Kill()
			_ = child.Wait()
			return fmt.Errorf("open '%s': %w", flagEvents[i], err)
		}
		logger.Debugw("opened counter", "event", flagEvents[i], "pid", child.Process.Pid, "fd", int(fd))
		fds = append(fds, namedFD{name: flagEvents[i], fd: fd})
	}

	waitErr := child.Wait()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "\nPerformance counter stats for '%s':\n\n", child.String())
	for _, nfd := range fds {
		count, err := nfd.fd.ReadCount()
		if err != nil {
			return fmt.Errorf("read '%s': %w", nfd.name, err)
		}
		fmt.Fprintf(w, "%d\t  %s\t\n", count, nfd.name)
	}
	w.Flush()

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		fmt.Fprintf(cmd.OutOrStdout(), "\ncommand exited with status %d\n", exitErr.ExitCode())
		return nil
	}

	return waitErr
}
