package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/revrun/revrun/pkg/revrun"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	runStart   string
	runEnd     string
	runPath    string
	runMode    string
	runConfig  string
	runWorkers int
	runSingle  bool
	runTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <command>",
	Short: "Run a shell command against every commit in a revision range",
	Long: `Run a shell command against every commit in the two-dot range start..end,
oldest commit first. Every commit gets its own workspace containing that
commit's tree, the command runs inside it, and the workspace is removed again
afterwards. Failing commits do not stop the run.

A run can alternatively be described by a yaml config passed via --config;
flags given alongside it override the config's values.

The process exits with status 1 if the command did not succeed on every commit.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run := &revrun.Run{}
		if runConfig != "" {
			file, err := os.Open(runConfig)
			if err != nil {
				logrus.Fatalf("Failed to open run config - %v", err)
			}
			run, err = revrun.GetRunFromConfig(file)
			file.Close()
			if err != nil {
				logrus.Fatalf("Failed to read run config from yaml - %v", err)
			}
		}

		if runStart != "" {
			run.Start = runStart
		}
		if runEnd != "" {
			run.End = runEnd
		}
		if runPath != "" {
			run.RepoPath = runPath
		}
		if runWorkers > 0 {
			run.Workers = runWorkers
		}
		if runSingle {
			run.Workers = 1
		}
		if runTimeout > 0 {
			run.Timeout = runTimeout
		}
		if len(args) == 1 {
			run.Command = args[0]
		}
		if cmd.Flags().Changed("mode") || runConfig == "" {
			mode, err := revrun.ParseMode(runMode)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			run.Mode = mode
		}

		if run.Start == "" {
			logrus.Fatal("No start ref specified, pass one with --start or via the config")
		}
		if run.Command == "" {
			logrus.Fatal("No command specified, pass one as the positional argument or via the config")
		}

		run.Log = newLogger()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := run.Execute(ctx)

		// The report of a completed run is presented even when restoring the
		// original HEAD failed afterwards.
		report.Present(os.Stdout)

		if err != nil {
			logrus.Fatalf("Run failed - %v", err)
		}
		if !report.AllPassed() {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runStart, "start", "s", "", "The start of the range, exclusive")
	runCmd.Flags().StringVarP(&runEnd, "end", "e", "", "The end of the range, inclusive (default HEAD)")
	runCmd.Flags().StringVarP(&runPath, "path", "p", "", "The repository location, discovered upward from here (default the current directory)")
	runCmd.Flags().StringVarP(&runMode, "mode", "m", "worktree", "How workspaces are provisioned: worktree, copy or in-place")
	runCmd.Flags().StringVarP(&runConfig, "config", "c", "", "Path to a yaml run config")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "How many commits to run concurrently (default the host's CPU count)")
	runCmd.Flags().BoolVar(&runSingle, "single", false, "Run commits one at a time")
	runCmd.Flags().DurationVarP(&runTimeout, "timeout", "t", 0, "Per-commit command timeout, e.g. 90s (default none)")

	runCmd.MarkFlagsMutuallyExclusive("single", "workers")
}
