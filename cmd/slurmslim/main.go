// slurmslim estimates a batch job script's peak memory by asking an
// LLM backend, optionally enriched with file sizes gathered through a
// spawned tool server, and prints the matching sbatch --mem suggestion.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/JianYang-Lab/SlurmSlim/internal/config"
	"github.com/JianYang-Lab/SlurmSlim/internal/style"
)

// Version metadata injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errExit is a sentinel error returned by cobra RunE functions to signal
// non-zero exit. The command has already written its own error to stderr.
var errExit = errors.New("exit")

// run executes the slurmslim CLI with the given args.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initSentry()

	root := newRootCmd(stdout, stderr)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, errExit) {
			return 1
		}
		reportError(err)
		fmt.Fprintf(stderr, "slurmslim: %v\n", err)
		var hinted *HintedError
		if errors.As(err, &hinted) {
			fmt.Fprintf(stderr, "  %s\n", hinted.Hint)
		}
		return exitCode(err)
	}
	return 0
}

// newRootCmd creates the root cobra command with all subcommands.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "slurmslim",
		Short:         "SlurmSlim — LLM-backed memory estimates for Slurm job scripts",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			fmt.Fprintf(stderr, "slurmslim: unknown command %q\n", args[0]) //nolint:errcheck // best-effort stderr
			return errExit
		},
	}
	root.PersistentFlags().String("color", "auto", "Color output: always, auto, never")
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		colorMode, _ := cmd.Flags().GetString("color")
		switch colorMode {
		case "always", "auto", "never":
			style.SetColorMode(colorMode)
			return nil
		default:
			return fmt.Errorf("invalid --color value %q: must be always, auto, or never", colorMode)
		}
	}
	root.AddCommand(
		newEstimateCmd(stdout, stderr),
		newChatCmd(stdout, stderr),
		newDoctorCmd(stdout, stderr),
		newConfigCmd(stdout, stderr),
		newVersionCmd(stdout),
	)
	return root
}

// initSentry enables error reporting only when a DSN is configured.
// Without one the sentry calls below are no-ops.
func initSentry() {
	cfg, err := config.Load()
	if err != nil || cfg.SentryDSN == "" {
		return
	}
	_ = sentry.Init(sentry.ClientOptions{
		Dsn:     cfg.SentryDSN,
		Release: "slurmslim@" + version,
	})
}

func reportError(err error) {
	sentry.CaptureException(err)
	sentry.Flush(2 * time.Second)
}
