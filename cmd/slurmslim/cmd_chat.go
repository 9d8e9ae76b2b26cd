package main

import (
	"context"
	"fmt"
	"io"

	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/JianYang-Lab/SlurmSlim/internal/config"
	"github.com/JianYang-Lab/SlurmSlim/internal/estimate"
	"github.com/JianYang-Lab/SlurmSlim/internal/tui"
)

func newChatCmd(_, _ io.Writer) *cobra.Command {
	var noTools bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive session for estimating several scripts in a row",
		Long: `Open an interactive estimation session.

Type a job-script path and press enter; the estimate and the suggested
sbatch command are appended to the session history. Press esc to leave.

Examples:
  slurmslim chat
  slurmslim chat --no-tools`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if noTools {
				cfg.ServerCommand = ""
			}
			return runChat(cfg)
		},
	}

	cmd.Flags().BoolVar(&noTools, "no-tools", false, "Skip the tool server; fence scripts locally instead")

	return cmd
}

func runChat(cfg *config.Config) error {
	p := pipeline{cfg: cfg}

	m := tui.New(tui.Config{
		Run: func(ctx context.Context, script string) (estimate.Result, error) {
			res, err := p.run(ctx, script)
			if err != nil {
				return estimate.Result{}, err
			}
			return *res, nil
		},
		Slurm:   cfg.SlurmOptions(),
		Model:   cfg.Model,
		Timeout: cfg.Timeout(),
	})

	prog := bubbletea.NewProgram(m, bubbletea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("chat session: %w", err)
	}
	return nil
}
