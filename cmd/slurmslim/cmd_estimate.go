package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JianYang-Lab/SlurmSlim/internal/config"
	"github.com/JianYang-Lab/SlurmSlim/internal/estimate"
	"github.com/JianYang-Lab/SlurmSlim/internal/llm"
	"github.com/JianYang-Lab/SlurmSlim/internal/mcp"
	"github.com/JianYang-Lab/SlurmSlim/internal/memsize"
	"github.com/JianYang-Lab/SlurmSlim/internal/slurm"
	"github.com/JianYang-Lab/SlurmSlim/internal/style"
)

func newEstimateCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		baseURL   string
		model     string
		serverCmd string
		noTools   bool
		timeout   int
		headroom  float64
		roundTo   uint64
		maxFiles  int
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "estimate <job-script>",
		Short: "Estimate a job script's peak memory and suggest sbatch --mem",
		Long: `Estimate the peak memory a batch job script will need.

The script's metadata (size, host CPUs and RAM) and its contents are
sent to the configured model. When the tool server is available the
model is first asked which files the script reads at runtime, their
sizes are collected through the server, and the estimate is made from
the full picture. The final reply is parsed for a "<number> <unit>"
memory quantity.

On success exactly two lines go to stdout:

  Estimated Memory: <value> <unit>
  Suggested Slurm Command: sbatch --mem=<n>M <job-script>

The --mem figure pads the estimate with headroom (default 10%) and
rounds up to a whole step (default 100 MiB).

Examples:
  slurmslim estimate run.sh
  slurmslim estimate --no-tools run.sh
  slurmslim estimate --model qwen-max --timeout 300 run.sh`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			flags := cmd.Flags()
			if flags.Changed("base-url") {
				cfg.BaseURL = baseURL
			}
			if flags.Changed("model") {
				cfg.Model = model
			}
			if flags.Changed("server") {
				cfg.ServerCommand = serverCmd
			}
			if flags.Changed("timeout") {
				cfg.TimeoutSeconds = timeout
			}
			if flags.Changed("headroom") {
				cfg.Headroom = headroom
			}
			if flags.Changed("round-to") {
				cfg.MemStepMiB = roundTo
			}
			if flags.Changed("max-files") {
				cfg.MaxFiles = maxFiles
			}
			if noTools {
				cfg.ServerCommand = ""
			}
			return hintWrap(runEstimate(cmd.Context(), stdout, stderr, args[0], cfg, verbose))
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "OpenAI-compatible endpoint base URL")
	cmd.Flags().StringVar(&model, "model", "", "Model to ask for the estimate")
	cmd.Flags().StringVar(&serverCmd, "server", "", "Tool server command (default: slurmslim-server)")
	cmd.Flags().BoolVar(&noTools, "no-tools", false, "Skip the tool server; fence the script locally instead")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Overall timeout in seconds")
	cmd.Flags().Float64Var(&headroom, "headroom", 0, "Safety margin added to the suggestion (e.g. 0.10)")
	cmd.Flags().Uint64Var(&roundTo, "round-to", 0, "Round the suggestion up to this many MiB")
	cmd.Flags().IntVar(&maxFiles, "max-files", 0, "Cap on discovered files sized per run")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Echo connection, progress, and model reasoning to stderr")

	return cmd
}

func runEstimate(ctx context.Context, stdout, stderr io.Writer, script string, cfg *config.Config, verbose bool) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	p := pipeline{cfg: cfg}

	var sp *style.Spinner
	if verbose {
		p.onProgress = func(step string) {
			fmt.Fprintf(stderr, "%s %s\n", style.Dim.Render("·"), step)
		}
		p.onDelta = func(text string, reasoning bool) {
			if reasoning {
				fmt.Fprint(stderr, style.Reasoning.Render(text))
				return
			}
			fmt.Fprint(stderr, text)
		}
		p.onConnect = func(server string, tools []string) {
			fmt.Fprintf(stderr, "Connected to %s with tools: %s\n", server, strings.Join(tools, ", "))
		}
	} else {
		sp = style.StartSpinner(stderr, "Collecting job metadata...")
		defer sp.Stop()
		p.onProgress = sp.SetMessage
	}

	res, err := p.run(ctx, script)
	if sp != nil {
		sp.Stop()
	}
	if err != nil {
		return err
	}

	if verbose {
		printVerboseReport(stderr, res)
	}

	fmt.Fprintf(stdout, "Estimated Memory: %s\n", res.Estimate.String())
	fmt.Fprintf(stdout, "Suggested Slurm Command: %s\n",
		slurm.Command(res.Estimate.Bytes, script, cfg.SlurmOptions()))
	return nil
}

// pipeline wires one estimation run from config: the LLM client, the
// optional tool-server subprocess, the estimator.
type pipeline struct {
	cfg        *config.Config
	onProgress func(step string)
	onDelta    llm.StreamFunc
	onConnect  func(server string, tools []string)
}

func (p pipeline) run(ctx context.Context, script string) (*estimate.Result, error) {
	est := &estimate.Estimator{
		LLM:        llm.New(p.cfg.BaseURL, p.cfg.APIKey, p.cfg.Model),
		MaxFiles:   p.cfg.MaxFiles,
		OnDelta:    p.onDelta,
		OnProgress: p.onProgress,
	}

	if p.cfg.ServerCommand != "" {
		tools, err := dialToolServer(ctx, p.cfg.ServerCommand, p.onConnect)
		if err != nil {
			return nil, err
		}
		defer func() { _ = tools.Close() }()
		est.Tools = tools
	}

	return est.Run(ctx, script)
}

// dialToolServer spawns the tool-server subprocess and completes the
// MCP handshake.
func dialToolServer(ctx context.Context, command string, onConnect func(string, []string)) (*mcpTools, error) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty server command", estimate.ErrToolServer)
	}

	info := mcp.Implementation{Name: "slurmslim", Version: version}
	client, err := mcp.Spawn(ctx, info, parts[0], parts[1:]...)
	if err != nil {
		return nil, fmt.Errorf("%w: spawning %s: %v", estimate.ErrToolServer, parts[0], err)
	}

	server, err := client.Initialize(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: handshake with %s: %v", estimate.ErrToolServer, parts[0], err)
	}

	if onConnect != nil {
		var names []string
		if tools, err := client.ListTools(ctx); err == nil {
			for _, t := range tools {
				names = append(names, t.Name)
			}
		}
		onConnect(server.Name+" "+server.Version, names)
	}

	return &mcpTools{client: client}, nil
}

// mcpTools adapts the MCP client to the estimator's Tools interface.
type mcpTools struct {
	client *mcp.Client
}

func (t *mcpTools) ScriptContents(ctx context.Context, path string) (string, error) {
	return t.client.CallTool(ctx, "get_script_contents", map[string]string{"file_path": path})
}

func (t *mcpTools) FileSize(ctx context.Context, path string) (string, error) {
	return t.client.CallTool(ctx, "get_file_size", map[string]string{"file_path": path})
}

func (t *mcpTools) Close() error {
	return t.client.Close()
}

// printVerboseReport writes the descriptor, the size table, and any
// competing quantity candidates to stderr.
func printVerboseReport(stderr io.Writer, res *estimate.Result) {
	d := res.Descriptor
	hostMem := "unknown"
	if d.HostMemoryBytes > 0 {
		hostMem = humanize.IBytes(d.HostMemoryBytes)
	}
	fmt.Fprintln(stderr)
	fmt.Fprintf(stderr, "Job script: %s (%s on disk)\n", d.Path, humanize.IBytes(d.SizeBytes))
	fmt.Fprintf(stderr, "Host: %d CPUs, %s total RAM\n", d.HostCPUs, hostMem)

	if len(res.Files) > 0 {
		tbl := style.NewTable(
			style.Column{Name: "FILE", Width: 36},
			style.Column{Name: "SIZE", Width: 34},
		)
		tbl.SetIndent("  ")
		for _, f := range res.Files {
			tbl.AddRow(f.Path, f.Report)
		}
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, tbl.Render())
	}

	if candidates := memsize.ParseAll(res.RawReply); len(candidates) > 1 {
		parts := make([]string, len(candidates))
		for i, q := range candidates {
			parts[i] = q.String()
		}
		fmt.Fprintf(stderr, "\nQuantities in reply: %s (largest wins)\n", strings.Join(parts, ", "))
	}
}
