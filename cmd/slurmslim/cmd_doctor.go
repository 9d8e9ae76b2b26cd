package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/JianYang-Lab/SlurmSlim/internal/config"
	"github.com/JianYang-Lab/SlurmSlim/internal/jobscript"
	"github.com/JianYang-Lab/SlurmSlim/internal/llm"
	"github.com/JianYang-Lab/SlurmSlim/internal/style"
)

func newDoctorCmd(stdout, stderr io.Writer) *cobra.Command {
	var ping, check bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check your SlurmSlim setup for common issues",
		Long: `Run diagnostic checks on your SlurmSlim setup.

Verifies the config file, API key, tool server binary, and the host
memory probe. Use --ping to also contact the configured endpoint and
confirm the model is served there.

Use --check to exit non-zero if any warnings or failures (useful for CI).

Examples:
  slurmslim doctor
  slurmslim doctor --ping
  slurmslim doctor --check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			models := func(ctx context.Context, cfg *config.Config) ([]string, error) {
				return llm.New(cfg.BaseURL, cfg.APIKey, cfg.Model).Models(ctx)
			}
			return runDoctor(cmd.Context(), stdout, stderr, exec.LookPath, config.Load, "/proc/meminfo", models, ping, check)
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "Contact the endpoint and confirm the model is available")
	cmd.Flags().BoolVar(&check, "check", false, "Exit non-zero if any warnings or failures")

	return cmd
}

// diagnostic holds a single check result.
type diagnostic struct {
	name    string
	status  string // "pass", "warn", "fail"
	message string
	hint    string // manual fix instructions
}

// doctorDeps holds injectable dependencies for testing.
type doctorDeps struct {
	lookPath    func(string) (string, error)
	load        func() (*config.Config, error)
	meminfoPath string
	models      func(context.Context, *config.Config) ([]string, error)
}

func runDoctor(ctx context.Context, stdout, _ io.Writer, lookPath func(string) (string, error), load func() (*config.Config, error), meminfoPath string, models func(context.Context, *config.Config) ([]string, error), ping, check bool) error {
	deps := &doctorDeps{lookPath: lookPath, load: load, meminfoPath: meminfoPath, models: models}
	results := runDoctorChecks(ctx, stdout, deps, ping)

	// --check: exit non-zero if any issues.
	if check {
		for _, d := range results {
			if d.status == "fail" || d.status == "warn" {
				return errExit
			}
		}
	}

	return nil
}

func runDoctorChecks(ctx context.Context, stdout io.Writer, deps *doctorDeps, ping bool) []diagnostic {
	var results []diagnostic

	// 1. config file loads
	cfg, d := checkConfig(stdout, deps)
	results = append(results, d)
	if cfg == nil {
		return results
	}

	// 2. API key
	results = append(results, checkAPIKey(stdout, cfg))

	// 3. tool server binary
	results = append(results, checkToolServer(stdout, deps, cfg))

	// 4. host memory probe
	results = append(results, checkMeminfo(stdout, deps))

	// 5. endpoint reachability (--ping)
	if ping {
		results = append(results, checkEndpoint(ctx, stdout, deps, cfg))
	}

	return results
}

func checkConfig(stdout io.Writer, deps *doctorDeps) (*config.Config, diagnostic) {
	path := config.Path()
	cfg, err := deps.load()
	if err != nil {
		d := diagnostic{
			name: "config", status: "fail", message: err.Error(),
			hint: "Fix or remove " + path,
		}
		fmt.Fprintf(stdout, "  %s config: %s\n", style.Error.Render(style.IconFail), d.message)
		fmt.Fprintf(stdout, "      Fix or remove %s\n", path)
		return nil, d
	}
	if _, err := os.Stat(path); err != nil {
		msg := "no file (defaults and environment in effect)"
		fmt.Fprintf(stdout, "  %s config: %s\n", style.Success.Render(style.IconPass), msg)
		return cfg, diagnostic{name: "config", status: "pass", message: msg}
	}
	fmt.Fprintf(stdout, "  %s config: %s\n", style.Success.Render(style.IconPass), path)
	return cfg, diagnostic{name: "config", status: "pass", message: path}
}

func checkAPIKey(stdout io.Writer, cfg *config.Config) diagnostic {
	if cfg.APIKey == "" {
		d := diagnostic{
			name: "api key", status: "warn", message: "not set",
			hint: "Set SLURMSLIM_API_KEY, or run 'slurmslim config set api_key <key>'",
		}
		fmt.Fprintf(stdout, "  %s api key: not set (set SLURMSLIM_API_KEY or run 'slurmslim config set api_key <key>')\n", style.Warning.Render(style.IconWarn))
		return d
	}
	// Never echo the key itself.
	fmt.Fprintf(stdout, "  %s api key: set\n", style.Success.Render(style.IconPass))
	return diagnostic{name: "api key", status: "pass", message: "set"}
}

func checkToolServer(stdout io.Writer, deps *doctorDeps, cfg *config.Config) diagnostic {
	if cfg.ServerCommand == "" {
		msg := "disabled (single-shot estimates only)"
		fmt.Fprintf(stdout, "  %s tool server: %s\n", style.Success.Render(style.IconPass), msg)
		return diagnostic{name: "tool server", status: "pass", message: msg}
	}
	parts := strings.Fields(cfg.ServerCommand)
	if len(parts) == 0 {
		d := diagnostic{
			name: "tool server", status: "fail", message: "server_command is blank",
			hint: "Run 'slurmslim config set server_command slurmslim-server'",
		}
		fmt.Fprintf(stdout, "  %s tool server: server_command is blank\n", style.Error.Render(style.IconFail))
		return d
	}
	path, err := deps.lookPath(parts[0])
	if err != nil {
		d := diagnostic{
			name: "tool server", status: "fail", message: fmt.Sprintf("%s not found in PATH", parts[0]),
			hint: "Install slurmslim-server next to slurmslim, or estimate with --no-tools",
		}
		fmt.Fprintf(stdout, "  %s tool server: %s not found in PATH\n", style.Error.Render(style.IconFail), parts[0])
		fmt.Fprintf(stdout, "      Install slurmslim-server next to slurmslim, or estimate with --no-tools\n")
		return d
	}
	fmt.Fprintf(stdout, "  %s tool server: %s\n", style.Success.Render(style.IconPass), path)
	return diagnostic{name: "tool server", status: "pass", message: path}
}

func checkMeminfo(stdout io.Writer, deps *doctorDeps) diagnostic {
	total := jobscript.ReadMemTotal(deps.meminfoPath)
	if total == 0 {
		d := diagnostic{
			name: "host memory", status: "warn",
			message: fmt.Sprintf("cannot read %s", deps.meminfoPath),
		}
		fmt.Fprintf(stdout, "  %s host memory: cannot read %s (host RAM will be reported as unknown)\n", style.Warning.Render(style.IconWarn), deps.meminfoPath)
		return d
	}
	msg := humanize.IBytes(total) + " total"
	fmt.Fprintf(stdout, "  %s host memory: %s\n", style.Success.Render(style.IconPass), msg)
	return diagnostic{name: "host memory", status: "pass", message: msg}
}

func checkEndpoint(ctx context.Context, stdout io.Writer, deps *doctorDeps, cfg *config.Config) diagnostic {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models, err := deps.models(ctx, cfg)
	if err != nil {
		d := diagnostic{
			name: "endpoint", status: "fail", message: err.Error(),
			hint: "Check base_url and your API key",
		}
		fmt.Fprintf(stdout, "  %s endpoint: %v\n", style.Error.Render(style.IconFail), err)
		fmt.Fprintf(stdout, "      Check base_url (%s) and your API key\n", cfg.BaseURL)
		return d
	}
	for _, m := range models {
		if m == cfg.Model {
			msg := fmt.Sprintf("reachable, model %s available", cfg.Model)
			fmt.Fprintf(stdout, "  %s endpoint: %s\n", style.Success.Render(style.IconPass), msg)
			return diagnostic{name: "endpoint", status: "pass", message: msg}
		}
	}
	d := diagnostic{
		name: "endpoint", status: "warn",
		message: fmt.Sprintf("reachable, but %s is not in the model list", cfg.Model),
		hint:    "Pick a served model with 'slurmslim config set model <name>'",
	}
	fmt.Fprintf(stdout, "  %s endpoint: reachable, but %s is not in the model list (%d served)\n", style.Warning.Render(style.IconWarn), cfg.Model, len(models))
	return d
}
