package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JianYang-Lab/SlurmSlim/internal/config"
)

// healthyDoctorDeps returns deps for which every check passes.
func healthyDoctorDeps(t *testing.T) *doctorDeps {
	t.Helper()
	meminfo := filepath.Join(t.TempDir(), "meminfo")
	if err := os.WriteFile(meminfo, []byte("MemTotal: 33554432 kB\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &doctorDeps{
		lookPath: func(name string) (string, error) { return "/usr/local/bin/" + name, nil },
		load: func() (*config.Config, error) {
			return &config.Config{
				BaseURL:       "https://example.test/v1",
				APIKey:        "key",
				Model:         "deepseek-r1",
				ServerCommand: "slurmslim-server",
			}, nil
		},
		meminfoPath: meminfo,
		models: func(context.Context, *config.Config) ([]string, error) {
			return []string{"deepseek-r1", "qwen-max"}, nil
		},
	}
}

func assertNoIssues(t *testing.T, results []diagnostic) {
	t.Helper()
	for _, d := range results {
		if d.status != "pass" {
			t.Errorf("check %q = %s (%s), want pass", d.name, d.status, d.message)
		}
	}
}

func TestDoctor_AllPass(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	results := runDoctorChecks(context.Background(), &stdout, healthyDoctorDeps(t), false)
	assertNoIssues(t, results)

	out := stdout.String()
	if !strings.Contains(out, "api key: set") {
		t.Errorf("expected 'api key: set', got: %s", out)
	}
	if !strings.Contains(out, "tool server: /usr/local/bin/slurmslim-server") {
		t.Errorf("expected resolved tool server path, got: %s", out)
	}
	if !strings.Contains(out, "host memory: 32 GiB total") {
		t.Errorf("expected host memory line, got: %s", out)
	}
	if strings.Contains(out, "endpoint:") {
		t.Errorf("endpoint should only be probed with --ping, got: %s", out)
	}
}

func TestDoctor_ConfigLoadError(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)
	deps.load = func() (*config.Config, error) {
		return nil, errors.New("parsing config.json: unexpected end of JSON input")
	}

	results := runDoctorChecks(context.Background(), &stdout, deps, false)
	if len(results) != 1 || results[0].status != "fail" {
		t.Fatalf("expected a single fail diagnostic, got: %+v", results)
	}
	if !strings.Contains(stdout.String(), "Fix or remove") {
		t.Errorf("expected fix hint, got: %s", stdout.String())
	}
}

func TestDoctor_APIKeyMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)
	load := deps.load
	deps.load = func() (*config.Config, error) {
		cfg, _ := load()
		cfg.APIKey = ""
		return cfg, nil
	}

	results := runDoctorChecks(context.Background(), &stdout, deps, false)
	if !strings.Contains(stdout.String(), "api key: not set") {
		t.Errorf("expected 'api key: not set', got: %s", stdout.String())
	}
	var found bool
	for _, d := range results {
		if d.name == "api key" && d.status == "warn" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warn diagnostic for the missing api key")
	}
}

func TestDoctor_ToolServerNotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)
	deps.lookPath = func(string) (string, error) { return "", &notFoundErr{} }

	runDoctorChecks(context.Background(), &stdout, deps, false)
	if !strings.Contains(stdout.String(), "slurmslim-server not found in PATH") {
		t.Errorf("expected 'not found in PATH', got: %s", stdout.String())
	}
}

func TestDoctor_ToolServerDisabled(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)
	load := deps.load
	deps.load = func() (*config.Config, error) {
		cfg, _ := load()
		cfg.ServerCommand = ""
		return cfg, nil
	}

	results := runDoctorChecks(context.Background(), &stdout, deps, false)
	assertNoIssues(t, results)
	if !strings.Contains(stdout.String(), "tool server: disabled") {
		t.Errorf("expected 'tool server: disabled', got: %s", stdout.String())
	}
}

func TestDoctor_MeminfoUnreadable(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)
	deps.meminfoPath = "/nonexistent/meminfo"

	results := runDoctorChecks(context.Background(), &stdout, deps, false)
	if !strings.Contains(stdout.String(), "cannot read /nonexistent/meminfo") {
		t.Errorf("expected meminfo warning, got: %s", stdout.String())
	}
	var found bool
	for _, d := range results {
		if d.name == "host memory" && d.status == "warn" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warn diagnostic for unreadable meminfo")
	}
}

func TestDoctor_PingUnreachable(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)
	deps.models = func(context.Context, *config.Config) ([]string, error) {
		return nil, errors.New("model endpoint unreachable: connection refused")
	}

	results := runDoctorChecks(context.Background(), &stdout, deps, true)
	if !strings.Contains(stdout.String(), "Check base_url") {
		t.Errorf("expected base_url hint, got: %s", stdout.String())
	}
	var found bool
	for _, d := range results {
		if d.name == "endpoint" && d.status == "fail" {
			found = true
		}
	}
	if !found {
		t.Error("expected a fail diagnostic for the unreachable endpoint")
	}
}

func TestDoctor_PingModelNotServed(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)
	deps.models = func(context.Context, *config.Config) ([]string, error) {
		return []string{"qwen-max", "qwen-plus"}, nil
	}

	results := runDoctorChecks(context.Background(), &stdout, deps, true)
	if !strings.Contains(stdout.String(), "deepseek-r1 is not in the model list") {
		t.Errorf("expected model-list warning, got: %s", stdout.String())
	}
	var found bool
	for _, d := range results {
		if d.name == "endpoint" && d.status == "warn" {
			found = true
		}
	}
	if !found {
		t.Error("expected a warn diagnostic for the unserved model")
	}
}

func TestDoctor_PingModelAvailable(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	results := runDoctorChecks(context.Background(), &stdout, healthyDoctorDeps(t), true)
	assertNoIssues(t, results)
	if !strings.Contains(stdout.String(), "model deepseek-r1 available") {
		t.Errorf("expected endpoint pass line, got: %s", stdout.String())
	}
}

func TestDoctor_CheckFlag(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)
	deps.lookPath = func(string) (string, error) { return "", &notFoundErr{} }

	err := runDoctor(context.Background(), &stdout, &stdout,
		deps.lookPath, deps.load, deps.meminfoPath, deps.models, false, true)
	if !errors.Is(err, errExit) {
		t.Errorf("expected errExit with --check, got: %v", err)
	}
}

func TestDoctor_CheckFlag_AllPass(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout bytes.Buffer
	deps := healthyDoctorDeps(t)

	err := runDoctor(context.Background(), &stdout, &stdout,
		deps.lookPath, deps.load, deps.meminfoPath, deps.models, false, true)
	if err != nil {
		t.Errorf("expected nil with all checks passing, got: %v", err)
	}
}

type notFoundErr struct{}

func (e *notFoundErr) Error() string { return "executable file not found in $PATH" }
