package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JianYang-Lab/SlurmSlim/internal/llm"
)

// isolate points the XDG config home at a fresh temp dir and clears the
// override variables.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{
		"SLURMSLIM_BASE_URL", "SLURMSLIM_API_KEY", "DASHSCOPE_API_KEY",
		"SLURMSLIM_MODEL", "SLURMSLIM_SERVER_COMMAND",
		"SLURMSLIM_TIMEOUT_SECONDS", "SLURMSLIM_SENTRY_DSN",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BaseURL != llm.DefaultBaseURL {
		t.Errorf("BaseURL = %q, want default", cfg.BaseURL)
	}
	if cfg.Model != "deepseek-r1" {
		t.Errorf("Model = %q, want deepseek-r1", cfg.Model)
	}
	if cfg.ServerCommand != "slurmslim-server" {
		t.Errorf("ServerCommand = %q, want slurmslim-server", cfg.ServerCommand)
	}
	if cfg.Timeout() != 120*time.Second {
		t.Errorf("Timeout() = %v, want 120s", cfg.Timeout())
	}
	if cfg.MaxFiles != 16 {
		t.Errorf("MaxFiles = %d, want 16", cfg.MaxFiles)
	}
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	confDir := filepath.Join(dir, "slurmslim")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	content := `{"base_url":"http://localhost:8080/v1","model":"qwen-max","timeout_seconds":30,"headroom":0.25}`
	if err := os.WriteFile(filepath.Join(confDir, "config.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("BaseURL = %q, want file value", cfg.BaseURL)
	}
	if cfg.Model != "qwen-max" {
		t.Errorf("Model = %q, want qwen-max", cfg.Model)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Errorf("Timeout() = %v, want 30s", cfg.Timeout())
	}
	if got := cfg.SlurmOptions().Headroom; got != 0.25 {
		t.Errorf("SlurmOptions().Headroom = %v, want 0.25", got)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	confDir := filepath.Join(dir, "slurmslim")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(confDir, "config.json"),
		[]byte(`{"model":"from-file"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SLURMSLIM_MODEL", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Model != "from-env" {
		t.Errorf("Model = %q, want env to win", cfg.Model)
	}
}

func TestLoad_APIKeyPriority(t *testing.T) {
	isolate(t)
	t.Setenv("DASHSCOPE_API_KEY", "sk-dashscope")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIKey != "sk-dashscope" {
		t.Errorf("APIKey = %q, want DASHSCOPE_API_KEY fallback", cfg.APIKey)
	}

	t.Setenv("SLURMSLIM_API_KEY", "sk-slurmslim")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIKey != "sk-slurmslim" {
		t.Errorf("APIKey = %q, want SLURMSLIM_API_KEY to win", cfg.APIKey)
	}
}

func TestLoadFile_IgnoresEnvironment(t *testing.T) {
	dir := isolate(t)
	confDir := filepath.Join(dir, "slurmslim")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(confDir, "config.json"),
		[]byte(`{"model":"from-file"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SLURMSLIM_MODEL", "from-env")

	cfg, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Model != "from-file" {
		t.Errorf("Model = %q, want the file value untouched", cfg.Model)
	}
	if cfg.BaseURL != "" {
		t.Errorf("BaseURL = %q, want no defaults applied", cfg.BaseURL)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	isolate(t)
	cfg, err := LoadFile()
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if *cfg != (Config{}) {
		t.Errorf("LoadFile() = %+v, want zero config", cfg)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	dir := isolate(t)
	confDir := filepath.Join(dir, "slurmslim")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(confDir, "config.json"),
		[]byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("Load() expected error for malformed config")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	isolate(t)
	in := &Config{
		BaseURL:       "http://localhost:9090/v1",
		Model:         "deepseek-r1",
		ServerCommand: "/opt/slurmslim-server",
		Headroom:      0.2,
		MemStepMiB:    256,
	}
	if err := Save(in); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	out, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if out.BaseURL != in.BaseURL {
		t.Errorf("BaseURL = %q, want %q", out.BaseURL, in.BaseURL)
	}
	if out.ServerCommand != in.ServerCommand {
		t.Errorf("ServerCommand = %q, want %q", out.ServerCommand, in.ServerCommand)
	}
	opts := out.SlurmOptions()
	if opts.Headroom != 0.2 || opts.StepMiB != 256 {
		t.Errorf("SlurmOptions() = %+v, want headroom 0.2 step 256", opts)
	}
}

func TestSlurmOptions_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	opts := cfg.SlurmOptions()
	if opts.Headroom != 0.10 {
		t.Errorf("Headroom = %v, want 0.10", opts.Headroom)
	}
	if opts.StepMiB != 100 {
		t.Errorf("StepMiB = %d, want 100", opts.StepMiB)
	}
}
