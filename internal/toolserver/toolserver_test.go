package toolserver

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JianYang-Lab/SlurmSlim/internal/mcp"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRenderScript(t *testing.T) {
	t.Parallel()
	script := writeFile(t, t.TempDir(), "train.py", "import numpy as np\nx = np.zeros(10)\n")

	got, err := RenderScript(script)
	if err != nil {
		t.Fatalf("RenderScript() error: %v", err)
	}
	if !strings.HasPrefix(got, "```python\n") {
		t.Errorf("RenderScript() = %q, want ```python fence", got)
	}
	if !strings.Contains(got, "np.zeros(10)") {
		t.Errorf("RenderScript() missing script body: %q", got)
	}
	if !strings.HasSuffix(got, "\n```") {
		t.Errorf("RenderScript() = %q, want closing fence on its own line", got)
	}
}

func TestRenderScript_AddsTrailingNewline(t *testing.T) {
	t.Parallel()
	script := writeFile(t, t.TempDir(), "run.sh", "echo hi") // no trailing newline

	got, err := RenderScript(script)
	if err != nil {
		t.Fatalf("RenderScript() error: %v", err)
	}
	if !strings.Contains(got, "echo hi\n```") {
		t.Errorf("RenderScript() = %q, want newline before closing fence", got)
	}
}

func TestRenderScript_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := RenderScript(filepath.Join(t.TempDir(), "nope.py"))
	if err == nil {
		t.Fatal("RenderScript() expected error for missing file")
	}
}

func TestLanguageFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path    string
		content string
		want    string
	}{
		{"run.sh", "", "bash"},
		{"job.sbatch", "", "bash"},
		{"submit.slurm", "", "bash"},
		{"train.py", "", "python"},
		{"analysis.R", "", "r"},
		{"align.pl", "", "perl"},
		{"noext", "#!/usr/bin/env python3\nprint('hi')\n", "python"},
		{"noext", "#!/bin/bash\necho hi\n", "bash"},
		{"noext", "#!/usr/bin/Rscript\n", "r"},
		{"noext", "just some text\n", "text"},
		{"data.csv", "a,b,c\n", "text"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.path+"_"+tt.want, func(t *testing.T) {
			t.Parallel()
			got := LanguageFor(tt.path, []byte(tt.content))
			if got != tt.want {
				t.Errorf("LanguageFor(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestFileSizeText(t *testing.T) {
	t.Parallel()
	path := writeFile(t, t.TempDir(), "data.csv", strings.Repeat("x", 2048))

	got := FileSizeText(path)
	if !strings.Contains(got, "(2048 bytes)") {
		t.Errorf("FileSizeText() = %q, want exact byte count", got)
	}
	if !strings.Contains(got, "2.0 KiB") {
		t.Errorf("FileSizeText() = %q, want human-readable size", got)
	}
}

func TestFileSizeText_Missing(t *testing.T) {
	t.Parallel()
	got := FileSizeText(filepath.Join(t.TempDir(), "nope.csv"))
	if got != "File not found" {
		t.Errorf("FileSizeText() = %q, want %q", got, "File not found")
	}
}

// startServer wires a client to the tool server over in-process pipes.
func startServer(t *testing.T) *mcp.Client {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = New("test").Serve(ctx, serverR, serverW)
	}()
	t.Cleanup(func() {
		cancel()
		_ = clientW.Close()
		_ = serverW.Close()
		<-done
	})

	return mcp.NewClient(mcp.Implementation{Name: "test-client", Version: "0.0.1"}, clientW, clientR)
}

func TestServer_Handshake(t *testing.T) {
	t.Parallel()
	c := startServer(t)

	info, err := c.Initialize(context.Background())
	if err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	if info.Name != ServerName {
		t.Errorf("server name = %q, want %q", info.Name, ServerName)
	}

	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools() error: %v", err)
	}
	if len(tools) != 2 {
		t.Fatalf("ListTools() returned %d tools, want 2", len(tools))
	}
	if tools[0].Name != "get_script_contents" || tools[1].Name != "get_file_size" {
		t.Errorf("tools = %q, %q; want get_script_contents, get_file_size",
			tools[0].Name, tools[1].Name)
	}
}

func TestServer_GetScriptContents(t *testing.T) {
	t.Parallel()
	script := writeFile(t, t.TempDir(), "run.sh", "#!/bin/bash\npython train.py\n")
	c := startServer(t)

	text, err := c.CallTool(context.Background(), "get_script_contents",
		map[string]any{"file_path": script})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if !strings.HasPrefix(text, "```bash\n") {
		t.Errorf("tool result = %q, want bash fence", text)
	}
}

func TestServer_GetScriptContents_MissingIsToolError(t *testing.T) {
	t.Parallel()
	c := startServer(t)

	_, err := c.CallTool(context.Background(), "get_script_contents",
		map[string]any{"file_path": filepath.Join(t.TempDir(), "nope.sh")})
	var te *mcp.ToolError
	if !errors.As(err, &te) {
		t.Fatalf("CallTool() error = %v, want *mcp.ToolError", err)
	}
}

func TestServer_GetFileSize_MissingIsPlainText(t *testing.T) {
	t.Parallel()
	c := startServer(t)

	text, err := c.CallTool(context.Background(), "get_file_size",
		map[string]any{"file_path": filepath.Join(t.TempDir(), "nope.csv")})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if text != "File not found" {
		t.Errorf("tool result = %q, want %q", text, "File not found")
	}
}

func TestServer_MissingArgument(t *testing.T) {
	t.Parallel()
	c := startServer(t)

	_, err := c.CallTool(context.Background(), "get_file_size", map[string]any{})
	var te *mcp.ToolError
	if !errors.As(err, &te) {
		t.Fatalf("CallTool() error = %v, want *mcp.ToolError", err)
	}
	if !strings.Contains(te.Text, "file_path is required") {
		t.Errorf("ToolError.Text = %q, want to mention file_path", te.Text)
	}
}
