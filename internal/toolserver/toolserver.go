// Package toolserver hosts "optslurm", the file-inspection tool server
// the estimator spawns as a child process. It exposes two tools over
// the protocol in internal/mcp: one returns a script's contents in a
// fenced code block, the other reports a file's on-disk size.
package toolserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/JianYang-Lab/SlurmSlim/internal/mcp"
)

// ServerName is the identity announced during the handshake.
const ServerName = "optslurm"

// New builds the tool server with both file tools registered.
func New(version string) *mcp.Server {
	s := mcp.NewServer(ServerName, version)

	s.AddTool(mcp.Tool{
		Name:        "get_script_contents",
		Description: "Read a script and return its contents in a fenced code block tagged with the detected language.",
		InputSchema: pathSchema("Path to the script file"),
	}, func(_ context.Context, args json.RawMessage) (string, error) {
		path, err := pathArg(args)
		if err != nil {
			return "", err
		}
		return RenderScript(path)
	})

	s.AddTool(mcp.Tool{
		Name:        "get_file_size",
		Description: "Report the on-disk size of a file the script references.",
		InputSchema: pathSchema("Path to the file"),
	}, func(_ context.Context, args json.RawMessage) (string, error) {
		path, err := pathArg(args)
		if err != nil {
			return "", err
		}
		return FileSizeText(path), nil
	})

	return s
}

func pathSchema(desc string) mcp.InputSchema {
	return mcp.InputSchema{
		Type: "object",
		Properties: map[string]mcp.Property{
			"file_path": {Type: "string", Description: desc},
		},
		Required: []string{"file_path"},
	}
}

func pathArg(args json.RawMessage) (string, error) {
	var in struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return "", fmt.Errorf("bad arguments: %w", err)
	}
	if in.FilePath == "" {
		return "", errors.New("file_path is required")
	}
	return in.FilePath, nil
}

// RenderScript reads the file at path and returns its contents in a
// fenced code block tagged with the detected language, the form the
// estimation prompts embed.
func RenderScript(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	text := string(content)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return "```" + LanguageFor(path, content) + "\n" + text + "```", nil
}

// FileSizeText reports path's on-disk size. A missing file yields
// "File not found" as ordinary text so the model can reason about it.
func FileSizeText(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "File not found"
	}
	size := uint64(info.Size())
	return fmt.Sprintf("File size: %s (%d bytes)", humanize.IBytes(size), size)
}

var extLanguages = map[string]string{
	".awk":    "awk",
	".bash":   "bash",
	".c":      "c",
	".cc":     "cpp",
	".cpp":    "cpp",
	".go":     "go",
	".java":   "java",
	".jl":     "julia",
	".js":     "javascript",
	".lua":    "lua",
	".m":      "matlab",
	".pl":     "perl",
	".py":     "python",
	".r":      "r",
	".rb":     "ruby",
	".rs":     "rust",
	".sbatch": "bash",
	".sh":     "bash",
	".slurm":  "bash",
	".sql":    "sql",
	".ts":     "typescript",
}

// LanguageFor detects the fence language for path, first by extension,
// then by shebang, falling back to "text".
func LanguageFor(path string, content []byte) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}

	sc := bufio.NewScanner(bytes.NewReader(content))
	if sc.Scan() {
		first := sc.Text()
		if strings.HasPrefix(first, "#!") {
			switch {
			case strings.Contains(first, "python"):
				return "python"
			case strings.Contains(first, "Rscript"):
				return "r"
			case strings.Contains(first, "perl"):
				return "perl"
			case strings.Contains(first, "sh"):
				return "bash"
			}
		}
	}
	return "text"
}
