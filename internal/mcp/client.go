package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ToolError is a tool-level failure the server reported in-band via an
// isError result. Transport and protocol failures surface as other
// error types.
type ToolError struct {
	Tool string
	Text string
}

func (e *ToolError) Error() string {
	return e.Tool + ": " + e.Text
}

// Client drives a protocol server over a byte stream. The pipeline is
// strictly sequential, so a Client is not safe for concurrent use.
type Client struct {
	info   Implementation
	w      io.WriteCloser
	cmd    *exec.Cmd
	lines  chan []byte
	closed chan error
	nextID int64
}

// NewClient attaches a client to an already-connected transport. Tests
// use in-process pipes; production code goes through Spawn.
func NewClient(info Implementation, w io.WriteCloser, r io.Reader) *Client {
	c := &Client{
		info:   info,
		w:      w,
		lines:  make(chan []byte),
		closed: make(chan error, 1),
	}
	go c.readLoop(r)
	return c
}

// Spawn starts command as a child process and attaches a client to its
// stdio. The child's stderr passes through for diagnostics. Cancelling
// ctx kills the child.
func Spawn(ctx context.Context, info Implementation, command string, args ...string) (*Client, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", command, err)
	}

	c := NewClient(info, stdin, stdout)
	c.cmd = cmd
	return c, nil
}

// Close signals the server to exit by closing its stdin and, for
// spawned servers, reaps the child process.
func (c *Client) Close() error {
	err := c.w.Close()
	if c.cmd != nil {
		if werr := c.cmd.Wait(); werr != nil && err == nil {
			err = werr
		}
	}
	return err
}

// Initialize performs the handshake and returns the server's identity.
func (c *Client) Initialize(ctx context.Context) (Implementation, error) {
	raw, err := c.call(ctx, "initialize", initializeParams{
		ProtocolVersion: protocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      c.info,
	})
	if err != nil {
		return Implementation{}, err
	}
	var res initializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return Implementation{}, fmt.Errorf("bad initialize result: %w", err)
	}
	if err := c.notify("notifications/initialized"); err != nil {
		return Implementation{}, err
	}
	return res.ServerInfo, nil
}

// ListTools returns the tools the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	raw, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var res listToolsResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("bad tools/list result: %w", err)
	}
	return res.Tools, nil
}

// CallTool invokes a tool and returns its text content. A result the
// server flagged as an error comes back as a *ToolError carrying the
// text.
func (c *Client) CallTool(ctx context.Context, name string, args any) (string, error) {
	params := callToolParams{Name: name}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("marshal arguments: %w", err)
		}
		params.Arguments = raw
	}
	raw, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return "", err
	}
	var res callToolResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("bad tools/call result: %w", err)
	}

	var parts []string
	for _, block := range res.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		return "", &ToolError{Tool: name, Text: text}
	}
	return text, nil
}

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.nextID++
	id := c.nextID

	req := request{JSONRPC: "2.0", ID: &id, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = raw
	}
	if err := writeMessage(c.w, req); err != nil {
		return nil, fmt.Errorf("write %s request: %w", method, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-c.closed:
			return nil, fmt.Errorf("server closed the connection: %w", err)
		case line := <-c.lines:
			var resp response
			if err := json.Unmarshal(line, &resp); err != nil {
				return nil, fmt.Errorf("bad response: %w", err)
			}
			// Skip anything that is not the reply to this request.
			if resp.ID == nil || *resp.ID != id {
				continue
			}
			if resp.Error != nil {
				return nil, resp.Error
			}
			return resp.Result, nil
		}
	}
}

func (c *Client) notify(method string) error {
	if err := writeMessage(c.w, request{JSONRPC: "2.0", Method: method}); err != nil {
		return fmt.Errorf("write %s notification: %w", method, err)
	}
	return nil
}

func (c *Client) readLoop(r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	for sc.Scan() {
		line := make([]byte, len(sc.Bytes()))
		copy(line, sc.Bytes())
		c.lines <- line
	}
	err := sc.Err()
	if err == nil {
		err = io.EOF
	}
	c.closed <- err
}
