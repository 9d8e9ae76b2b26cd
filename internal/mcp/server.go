package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// HandlerFunc executes one tool call. args holds the caller's raw JSON
// arguments; the returned text becomes the result's single content
// block. A returned error travels in-band as an isError result, not as
// a protocol failure.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (string, error)

type serverTool struct {
	def     Tool
	handler HandlerFunc
}

// Server answers protocol requests over an io.Reader/io.Writer pair,
// one message per line. It serves a single connection; run one Server
// per transport.
type Server struct {
	info   Implementation
	tools  []serverTool
	byName map[string]int
}

// NewServer creates a server that identifies itself with the given
// name and version during the handshake.
func NewServer(name, version string) *Server {
	return &Server{
		info:   Implementation{Name: name, Version: version},
		byName: make(map[string]int),
	}
}

// AddTool registers a tool. Tools are listed in registration order.
func (s *Server) AddTool(def Tool, h HandlerFunc) {
	s.byName[def.Name] = len(s.tools)
	s.tools = append(s.tools, serverTool{def: def, handler: h})
}

// Serve reads messages from r and writes replies to w until r closes
// or ctx is cancelled. A clean EOF returns nil.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
		for sc.Scan() {
			line := make([]byte, len(sc.Bytes()))
			copy(line, sc.Bytes())
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		errs <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case line := <-lines:
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			if err := s.handle(ctx, line, w); err != nil {
				return fmt.Errorf("write response: %w", err)
			}
		}
	}
}

func (s *Server) handle(ctx context.Context, raw []byte, w io.Writer) error {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return writeMessage(w, response{
			JSONRPC: "2.0",
			Error:   &RPCError{Code: codeParseError, Message: "parse error"},
		})
	}

	// Notifications expect no reply.
	if req.ID == nil {
		return nil
	}

	resp := response{JSONRPC: "2.0", ID: req.ID}
	switch req.Method {
	case "initialize":
		resp.Result = mustJSON(initializeResult{
			ProtocolVersion: protocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      s.info,
		})
	case "ping":
		resp.Result = json.RawMessage(`{}`)
	case "tools/list":
		defs := make([]Tool, len(s.tools))
		for i, t := range s.tools {
			defs[i] = t.def
		}
		resp.Result = mustJSON(listToolsResult{Tools: defs})
	case "tools/call":
		resp = s.callTool(ctx, req)
	default:
		resp.Error = &RPCError{Code: codeMethodNotFound, Message: "method not found: " + req.Method}
	}
	return writeMessage(w, resp)
}

func (s *Server) callTool(ctx context.Context, req request) response {
	resp := response{JSONRPC: "2.0", ID: req.ID}

	var params callToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		resp.Error = &RPCError{Code: codeInvalidParams, Message: "invalid params"}
		return resp
	}
	i, ok := s.byName[params.Name]
	if !ok {
		resp.Error = &RPCError{Code: codeInvalidParams, Message: "unknown tool: " + params.Name}
		return resp
	}

	result := callToolResult{}
	text, err := s.tools[i].handler(ctx, params.Arguments)
	if err != nil {
		result.IsError = true
		result.Content = []Content{{Type: "text", Text: err.Error()}}
	} else {
		result.Content = []Content{{Type: "text", Text: text}}
	}
	resp.Result = mustJSON(result)
	return resp
}

func writeMessage(w io.Writer, v any) error {
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf = append(buf, '\n')
	_, err = w.Write(buf)
	return err
}
