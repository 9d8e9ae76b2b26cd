// Package llm is a client for OpenAI-compatible chat completion
// endpoints. It streams replies and separates thinking-trace tokens
// (reasoning_content, emitted by models like deepseek-r1) from the
// answer itself.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBaseURL is the DashScope OpenAI-compatible endpoint the tool
// was originally deployed against.
const DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// maxChunkSize bounds a single stream frame.
const maxChunkSize = 1 << 20

var (
	// ErrUnavailable reports that the endpoint could not be reached or
	// answered with a server-side failure.
	ErrUnavailable = errors.New("model endpoint unreachable")

	// ErrTimeout reports that no reply arrived within the configured
	// duration.
	ErrTimeout = errors.New("model endpoint timed out")
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamFunc receives delta text as it arrives. reasoning is true for
// thinking-trace tokens the model emits before the answer.
type StreamFunc func(text string, reasoning bool)

// Client calls one chat completion endpoint. Deadlines come from the
// caller's context.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// New builds a client for the endpoint at baseURL.
func New(baseURL, apiKey, model string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
		} `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends messages to the model and returns the full answer
// text. Streamed deltas are forwarded to onDelta when non-nil;
// reasoning tokens are forwarded but never part of the returned
// answer.
func (c *Client) Complete(ctx context.Context, messages []Message, onDelta StreamFunc) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.Model, Messages: messages, Stream: true})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	res, err := c.httpClient().Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return "", statusError(res)
	}

	// Endpoints that honor stream:true answer with an event stream;
	// others fall back to a single JSON object.
	if strings.HasPrefix(res.Header.Get("Content-Type"), "text/event-stream") {
		return readStream(res.Body, onDelta)
	}
	return readSingle(res.Body, onDelta)
}

// Models lists the model IDs the endpoint serves.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	res, err := c.httpClient().Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, fmt.Errorf("models status=%d", res.StatusCode)
	}

	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}
	ids := make([]string, len(out.Data))
	for i, m := range out.Data {
		ids[i] = m.ID
	}
	return ids, nil
}

func readStream(r io.Reader, onDelta StreamFunc) (string, error) {
	var answer strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxChunkSize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			break
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("bad stream chunk: %w", err)
		}
		// Frames without choices carry usage stats only.
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.ReasoningContent != "" && onDelta != nil {
			onDelta(delta.ReasoningContent, true)
		}
		if delta.Content != "" {
			if onDelta != nil {
				onDelta(delta.Content, false)
			}
			answer.WriteString(delta.Content)
		}
	}
	if err := sc.Err(); err != nil {
		return "", classify(err)
	}
	return answer.String(), nil
}

func readSingle(r io.Reader, onDelta StreamFunc) (string, error) {
	var res chatResponse
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("chat response carried no choices")
	}
	msg := res.Choices[0].Message
	if onDelta != nil {
		if msg.ReasoningContent != "" {
			onDelta(msg.ReasoningContent, true)
		}
		if msg.Content != "" {
			onDelta(msg.Content, false)
		}
	}
	return msg.Content, nil
}

func statusError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	msg := strings.TrimSpace(string(body))
	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		msg = er.Error.Message
	}
	if res.StatusCode >= 500 {
		return fmt.Errorf("%w: status=%d: %s", ErrUnavailable, res.StatusCode, msg)
	}
	return fmt.Errorf("chat completions status=%d: %s", res.StatusCode, msg)
}

// classify folds transport errors into the unavailable/timeout pair the
// rest of the pipeline reports on.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
