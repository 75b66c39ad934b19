package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/midorin-Linux/NekoAI/internal/config"
	"github.com/midorin-Linux/NekoAI/internal/httpkit"
)

// UpstreamError classifies a failure of the completion backend:
// transport errors, non-2xx statuses, responses with no usable choice,
// or empty content where content was required. The agent retries these
// once through its degraded fallback path; everything else it surfaces
// directly.
type UpstreamError struct {
	Op  string // "complete" or "complete_with_tools"
	Err error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openai %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Options are the fixed sampling parameters sent with every request.
// Zero values are omitted from the wire format, leaving the backend's
// own defaults in effect.
type Options struct {
	// Temperature controls sampling randomness. 0 omits the field.
	Temperature float64
	// MaxTokens caps the completion length. 0 omits the field.
	MaxTokens int
	// ToolChoice is forwarded verbatim when tools are supplied
	// ("auto", "none", "required"). Empty omits the field.
	ToolChoice string
}

// Client talks to an OpenAI-compatible chat completions endpoint. It is
// stateless across calls apart from this fixed configuration, and is
// safe for concurrent use. Retry and fallback policy belongs to the
// caller.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	opts       Options
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the given endpoint and model.
func NewClient(baseURL, apiKey, model string, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		opts:    opts,
		logger:  logger.With("provider", "openai"),
		// No global timeout; completion latency varies wildly.
		// Callers bound each request with a ctx deadline.
		httpClient: httpkit.NewClient(httpkit.WithTimeout(0)),
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Wire format

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  string           `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role      string     `json:"role"`
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends a single-shot completion request without a tool
// catalogue and returns the assistant text. A response with no choice
// or empty content is an *UpstreamError.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.create(ctx, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return "", &UpstreamError{Op: "complete", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &UpstreamError{Op: "complete", Err: fmt.Errorf("no choices in response")}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", &UpstreamError{Op: "complete", Err: fmt.Errorf("empty content in response")}
	}
	return content, nil
}

// CompleteWithTools sends a completion request carrying the tool
// catalogue. When the model elects to call tools, the returned text may
// be empty and the call list is populated; otherwise the text is the
// final answer and the call list is nil. There is no partial-failure
// state: either a usable result or an *UpstreamError.
func (c *Client) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDefinition) (string, []ToolCall, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
	if len(tools) > 0 {
		req.Tools = tools
		req.ToolChoice = c.opts.ToolChoice
	}

	resp, err := c.create(ctx, req)
	if err != nil {
		return "", nil, &UpstreamError{Op: "complete_with_tools", Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", nil, &UpstreamError{Op: "complete_with_tools", Err: fmt.Errorf("no choices in response")}
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) > 0 {
		return choice.Message.Content, choice.Message.ToolCalls, nil
	}
	if choice.Message.Content == "" {
		return "", nil, &UpstreamError{Op: "complete_with_tools", Err: fmt.Errorf("empty content in response")}
	}
	return choice.Message.Content, nil, nil
}

// create performs the HTTP round trip. Exactly one choice is consumed
// by callers; the rest of the payload is ignored.
func (c *Client) create(ctx context.Context, req chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "chat completion request", "payload", string(body))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 2048)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, errBody)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "chat completion response",
		"choices", len(chatResp.Choices),
		"tokens_in", chatResp.Usage.PromptTokens,
		"tokens_out", chatResp.Usage.CompletionTokens,
	)

	return &chatResp, nil
}
