// Package tools provides the tool registry and execution framework.
//
// Tools are named side-effecting operations the model may invoke
// mid-turn. The registry normalizes every outcome (success, handler
// failure, unknown name, malformed arguments, timeout) into text,
// because the backend must receive a tool result for every tool call it
// issues or the protocol round is malformed.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/midorin-Linux/NekoAI/internal/openai"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON schema object describing the arguments.
	Parameters map[string]any
	Handler    func(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the tool catalogue. Registration happens once at
// startup; after that the registry is read-only and safe to share
// across concurrent turns.
type Registry struct {
	tools   map[string]*Tool
	order   []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. timeout bounds each tool
// execution; zero means no bound.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:   make(map[string]*Tool),
		timeout: timeout,
		logger:  logger.With("component", "tools"),
	}
}

// Register adds a tool. Registering a name twice replaces the earlier
// tool but keeps its catalogue position.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Definitions returns the catalogue in registration order. Stable for
// the process lifetime.
func (r *Registry) Definitions() []openai.ToolDefinition {
	defs := make([]openai.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, openai.ToolDefinition{
			Type: "function",
			Function: openai.FunctionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return defs
}

// Execute runs a tool by name with raw JSON arguments and always
// returns text. Failures of any kind come back as an error payload
// like {"error":"unknown tool: foo"} so the conversation can continue.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string) string {
	tool := r.tools[name]
	if tool == nil {
		return ErrorResult(fmt.Sprintf("unknown tool: %s", name))
	}

	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return ErrorResult(fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	start := time.Now()
	r.logger.Info("executing tool", "tool", name, "args", argsJSON)

	out, err := r.run(ctx, tool, args)
	if err != nil {
		r.logger.Warn("tool failed",
			"tool", name,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return ErrorResult(err.Error())
	}

	r.logger.Debug("tool completed",
		"tool", name,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// run invokes the handler under the registry timeout. The handler runs
// in its own goroutine so a tool that ignores its context cannot stall
// the turn past the deadline.
func (r *Registry) run(ctx context.Context, tool *Tool, args map[string]any) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := tool.Handler(ctx, args)
		done <- result{out, err}
	}()

	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return "", fmt.Errorf("tool %s: %w", tool.Name, ctx.Err())
	}
}

// ErrorResult serializes an error message as the JSON payload returned
// to the model.
func ErrorResult(msg string) string {
	out, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return `{"error":"internal error"}`
	}
	return string(out)
}
