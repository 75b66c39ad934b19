package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/midorin-Linux/NekoAI/internal/events"
	"github.com/midorin-Linux/NekoAI/internal/memory"
	"github.com/midorin-Linux/NekoAI/internal/openai"
)

// ProcessMessage runs one full turn for a user: assemble context from
// memory, drive the completion backend (with the tool catalogue when
// tools are enabled), persist the exchange, and return the final
// answer. On upstream failure it attempts exactly one degraded
// fallback (a history-less, tool-less single shot) before giving up.
func (a *Agent) ProcessMessage(ctx context.Context, userID, content string) (string, error) {
	return a.processTurn(ctx, userID, content, a.toolsEnabled && a.registry != nil && a.registry.Len() > 0)
}

// ProcessMessageWithTools runs a turn with the tool catalogue exposed
// regardless of the agent-wide tools setting. Used by the w!exec
// command.
func (a *Agent) ProcessMessageWithTools(ctx context.Context, userID, content string) (string, error) {
	if a.registry == nil || a.registry.Len() == 0 {
		return a.processTurn(ctx, userID, content, false)
	}
	return a.processTurn(ctx, userID, content, true)
}

// ProcessMessageSimple answers a single message with no memory and no
// tools. Exposed standalone and reused internally as the fallback path.
func (a *Agent) ProcessMessageSimple(ctx context.Context, content string) (string, error) {
	a.logger.Info("processing simple message")
	return a.singleShot(ctx, content)
}

func (a *Agent) singleShot(ctx context.Context, content string) (string, error) {
	msgs := []openai.Message{
		openai.SystemMessage(a.currentPrompt(false)),
		openai.UserMessage(content),
	}

	mctx, cancel := a.roundContext(ctx)
	defer cancel()
	return a.client.Complete(mctx, msgs)
}

// processTurn is the turn state machine. The conversation's turn lock
// is held for the whole read-complete-append sequence so concurrent
// messages from the same user cannot corrupt history; different users
// proceed in parallel.
func (a *Agent) processTurn(ctx context.Context, userID, content string, useTools bool) (string, error) {
	requestID, _ := uuid.NewV7()
	logger := a.logger.With("request_id", requestID.String(), "user_id", userID)
	started := time.Now()

	conv := a.store.GetOrCreate(userID)
	conv.BeginTurn()
	defer conv.EndTurn()

	logger.Info("processing message", "tools", useTools, "history", conv.Len())
	a.publish(events.KindTurnStart, map[string]any{
		"request_id": requestID.String(),
		"user_id":    userID,
		"tools":      useTools,
	})

	// BuildContext: fresh system prompt, then stored history, then the
	// new input. The prompt is re-read every turn so administrative
	// updates apply immediately.
	history := conv.Snapshot()
	msgs := make([]openai.Message, 0, len(history)+2)
	msgs = append(msgs, openai.SystemMessage(a.currentPrompt(useTools)))
	for _, m := range history {
		msgs = append(msgs, openai.Message{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, openai.UserMessage(content))

	answer, rounds, err := a.runRounds(ctx, logger, requestID.String(), msgs, useTools)
	if err != nil {
		answer, err = a.recoverTurn(ctx, logger, requestID.String(), content, err)
		if err != nil {
			a.publish(events.KindTurnComplete, map[string]any{
				"request_id": requestID.String(),
				"user_id":    userID,
				"rounds":     rounds,
				"elapsed_ms": time.Since(started).Milliseconds(),
				"ok":         false,
			})
			return "", err
		}
	}

	// Finalize: only the user input and the final answer survive into
	// long-lived memory. Tool-call intermediates are per-turn scaffolding.
	conv.Append(memory.Message{Role: memory.RoleUser, Content: content})
	conv.Append(memory.Message{Role: memory.RoleAssistant, Content: answer})

	logger.Info("turn completed",
		"rounds", rounds,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	a.publish(events.KindTurnComplete, map[string]any{
		"request_id": requestID.String(),
		"user_id":    userID,
		"rounds":     rounds,
		"elapsed_ms": time.Since(started).Milliseconds(),
		"ok":         true,
	})
	return answer, nil
}

// recoverTurn decides what to do with a failed primary path. Upstream
// failures get exactly one history-less, tool-less retry; a hit on the
// tool-round cap is surfaced directly.
func (a *Agent) recoverTurn(ctx context.Context, logger *slog.Logger, requestID, content string, cause error) (string, error) {
	if errors.Is(cause, ErrToolLoopExceeded) {
		logger.Error("turn failed", "error", cause)
		return "", cause
	}

	var upstream *openai.UpstreamError
	if !errors.As(cause, &upstream) {
		logger.Error("turn failed", "error", cause)
		return "", cause
	}

	logger.Warn("primary path failed, attempting fallback", "error", cause)
	a.publish(events.KindFallback, map[string]any{
		"request_id": requestID,
		"cause":      cause.Error(),
	})

	answer, err := a.singleShot(ctx, content)
	if err != nil {
		logger.Error("fallback failed", "error", err)
		return "", fmt.Errorf("fallback after %v: %w", cause, err)
	}
	return answer, nil
}

// runRounds drives the model-round / tool-round alternation until the
// model stops requesting tools or the round cap is hit. Returns the
// final answer and the number of completion calls made.
func (a *Agent) runRounds(ctx context.Context, logger *slog.Logger, requestID string, msgs []openai.Message, useTools bool) (string, int, error) {
	if !useTools {
		mctx, cancel := a.roundContext(ctx)
		defer cancel()
		text, err := a.client.Complete(mctx, msgs)
		return text, 1, err
	}

	defs := a.registry.Definitions()

	for round := 1; round <= a.maxToolRounds; round++ {
		mctx, cancel := a.roundContext(ctx)
		text, calls, err := a.client.CompleteWithTools(mctx, msgs, defs)
		cancel()
		if err != nil {
			return "", round, err
		}

		a.publish(events.KindModelRound, map[string]any{
			"request_id": requestID,
			"round":      round,
			"tool_calls": len(calls),
		})

		if len(calls) == 0 {
			return text, round, nil
		}

		logger.Debug("model requested tools", "round", round, "count", len(calls))

		// Echo the tool-call intent, then answer every call. The
		// backend requires one tool result per call id or the next
		// round is malformed.
		msgs = append(msgs, openai.AssistantToolCallMessage(text, calls))
		for _, res := range a.dispatchTools(ctx, requestID, calls) {
			msgs = append(msgs, openai.ToolMessage(res.callID, res.output))
		}
	}

	return "", a.maxToolRounds, fmt.Errorf("%w after %d rounds", ErrToolLoopExceeded, a.maxToolRounds)
}

// toolResult pairs a tool call id with its textual output.
type toolResult struct {
	callID string
	output string
}

// dispatchTools executes one round's tool calls concurrently and
// returns results in the order the backend requested the calls. Every
// call gets a result: failures come back as textual error payloads
// from the registry, never as missing entries.
func (a *Agent) dispatchTools(ctx context.Context, requestID string, calls []openai.ToolCall) []toolResult {
	results := make([]toolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		callID := call.ID
		if callID == "" {
			// Some compatible backends omit ids on single calls.
			callID = fmt.Sprintf("call_%d", i)
		}
		results[i].callID = callID

		a.publish(events.KindToolCall, map[string]any{
			"request_id": requestID,
			"tool":       call.Function.Name,
			"call_id":    callID,
		})

		wg.Add(1)
		go func(i int, call openai.ToolCall) {
			defer wg.Done()
			started := time.Now()
			results[i].output = a.registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
			a.publish(events.KindToolDone, map[string]any{
				"request_id":  requestID,
				"tool":        call.Function.Name,
				"call_id":     results[i].callID,
				"duration_ms": time.Since(started).Milliseconds(),
			})
		}(i, call)
	}
	wg.Wait()

	return results
}

// roundContext bounds one completion call with the model timeout.
func (a *Agent) roundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.modelTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.modelTimeout)
}

func (a *Agent) publish(kind string, data map[string]any) {
	a.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceAgent,
		Kind:      kind,
		Data:      data,
	})
}
