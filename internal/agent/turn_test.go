package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/midorin-Linux/NekoAI/internal/memory"
	"github.com/midorin-Linux/NekoAI/internal/openai"
	"github.com/midorin-Linux/NekoAI/internal/tools"
)

// fakeClient scripts the completion backend. Each call shifts the next
// scripted response; calls beyond the script fail the test.
type fakeClient struct {
	mu        sync.Mutex
	completes []func(msgs []openai.Message) (string, error)
	toolComps []func(msgs []openai.Message) (string, []openai.ToolCall, error)
	seen      [][]openai.Message
	t         *testing.T
}

func (f *fakeClient) Complete(ctx context.Context, msgs []openai.Message) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, msgs)
	if len(f.completes) == 0 {
		f.mu.Unlock()
		f.t.Error("unexpected Complete call")
		return "", errors.New("script exhausted")
	}
	fn := f.completes[0]
	f.completes = f.completes[1:]
	f.mu.Unlock()
	return fn(msgs)
}

func (f *fakeClient) CompleteWithTools(ctx context.Context, msgs []openai.Message, defs []openai.ToolDefinition) (string, []openai.ToolCall, error) {
	f.mu.Lock()
	f.seen = append(f.seen, msgs)
	if len(f.toolComps) == 0 {
		f.mu.Unlock()
		f.t.Error("unexpected CompleteWithTools call")
		return "", nil, errors.New("script exhausted")
	}
	fn := f.toolComps[0]
	f.toolComps = f.toolComps[1:]
	f.mu.Unlock()
	return fn(msgs)
}

func answer(text string) func([]openai.Message) (string, error) {
	return func([]openai.Message) (string, error) { return text, nil }
}

func toolAnswer(text string) func([]openai.Message) (string, []openai.ToolCall, error) {
	return func([]openai.Message) (string, []openai.ToolCall, error) { return text, nil, nil }
}

func toolRequest(calls ...openai.ToolCall) func([]openai.Message) (string, []openai.ToolCall, error) {
	return func([]openai.Message) (string, []openai.ToolCall, error) { return "", calls, nil }
}

func call(id, name, args string) openai.ToolCall {
	return openai.ToolCall{
		ID:       id,
		Type:     "function",
		Function: openai.FunctionCall{Name: name, Arguments: args},
	}
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(0, nil)
	r.Register(&tools.Tool{
		Name:        "lookup",
		Description: "looks up a key",
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			return "value of " + key, nil
		},
	})
	return r
}

func newTestAgent(t *testing.T, client *fakeClient, reg *tools.Registry, toolsEnabled bool) *Agent {
	t.Helper()
	client.t = t
	return New(Config{
		Client:           client,
		Registry:         reg,
		SystemPrompt:     "base prompt",
		ToolSystemPrompt: "tool prompt",
		MaxHistory:       20,
		MaxToolRounds:    3,
		ToolsEnabled:     toolsEnabled,
	})
}

func TestAgent_SimpleTurnPersistsExchange(t *testing.T) {
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){answer("the answer")}}
	a := newTestAgent(t, fc, nil, false)

	got, err := a.ProcessMessage(context.Background(), "u1", "the question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "the answer" {
		t.Errorf("got %q, want %q", got, "the answer")
	}

	hist, ok := a.GetHistory("u1")
	if !ok || len(hist) != 2 {
		t.Fatalf("history = %+v, ok=%v; want 2 messages", hist, ok)
	}
	if hist[0].Role != memory.RoleUser || hist[0].Content != "the question" {
		t.Errorf("persisted input = %+v", hist[0])
	}
	if hist[1].Role != memory.RoleAssistant || hist[1].Content != "the answer" {
		t.Errorf("persisted answer = %+v", hist[1])
	}
}

func TestAgent_ZeroValuePolicyGetsDefaults(t *testing.T) {
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){answer("ok")}}
	fc.t = t
	a := New(Config{Client: fc, SystemPrompt: "base prompt"})

	got, err := a.ProcessMessage(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want ok", got)
	}
	if hist, ok := a.GetHistory("u1"); !ok || len(hist) != 2 {
		t.Errorf("history = %+v, ok=%v; want 2 messages", hist, ok)
	}
	if a.maxToolRounds < 1 {
		t.Errorf("maxToolRounds = %d, want a positive default", a.maxToolRounds)
	}
}

func TestAgent_ContextIncludesPromptHistoryAndInput(t *testing.T) {
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){
		answer("first"),
		answer("second"),
	}}
	a := newTestAgent(t, fc, nil, false)

	if _, err := a.ProcessMessage(context.Background(), "u1", "one"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ProcessMessage(context.Background(), "u1", "two"); err != nil {
		t.Fatal(err)
	}

	msgs := fc.seen[1]
	want := []struct{ role, content string }{
		{"system", "base prompt"},
		{"user", "one"},
		{"assistant", "first"},
		{"user", "two"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("second turn context has %d messages, want %d: %+v", len(msgs), len(want), msgs)
	}
	for i, w := range want {
		if msgs[i].Role != w.role || msgs[i].Content != w.content {
			t.Errorf("context[%d] = %s/%q, want %s/%q", i, msgs[i].Role, msgs[i].Content, w.role, w.content)
		}
	}
}

func TestAgent_PromptRebuiltEveryTurn(t *testing.T) {
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){
		answer("a"),
		answer("b"),
	}}
	a := newTestAgent(t, fc, nil, false)

	if _, err := a.ProcessMessage(context.Background(), "u1", "x"); err != nil {
		t.Fatal(err)
	}
	a.UpdateSystemPrompt("updated prompt")
	if _, err := a.ProcessMessage(context.Background(), "u1", "y"); err != nil {
		t.Fatal(err)
	}

	if got := fc.seen[1][0].Content; got != "updated prompt" {
		t.Errorf("second turn system prompt = %q, want updated prompt", got)
	}
	// The prompt never leaks into persisted history.
	hist, _ := a.GetHistory("u1")
	for _, m := range hist {
		if m.Role == memory.RoleSystem {
			t.Errorf("system message persisted in history: %+v", m)
		}
	}
}

func TestAgent_ToolRoundThenAnswer(t *testing.T) {
	fc := &fakeClient{toolComps: []func([]openai.Message) (string, []openai.ToolCall, error){
		toolRequest(call("call_a", "lookup", `{"key":"alpha"}`)),
		toolAnswer("final answer"),
	}}
	a := newTestAgent(t, fc, newTestRegistry(t), true)

	got, err := a.ProcessMessage(context.Background(), "u1", "look up alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "final answer" {
		t.Errorf("got %q, want final answer", got)
	}

	// Second round's context carries the tool exchange.
	msgs := fc.seen[1]
	n := len(msgs)
	if n < 2 {
		t.Fatalf("second round context too short: %+v", msgs)
	}
	assistant := msgs[n-2]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].ID != "call_a" {
		t.Errorf("assistant echo = %+v, want one call_a", assistant)
	}
	result := msgs[n-1]
	if result.Role != "tool" || result.ToolCallID != "call_a" || result.Content != "value of alpha" {
		t.Errorf("tool result = %+v", result)
	}

	// Tool intermediates never reach memory.
	hist, _ := a.GetHistory("u1")
	if len(hist) != 2 {
		t.Errorf("history = %+v, want input and final answer only", hist)
	}
}

func TestAgent_ToolTurnUsesToolPrompt(t *testing.T) {
	fc := &fakeClient{toolComps: []func([]openai.Message) (string, []openai.ToolCall, error){
		toolAnswer("done"),
	}}
	a := newTestAgent(t, fc, newTestRegistry(t), true)

	if _, err := a.ProcessMessage(context.Background(), "u1", "hi"); err != nil {
		t.Fatal(err)
	}
	if got := fc.seen[0][0].Content; got != "tool prompt" {
		t.Errorf("system prompt on tool turn = %q, want tool prompt", got)
	}
}

func TestAgent_OneResultPerCallInRequestOrder(t *testing.T) {
	fc := &fakeClient{toolComps: []func([]openai.Message) (string, []openai.ToolCall, error){
		toolRequest(
			call("call_1", "lookup", `{"key":"one"}`),
			call("call_2", "missing_tool", `{}`),
			call("call_3", "lookup", `{"key":"three"}`),
		),
		toolAnswer("done"),
	}}
	a := newTestAgent(t, fc, newTestRegistry(t), true)

	if _, err := a.ProcessMessage(context.Background(), "u1", "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := fc.seen[1]
	n := len(msgs)
	results := msgs[n-3:]
	wantIDs := []string{"call_1", "call_2", "call_3"}
	for i, m := range results {
		if m.Role != "tool" {
			t.Fatalf("message %d role = %q, want tool", i, m.Role)
		}
		if m.ToolCallID != wantIDs[i] {
			t.Errorf("result %d answers %q, want %q", i, m.ToolCallID, wantIDs[i])
		}
	}
	if results[0].Content != "value of one" {
		t.Errorf("result 0 = %q", results[0].Content)
	}
	// The unknown tool produces an error payload, not a missing entry.
	if want := `{"error":"unknown tool: missing_tool"}`; results[1].Content != want {
		t.Errorf("result 1 = %q, want %q", results[1].Content, want)
	}
	if results[2].Content != "value of three" {
		t.Errorf("result 2 = %q", results[2].Content)
	}
}

func TestAgent_SynthesizesMissingCallIDs(t *testing.T) {
	fc := &fakeClient{toolComps: []func([]openai.Message) (string, []openai.ToolCall, error){
		toolRequest(call("", "lookup", `{"key":"x"}`)),
		toolAnswer("done"),
	}}
	a := newTestAgent(t, fc, newTestRegistry(t), true)

	if _, err := a.ProcessMessage(context.Background(), "u1", "go"); err != nil {
		t.Fatal(err)
	}
	msgs := fc.seen[1]
	result := msgs[len(msgs)-1]
	if result.ToolCallID != "call_0" {
		t.Errorf("synthesized call id = %q, want call_0", result.ToolCallID)
	}
}

func TestAgent_ToolLoopCapSurfacedDirectly(t *testing.T) {
	endless := func([]openai.Message) (string, []openai.ToolCall, error) {
		return "", []openai.ToolCall{call("c", "lookup", `{"key":"k"}`)}, nil
	}
	fc := &fakeClient{toolComps: []func([]openai.Message) (string, []openai.ToolCall, error){
		endless, endless, endless,
	}}
	a := newTestAgent(t, fc, newTestRegistry(t), true)

	_, err := a.ProcessMessage(context.Background(), "u1", "loop forever")
	if !errors.Is(err, ErrToolLoopExceeded) {
		t.Fatalf("error = %v, want ErrToolLoopExceeded", err)
	}

	// No fallback and nothing persisted on a cap hit.
	if hist, ok := a.GetHistory("u1"); ok && len(hist) != 0 {
		t.Errorf("history after failed turn = %+v, want empty", hist)
	}
}

func TestAgent_UpstreamFailureFallsBackOnce(t *testing.T) {
	fc := &fakeClient{
		toolComps: []func([]openai.Message) (string, []openai.ToolCall, error){
			func([]openai.Message) (string, []openai.ToolCall, error) {
				return "", nil, &openai.UpstreamError{Op: "complete_with_tools", Err: errors.New("503")}
			},
		},
		completes: []func([]openai.Message) (string, error){answer("degraded answer")},
	}
	a := newTestAgent(t, fc, newTestRegistry(t), true)

	got, err := a.ProcessMessage(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "degraded answer" {
		t.Errorf("got %q, want degraded answer", got)
	}

	// The fallback request is history-less and tool-less.
	fb := fc.seen[1]
	if len(fb) != 2 || fb[0].Role != "system" || fb[1].Content != "hello" {
		t.Errorf("fallback context = %+v, want system+user only", fb)
	}
	if fb[0].Content != "base prompt" {
		t.Errorf("fallback prompt = %q, want conversational prompt", fb[0].Content)
	}

	// A successful fallback still persists the exchange.
	hist, _ := a.GetHistory("u1")
	if len(hist) != 2 || hist[1].Content != "degraded answer" {
		t.Errorf("history = %+v", hist)
	}
}

func TestAgent_FallbackFailureReportsBothErrors(t *testing.T) {
	fc := &fakeClient{
		completes: []func([]openai.Message) (string, error){
			func([]openai.Message) (string, error) {
				return "", &openai.UpstreamError{Op: "complete", Err: errors.New("primary down")}
			},
			func([]openai.Message) (string, error) {
				return "", &openai.UpstreamError{Op: "complete", Err: errors.New("fallback down")}
			},
		},
	}
	a := newTestAgent(t, fc, nil, false)

	_, err := a.ProcessMessage(context.Background(), "u1", "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "primary down") || !strings.Contains(err.Error(), "fallback down") {
		t.Errorf("error %q should mention both failures", err)
	}
	if len(fc.completes) != 0 {
		t.Errorf("%d scripted responses unused: fallback must run exactly once", len(fc.completes))
	}
}

func TestAgent_NonUpstreamErrorSkipsFallback(t *testing.T) {
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){
		func([]openai.Message) (string, error) { return "", errors.New("programming error") },
	}}
	a := newTestAgent(t, fc, nil, false)

	_, err := a.ProcessMessage(context.Background(), "u1", "hi")
	if err == nil || err.Error() != "programming error" {
		t.Fatalf("error = %v, want the original error untouched", err)
	}
}

func TestAgent_WithToolsEmptyRegistryDowngrades(t *testing.T) {
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){answer("plain")}}
	a := newTestAgent(t, fc, tools.NewRegistry(0, nil), false)

	got, err := a.ProcessMessageWithTools(context.Background(), "u1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if got != "plain" {
		t.Errorf("got %q", got)
	}
}

func TestAgent_SimpleMessageLeavesNoHistory(t *testing.T) {
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){answer("ok")}}
	a := newTestAgent(t, fc, nil, false)

	if _, err := a.ProcessMessageSimple(context.Background(), "ping"); err != nil {
		t.Fatal(err)
	}
	if n := a.ActiveConversationsCount(); n != 0 {
		t.Errorf("conversations after simple message = %d, want 0", n)
	}
}

func TestAgent_UsersDoNotShareHistory(t *testing.T) {
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){
		answer("to u1"),
		answer("to u2"),
	}}
	a := newTestAgent(t, fc, nil, false)

	if _, err := a.ProcessMessage(context.Background(), "u1", "from u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.ProcessMessage(context.Background(), "u2", "from u2"); err != nil {
		t.Fatal(err)
	}

	// u2's context must not contain u1's exchange.
	msgs := fc.seen[1]
	for _, m := range msgs {
		if strings.Contains(m.Content, "u1") && m.Role != "system" {
			t.Errorf("u2 context leaked u1 content: %+v", m)
		}
	}
	if n := a.ActiveConversationsCount(); n != 2 {
		t.Errorf("conversations = %d, want 2", n)
	}
}

func TestAgent_SameUserTurnsSerialize(t *testing.T) {
	inFlight := make(chan struct{}, 2)
	var maxConcurrent int
	var mu sync.Mutex

	slow := func([]openai.Message) (string, error) {
		inFlight <- struct{}{}
		mu.Lock()
		if n := len(inFlight); n > maxConcurrent {
			maxConcurrent = n
		}
		mu.Unlock()
		time.Sleep(30 * time.Millisecond)
		<-inFlight
		return "ok", nil
	}
	fc := &fakeClient{completes: []func([]openai.Message) (string, error){slow, slow}}
	a := newTestAgent(t, fc, nil, false)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := a.ProcessMessage(context.Background(), "same-user", fmt.Sprintf("msg %d", i)); err != nil {
				t.Errorf("turn %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxConcurrent > 1 {
		t.Errorf("observed %d concurrent turns for one user, want 1", maxConcurrent)
	}

	hist, _ := a.GetHistory("same-user")
	if len(hist) != 4 {
		t.Errorf("history length = %d, want 4", len(hist))
	}
}
