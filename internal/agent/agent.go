// Package agent implements the turn orchestrator: per-user conversation
// state, the multi-round tool-calling protocol against the completion
// backend, and the degraded fallback path when the primary path fails.
package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/midorin-Linux/NekoAI/internal/config"
	"github.com/midorin-Linux/NekoAI/internal/events"
	"github.com/midorin-Linux/NekoAI/internal/memory"
	"github.com/midorin-Linux/NekoAI/internal/openai"
	"github.com/midorin-Linux/NekoAI/internal/tools"
)

// CompletionClient abstracts the completion backend for testability.
// The real implementation is *openai.Client.
type CompletionClient interface {
	// Complete sends a single-shot request without a tool catalogue.
	Complete(ctx context.Context, messages []openai.Message) (string, error)

	// CompleteWithTools sends a request carrying the tool catalogue.
	// When the model elects to call tools, text may be empty and the
	// call list is populated.
	CompleteWithTools(ctx context.Context, messages []openai.Message, tools []openai.ToolDefinition) (string, []openai.ToolCall, error)
}

// Config holds the dependencies and policy for an Agent.
type Config struct {
	Client   CompletionClient
	Registry *tools.Registry // nil disables tools entirely
	Logger   *slog.Logger
	Bus      *events.Bus // may be nil

	// SystemPrompt is the conversational prompt, rebuilt into every
	// turn's context (never stored in memory).
	SystemPrompt string
	// ToolSystemPrompt replaces SystemPrompt on tool-enabled turns.
	ToolSystemPrompt string

	// MaxHistory bounds each user's conversation memory.
	MaxHistory int
	// MaxToolRounds caps tool-calling rounds per turn.
	MaxToolRounds int
	// ModelTimeout bounds each completion call.
	ModelTimeout time.Duration
	// ToolsEnabled exposes the catalogue on ordinary turns.
	// ProcessMessageWithTools uses the catalogue regardless.
	ToolsEnabled bool
}

// Agent mediates between users and the completion backend. Safe for
// concurrent use: turns for different users run fully in parallel,
// turns for the same user are serialized on that user's conversation.
type Agent struct {
	client   CompletionClient
	registry *tools.Registry
	store    *memory.Store
	logger   *slog.Logger
	bus      *events.Bus

	promptMu         sync.RWMutex
	systemPrompt     string
	toolSystemPrompt string

	maxToolRounds int
	modelTimeout  time.Duration
	toolsEnabled  bool
}

// New creates an Agent from cfg. Zero policy fields fall back to the
// configuration defaults.
func New(cfg Config) *Agent {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxHistory := cfg.MaxHistory
	if maxHistory <= 0 {
		maxHistory = config.DefaultMaxHistory
	}
	maxToolRounds := cfg.MaxToolRounds
	if maxToolRounds <= 0 {
		maxToolRounds = config.DefaultMaxToolRounds
	}
	return &Agent{
		client:           cfg.Client,
		registry:         cfg.Registry,
		store:            memory.NewStore(maxHistory),
		logger:           logger.With("component", "agent"),
		bus:              cfg.Bus,
		systemPrompt:     cfg.SystemPrompt,
		toolSystemPrompt: cfg.ToolSystemPrompt,
		maxToolRounds:    maxToolRounds,
		modelTimeout:     cfg.ModelTimeout,
		toolsEnabled:     cfg.ToolsEnabled,
	}
}

// SystemPrompt returns the current conversational system prompt.
func (a *Agent) SystemPrompt() string {
	a.promptMu.RLock()
	defer a.promptMu.RUnlock()
	return a.systemPrompt
}

// UpdateSystemPrompt replaces the conversational system prompt.
// Takes effect on the next turn; in-flight turns keep the prompt they
// started with.
func (a *Agent) UpdateSystemPrompt(prompt string) {
	a.promptMu.Lock()
	a.systemPrompt = prompt
	a.promptMu.Unlock()
	a.logger.Info("system prompt updated", "length", len(prompt))
}

// UpdateToolSystemPrompt replaces the tool-turn system prompt.
func (a *Agent) UpdateToolSystemPrompt(prompt string) {
	a.promptMu.Lock()
	a.toolSystemPrompt = prompt
	a.promptMu.Unlock()
}

func (a *Agent) currentPrompt(useTools bool) string {
	a.promptMu.RLock()
	defer a.promptMu.RUnlock()
	if useTools {
		return a.toolSystemPrompt
	}
	return a.systemPrompt
}

// ClearHistory empties one user's conversation memory. A no-op for
// users who have never spoken.
func (a *Agent) ClearHistory(userID string) {
	a.store.Clear(userID)
	a.logger.Info("cleared conversation history", "user_id", userID)
}

// ClearAllHistories drops every conversation.
func (a *Agent) ClearAllHistories() {
	a.store.ClearAll()
	a.logger.Info("cleared all conversation histories")
}

// GetHistory returns a copy of one user's history, or ok=false if the
// user has no conversation yet.
func (a *Agent) GetHistory(userID string) ([]memory.Message, bool) {
	return a.store.Snapshot(userID)
}

// ActiveConversationsCount returns the number of tracked conversations.
func (a *Agent) ActiveConversationsCount() int {
	return a.store.Count()
}
