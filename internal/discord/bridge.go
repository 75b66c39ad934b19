package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/midorin-Linux/NekoAI/internal/events"
)

// AgentRunner abstracts the turn orchestrator for testability. The
// real implementation is *agent.Agent.
type AgentRunner interface {
	ProcessMessage(ctx context.Context, userID, content string) (string, error)
	ProcessMessageWithTools(ctx context.Context, userID, content string) (string, error)
	ProcessMessageSimple(ctx context.Context, content string) (string, error)
	UpdateSystemPrompt(prompt string)
	ClearHistory(userID string)
	ActiveConversationsCount() int
}

// handleTimeout bounds how long a single inbound message may be
// processed (turn orchestration + response send).
const handleTimeout = 5 * time.Minute

// BridgeConfig holds the dependencies for a Bridge.
type BridgeConfig struct {
	Client  *Client
	Gateway *Gateway
	Runner  AgentRunner
	Logger  *slog.Logger
	Bus     *events.Bus // may be nil

	// AllowedUserID restricts who may talk to the agent. Empty allows
	// everyone. The allowed user is also the command administrator.
	AllowedUserID string
	// CommandPrefix introduces bot commands ("w!").
	CommandPrefix string
}

// Bridge receives Discord messages from the gateway, routes them
// through the turn orchestrator, and sends responses back via REST.
type Bridge struct {
	client    *Client
	gateway   *Gateway
	runner    AgentRunner
	logger    *slog.Logger
	bus       *events.Bus
	allowedID string
	prefix    string

	// Guild and channel names change rarely; cache lookups so the
	// metadata block doesn't cost two REST calls per message.
	cacheMu  sync.Mutex
	guilds   map[string]*Guild
	channels map[string]*Channel
}

// NewBridge creates a Discord message bridge.
func NewBridge(cfg BridgeConfig) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := cfg.CommandPrefix
	if prefix == "" {
		prefix = "w!"
	}
	return &Bridge{
		client:    cfg.Client,
		gateway:   cfg.Gateway,
		runner:    cfg.Runner,
		logger:    logger.With("component", "bridge"),
		bus:       cfg.Bus,
		allowedID: cfg.AllowedUserID,
		prefix:    prefix,
		guilds:    make(map[string]*Guild),
		channels:  make(map[string]*Channel),
	}
}

// Start consumes gateway messages and routes them through the agent
// until ctx is cancelled. Each message is handled in its own goroutine
// so a slow turn for one user never blocks intake for others.
func (b *Bridge) Start(ctx context.Context) {
	b.logger.Info("discord bridge started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("discord bridge shutting down")
			return
		case msg, ok := <-b.gateway.Messages():
			if !ok {
				b.logger.Info("gateway message channel closed, bridge stopping")
				return
			}

			if msg.Author.Bot {
				continue
			}
			if b.allowedID != "" && msg.Author.ID != b.allowedID {
				b.logger.Debug("ignoring message from non-allowed user",
					"user_id", msg.Author.ID,
				)
				continue
			}

			b.bus.Publish(events.Event{
				Timestamp: time.Now(),
				Source:    events.SourceDiscord,
				Kind:      events.KindMessageReceived,
				Data: map[string]any{
					"user_id":     msg.Author.ID,
					"channel_id":  msg.ChannelID,
					"message_len": len(msg.Content),
				},
			})

			go b.handle(ctx, msg)
		}
	}
}

// handle processes one inbound message: commands go to the command
// handler, everything else becomes an agent turn.
func (b *Bridge) handle(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if strings.HasPrefix(msg.Content, b.prefix) {
		b.handleCommand(ctx, msg)
		return
	}

	// Typing indicator while the turn runs. Best-effort.
	_ = b.client.TriggerTyping(ctx, msg.ChannelID)

	prompt := b.buildPrompt(ctx, msg)
	response, err := b.runner.ProcessMessage(ctx, msg.Author.ID, prompt)
	if err != nil {
		b.logger.Error("agent processing failed",
			"user_id", msg.Author.ID,
			"error", err,
		)
		// Classified detail stays in the log; users get a generic line.
		b.reply(ctx, msg.ChannelID, "Sorry, something went wrong processing your message.")
		return
	}

	b.reply(ctx, msg.ChannelID, response)
}

// buildPrompt wraps the user's message with the metadata block the
// system prompt describes.
func (b *Bridge) buildPrompt(ctx context.Context, msg Message) string {
	meta := b.constructMetadata(ctx, msg)
	return fmt.Sprintf("%s\n\n<user_input>%s</user_input>", meta, msg.Content)
}

// constructMetadata builds the metadata block for one message. Lookup
// failures degrade to raw ids; a DM has no guild at all.
func (b *Bridge) constructMetadata(ctx context.Context, msg Message) string {
	guildName := "DM"
	guildID := "0"
	channelName := msg.ChannelID
	categoryName := "None"

	if msg.GuildID != "" {
		guildID = msg.GuildID
		if g := b.lookupGuild(ctx, msg.GuildID); g != nil {
			guildName = g.Name
		}
		if ch := b.lookupChannel(ctx, msg.ChannelID); ch != nil {
			channelName = ch.Name
			if ch.ParentID != "" {
				if parent := b.lookupChannel(ctx, ch.ParentID); parent != nil {
					categoryName = parent.Name
				}
			}
		}
	}

	return fmt.Sprintf(
		"<metadata>\nGuild: %s (%s)\nChannel: %s > %s (%s)\nUser: %s (%s)\n</metadata>",
		guildName, guildID,
		categoryName, channelName, msg.ChannelID,
		msg.Author.Username, msg.Author.ID,
	)
}

func (b *Bridge) lookupGuild(ctx context.Context, guildID string) *Guild {
	b.cacheMu.Lock()
	g, ok := b.guilds[guildID]
	b.cacheMu.Unlock()
	if ok {
		return g
	}

	g, err := b.client.GetGuild(ctx, guildID)
	if err != nil {
		b.logger.Debug("guild lookup failed", "guild_id", guildID, "error", err)
		return nil
	}
	b.cacheMu.Lock()
	b.guilds[guildID] = g
	b.cacheMu.Unlock()
	return g
}

func (b *Bridge) lookupChannel(ctx context.Context, channelID string) *Channel {
	b.cacheMu.Lock()
	ch, ok := b.channels[channelID]
	b.cacheMu.Unlock()
	if ok {
		return ch
	}

	ch, err := b.client.GetChannel(ctx, channelID)
	if err != nil {
		b.logger.Debug("channel lookup failed", "channel_id", channelID, "error", err)
		return nil
	}
	b.cacheMu.Lock()
	b.channels[channelID] = ch
	b.cacheMu.Unlock()
	return ch
}

func (b *Bridge) reply(ctx context.Context, channelID, content string) {
	if err := b.client.CreateMessage(ctx, channelID, content); err != nil {
		b.logger.Error("failed to send message", "channel_id", channelID, "error", err)
	}
}
