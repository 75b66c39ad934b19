package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/midorin-Linux/NekoAI/internal/events"
)

// Bot commands, introduced by the command prefix:
//
//	w!ping              liveness check
//	w!clear             clear the caller's conversation history
//	w!stats             show active conversation count
//	w!prompt <text>     replace the system prompt (admin)
//	w!exec <message>    run one tool-enabled turn (admin)

// parseCommand splits "w!prompt some text" into ("prompt", "some text").
// Returns ok=false when content is only the prefix.
func parseCommand(content, prefix string) (name, args string, ok bool) {
	rest := strings.TrimPrefix(content, prefix)
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", "", false
	}
	name, args, _ = strings.Cut(rest, " ")
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// isAdmin reports whether the author may run administrative commands.
// With no allow-list configured there is no admin.
func (b *Bridge) isAdmin(userID string) bool {
	return b.allowedID != "" && userID == b.allowedID
}

func (b *Bridge) handleCommand(ctx context.Context, msg Message) {
	name, args, ok := parseCommand(msg.Content, b.prefix)
	if !ok {
		return
	}

	b.logger.Info("executing command", "command", name, "user_id", msg.Author.ID)
	b.bus.Publish(events.Event{
		Timestamp: time.Now(),
		Source:    events.SourceDiscord,
		Kind:      events.KindCommand,
		Data: map[string]any{
			"user_id": msg.Author.ID,
			"command": name,
		},
	})

	switch name {
	case "ping":
		b.reply(ctx, msg.ChannelID, "Pong!")

	case "clear":
		b.runner.ClearHistory(msg.Author.ID)
		b.reply(ctx, msg.ChannelID, "Your conversation history has been cleared.")

	case "stats":
		count := b.runner.ActiveConversationsCount()
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Active conversations: %d", count))

	case "prompt":
		if !b.isAdmin(msg.Author.ID) {
			b.reply(ctx, msg.ChannelID, "You are not admin.")
			return
		}
		if args == "" {
			b.reply(ctx, msg.ChannelID, "Usage: "+b.prefix+"prompt <new system prompt>")
			return
		}
		b.runner.UpdateSystemPrompt(args)
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("System prompt has been changed to:\n%q", args))

	case "exec":
		if !b.isAdmin(msg.Author.ID) {
			b.reply(ctx, msg.ChannelID, "You are not admin.")
			return
		}
		if args == "" {
			b.reply(ctx, msg.ChannelID, "Usage: "+b.prefix+"exec <message>")
			return
		}
		_ = b.client.TriggerTyping(ctx, msg.ChannelID)

		wrapped := b.buildPrompt(ctx, Message{
			ChannelID: msg.ChannelID,
			GuildID:   msg.GuildID,
			Author:    msg.Author,
			Content:   args,
		})
		response, err := b.runner.ProcessMessageWithTools(ctx, msg.Author.ID, wrapped)
		if err != nil {
			b.logger.Error("exec command failed", "error", err)
			b.reply(ctx, msg.ChannelID, "Tool-enabled turn failed. Check the logs for detail.")
			return
		}
		b.reply(ctx, msg.ChannelID, response)

	default:
		b.reply(ctx, msg.ChannelID, fmt.Sprintf("Unknown command %q. Try %sping.", name, b.prefix))
	}
}
