package tools

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/midorin-Linux/NekoAI/internal/discord"
)

// guildIDProp is the shared guild_id parameter schema.
var guildIDProp = map[string]any{
	"type":        "string",
	"description": "Guild id. Defaults to the configured guild when omitted.",
}

// RegisterGuildTools adds the Discord guild inspection and
// administration tools, including member moderation and role
// management. defaultGuildID fills in when the model omits an explicit
// guild id.
func RegisterGuildTools(r *Registry, client *discord.Client, defaultGuildID string) {
	g := &guildTools{client: client, defaultGuildID: defaultGuildID}

	r.Register(&Tool{
		Name:        "get_channel_list",
		Description: "List channels in a guild. Lines are output as `<channel_name>: <channel_id> (<channel_type>)`.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
			},
		},
		Handler: g.handleChannelList,
	})

	r.Register(&Tool{
		Name:        "get_channel_info",
		Description: "Get channel information.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"channel_id": map[string]any{
					"type":        "string",
					"description": "Channel id.",
				},
			},
			"required": []string{"channel_id"},
		},
		Handler: g.handleChannelInfo,
	})

	r.Register(&Tool{
		Name:        "create_channel",
		Description: "Create a channel in a guild.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"name": map[string]any{
					"type":        "string",
					"description": "Channel name.",
				},
				"kind": map[string]any{
					"type":        "string",
					"description": "Channel type (text, voice, category, news, stage, forum).",
				},
				"topic": map[string]any{
					"type":        "string",
					"description": "Channel topic.",
				},
				"nsfw": map[string]any{
					"type":        "boolean",
					"description": "Whether the channel is NSFW.",
				},
				"parent_id": map[string]any{
					"type":        "string",
					"description": "Parent category channel id.",
				},
				"position": map[string]any{
					"type":        "integer",
					"description": "Position in channel list.",
				},
			},
			"required": []string{"name"},
		},
		Handler: g.handleCreateChannel,
	})

	r.Register(&Tool{
		Name:        "delete_channel",
		Description: "Delete a channel.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"channel_id": map[string]any{
					"type":        "string",
					"description": "Channel id.",
				},
			},
			"required": []string{"channel_id"},
		},
		Handler: g.handleDeleteChannel,
	})

	r.Register(&Tool{
		Name:        "get_guild_info",
		Description: "Get guild name, owner, and member counts.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
			},
		},
		Handler: g.handleGuildInfo,
	})

	r.Register(&Tool{
		Name:        "get_role_list",
		Description: "List roles in a guild. Lines are output as `<role_name>: <role_id>`.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
			},
		},
		Handler: g.handleRoleList,
	})

	r.Register(&Tool{
		Name:        "get_member_list",
		Description: "List guild members. Lines are output as `<username>: <user_id>` with nickname when set.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of members to return (default 100).",
				},
			},
		},
		Handler: g.handleMemberList,
	})

	r.Register(&Tool{
		Name:        "search_member",
		Description: "Search guild members whose username or nickname starts with a query string.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"query": map[string]any{
					"type":        "string",
					"description": "Username or nickname prefix to search for.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of members to return (default 10).",
				},
			},
			"required": []string{"query"},
		},
		Handler: g.handleSearchMember,
	})

	r.Register(&Tool{
		Name:        "get_emoji_list",
		Description: "List custom emojis in a guild.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
			},
		},
		Handler: g.handleEmojiList,
	})

	registerMemberTools(r, g)
	registerRoleTools(r, g)
}

type guildTools struct {
	client         *discord.Client
	defaultGuildID string
}

// guildID resolves the guild id argument, falling back to the
// configured default.
func (g *guildTools) guildID(args map[string]any) (string, error) {
	if id := snowflakeArg(args, "guild_id"); id != "" {
		return id, nil
	}
	if g.defaultGuildID != "" {
		return g.defaultGuildID, nil
	}
	return "", fmt.Errorf("guild_id is required")
}

func (g *guildTools) handleChannelList(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}

	channels, err := g.client.GetGuildChannels(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch channels: %w", err)
	}

	var lines []string
	for _, ch := range channels {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", ch.Name, ch.ID, ch.TypeName()))
	}
	if len(lines) == 0 {
		return "No channels found.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (g *guildTools) handleChannelInfo(ctx context.Context, args map[string]any) (string, error) {
	channelID := snowflakeArg(args, "channel_id")
	if channelID == "" {
		return "", fmt.Errorf("channel_id is required")
	}

	ch, err := g.client.GetChannel(ctx, channelID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch channel: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nID: %s\nType: %s\n", ch.Name, ch.ID, ch.TypeName())
	if ch.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", ch.Topic)
	}
	if ch.ParentID != "" {
		fmt.Fprintf(&b, "Parent: %s\n", ch.ParentID)
	}
	fmt.Fprintf(&b, "NSFW: %t\n", ch.NSFW)
	return b.String(), nil
}

func (g *guildTools) handleCreateChannel(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}
	name := stringArg(args, "name")
	if name == "" {
		return "", fmt.Errorf("name is required")
	}

	params := discord.CreateChannelParams{
		Name:     name,
		Topic:    stringArg(args, "topic"),
		ParentID: snowflakeArg(args, "parent_id"),
		Position: intArg(args, "position"),
		NSFW:     boolArg(args, "nsfw"),
	}
	if kind := stringArg(args, "kind"); kind != "" {
		t, ok := discord.ChannelTypeFromName(kind)
		if !ok {
			return "", fmt.Errorf("unknown channel type: %s", kind)
		}
		params.Type = t
	}

	ch, err := g.client.CreateChannel(ctx, guildID, params)
	if err != nil {
		return "", fmt.Errorf("failed to create channel: %w", err)
	}
	return fmt.Sprintf("Created channel %s (%s)", ch.Name, ch.ID), nil
}

func (g *guildTools) handleDeleteChannel(ctx context.Context, args map[string]any) (string, error) {
	channelID := snowflakeArg(args, "channel_id")
	if channelID == "" {
		return "", fmt.Errorf("channel_id is required")
	}

	if err := g.client.DeleteChannel(ctx, channelID); err != nil {
		return "", fmt.Errorf("failed to delete channel: %w", err)
	}
	return fmt.Sprintf("Deleted channel %s", channelID), nil
}

func (g *guildTools) handleGuildInfo(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}

	guild, err := g.client.GetGuild(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch guild: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nID: %s\nOwner: %s\n", guild.Name, guild.ID, guild.OwnerID)
	if guild.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", guild.Description)
	}
	if guild.ApproximateMemberCount > 0 {
		fmt.Fprintf(&b, "Members: %d (%d online)\n",
			guild.ApproximateMemberCount, guild.ApproximatePresenceCount)
	}
	return b.String(), nil
}

func (g *guildTools) handleRoleList(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}

	roles, err := g.client.GetGuildRoles(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch roles: %w", err)
	}

	var lines []string
	for _, role := range roles {
		lines = append(lines, fmt.Sprintf("%s: %s", role.Name, role.ID))
	}
	if len(lines) == 0 {
		return "No roles found.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (g *guildTools) handleMemberList(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}

	members, err := g.client.GetGuildMembers(ctx, guildID, intArg(args, "limit"))
	if err != nil {
		return "", fmt.Errorf("failed to fetch members: %w", err)
	}

	var lines []string
	for _, m := range members {
		line := fmt.Sprintf("%s: %s", m.User.Username, m.User.ID)
		if m.Nick != "" {
			line += fmt.Sprintf(" (nickname: %s)", m.Nick)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "No members found.", nil
	}
	return strings.Join(lines, "\n"), nil
}

func (g *guildTools) handleSearchMember(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}
	query := stringArg(args, "query")
	if query == "" {
		return "", fmt.Errorf("query is required")
	}

	members, err := g.client.SearchGuildMembers(ctx, guildID, query, intArg(args, "limit"))
	if err != nil {
		return "", fmt.Errorf("failed to search members: %w", err)
	}

	var lines []string
	for _, m := range members {
		line := fmt.Sprintf("%s: %s", m.User.Username, m.User.ID)
		if m.Nick != "" {
			line += fmt.Sprintf(" (nickname: %s)", m.Nick)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return fmt.Sprintf("No members matching %q.", query), nil
	}
	return strings.Join(lines, "\n"), nil
}

func (g *guildTools) handleEmojiList(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}

	emojis, err := g.client.GetGuildEmojis(ctx, guildID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch emojis: %w", err)
	}

	var lines []string
	for _, e := range emojis {
		kind := "static"
		if e.Animated {
			kind = "animated"
		}
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", e.Name, e.ID, kind))
	}
	if len(lines) == 0 {
		return "No custom emojis found.", nil
	}
	return strings.Join(lines, "\n"), nil
}

// Argument helpers. The model is inconsistent about JSON types, so ids
// are accepted as strings or numbers.

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// snowflakeArg returns an id argument as its decimal string form,
// whether the model sent a JSON string or a number.
func snowflakeArg(args map[string]any, key string) string {
	return snowflakeValue(args[key])
}

func snowflakeValue(v any) string {
	switch v := v.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

// idListArg returns an array argument's ids in decimal string form,
// skipping elements that are not ids.
func idListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var ids []string
	for _, v := range raw {
		if id := snowflakeValue(v); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}
