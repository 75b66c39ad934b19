package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Member moderation tools. Every mutating tool accepts an optional
// "reason" argument recorded in the guild's audit log.

func registerMemberTools(r *Registry, g *guildTools) {
	userIDProp := map[string]any{
		"type":        "string",
		"description": "User id.",
	}
	reasonProp := map[string]any{
		"type":        "string",
		"description": "Audit log reason.",
	}

	r.Register(&Tool{
		Name:        "get_member_info",
		Description: "Get one guild member: username, nickname, join date, roles, and timeout state.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_id":  userIDProp,
			},
			"required": []string{"user_id"},
		},
		Handler: g.handleMemberInfo,
	})

	r.Register(&Tool{
		Name:        "kick_member",
		Description: "Kick a member from the guild.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_id":  userIDProp,
				"reason":   reasonProp,
			},
			"required": []string{"user_id"},
		},
		Handler: g.handleKickMember,
	})

	r.Register(&Tool{
		Name:        "ban_member",
		Description: "Ban a member from the guild.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_id":  userIDProp,
				"delete_message_days": map[string]any{
					"type":        "integer",
					"description": "Delete message history in days (0-7).",
				},
				"reason": reasonProp,
			},
			"required": []string{"user_id"},
		},
		Handler: g.handleBanMember,
	})

	r.Register(&Tool{
		Name:        "unban_member",
		Description: "Unban a user from the guild.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_id":  userIDProp,
				"reason":   reasonProp,
			},
			"required": []string{"user_id"},
		},
		Handler: g.handleUnbanMember,
	})

	r.Register(&Tool{
		Name:        "bulk_ban_members",
		Description: "Ban several users from the guild in one call.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_ids": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "User ids to ban.",
				},
				"delete_message_seconds": map[string]any{
					"type":        "integer",
					"description": "Delete messages younger than this many seconds.",
				},
				"reason": reasonProp,
			},
			"required": []string{"user_ids"},
		},
		Handler: g.handleBulkBan,
	})

	r.Register(&Tool{
		Name:        "timeout_member",
		Description: "Time out a member until an RFC3339 timestamp, or clear an active timeout.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_id":  userIDProp,
				"until": map[string]any{
					"type":        "string",
					"description": "RFC3339 timestamp to time out until.",
				},
				"clear": map[string]any{
					"type":        "boolean",
					"description": "Clear an active timeout instead.",
				},
				"reason": reasonProp,
			},
			"required": []string{"user_id"},
		},
		Handler: g.handleTimeoutMember,
	})

	r.Register(&Tool{
		Name:        "modify_member",
		Description: "Modify guild member settings: nickname, role set, server mute/deafen, timeout.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"guild_id": guildIDProp,
				"user_id":  userIDProp,
				"nick": map[string]any{
					"type":        "string",
					"description": "Nickname.",
				},
				"roles": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Role ids to set, replacing the member's current roles.",
				},
				"mute": map[string]any{
					"type":        "boolean",
					"description": "Server mute flag.",
				},
				"deafen": map[string]any{
					"type":        "boolean",
					"description": "Server deafen flag.",
				},
				"communication_disabled_until": map[string]any{
					"type":        "string",
					"description": "Timeout until RFC3339 timestamp.",
				},
				"clear_timeout": map[string]any{
					"type":        "boolean",
					"description": "Clear an active timeout.",
				},
				"reason": reasonProp,
			},
			"required": []string{"user_id"},
		},
		Handler: g.handleModifyMember,
	})
}

// memberArgs resolves the guild and user id pair most member tools
// take.
func (g *guildTools) memberArgs(args map[string]any) (guildID, userID string, err error) {
	guildID, err = g.guildID(args)
	if err != nil {
		return "", "", err
	}
	userID = snowflakeArg(args, "user_id")
	if userID == "" {
		return "", "", fmt.Errorf("user_id is required")
	}
	return guildID, userID, nil
}

func (g *guildTools) handleMemberInfo(ctx context.Context, args map[string]any) (string, error) {
	guildID, userID, err := g.memberArgs(args)
	if err != nil {
		return "", err
	}

	m, err := g.client.GetGuildMember(ctx, guildID, userID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch member: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Username: %s\nID: %s\n", m.User.Username, m.User.ID)
	if m.Nick != "" {
		fmt.Fprintf(&b, "Nickname: %s\n", m.Nick)
	}
	if m.JoinedAt != "" {
		fmt.Fprintf(&b, "Joined: %s\n", m.JoinedAt)
	}
	if len(m.Roles) > 0 {
		fmt.Fprintf(&b, "Roles: %s\n", strings.Join(m.Roles, ", "))
	}
	if m.CommunicationDisabledUntil != "" {
		fmt.Fprintf(&b, "Timed out until: %s\n", m.CommunicationDisabledUntil)
	}
	return b.String(), nil
}

func (g *guildTools) handleKickMember(ctx context.Context, args map[string]any) (string, error) {
	guildID, userID, err := g.memberArgs(args)
	if err != nil {
		return "", err
	}

	if err := g.client.KickMember(ctx, guildID, userID, stringArg(args, "reason")); err != nil {
		return "", fmt.Errorf("failed to kick member: %w", err)
	}
	return fmt.Sprintf("Kicked member %s", userID), nil
}

func (g *guildTools) handleBanMember(ctx context.Context, args map[string]any) (string, error) {
	guildID, userID, err := g.memberArgs(args)
	if err != nil {
		return "", err
	}

	days := intArg(args, "delete_message_days")
	if days < 0 || days > 7 {
		return "", fmt.Errorf("delete_message_days must be between 0 and 7")
	}
	if err := g.client.BanMember(ctx, guildID, userID, days*86400, stringArg(args, "reason")); err != nil {
		return "", fmt.Errorf("failed to ban member: %w", err)
	}
	return fmt.Sprintf("Banned member %s", userID), nil
}

func (g *guildTools) handleUnbanMember(ctx context.Context, args map[string]any) (string, error) {
	guildID, userID, err := g.memberArgs(args)
	if err != nil {
		return "", err
	}

	if err := g.client.UnbanMember(ctx, guildID, userID, stringArg(args, "reason")); err != nil {
		return "", fmt.Errorf("failed to unban member: %w", err)
	}
	return fmt.Sprintf("Unbanned member %s", userID), nil
}

func (g *guildTools) handleBulkBan(ctx context.Context, args map[string]any) (string, error) {
	guildID, err := g.guildID(args)
	if err != nil {
		return "", err
	}
	userIDs := idListArg(args, "user_ids")
	if len(userIDs) == 0 {
		return "", fmt.Errorf("user_ids is required")
	}

	res, err := g.client.BulkBan(ctx, guildID, userIDs, intArg(args, "delete_message_seconds"), stringArg(args, "reason"))
	if err != nil {
		return "", fmt.Errorf("failed to bulk ban members: %w", err)
	}

	out := fmt.Sprintf("Banned %d members", len(res.BannedUsers))
	if len(res.FailedUsers) > 0 {
		out += fmt.Sprintf("; failed for: %s", strings.Join(res.FailedUsers, ", "))
	}
	return out, nil
}

func (g *guildTools) handleTimeoutMember(ctx context.Context, args map[string]any) (string, error) {
	guildID, userID, err := g.memberArgs(args)
	if err != nil {
		return "", err
	}

	fields := map[string]any{}
	if boolArg(args, "clear") {
		fields["communication_disabled_until"] = nil
	} else {
		until := stringArg(args, "until")
		if until == "" {
			return "", fmt.Errorf("either 'until' or 'clear' is required")
		}
		if _, err := time.Parse(time.RFC3339, until); err != nil {
			return "", fmt.Errorf("invalid 'until' timestamp: %w", err)
		}
		fields["communication_disabled_until"] = until
	}

	if _, err := g.client.ModifyMember(ctx, guildID, userID, fields, stringArg(args, "reason")); err != nil {
		return "", fmt.Errorf("failed to timeout member: %w", err)
	}
	if boolArg(args, "clear") {
		return fmt.Sprintf("Cleared timeout for member %s", userID), nil
	}
	return fmt.Sprintf("Timed out member %s until %s", userID, fields["communication_disabled_until"]), nil
}

func (g *guildTools) handleModifyMember(ctx context.Context, args map[string]any) (string, error) {
	guildID, userID, err := g.memberArgs(args)
	if err != nil {
		return "", err
	}

	fields := map[string]any{}
	if nick := stringArg(args, "nick"); nick != "" {
		fields["nick"] = nick
	}
	if roles := idListArg(args, "roles"); roles != nil {
		fields["roles"] = roles
	}
	if v, ok := args["mute"].(bool); ok {
		fields["mute"] = v
	}
	if v, ok := args["deafen"].(bool); ok {
		fields["deaf"] = v
	}
	if boolArg(args, "clear_timeout") {
		fields["communication_disabled_until"] = nil
	} else if until := stringArg(args, "communication_disabled_until"); until != "" {
		if _, err := time.Parse(time.RFC3339, until); err != nil {
			return "", fmt.Errorf("invalid timeout timestamp: %w", err)
		}
		fields["communication_disabled_until"] = until
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("no member fields provided to modify")
	}

	if _, err := g.client.ModifyMember(ctx, guildID, userID, fields, stringArg(args, "reason")); err != nil {
		return "", fmt.Errorf("failed to modify member: %w", err)
	}
	return fmt.Sprintf("Updated member %s", userID), nil
}
