package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/midorin-Linux/NekoAI/internal/httpkit"
)

const apiBase = "https://discord.com/api/v10"

// maxMessageChunk keeps outbound chunks safely under Discord's
// 2000-character message limit.
const maxMessageChunk = 1900

// Client is the Discord REST client. Safe for concurrent use.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at an alternate API base, such as a
// local rate-limit proxy.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// NewClient creates a REST client authenticating with the given bot
// token.
func NewClient(token string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		token:   token,
		baseURL: apiBase,
		logger:  logger.With("component", "discord"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30 * time.Second),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do performs an authenticated request and decodes the JSON response
// into out (skipped when out is nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	return c.doReason(ctx, method, path, "", body, out)
}

// doReason is do with an optional audit log reason attached. Discord
// records the reason against the moderation action.
func (c *Client) doReason(ctx context.Context, method, path, reason string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reason != "" {
		// The header value must be URL-encoded per the API docs.
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(reason))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := httpkit.ReadErrorBody(resp.Body, 2048)
		return fmt.Errorf("discord API error %d on %s %s: %s", resp.StatusCode, method, path, errBody)
	}

	if out == nil {
		httpkit.DrainAndClose(resp.Body, 4096)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// CreateMessage sends a message to a channel. Content longer than the
// platform limit is split into sequential chunks.
func (c *Client) CreateMessage(ctx context.Context, channelID, content string) error {
	for _, chunk := range splitMessage(content, maxMessageChunk) {
		payload := map[string]string{"content": chunk}
		if err := c.do(ctx, "POST", "/channels/"+channelID+"/messages", payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// TriggerTyping shows the typing indicator in a channel. Best-effort:
// callers typically ignore the error.
func (c *Client) TriggerTyping(ctx context.Context, channelID string) error {
	return c.do(ctx, "POST", "/channels/"+channelID+"/typing", nil, nil)
}

// GetChannel fetches one channel.
func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, "GET", "/channels/"+channelID, nil, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// GetGuild fetches the guild summary with approximate member counts.
func (c *Client) GetGuild(ctx context.Context, guildID string) (*Guild, error) {
	var g Guild
	if err := c.do(ctx, "GET", "/guilds/"+guildID+"?with_counts=true", nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// GetGuildChannels lists all channels in a guild.
func (c *Client) GetGuildChannels(ctx context.Context, guildID string) ([]Channel, error) {
	var chans []Channel
	if err := c.do(ctx, "GET", "/guilds/"+guildID+"/channels", nil, &chans); err != nil {
		return nil, err
	}
	return chans, nil
}

// GetGuildRoles lists all roles in a guild.
func (c *Client) GetGuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	if err := c.do(ctx, "GET", "/guilds/"+guildID+"/roles", nil, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetGuildMembers lists up to limit guild members.
func (c *Client) GetGuildMembers(ctx context.Context, guildID string, limit int) ([]Member, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var members []Member
	path := fmt.Sprintf("/guilds/%s/members?limit=%d", guildID, limit)
	if err := c.do(ctx, "GET", path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// SearchGuildMembers finds members whose username or nickname starts
// with query.
func (c *Client) SearchGuildMembers(ctx context.Context, guildID, query string, limit int) ([]Member, error) {
	if limit <= 0 {
		limit = 10
	}
	var members []Member
	path := fmt.Sprintf("/guilds/%s/members/search?query=%s&limit=%d", guildID, url.QueryEscape(query), limit)
	if err := c.do(ctx, "GET", path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// GetGuildMember fetches one member.
func (c *Client) GetGuildMember(ctx context.Context, guildID, userID string) (*Member, error) {
	var m Member
	if err := c.do(ctx, "GET", "/guilds/"+guildID+"/members/"+userID, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// KickMember removes a member from the guild.
func (c *Client) KickMember(ctx context.Context, guildID, userID, reason string) error {
	return c.doReason(ctx, "DELETE", "/guilds/"+guildID+"/members/"+userID, reason, nil, nil)
}

// BanMember bans a user, optionally deleting their messages from the
// last deleteMessageSeconds seconds.
func (c *Client) BanMember(ctx context.Context, guildID, userID string, deleteMessageSeconds int, reason string) error {
	body := map[string]int{"delete_message_seconds": deleteMessageSeconds}
	return c.doReason(ctx, "PUT", "/guilds/"+guildID+"/bans/"+userID, reason, body, nil)
}

// UnbanMember lifts a ban.
func (c *Client) UnbanMember(ctx context.Context, guildID, userID, reason string) error {
	return c.doReason(ctx, "DELETE", "/guilds/"+guildID+"/bans/"+userID, reason, nil, nil)
}

// BulkBan bans several users in one call. Partial failure is reported
// in the result, not as an error.
func (c *Client) BulkBan(ctx context.Context, guildID string, userIDs []string, deleteMessageSeconds int, reason string) (*BulkBanResult, error) {
	body := map[string]any{
		"user_ids":               userIDs,
		"delete_message_seconds": deleteMessageSeconds,
	}
	var res BulkBanResult
	if err := c.doReason(ctx, "POST", "/guilds/"+guildID+"/bulk-ban", reason, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ModifyMember patches member fields. Keys use the wire names; a nil
// value clears the field (sent as JSON null, which is how a timeout is
// lifted).
func (c *Client) ModifyMember(ctx context.Context, guildID, userID string, fields map[string]any, reason string) (*Member, error) {
	var m Member
	if err := c.doReason(ctx, "PATCH", "/guilds/"+guildID+"/members/"+userID, reason, fields, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateRole creates a guild role.
func (c *Client) CreateRole(ctx context.Context, guildID string, params CreateRoleParams, reason string) (*Role, error) {
	var r Role
	if err := c.doReason(ctx, "POST", "/guilds/"+guildID+"/roles", reason, params, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ModifyRole patches role fields. Keys use the wire names.
func (c *Client) ModifyRole(ctx context.Context, guildID, roleID string, fields map[string]any, reason string) (*Role, error) {
	var r Role
	if err := c.doReason(ctx, "PATCH", "/guilds/"+guildID+"/roles/"+roleID, reason, fields, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRole deletes a role.
func (c *Client) DeleteRole(ctx context.Context, guildID, roleID, reason string) error {
	return c.doReason(ctx, "DELETE", "/guilds/"+guildID+"/roles/"+roleID, reason, nil, nil)
}

// AddMemberRole grants a role to a member.
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return c.doReason(ctx, "PUT", "/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, reason, nil, nil)
}

// RemoveMemberRole revokes a role from a member.
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID, reason string) error {
	return c.doReason(ctx, "DELETE", "/guilds/"+guildID+"/members/"+userID+"/roles/"+roleID, reason, nil, nil)
}

// GetGuildEmojis lists the guild's custom emojis.
func (c *Client) GetGuildEmojis(ctx context.Context, guildID string) ([]Emoji, error) {
	var emojis []Emoji
	if err := c.do(ctx, "GET", "/guilds/"+guildID+"/emojis", nil, &emojis); err != nil {
		return nil, err
	}
	return emojis, nil
}

// CreateChannel creates a guild channel.
func (c *Client) CreateChannel(ctx context.Context, guildID string, params CreateChannelParams) (*Channel, error) {
	var ch Channel
	if err := c.do(ctx, "POST", "/guilds/"+guildID+"/channels", params, &ch); err != nil {
		return nil, err
	}
	return &ch, nil
}

// DeleteChannel deletes a channel.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	return c.do(ctx, "DELETE", "/channels/"+channelID, nil, nil)
}

// splitMessage breaks content into chunks of at most limit bytes,
// preferring newline boundaries and never splitting a UTF-8 sequence.
func splitMessage(content string, limit int) []string {
	if len(content) <= limit {
		return []string{content}
	}

	var chunks []string
	remaining := content
	for len(remaining) > limit {
		cut := limit
		// Prefer the last newline in the window.
		if idx := strings.LastIndexByte(remaining[:cut], '\n'); idx > 0 {
			cut = idx
		} else {
			// Back up so we never split inside a multi-byte rune.
			for cut > 0 && remaining[cut]&0xC0 == 0x80 {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
		}
		chunks = append(chunks, remaining[:cut])
		remaining = remaining[cut:]
		if len(remaining) > 0 && remaining[0] == '\n' {
			remaining = remaining[1:]
		}
	}
	if len(remaining) > 0 {
		chunks = append(chunks, remaining)
	}
	return chunks
}
