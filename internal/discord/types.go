// Package discord provides a minimal Discord client: a gateway
// connection for receiving messages and a REST client for sending them
// and for the guild administration tools.
package discord

// User is a Discord user as seen on inbound messages.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
}

// Message is an inbound or referenced Discord message.
type Message struct {
	ID                string   `json:"id"`
	ChannelID         string   `json:"channel_id"`
	GuildID           string   `json:"guild_id,omitempty"`
	Content           string   `json:"content"`
	Author            User     `json:"author"`
	ReferencedMessage *Message `json:"referenced_message,omitempty"`
}

// Channel types used by the guild tools.
const (
	ChannelTypeText     = 0
	ChannelTypeVoice    = 2
	ChannelTypeCategory = 4
	ChannelTypeNews     = 5
	ChannelTypeStage    = 13
	ChannelTypeForum    = 15
)

// Channel is a guild channel.
type Channel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	Topic    string `json:"topic,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Position int    `json:"position,omitempty"`
	NSFW     bool   `json:"nsfw,omitempty"`
}

// TypeName returns a human-readable channel type.
func (c Channel) TypeName() string {
	switch c.Type {
	case ChannelTypeText:
		return "text"
	case ChannelTypeVoice:
		return "voice"
	case ChannelTypeCategory:
		return "category"
	case ChannelTypeNews:
		return "news"
	case ChannelTypeStage:
		return "stage"
	case ChannelTypeForum:
		return "forum"
	default:
		return "unknown"
	}
}

// ChannelTypeFromName maps a type name back to its wire value.
// Returns ok=false for unrecognized names.
func ChannelTypeFromName(name string) (int, bool) {
	switch name {
	case "text":
		return ChannelTypeText, true
	case "voice":
		return ChannelTypeVoice, true
	case "category":
		return ChannelTypeCategory, true
	case "news":
		return ChannelTypeNews, true
	case "stage":
		return ChannelTypeStage, true
	case "forum":
		return ChannelTypeForum, true
	default:
		return 0, false
	}
}

// Role is a guild role.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Color       int    `json:"color"`
	Position    int    `json:"position"`
	Permissions string `json:"permissions"`
	Mentionable bool   `json:"mentionable"`
}

// Member is a guild member.
type Member struct {
	User     User     `json:"user"`
	Nick     string   `json:"nick,omitempty"`
	Roles    []string `json:"roles"`
	JoinedAt string   `json:"joined_at"`

	// CommunicationDisabledUntil is the timeout expiry, empty when the
	// member is not timed out.
	CommunicationDisabledUntil string `json:"communication_disabled_until,omitempty"`
}

// Emoji is a custom guild emoji.
type Emoji struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Animated bool   `json:"animated"`
}

// Guild is the guild summary returned by the REST API.
type Guild struct {
	ID                       string `json:"id"`
	Name                     string `json:"name"`
	Description              string `json:"description,omitempty"`
	OwnerID                  string `json:"owner_id"`
	ApproximateMemberCount   int    `json:"approximate_member_count,omitempty"`
	ApproximatePresenceCount int    `json:"approximate_presence_count,omitempty"`
}

// CreateChannelParams are the optional knobs for CreateChannel. Zero
// values are omitted from the request.
type CreateChannelParams struct {
	Name     string `json:"name"`
	Type     int    `json:"type,omitempty"`
	Topic    string `json:"topic,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
	Position int    `json:"position,omitempty"`
	NSFW     bool   `json:"nsfw,omitempty"`
}

// CreateRoleParams are the optional knobs for CreateRole. Zero values
// are omitted, leaving Discord's defaults in effect. Permissions is
// the bitset in decimal string form, as the API expects.
type CreateRoleParams struct {
	Name        string `json:"name,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Color       int    `json:"color,omitempty"`
	Hoist       bool   `json:"hoist,omitempty"`
	Mentionable bool   `json:"mentionable,omitempty"`
}

// BulkBanResult reports which users a bulk ban reached.
type BulkBanResult struct {
	BannedUsers []string `json:"banned_users"`
	FailedUsers []string `json:"failed_users"`
}
