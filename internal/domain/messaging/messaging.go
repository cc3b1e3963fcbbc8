package messaging

import (
	"context"
	"errors"
)

var (
	// ErrDirectClosed means the user does not accept direct messages.
	ErrDirectClosed = errors.New("messaging: direct messages are closed")
	// ErrSurfaceGone means the target channel or message no longer exists.
	ErrSurfaceGone = errors.New("messaging: surface not found")
	ErrTransport   = errors.New("messaging: transport failure")
)

type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type ButtonStyle string

const (
	StylePrimary   ButtonStyle = "primary"
	StyleSecondary ButtonStyle = "secondary"
	StyleSuccess   ButtonStyle = "success"
	StyleDanger    ButtonStyle = "danger"
)

// Button is an interactive control. Action is echoed back in the
// interaction event when a user presses it.
type Button struct {
	Label  string      `json:"label"`
	Action string      `json:"action"`
	Style  ButtonStyle `json:"style,omitempty"`
}

type File struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// Message is what the bot posts: plain content plus an optional card-like
// embed, buttons and attachments.
type Message struct {
	Content     string   `json:"content,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Color       string   `json:"color,omitempty"`
	Fields      []Field  `json:"fields,omitempty"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Image       string   `json:"image,omitempty"`
	Footer      string   `json:"footer,omitempty"`
	Buttons     []Button `json:"buttons,omitempty"`
	Files       []File   `json:"files,omitempty"`
	Ephemeral   bool     `json:"ephemeral,omitempty"`
}

// Messenger is the chat platform as seen by the use cases.
type Messenger interface {
	SendDirect(ctx context.Context, userID string, m Message) error
	Post(ctx context.Context, channelID string, m Message) (messageID string, err error)
	Edit(ctx context.Context, channelID, messageID string, m Message) error
	// OpenPrivateSurface creates a channel visible only to members and admins.
	OpenPrivateSurface(ctx context.Context, name string, memberIDs []string) (channelID string, err error)
	CloseSurface(ctx context.Context, channelID string) error
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	// Reply answers an interaction.
	Reply(ctx context.Context, interactionID string, m Message) error
}

// Interaction is a user action pushed by the chat platform: a button press,
// a select menu choice or a submitted form.
type Interaction struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	UserID    string            `json:"user_id"`
	UserTag   string            `json:"user_tag"`
	ChannelID string            `json:"channel_id"`
	GuildID   string            `json:"guild_id"`
	MessageID string            `json:"message_id"`
	Values    []string          `json:"values,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
	Admin     bool              `json:"admin"`
}

// Value returns the first selected value, if any.
func (i Interaction) Value() string {
	if len(i.Values) == 0 {
		return ""
	}
	return i.Values[0]
}
