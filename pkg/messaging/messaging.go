// Package messaging defines the chat-platform client used by the
// orchestrator together with the update payloads delivered to the webhook.
package messaging

import (
	"context"
	"net/url"
)

// Client is the connection to the messaging platform.
//
// Operations that the platform may throttle return *RateLimitedError;
// EditMessageText returns ErrMessageNotModified when the text is unchanged.
type Client interface {
	Connect(ctx context.Context) error
	GetMe(ctx context.Context) (*User, error)
	SetCommands(ctx context.Context, commands []BotCommand) error
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	SendMessage(ctx context.Context, chatID int64, text string) (*Message, error)
	Close(ctx context.Context) error
}

// User is a platform account.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

// BotCommand is one entry of the command menu pushed at startup.
type BotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Chat identifies the conversation a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// Message is an incoming chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Date      int64  `json:"date"`
	Text      string `json:"text,omitempty"`
}

// Update is a webhook delivery.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// BotContext is the bot identity fetched once at startup and shared
// read-only with every component that builds user-facing output.
type BotContext struct {
	ID        int64
	Username  string
	FirstName string
}

// NewBotContext builds a BotContext from the account returned by GetMe.
func NewBotContext(u *User) *BotContext {
	return &BotContext{ID: u.ID, Username: u.Username, FirstName: u.FirstName}
}

// Link returns the deep link that opens a chat with the bot, passing
// payload as the start parameter when non-empty.
func (b *BotContext) Link(payload string) string {
	link := "https://t.me/" + b.Username
	if payload != "" {
		link += "?start=" + url.QueryEscape(payload)
	}
	return link
}
