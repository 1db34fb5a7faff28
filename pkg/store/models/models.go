// Package models holds the persisted records shared by every store backend.
package models

import "time"

// AllModels returns the GORM models migrated on startup.
func AllModels() []any {
	return []any{
		&RestartNotice{},
		&AccessToken{},
	}
}

// RestartNotice identifies the chat message an operator's restart command
// left behind. It is edited to a completion text after the next successful
// startup and then deleted.
type RestartNotice struct {
	MessageID int64     `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	ChatID    int64     `gorm:"not null;index" json:"chat_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for RestartNotice.
func (RestartNotice) TableName() string {
	return "restart_notices"
}

// AccessToken is a short-lived credential handed to a chat user. Expired rows
// are removed by the token-cleanup task.
type AccessToken struct {
	Token     string    `gorm:"primaryKey;size:64" json:"token"`
	OwnerID   int64     `gorm:"not null;index" json:"owner_id"`
	ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for AccessToken.
func (AccessToken) TableName() string {
	return "access_tokens"
}

// Expired reports whether the token is no longer valid at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
