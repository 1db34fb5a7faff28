package plugin

import (
	"context"
	"slices"

	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/store"
	"github.com/marmos91/thunder/pkg/store/models"
)

// TokenService issues access tokens for chat users and resolves the ones
// that come back through a deep link.
type TokenService interface {
	Issue(ctx context.Context, ownerID int64) (*models.AccessToken, error)

	// Validate returns models.ErrTokenNotFound or models.ErrTokenExpired
	// for tokens that cannot be used.
	Validate(ctx context.Context, token string) (*models.AccessToken, error)
}

// Env is what plugins may reach beyond the command table. Plugins load after
// startup, so Bot is already populated when an InitFunc runs.
type Env struct {
	Bot      *messaging.BotContext
	Notices  store.RestartNoticeStore
	Tokens   TokenService
	OwnerIDs []int64
	Version  string

	// Shutdown asks the process to stop with the given reason.
	Shutdown func(reason string)
}

// IsOwner reports whether userID may run owner-only commands.
func (e *Env) IsOwner(userID int64) bool {
	return userID != 0 && slices.Contains(e.OwnerIDs, userID)
}

// BotUsername returns the bot's username or an empty string before startup.
func (e *Env) BotUsername() string {
	if e.Bot == nil {
		return ""
	}
	return e.Bot.Username
}
