package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/plugin"
	"github.com/marmos91/thunder/pkg/store/models"
)

// initRestart binds the owner-only /restart command. The reply is stored as
// the restart notice that the next startup edits to its completion text.
func initRestart(_ context.Context, r plugin.Registrar) error {
	env := r.Env()
	if env.Notices == nil || env.Shutdown == nil {
		return fmt.Errorf("restart requires a notice store and a shutdown hook")
	}

	r.Command("restart", "Restart the bot (owner only)", func(ctx context.Context, req *plugin.Request) (*plugin.Reply, error) {
		if !env.IsOwner(req.SenderID()) {
			logger.WarnCtx(ctx, "Restart denied", "user_id", req.SenderID(), logger.ChatID(req.ChatID()))
			return &plugin.Reply{Text: msgNotOwner}, nil
		}

		return &plugin.Reply{
			Text: msgRestarting,
			AfterSend: func(ctx context.Context, sent *messaging.Message) error {
				notice := &models.RestartNotice{
					MessageID: sent.MessageID,
					ChatID:    sent.Chat.ID,
					CreatedAt: time.Now().UTC(),
				}
				if err := env.Notices.SaveRestartNotice(ctx, notice); err != nil {
					return fmt.Errorf("failed to save restart notice: %w", err)
				}
				logger.InfoCtx(ctx, "Restart requested", logger.ChatID(notice.ChatID), logger.MessageID(notice.MessageID))
				env.Shutdown("restart requested")
				return nil
			},
		}, nil
	})
	return nil
}
