package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/internal/telemetry"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/plugin"
)

// Dispatcher runs the plugin bound to a command.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *plugin.Request) (*plugin.Reply, error)
}

// Executor runs fn under the outgoing rate limit for key.
type Executor interface {
	Submit(ctx context.Context, key string, fn func(context.Context) error) error
}

// Sender delivers a reply.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (*messaging.Message, error)
}

// WebhookHandler turns platform updates into plugin command calls and sends
// the replies through the rate limiter.
type WebhookHandler struct {
	bot      *messaging.BotContext
	commands Dispatcher
	executor Executor
	sender   Sender
}

// NewWebhookHandler creates the handler.
func NewWebhookHandler(bot *messaging.BotContext, commands Dispatcher, executor Executor, sender Sender) *WebhookHandler {
	return &WebhookHandler{bot: bot, commands: commands, executor: executor, sender: sender}
}

// Handle handles POST /webhook/{secret}. Every well-formed update is
// acknowledged with 200 so the platform does not redeliver it, even when
// the command fails.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var update messaging.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		BadRequest(w, "Invalid update")
		return
	}

	msg := update.Message
	if msg == nil || msg.Text == "" {
		writeJSON(w, http.StatusOK, okResponse(nil))
		return
	}

	username := ""
	if h.bot != nil {
		username = h.bot.Username
	}
	name, args, ok := messaging.ParseCommand(msg.Text, username)
	if !ok {
		writeJSON(w, http.StatusOK, okResponse(nil))
		return
	}

	ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanDispatch,
		trace.WithAttributes(telemetry.Command(name), telemetry.ChatID(msg.Chat.ID)))
	defer span.End()

	telemetry.ProfileCommand(ctx, name, func(ctx context.Context) {
		h.dispatch(ctx, &plugin.Request{Command: name, Args: args, Message: msg})
	})
	writeJSON(w, http.StatusOK, okResponse(nil))
}

func (h *WebhookHandler) dispatch(ctx context.Context, req *plugin.Request) {
	reply, err := h.commands.Dispatch(ctx, req)
	if errors.Is(err, plugin.ErrUnknownCommand) {
		logger.DebugCtx(ctx, "Ignoring unknown command", "command", req.Command)
		return
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		return
	}
	if reply == nil || reply.Text == "" {
		return
	}

	chatID := req.ChatID()
	err = h.executor.Submit(ctx, strconv.FormatInt(chatID, 10), func(ctx context.Context) error {
		sent, err := h.sender.SendMessage(ctx, chatID, reply.Text)
		if err != nil {
			return err
		}
		if reply.AfterSend != nil {
			return reply.AfterSend(ctx, sent)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Failed to deliver reply", "command", req.Command, logger.ChatID(chatID), logger.Err(err))
	}
}
