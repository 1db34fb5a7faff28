// Package builtin registers the Go plugins compiled into every build.
// Importing it for side effects is enough:
//
//	import _ "github.com/marmos91/thunder/pkg/plugin/builtin"
package builtin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/plugin"
	"github.com/marmos91/thunder/pkg/store/models"
)

func init() {
	plugin.Register("start", initStart)
	plugin.Register("ping", initPing)
	plugin.Register("restart", initRestart)
}

const (
	msgNotOwner   = "This command is restricted to the bot owner."
	msgRestarting = "Restarting..."

	msgLinkUnknown = "This link is not valid."
	msgLinkExpired = "This link has expired. Ask for a new one with /link."
)

func initStart(_ context.Context, r plugin.Registrar) error {
	env := r.Env()
	if env.Bot == nil {
		return fmt.Errorf("bot identity is not available")
	}

	r.Command("start", "Start the bot and get your stream link", func(ctx context.Context, req *plugin.Request) (*plugin.Reply, error) {
		payload := strings.TrimSpace(req.Args)
		if payload == "" || env.Tokens == nil {
			return &plugin.Reply{Text: welcomeText(env.Bot, req)}, nil
		}
		text, err := linkText(ctx, env.Tokens, payload)
		if err != nil {
			return nil, err
		}
		return &plugin.Reply{Text: text + "\n\n" + welcomeText(env.Bot, req)}, nil
	})

	r.Command("about", "About this bot", func(context.Context, *plugin.Request) (*plugin.Reply, error) {
		version := env.Version
		if version == "" {
			version = "dev"
		}
		return &plugin.Reply{Text: fmt.Sprintf("%s v%s\n%s", env.Bot.FirstName, version, env.Bot.Link(""))}, nil
	})

	r.Command("help", "Show usage help", func(context.Context, *plugin.Request) (*plugin.Reply, error) {
		var sb strings.Builder
		sb.WriteString("Available commands:\n")
		for _, c := range messaging.DefaultCommands() {
			fmt.Fprintf(&sb, "/%s - %s\n", c.Command, c.Description)
		}
		return &plugin.Reply{Text: strings.TrimRight(sb.String(), "\n")}, nil
	})

	if env.Tokens != nil {
		r.Command("link", "Generate a download link for a file", func(ctx context.Context, req *plugin.Request) (*plugin.Reply, error) {
			tok, err := env.Tokens.Issue(ctx, req.SenderID())
			if err != nil {
				return nil, fmt.Errorf("failed to issue token: %w", err)
			}
			return &plugin.Reply{Text: fmt.Sprintf("Your link (valid until %s):\n%s",
				tok.ExpiresAt.UTC().Format(time.RFC1123), env.Bot.Link(tok.Token))}, nil
		})
	}
	return nil
}

// linkText describes the token carried by a /start deep link.
func linkText(ctx context.Context, tokens plugin.TokenService, token string) (string, error) {
	tok, err := tokens.Validate(ctx, token)
	switch {
	case errors.Is(err, models.ErrTokenNotFound):
		return msgLinkUnknown, nil
	case errors.Is(err, models.ErrTokenExpired):
		return msgLinkExpired, nil
	case err != nil:
		return "", fmt.Errorf("failed to validate token: %w", err)
	}
	return fmt.Sprintf("Link shared by user %d, valid until %s.",
		tok.OwnerID, tok.ExpiresAt.UTC().Format(time.RFC1123)), nil
}

func welcomeText(bot *messaging.BotContext, req *plugin.Request) string {
	name := "there"
	if req.Message != nil && req.Message.From != nil && req.Message.From.FirstName != "" {
		name = req.Message.From.FirstName
	}
	return fmt.Sprintf("Hello %s! I'm @%s.\nShare your link: %s", name, bot.Username, bot.Link(""))
}

func initPing(_ context.Context, r plugin.Registrar) error {
	r.Command("ping", "Check if the bot is alive", func(_ context.Context, req *plugin.Request) (*plugin.Reply, error) {
		text := "Pong!"
		if req.Message != nil && req.Message.Date > 0 {
			lag := time.Since(time.Unix(req.Message.Date, 0)).Round(time.Millisecond)
			text = fmt.Sprintf("Pong! (%s)", lag)
		}
		return &plugin.Reply{Text: text}, nil
	})
	return nil
}
