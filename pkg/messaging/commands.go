package messaging

import (
	"strings"
	"unicode"
)

// DefaultCommands is the command menu registered at startup.
func DefaultCommands() []BotCommand {
	return []BotCommand{
		{Command: "start", Description: "Start the bot and get your stream link"},
		{Command: "link", Description: "Generate a download link for a file"},
		{Command: "ping", Description: "Check if the bot is alive"},
		{Command: "about", Description: "About this bot"},
		{Command: "help", Description: "Show usage help"},
		{Command: "restart", Description: "Restart the bot (owner only)"},
	}
}

// ParseCommand extracts the command name and argument text from a message
// such as "/start@thunderbot payload". It returns ok=false when text is not
// a command or is addressed to a different bot.
func ParseCommand(text, botUsername string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head, rest := text[1:], ""
	if i := strings.IndexFunc(head, unicode.IsSpace); i >= 0 {
		head, rest = head[:i], head[i+1:]
	}

	head, target, addressed := strings.Cut(head, "@")
	if addressed && botUsername != "" && !strings.EqualFold(target, botUsername) {
		return "", "", false
	}
	if head == "" {
		return "", "", false
	}
	return strings.ToLower(head), strings.TrimSpace(rest), true
}
