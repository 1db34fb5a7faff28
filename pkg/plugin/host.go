// Package plugin discovers, isolates and hosts bot plugins.
//
// Plugins come from two places: Lua files matched by a glob and executed in
// a sandboxed interpreter, and Go plugins registered at build time through
// Register. Either kind binds chat commands on a Host. A plugin that fails
// to load is recorded in the LoadReport and never affects the others.
package plugin

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/metrics"
)

// Request is an incoming command delivered to a handler.
type Request struct {
	Command string
	Args    string
	Message *messaging.Message
}

// ChatID returns the chat the request came from.
func (r *Request) ChatID() int64 {
	if r.Message == nil {
		return 0
	}
	return r.Message.Chat.ID
}

// SenderID returns the id of the user that sent the command.
func (r *Request) SenderID() int64 {
	if r.Message == nil || r.Message.From == nil {
		return 0
	}
	return r.Message.From.ID
}

// Reply is a handler's answer. AfterSend, when set, runs once the reply has
// been delivered and receives the sent message.
type Reply struct {
	Text      string
	AfterSend func(ctx context.Context, sent *messaging.Message) error
}

// CommandHandler handles one chat command.
type CommandHandler func(ctx context.Context, req *Request) (*Reply, error)

// Command is a bound chat command.
type Command struct {
	Name        string
	Description string
	Plugin      string
	Handler     CommandHandler
}

// Host owns the command table shared by every loaded plugin.
type Host struct {
	mu       sync.RWMutex
	commands map[string]*Command
	closers  []io.Closer
	metrics  metrics.PluginMetrics
}

// NewHost creates an empty host. m may be nil.
func NewHost(m metrics.PluginMetrics) *Host {
	return &Host{
		commands: make(map[string]*Command),
		metrics:  m,
	}
}

// commit binds cmds atomically: either every command is added or none.
func (h *Host) commit(cmds []*Command, closer io.Closer) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	seen := make(map[string]struct{}, len(cmds))
	for _, c := range cmds {
		if _, ok := h.commands[c.Name]; ok {
			return fmt.Errorf("%w: /%s", ErrDuplicateCommand, c.Name)
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("%w: /%s", ErrDuplicateCommand, c.Name)
		}
		seen[c.Name] = struct{}{}
	}

	for _, c := range cmds {
		h.commands[c.Name] = c
	}
	if closer != nil {
		h.closers = append(h.closers, closer)
	}
	return nil
}

// Lookup returns the command bound to name.
func (h *Host) Lookup(name string) (*Command, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.commands[name]
	return c, ok
}

// Commands returns every bound command sorted by name.
func (h *Host) Commands() []*Command {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Command, 0, len(h.commands))
	for _, c := range h.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BotCommands returns the command menu for the bound commands.
func (h *Host) BotCommands() []messaging.BotCommand {
	cmds := h.Commands()
	out := make([]messaging.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, messaging.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// Dispatch runs the handler bound to req.Command. A panic inside the
// handler is returned as *PanicError.
func (h *Host) Dispatch(ctx context.Context, req *Request) (reply *Reply, err error) {
	cmd, ok := h.Lookup(req.Command)
	if !ok {
		metrics.RecordDispatch(h.metrics, req.Command, metrics.OutcomeSkipped)
		return nil, fmt.Errorf("%w: /%s", ErrUnknownCommand, req.Command)
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Plugin: cmd.Plugin, Value: r}
		}
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeFailed
			logger.WarnCtx(ctx, "Command handler failed",
				"command", cmd.Name, logger.Plugin(cmd.Plugin), logger.Err(err))
		}
		metrics.RecordDispatch(h.metrics, cmd.Name, outcome)
	}()

	return cmd.Handler(ctx, req)
}

// Close releases interpreter states held by loaded plugins.
func (h *Host) Close() error {
	h.mu.Lock()
	closers := h.closers
	h.closers = nil
	h.mu.Unlock()

	for _, c := range closers {
		_ = c.Close()
	}
	return nil
}
