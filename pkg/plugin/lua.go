package plugin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/marmos91/thunder/internal/logger"
)

// DefaultExecutionTimeout bounds a plugin's top-level chunk and each call
// into one of its command handlers.
const DefaultExecutionTimeout = 5 * time.Second

// unsafeGlobals are removed from every plugin state after the base library
// is opened.
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

// luaPlugin is one plugin file and its interpreter. gopher-lua states are
// not goroutine-safe, so every entry into L holds mu.
type luaPlugin struct {
	name    string
	timeout time.Duration

	mu     sync.Mutex
	L      *lua.LState
	closed bool
}

func newLuaPlugin(name string, timeout time.Duration) *luaPlugin {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	for _, g := range unsafeGlobals {
		L.SetGlobal(g, lua.LNil)
	}

	p := &luaPlugin{name: name, timeout: timeout, L: L}
	L.SetGlobal("print", L.NewFunction(p.luaPrint))
	return p
}

// install exposes the thunder module, staging commands into st.
func (p *luaPlugin) install(st *stage, env *Env) {
	L := p.L
	mod := L.NewTable()

	L.SetField(mod, "command", L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		desc := L.CheckString(2)
		fn := L.CheckFunction(3)
		if err := st.command(name, desc, p.handler(fn)); err != nil {
			L.ArgError(1, err.Error())
		}
		return 0
	}))
	L.SetField(mod, "log", L.NewFunction(p.luaPrint))

	bot := L.NewTable()
	if env != nil && env.Bot != nil {
		L.SetField(bot, "id", lua.LNumber(env.Bot.ID))
		L.SetField(bot, "username", lua.LString(env.Bot.Username))
		L.SetField(bot, "first_name", lua.LString(env.Bot.FirstName))
	}
	L.SetField(mod, "bot", bot)

	L.SetGlobal("thunder", mod)
}

func (p *luaPlugin) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	var buf bytes.Buffer
	for i := 1; i <= n; i++ {
		if i > 1 {
			buf.WriteByte('\t')
		}
		buf.WriteString(L.ToStringMeta(L.Get(i)).String())
	}
	logger.Info("Plugin log", logger.Plugin(p.name), "text", buf.String())
	return 0
}

// exec compiles and runs the plugin file.
func (p *luaPlugin) exec(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlugin, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	fn, err := p.L.Load(bytes.NewReader(src), "@"+path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlugin, err)
	}

	return p.protected(ctx, func() error {
		p.L.Push(fn)
		return p.L.PCall(0, lua.MultRet, nil)
	})
}

// protected runs fn with the execution timeout installed on the state.
// Callers hold mu.
func (p *luaPlugin) protected(ctx context.Context, fn func() error) error {
	if p.closed {
		return fmt.Errorf("plugin %s is closed", p.name)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.L.SetContext(ctx)
	defer p.L.RemoveContext()

	top := p.L.GetTop()
	err := fn()
	if err != nil {
		p.L.SetTop(top)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrPluginTimeout, p.timeout)
		}
		return err
	}
	return nil
}

// handler adapts a Lua function to a CommandHandler. The function receives
// a message table and returns the reply text or nil.
func (p *luaPlugin) handler(fn *lua.LFunction) CommandHandler {
	return func(ctx context.Context, req *Request) (*Reply, error) {
		p.mu.Lock()
		defer p.mu.Unlock()

		var ret lua.LValue = lua.LNil
		err := p.protected(ctx, func() error {
			if err := p.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, p.messageTable(req)); err != nil {
				return err
			}
			ret = p.L.Get(-1)
			p.L.Pop(1)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", p.name, err)
		}

		switch v := ret.(type) {
		case *lua.LNilType:
			return nil, nil
		case lua.LString:
			return &Reply{Text: string(v)}, nil
		default:
			return &Reply{Text: p.L.ToStringMeta(v).String()}, nil
		}
	}
}

func (p *luaPlugin) messageTable(req *Request) *lua.LTable {
	t := p.L.NewTable()
	p.L.SetField(t, "command", lua.LString(req.Command))
	p.L.SetField(t, "args", lua.LString(req.Args))
	p.L.SetField(t, "chat_id", lua.LNumber(req.ChatID()))
	p.L.SetField(t, "from_id", lua.LNumber(req.SenderID()))
	if req.Message != nil {
		p.L.SetField(t, "text", lua.LString(req.Message.Text))
		p.L.SetField(t, "message_id", lua.LNumber(req.Message.MessageID))
	}
	return t
}

// Close releases the interpreter.
func (p *luaPlugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.L.Close()
	}
	return nil
}
