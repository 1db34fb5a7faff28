package plugin

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

// Registrar is handed to a Go plugin's InitFunc. Commands bound through it
// are staged and only become visible once the InitFunc returns nil.
type Registrar interface {
	Command(name, description string, h CommandHandler)
	Env() *Env
}

// InitFunc initializes a build-time plugin.
type InitFunc func(ctx context.Context, r Registrar) error

var (
	registryMu sync.RWMutex
	registry   = make(map[string]InitFunc)
)

// Register adds a build-time plugin. It is meant to be called from init and
// panics when name is empty, already registered, or fn is nil.
func Register(name string, fn InitFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if name == "" || fn == nil {
		panic("plugin: Register called with empty name or nil InitFunc")
	}
	if _, dup := registry[name]; dup {
		panic(fmt.Sprintf("plugin: Register called twice for %q", name))
	}
	registry[name] = fn
}

// Registered returns the names of build-time plugins, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func registeredInit(name string) InitFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

var commandName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

// stage collects one plugin's registrations until it finished loading.
type stage struct {
	plugin string
	env    *Env
	cmds   []*Command
	err    error
}

func newStage(plugin string, env *Env) *stage {
	if env == nil {
		env = &Env{}
	}
	return &stage{plugin: plugin, env: env}
}

func (s *stage) command(name, description string, h CommandHandler) error {
	if !commandName.MatchString(name) {
		return fmt.Errorf("invalid command name %q", name)
	}
	if h == nil {
		return fmt.Errorf("nil handler for command %q", name)
	}
	s.cmds = append(s.cmds, &Command{
		Name:        name,
		Description: description,
		Plugin:      s.plugin,
		Handler:     h,
	})
	return nil
}

// Command implements Registrar. The first invalid registration fails the
// plugin.
func (s *stage) Command(name, description string, h CommandHandler) {
	if err := s.command(name, description, h); err != nil && s.err == nil {
		s.err = err
	}
}

func (s *stage) Env() *Env { return s.env }

func (s *stage) names() []string {
	out := make([]string, len(s.cmds))
	for i, c := range s.cmds {
		out[i] = c.Name
	}
	return out
}
