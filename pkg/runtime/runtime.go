// Package runtime wires the orchestrator together. Serve drives the bot
// through its whole life: startup, the plugin pass, the background tasks,
// the HTTP listener and finally the ordered teardown.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/internal/telemetry"
	"github.com/marmos91/thunder/pkg/api"
	"github.com/marmos91/thunder/pkg/config"
	"github.com/marmos91/thunder/pkg/keepalive"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/messaging/botapi"
	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/marmos91/thunder/pkg/plugin"
	"github.com/marmos91/thunder/pkg/ratelimit"
	"github.com/marmos91/thunder/pkg/runtime/lifecycle"
	"github.com/marmos91/thunder/pkg/runtime/startup"
	"github.com/marmos91/thunder/pkg/runtime/tasks"
	"github.com/marmos91/thunder/pkg/store"
	"github.com/marmos91/thunder/pkg/tokens"

	// Build-time plugins register themselves in init.
	_ "github.com/marmos91/thunder/pkg/plugin/builtin"
)

// Background task labels.
const (
	TaskRequestExecutor = "request-executor"
	TaskKeepalive       = "keepalive"
	TaskTokenCleanup    = "token-cleanup"
)

var (
	// ErrAlreadyServed is returned by a second call to Serve.
	ErrAlreadyServed = errors.New("runtime already served")

	// ErrRestartRequested is returned by Serve after an operator asked for a
	// restart and the teardown completed.
	ErrRestartRequested = errors.New("restart requested")
)

// Option configures a Runtime.
type Option func(*Runtime)

// WithClient replaces the Bot API client built from the configuration.
func WithClient(c messaging.Client) Option {
	return func(r *Runtime) {
		r.client = c
	}
}

// WithStore replaces the store opened from the database configuration.
func WithStore(s store.Store) Option {
	return func(r *Runtime) {
		r.store = s
	}
}

// Runtime owns every long-lived component of the bot.
type Runtime struct {
	cfg     *config.Config
	version string

	store   store.Store
	client  messaging.Client
	limiter *ratelimit.Limiter
	tokens  *tokens.Service
	pinger  *keepalive.Pinger
	host    *plugin.Host

	ready atomic.Bool

	pluginsOnce sync.Once
	plugins     plugin.LoadReport

	serveOnce sync.Once

	stopMu sync.Mutex
	stop   context.CancelCauseFunc
}

// New builds the runtime from configuration. Nothing touches the network
// until Serve.
func New(cfg *config.Config, version string, opts ...Option) (*Runtime, error) {
	r := &Runtime{cfg: cfg, version: version}
	for _, opt := range opts {
		opt(r)
	}

	if r.store == nil {
		s, err := store.New(&cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		r.store = s
	}

	if r.client == nil {
		r.client = botapi.New(botapi.Config{
			APIURL:         cfg.Bot.APIURL,
			Token:          cfg.Bot.Token,
			RequestTimeout: cfg.Bot.RequestTimeout,
			WebhookURL:     cfg.Server.WebhookURL(),
		})
	}

	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		_ = r.store.Close()
		return nil, fmt.Errorf("failed to create request executor: %w", err)
	}
	r.limiter = limiter

	keepaliveCfg := cfg.Keepalive
	if keepaliveCfg.URL == "" {
		keepaliveCfg.URL = cfg.Server.PublicURL
	}
	r.pinger = keepalive.New(keepaliveCfg)
	r.tokens = tokens.NewService(r.store, cfg.Tokens)
	r.host = plugin.NewHost(metrics.NewPluginMetrics())

	return r, nil
}

// Ready reports whether the bot finished starting and is serving.
func (r *Runtime) Ready() bool {
	return r.ready.Load()
}

// Plugins returns the report of the loader pass.
func (r *Runtime) Plugins() plugin.LoadReport {
	return r.plugins
}

// Shutdown asks a running Serve to stop. It does not wait.
func (r *Runtime) Shutdown(reason string) {
	r.requestStop(errors.New(reason))
}

func (r *Runtime) requestStop(cause error) {
	r.stopMu.Lock()
	stop := r.stop
	r.stopMu.Unlock()

	if stop != nil {
		logger.Info("Shutdown requested", "reason", cause.Error())
		stop(cause)
	}
}

// Serve runs the bot until ctx is cancelled, Shutdown is called, a restart
// is requested or the listener fails. It can only be called once.
func (r *Runtime) Serve(ctx context.Context) error {
	err := ErrAlreadyServed
	r.serveOnce.Do(func() {
		err = r.serve(ctx)
	})
	return err
}

func (r *Runtime) serve(ctx context.Context) error {
	started := time.Now()

	ctx, stop := context.WithCancelCause(ctx)
	defer stop(nil)
	r.stopMu.Lock()
	r.stop = stop
	r.stopMu.Unlock()

	defer r.closeResources()

	seq := startup.New(r.client, r.store, startup.Config{
		RestartCompleteText: r.cfg.RestartCompleteText,
		Metrics:             metrics.NewStartupMetrics(),
	})
	bot, err := seq.Run(ctx)
	if err != nil {
		// Nothing else was started: release the client and the executor.
		_ = r.coordinator(nil, nil).Teardown(ctx)
		return fmt.Errorf("bot initialization failed: %w", err)
	}

	telemetry.SetBot(bot.ID, bot.Username)

	report := r.LoadPlugins(ctx, bot)

	taskMetrics := metrics.NewTaskMetrics()
	sup := tasks.NewSupervisor(taskMetrics,
		tasks.Spec{Label: TaskRequestExecutor, Run: r.limiter.Run},
		tasks.Spec{Label: TaskKeepalive, Run: r.pinger.Run},
		tasks.Spec{Label: TaskTokenCleanup, Run: tasks.Recurring(TaskTokenCleanup, r.tokens.CleanupInterval(), r.cleanupTokens, taskMetrics)},
	)
	// Tasks outlive ctx: only the teardown cancels them, so they stop before
	// the client closes.
	sup.LaunchAll(context.WithoutCancel(ctx))

	srv := api.NewServer(r.cfg.Server, api.Backend{
		Version:  r.version,
		Started:  started,
		Bot:      bot,
		Plugins:  report,
		Ready:    r.Ready,
		Store:    r.store,
		Commands: r.host,
		Executor: r.limiter,
		Sender:   r.client,
	})
	if err := srv.Start(ctx); err != nil {
		if tdErr := r.coordinator(sup, nil).Teardown(ctx); tdErr != nil {
			logger.Warn("Teardown finished with errors", logger.Err(tdErr))
		}
		return err
	}

	r.ready.Store(true)
	logger.Info("Bot running on", "addr", srv.Addr())
	logger.Info("Startup time", "elapsed", time.Since(started).Round(10*time.Millisecond).String())

	var serveErr error
	select {
	case <-ctx.Done():
		switch cause := context.Cause(ctx); {
		case errors.Is(cause, ErrRestartRequested):
			serveErr = ErrRestartRequested
		default:
			logger.Info("Shutdown signal received", "reason", cause)
		}
	case err := <-srv.Err():
		if err != nil {
			logger.Error("HTTP server failed - initiating shutdown", logger.Err(err))
			serveErr = fmt.Errorf("http server error: %w", err)
		}
	}

	r.ready.Store(false)
	tdErr := r.coordinator(sup, srv).Teardown(ctx)
	if tdErr != nil {
		logger.Warn("Teardown finished with errors", logger.Err(tdErr))
	}

	logger.Info("Thunder stopped")
	return errors.Join(serveErr, tdErr)
}

// coordinator builds the teardown for whatever has been started so far.
func (r *Runtime) coordinator(sup *tasks.Supervisor, srv *api.Server) *lifecycle.Coordinator {
	components := lifecycle.Components{
		Client:  r.client,
		Limiter: r.limiter,
	}
	if sup != nil {
		components.Tasks = sup
	}
	if srv != nil {
		components.Listener = srv
	}
	return lifecycle.New(components, r.cfg.ShutdownTimeout, metrics.NewShutdownMetrics())
}

func (r *Runtime) closeResources() {
	if err := r.host.Close(); err != nil {
		logger.Warn("Failed to close plugin host", logger.Err(err))
	}
	if err := r.store.Close(); err != nil {
		logger.Warn("Failed to close store", logger.Err(err))
	}
}

func (r *Runtime) cleanupTokens(ctx context.Context) error {
	if _, err := r.tokens.CleanupExpired(ctx); err != nil {
		return fmt.Errorf("token cleanup: %w", err)
	}
	return nil
}
