package runtime

import (
	"context"
	"fmt"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/config"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/marmos91/thunder/pkg/plugin"
)

// LoadPlugins runs the loader pass against the runtime's host: build-time
// plugins first, then the Lua files matched by the configured pattern. The
// pass happens at most once; later calls return the first report.
func (r *Runtime) LoadPlugins(ctx context.Context, bot *messaging.BotContext) plugin.LoadReport {
	r.pluginsOnce.Do(func() {
		env := &plugin.Env{
			Bot:      bot,
			Notices:  r.store,
			Tokens:   r.tokens,
			OwnerIDs: r.cfg.Bot.OwnerIDs,
			Version:  r.version,
			Shutdown: func(reason string) {
				r.requestStop(fmt.Errorf("%w: %s", ErrRestartRequested, reason))
			},
		}
		r.plugins = LoadPass(ctx, r.host, env, r.cfg.Plugins)
	})
	return r.plugins
}

// LoadPass loads every plugin into host and returns the combined report.
// It never fails: broken plugins are recorded and skipped.
func LoadPass(ctx context.Context, host *plugin.Host, env *plugin.Env, cfg config.PluginsConfig) plugin.LoadReport {
	loader := plugin.NewLoader(host, env, plugin.Options{
		Timeout: cfg.ExecutionTimeout,
		Metrics: metrics.NewPluginMetrics(),
	})

	report := loader.LoadRegistered(ctx)
	report.Merge(loader.LoadAll(ctx, cfg.Pattern))

	logger.InfoCtx(ctx, report.Summary())
	return report
}
