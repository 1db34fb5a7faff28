package plugin

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/internal/telemetry"
	"github.com/marmos91/thunder/pkg/metrics"
)

// DefaultPattern is the glob used when none is configured.
const DefaultPattern = "plugins/*.lua"

// Options configures a Loader.
type Options struct {
	// Timeout bounds each plugin's load and each handler call.
	Timeout time.Duration

	Metrics metrics.PluginMetrics
}

// Loader loads plugins into a Host, isolating each one behind its own
// failure boundary.
type Loader struct {
	host *Host
	env  *Env
	opts Options

	// running totals across passes, exported through the loaded gauge
	total, succeeded int
}

// NewLoader creates a loader that binds commands on host.
func NewLoader(host *Host, env *Env, opts Options) *Loader {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultExecutionTimeout
	}
	return &Loader{host: host, env: env, opts: opts}
}

// LoadAll loads every Lua file matching pattern. Failures are recorded in
// the report and never returned.
func (l *Loader) LoadAll(ctx context.Context, pattern string) LoadReport {
	if pattern == "" {
		pattern = DefaultPattern
	}

	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPluginPass,
		trace.WithAttributes(telemetry.PluginSource(string(SourceLua))))
	defer span.End()

	report := newReport()

	files, err := filepath.Glob(pattern)
	if err != nil {
		logger.WarnCtx(ctx, "Invalid plugin pattern", logger.Path(pattern), logger.Err(err))
		return report
	}
	if len(files) == 0 {
		logger.InfoCtx(ctx, "No plugins found to import", logger.Path(pattern))
		return report
	}
	sort.Strings(files)

	seen := make(map[string]struct{}, len(files))
	for _, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, dup := seen[name]; dup {
			rec := PluginRecord{Name: name, Source: SourceLua, Path: path, Status: StatusFailed,
				Err: fmt.Errorf("%w: %s", ErrDuplicatePlugin, name)}
			l.logFailure(ctx, rec)
			metrics.ObserveLoad(l.opts.Metrics, string(SourceLua), metrics.OutcomeFailed, 0)
			report.add(rec)
			continue
		}
		seen[name] = struct{}{}

		report.add(l.isolate(ctx, name, SourceLua, path, func(ctx context.Context) (*stage, error) {
			return l.loadLua(ctx, name, path)
		}))
	}

	l.finish(ctx, report)
	return report
}

// LoadRegistered initializes every build-time plugin.
func (l *Loader) LoadRegistered(ctx context.Context) LoadReport {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanPluginPass,
		trace.WithAttributes(telemetry.PluginSource(string(SourceBuiltin))))
	defer span.End()

	report := newReport()
	for _, name := range Registered() {
		report.add(l.loadInit(ctx, name, registeredInit(name)))
	}

	l.finish(ctx, report)
	return report
}

func (l *Loader) loadInit(ctx context.Context, name string, fn InitFunc) PluginRecord {
	return l.isolate(ctx, name, SourceBuiltin, "", func(ctx context.Context) (*stage, error) {
		st := newStage(name, l.env)
		if err := fn(ctx, st); err != nil {
			return nil, err
		}
		if st.err != nil {
			return nil, st.err
		}
		if err := l.host.commit(st.cmds, nil); err != nil {
			return nil, err
		}
		return st, nil
	})
}

func (l *Loader) loadLua(ctx context.Context, name, path string) (*stage, error) {
	p := newLuaPlugin(name, l.opts.Timeout)
	st := newStage(name, l.env)
	p.install(st, l.env)

	if err := p.exec(ctx, path); err != nil {
		_ = p.Close()
		return nil, err
	}
	if err := l.host.commit(st.cmds, p); err != nil {
		_ = p.Close()
		return nil, err
	}
	return st, nil
}

// isolate runs load behind a recover boundary and turns its outcome into a
// record.
func (l *Loader) isolate(ctx context.Context, name string, src Source, path string, load func(context.Context) (*stage, error)) (rec PluginRecord) {
	ctx, span := telemetry.StartPluginSpan(ctx, name, string(src))
	defer span.End()

	ctx = logger.WithContext(ctx, logger.NewLogContext("plugin").WithPlugin(name))
	start := time.Now()
	rec = PluginRecord{Name: name, Source: src, Path: path}

	defer func() {
		if r := recover(); r != nil {
			rec.Status = StatusFailed
			rec.Err = &PanicError{Plugin: name, Value: r}
			rec.Commands = nil
		}

		outcome := metrics.OutcomeOK
		if rec.Status == StatusFailed {
			outcome = metrics.OutcomeFailed
			telemetry.RecordError(ctx, rec.Err)
			l.logFailure(ctx, rec)
		} else {
			logger.DebugCtx(ctx, "Plugin loaded", logger.Plugin(name),
				"commands", rec.Commands, logger.KeyDurationMs, logger.Since(start))
		}
		span.SetAttributes(telemetry.Outcome(outcome))
		metrics.ObserveLoad(l.opts.Metrics, string(src), outcome, time.Since(start))
	}()

	st, err := load(ctx)
	if err != nil {
		rec.Status = StatusFailed
		rec.Err = err
		return rec
	}
	rec.Status = StatusLoaded
	rec.Commands = st.names()
	return rec
}

func (l *Loader) logFailure(ctx context.Context, rec PluginRecord) {
	logger.ErrorCtx(ctx, "Failed to import plugin", logger.Plugin(rec.Name), logger.Err(rec.Err))
}

func (l *Loader) finish(ctx context.Context, report LoadReport) {
	l.total += report.Total
	l.succeeded += report.Succeeded
	metrics.SetLoaded(l.opts.Metrics, l.total, l.succeeded)
	if report.Total == 0 {
		return
	}
	logger.InfoCtx(ctx, "Plugins imported",
		"total", report.Total, "succeeded", report.Succeeded, "failed", len(report.Failed))
	if len(report.Failed) > 0 {
		logger.WarnCtx(ctx, "Failed plugins", "names", strings.Join(report.Failed, ", "))
	}
}
