package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/thunder/internal/cli/output"
	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/config"
	"github.com/marmos91/thunder/pkg/messaging"
	"github.com/marmos91/thunder/pkg/plugin"
	"github.com/marmos91/thunder/pkg/runtime"
	"github.com/marmos91/thunder/pkg/store/models"
)

var (
	pluginsOutput string
	pluginsStrict bool
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Dry-run the plugin loader",
	Long: `Load every build-time and Lua plugin without connecting to the Bot API
and report which ones would load.

Plugins are executed in the same sandbox and with the same timeout as in
"thunder start", so a plugin that fails here fails at startup too.

Examples:
  # Check the configured plugin directory
  thunder plugins

  # Fail when any plugin is broken (useful in CI)
  thunder plugins --strict

  # Machine-readable report
  thunder plugins --output json`,
	RunE: runPlugins,
}

func init() {
	pluginsCmd.Flags().StringVarP(&pluginsOutput, "output", "o", "table", "Output format (table|json|yaml)")
	pluginsCmd.Flags().BoolVar(&pluginsStrict, "strict", false, "Exit with an error if any plugin fails to load")
}

// pluginRow is one line of the plugins report.
type pluginRow struct {
	Name     string   `json:"name" yaml:"name"`
	Source   string   `json:"source" yaml:"source"`
	Path     string   `json:"path,omitempty" yaml:"path,omitempty"`
	Status   string   `json:"status" yaml:"status"`
	Commands []string `json:"commands" yaml:"commands"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
}

type pluginList []pluginRow

func (l pluginList) Headers() []string {
	return []string{"Name", "Source", "Status", "Commands", "Error"}
}

func (l pluginList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, p := range l {
		rows = append(rows, []string{p.Name, p.Source, p.Status, strings.Join(p.Commands, ","), p.Error})
	}
	return rows
}

func runPlugins(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(pluginsOutput)
	if err != nil {
		return err
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Keep stdout for the report.
	if err := logger.Init(logger.Config{Level: "WARN", Format: cfg.Logging.Format, Output: "stderr"}); err != nil {
		return err
	}

	report := dryRunPlugins(cmd.Context(), cfg)

	rows := make(pluginList, 0, len(report.Records))
	for _, rec := range report.Records {
		row := pluginRow{
			Name:     rec.Name,
			Source:   string(rec.Source),
			Path:     rec.Path,
			Status:   rec.Status.String(),
			Commands: rec.Commands,
		}
		if row.Commands == nil {
			row.Commands = []string{}
		}
		if rec.Err != nil {
			row.Error = rec.Err.Error()
		}
		rows = append(rows, row)
	}

	out := cmd.OutOrStdout()
	if err := output.NewPrinter(out, format, false).Print(rows); err != nil {
		return err
	}
	if format == output.FormatTable {
		_, _ = fmt.Fprintf(out, "\n%s\n", report.Summary())
	}

	if pluginsStrict && len(report.Failed) > 0 {
		return fmt.Errorf("%d plugin(s) failed to load: %s", len(report.Failed), strings.Join(report.Failed, ", "))
	}
	return nil
}

// dryRunPlugins loads every plugin into a throwaway host. Nothing is
// persisted and Shutdown is a no-op.
func dryRunPlugins(ctx context.Context, cfg *config.Config) plugin.LoadReport {
	if ctx == nil {
		ctx = context.Background()
	}

	host := plugin.NewHost(nil)
	defer func() { _ = host.Close() }()

	env := &plugin.Env{
		Bot:      &messaging.BotContext{Username: "dry_run"},
		Notices:  discardNotices{},
		OwnerIDs: cfg.Bot.OwnerIDs,
		Version:  Version,
		Shutdown: func(string) {},
	}
	return runtime.LoadPass(ctx, host, env, cfg.Plugins)
}

// discardNotices satisfies the restart plugin during a dry run.
type discardNotices struct{}

func (discardNotices) GetRestartNotice(context.Context) (*models.RestartNotice, error) {
	return nil, nil
}

func (discardNotices) SaveRestartNotice(context.Context, *models.RestartNotice) error { return nil }

func (discardNotices) DeleteRestartNotice(context.Context, int64) error { return nil }
