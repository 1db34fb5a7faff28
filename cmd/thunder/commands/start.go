package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/config"
	"github.com/marmos91/thunder/pkg/runtime"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/thunder/pkg/metrics/prometheus"
)

const banner = `
  _____ _                     _
 |_   _| |__  _   _ _ __   __| | ___ _ __
   | | | '_ \| | | | '_ \ / _' |/ _ \ '__|
   | | | | | | |_| | | | | (_| |  __/ |
   |_| |_| |_|\__,_|_| |_|\__,_|\___|_|
`

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bot",
	Long: `Start the bot in the foreground with the specified configuration.

The process connects to the Bot API, loads every plugin, starts the background
tasks and serves the webhook until it receives SIGINT or SIGTERM. A /restart
issued by an owner re-executes the same binary once the teardown completes.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/thunder/config.yaml.

Examples:
  # Start with the default config
  thunder start

  # Start with custom config file
  thunder start --config /etc/thunder/config.yaml

  # Start with environment variable overrides
  THUNDER_BOT_TOKEN=123:abc THUNDER_LOGGING_LEVEL=DEBUG thunder start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := runtime.InitLogger(cfg); err != nil {
		return err
	}

	if cfg.Bot.Token == "" {
		return errors.New("bot token is not configured: set bot.token or THUNDER_BOT_TOKEN")
	}

	restart, err := serveBot(cmd, cfg)
	if err != nil {
		return err
	}
	if restart {
		logger.Info("Restarting process")
		return restartProcess()
	}
	return nil
}

// serveBot runs one bot lifetime. Deferred cleanup runs before the caller
// replaces the process on restart.
func serveBot(cmd *cobra.Command, cfg *config.Config) (restart bool, err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, _ = fmt.Fprint(cmd.OutOrStdout(), banner)
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Thunder %s\n\n", Version)

	flush, err := runtime.InitObservability(ctx, cfg, Version)
	if err != nil {
		return false, err
	}
	defer flush(context.WithoutCancel(ctx))

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))

	rt, err := runtime.New(cfg, Version)
	if err != nil {
		return false, err
	}

	err = rt.Serve(ctx)
	switch {
	case errors.Is(err, runtime.ErrRestartRequested):
		return true, nil
	case err != nil:
		logger.Error("Unexpected error", logger.Err(err))
		return false, err
	case ctx.Err() != nil:
		logger.Info("Bot stopped by user")
	}
	return false, nil
}
