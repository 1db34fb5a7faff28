package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/thunder/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample Thunder configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/thunder/config.yaml.
Use --config to specify a custom path. A random webhook secret is generated.

Examples:
  # Initialize with default location
  thunder config init

  # Initialize with custom path
  thunder config init --config /etc/thunder/config.yaml

  # Force overwrite existing config
  thunder config init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	configPath := configFile
	var err error
	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
	} else {
		configPath, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Set bot.token (or export THUNDER_BOT_TOKEN)")
	_, _ = fmt.Fprintln(out, "  2. Set server.public_url so the Bot API can reach the webhook")
	_, _ = fmt.Fprintf(out, "  3. Start the bot with: thunder start --config %s\n", configPath)
	return nil
}
