// Package commands implements the thunder command line.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/thunder/cmd/thunder/commands/config"
	pkgconfig "github.com/marmos91/thunder/pkg/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "thunder",
	Short: "Thunder - Telegram bot service",
	Long: `Thunder runs a Telegram bot: it connects to the Bot API, loads the
command plugins, starts the background tasks and serves the webhook and
status endpoints until it is stopped.

Use "thunder [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. It is called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/thunder/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(config.Cmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if pkgconfig.DefaultConfigExists() {
		return pkgconfig.GetDefaultConfigPath()
	}
	return "defaults"
}
