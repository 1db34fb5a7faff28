package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/thunder/internal/cli/output"
	"github.com/marmos91/thunder/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Display the effective Thunder configuration, after environment
overrides and defaults have been applied.

By default outputs YAML format. Use --output to change format.

Examples:
  # Show default config as YAML
  thunder config show

  # Show as JSON
  thunder config show --output json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	// Secrets are never echoed.
	shown := *cfg
	shown.Bot.Token = redact(shown.Bot.Token)
	shown.Server.WebhookSecret = redact(shown.Server.WebhookSecret)
	shown.Database.Postgres.Password = redact(shown.Database.Postgres.Password)

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(cmd.OutOrStdout(), &shown)
	default:
		return output.PrintYAML(cmd.OutOrStdout(), &shown)
	}
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
