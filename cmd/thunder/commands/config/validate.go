package config

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/marmos91/thunder/internal/cli/output"
	"github.com/marmos91/thunder/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the Thunder configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  thunder config validate

  # Validate specific config file
  thunder config validate --config /etc/thunder/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	printer := output.NewPrinter(out, output.FormatTable, false)

	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	printer.Success("Validation: OK")

	if warnings := configWarnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			printer.Warning("  - " + w)
		}
	}

	_, _ = fmt.Fprintln(out, "\nConfiguration summary:")
	return output.SimpleTable(out, [][2]string{
		{"Database type", string(cfg.Database.Type)},
		{"Listen address", cfg.Server.Addr()},
		{"Public URL", orNone(cfg.Server.PublicURL)},
		{"Plugins", cfg.Plugins.Pattern},
		{"Owners", strconv.Itoa(len(cfg.Bot.OwnerIDs))},
		{"Log level", cfg.Logging.Level},
	})
}

// configWarnings reports settings that validate but will not work well.
func configWarnings(cfg *config.Config) []string {
	var warnings []string
	if cfg.Bot.Token == "" {
		warnings = append(warnings, "bot token not configured - thunder start will refuse to run")
	}
	if cfg.Server.PublicURL == "" {
		warnings = append(warnings, "server.public_url not set - no webhook will be registered")
	}
	if len(cfg.Bot.OwnerIDs) == 0 {
		warnings = append(warnings, "no owner ids configured - /restart is unavailable to everyone")
	}
	if matches, err := filepath.Glob(cfg.Plugins.Pattern); err == nil && len(matches) == 0 {
		warnings = append(warnings, fmt.Sprintf("no plugin files match %q", cfg.Plugins.Pattern))
	}
	return warnings
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
