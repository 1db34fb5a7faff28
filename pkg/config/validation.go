package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/thunder/internal/telemetry"
)

var validate = validator.New()

// Validate checks struct tags and the cross-field rules tags cannot express.
// It does not modify cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return errors.New("telemetry: endpoint is required when tracing is enabled")
	}
	if cfg.Telemetry.Profiling.Enabled && cfg.Telemetry.Profiling.Endpoint == "" {
		return errors.New("telemetry.profiling: endpoint is required when profiling is enabled")
	}

	if _, err := telemetry.ParseProfileTypes(cfg.Telemetry.Profiling.ProfileTypes); err != nil {
		return fmt.Errorf("telemetry.profiling: %w", err)
	}

	if cfg.Server.PublicURL != "" && cfg.Server.WebhookSecret == "" {
		return errors.New("server: webhook_secret is required when public_url is set")
	}

	for _, id := range cfg.Bot.OwnerIDs {
		if id <= 0 {
			return fmt.Errorf("bot.owner_ids: invalid user id %d", id)
		}
	}

	return nil
}

// formatValidationError flattens validator errors into one line per field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed on the '%s' tag (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}
