package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"github.com/marmos91/postmaster/internal/telemetry"
	"github.com/marmos91/postmaster/pkg/auth/password"
)

// newValidator returns a validator with the postmaster-specific tags
// registered.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("password_scheme", func(fl validator.FieldLevel) bool {
		return password.Scheme(strings.ToLower(fl.Field().String())).IsValid()
	})
	_ = v.RegisterValidation("profile_type", func(fl validator.FieldLevel) bool {
		return telemetry.IsProfileType(fl.Field().String())
	})
	return v
}

// Validate checks the configuration struct tags and the cross-field rules
// the tags cannot express.
func Validate(cfg *Config) error {
	if err := newValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if cfg.Audit.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Audit.Schedule); err != nil {
			return fmt.Errorf("audit.schedule: invalid cron expression %q: %w", cfg.Audit.Schedule, err)
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == cfg.ControlPlane.Port {
		return fmt.Errorf("metrics.port and controlplane.port must differ (both %d)", cfg.Metrics.Port)
	}

	return nil
}
