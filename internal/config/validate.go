package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// CronParser is the schedule parser shared by validation and the app.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks cross-field constraints that decoding alone cannot.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error

	switch d := strings.ToLower(strings.TrimSpace(cfg.Store.Driver)); d {
	case "", "none":
	case "sqlite", "sqlite3", "file":
		if strings.TrimSpace(cfg.Store.Path) == "" {
			errs = append(errs, fmt.Errorf("store.path is required for driver %q", d))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown driver %q", cfg.Store.Driver))
	}
	if _, err := ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	if cfg.Sinks.Channel.Buffer < 0 {
		errs = append(errs, errors.New("sinks.channel.buffer must be >= 0"))
	}
	if cfg.Diagnostics.RatePerSec < 0 {
		errs = append(errs, errors.New("diagnostics.rate_per_sec must be >= 0"))
	}
	if s := strings.TrimSpace(cfg.Stats.Schedule); s != "" {
		if _, err := CronParser.Parse(s); err != nil {
			errs = append(errs, fmt.Errorf("stats.schedule: %w", err))
		}
	}
	return errors.Join(errs...)
}
