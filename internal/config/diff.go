package config

import (
	"strings"

	logx "notifcollector/pkg/logx"
)

// Change summarizes what differs between two configs.
//
// Live sections are re-applied without a restart; Restart sections only
// take effect on the next start.
type Change struct {
	Live    []string
	Restart []string
	Fields  []logx.Field
}

func (c Change) Empty() bool { return len(c.Live) == 0 && len(c.Restart) == 0 }

// Diff compares oldCfg and newCfg section by section.
func Diff(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change

	if oldCfg.Logging != newCfg.Logging {
		ch.Live = append(ch.Live, "logging")
		ch.Fields = append(ch.Fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Diagnostics != newCfg.Diagnostics {
		ch.Live = append(ch.Live, "diagnostics")
		ch.Fields = append(ch.Fields, logx.Int("diagnostics.rate_per_sec", newCfg.Diagnostics.RatePerSec))
	}
	if strings.TrimSpace(oldCfg.Stats.Schedule) != strings.TrimSpace(newCfg.Stats.Schedule) {
		ch.Live = append(ch.Live, "stats")
		ch.Fields = append(ch.Fields, logx.String("stats.schedule", newCfg.Stats.Schedule))
	}

	if oldCfg.Store != newCfg.Store {
		ch.Restart = append(ch.Restart, "store")
		ch.Fields = append(ch.Fields, logx.String("store.driver", newCfg.Store.Driver))
	}
	if oldCfg.Input != newCfg.Input {
		ch.Restart = append(ch.Restart, "input")
	}
	if oldCfg.Sinks != newCfg.Sinks {
		ch.Restart = append(ch.Restart, "sinks")
	}
	return ch
}
