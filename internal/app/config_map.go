package app

import (
	"strings"
	"time"

	"notifcollector/internal/config"
	"notifcollector/internal/messagestore"
	logx "notifcollector/pkg/logx"
)

// mapStoreConfig turns the store section into a messagestore.Config.
// enabled is false when no driver is configured.
func mapStoreConfig(cfg *config.Config) (messagestore.Config, bool, error) {
	if cfg == nil {
		return messagestore.Config{}, false, nil
	}
	sc := cfg.Store
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return messagestore.Config{}, false, nil
	}
	busy, err := config.ParseDurationField("store.busy_timeout", sc.BusyTimeout)
	if err != nil {
		return messagestore.Config{}, false, err
	}
	if busy <= 0 && driver != "file" {
		busy = time.Second
	}
	return messagestore.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), BusyTimeout: busy}, true, nil
}

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := cfg.Logging
	return logx.Config{
		Level:   lc.Level,
		Console: lc.Console,
		JSON:    lc.JSON,
		File:    logx.FileConfig{Enabled: lc.File.Enabled, Path: lc.File.Path},
	}
}

const defaultDiagRate = 5

func diagRate(cfg *config.Config) int {
	if cfg == nil || cfg.Diagnostics.RatePerSec <= 0 {
		return defaultDiagRate
	}
	return cfg.Diagnostics.RatePerSec
}
