package config

// Config is the collector's file configuration (JSON or YAML).
//
// Example (YAML):
//
//	logging: { level: info, console: true }
//	store:   { driver: sqlite, path: ./data/inbox.db, busy_timeout: 2s }
//	input:   { stdin: true, spool_dir: ./spool }
//	sinks:   { stdout: true, channel: { enabled: true, buffer: 128 } }
//	stats:   { schedule: "@every 5m" }
type Config struct {
	Logging     LoggingConfig     `json:"logging"`
	Store       StoreConfig       `json:"store"`
	Input       InputConfig       `json:"input"`
	Sinks       SinksConfig       `json:"sinks"`
	Diagnostics DiagnosticsConfig `json:"diagnostics,omitempty"`
	Stats       StatsConfig       `json:"stats,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	JSON    bool        `json:"json,omitempty"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StoreConfig selects the device message store used to recover full SMS bodies.
//
// Driver values: "none" (or empty), "sqlite", "file".
type StoreConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// InputConfig controls where raw notification events come from.
type InputConfig struct {
	// Stdin reads JSON Lines events from standard input.
	Stdin bool `json:"stdin"`
	// SpoolDir is watched for *.json event files. Empty disables it.
	SpoolDir string `json:"spool_dir,omitempty"`
}

type SinksConfig struct {
	// Stdout writes each record as a JSON line to standard output.
	Stdout  bool          `json:"stdout"`
	Log     bool          `json:"log,omitempty"`
	Channel ChannelConfig `json:"channel,omitempty"`
}

type ChannelConfig struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name,omitempty"`
	Buffer  int    `json:"buffer,omitempty"`
}

// DiagnosticsConfig bounds per-event warning output.
// RatePerSec <= 0 means the default (5/s).
type DiagnosticsConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// StatsConfig controls periodic pipeline stats logging.
// Schedule is a cron expression ("*/5 * * * *") or descriptor ("@every 5m").
type StatsConfig struct {
	Schedule string `json:"schedule,omitempty"`
}
