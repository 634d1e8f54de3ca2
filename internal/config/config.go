// Package config holds the handful of process-wide values every other
// component needs injected once at startup: the home directory root and
// the session-wide defaults that are not already fixed by the spec
// (permission mode, max subagent depth, heartbeat interval, history
// retention). It deliberately does not grow into the teacher's
// multi-section gateway config — Aleph's data model is the filesystem
// layout under ALEPH_HOME, not a config file of its own.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kaselby/aleph/internal/permission"
	"github.com/kaselby/aleph/internal/registry"
)

// DefaultHeartbeatInterval matches registry's own documented expectation
// (a live agent touches its own record every 30s).
const DefaultHeartbeatInterval = 30 * time.Second

// DefaultHistoryRetention is the number of broadcasts channels.Registry
// retains per channel for late-joiner catch-up (spec §3, resolved in
// DESIGN.md).
const DefaultHistoryRetention = 500

// Config is the injected configuration value threaded through every
// component at startup (spec §9's "explicit configuration value" design
// note). Mutable fields are guarded by mu so a live reload (e.g. future
// SIGHUP handling) cannot race a reader, mirroring the teacher's own
// config.Config RWMutex-guarded struct.
type Config struct {
	mu sync.RWMutex

	// Home is $ALEPH_HOME, defaulting to ~/.aleph.
	Home string `json:"home"`

	// DefaultMode is the permission mode new agents launch with unless
	// --mode overrides it.
	DefaultMode permission.Mode `json:"default_mode"`

	// MaxDepth bounds subagent nesting (spec §4.8).
	MaxDepth int `json:"max_depth"`

	// HeartbeatInterval is how often a live agent touches its registry
	// record.
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`

	// HistoryRetention records the history.jsonl bound. channels.Registry
	// does not read it; it enforces its own fixed bound of 500.
	HistoryRetention int `json:"history_retention"`

	// TracingEndpoint is the OTLP/HTTP collector endpoint; empty disables
	// tracing export.
	TracingEndpoint string `json:"tracing_endpoint,omitempty"`

	// ReminderCron is the standard 5-field cron expression the periodic
	// reminder hook (spec §1 item 2) evaluates on every Stop event; empty
	// disables the reminder entirely.
	ReminderCron string `json:"reminder_cron,omitempty"`

	// ReminderText is the additional_context injected when ReminderCron
	// is due.
	ReminderText string `json:"reminder_text,omitempty"`
}

// Default returns a Config rooted at the resolved ALEPH_HOME with the
// spec's documented defaults.
func Default() *Config {
	return &Config{
		Home:              ResolveHome(),
		DefaultMode:       permission.Default,
		MaxDepth:          registry.DefaultMaxDepth,
		HeartbeatInterval: DefaultHeartbeatInterval,
		HistoryRetention:  DefaultHistoryRetention,
		ReminderCron:      DefaultReminderCron,
		ReminderText:      DefaultReminderText,
	}
}

// DefaultReminderCron fires the periodic reminder every 30 minutes, on the
// hour and half hour.
const DefaultReminderCron = "0,30 * * * *"

// DefaultReminderText is the stock nudge injected when the reminder is due:
// a prompt to checkpoint progress, not a specific task instruction.
const DefaultReminderText = "Reminder: if you've made progress worth preserving, write it to memory/context.md or leave a handoff before your context fills up."

// ResolveHome returns $ALEPH_HOME if set, otherwise ~/.aleph.
func ResolveHome() string {
	if v := os.Getenv("ALEPH_HOME"); v != "" {
		return v
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".aleph"
	}
	return filepath.Join(homeDir, ".aleph")
}

// Load reads a JSON config file at path if present, overlaying it onto
// Default(). A missing file is not an error — Default() alone is a
// complete, valid configuration.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var overlay Config
	if err := json.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()
	if overlay.Home != "" {
		cfg.Home = overlay.Home
	}
	if overlay.DefaultMode != "" {
		cfg.DefaultMode = overlay.DefaultMode
	}
	if overlay.MaxDepth != 0 {
		cfg.MaxDepth = overlay.MaxDepth
	}
	if overlay.HeartbeatInterval != 0 {
		cfg.HeartbeatInterval = overlay.HeartbeatInterval
	}
	if overlay.HistoryRetention != 0 {
		cfg.HistoryRetention = overlay.HistoryRetention
	}
	if overlay.TracingEndpoint != "" {
		cfg.TracingEndpoint = overlay.TracingEndpoint
	}
	if overlay.ReminderCron != "" {
		cfg.ReminderCron = overlay.ReminderCron
	}
	if overlay.ReminderText != "" {
		cfg.ReminderText = overlay.ReminderText
	}
	return cfg, nil
}

// Snapshot returns a copy of the current values, safe to read without
// holding the lock further.
func (c *Config) Snapshot() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Config{
		Home:              c.Home,
		DefaultMode:       c.DefaultMode,
		MaxDepth:          c.MaxDepth,
		HeartbeatInterval: c.HeartbeatInterval,
		HistoryRetention:  c.HistoryRetention,
		TracingEndpoint:   c.TracingEndpoint,
		ReminderCron:      c.ReminderCron,
		ReminderText:      c.ReminderText,
	}
}

// Inbox, Channels, Registry, Memory and Tasks return the well-known
// subdirectories under Home that §6's home directory layout names.
func (c *Config) Inbox() string      { return filepath.Join(c.Home, "inbox") }
func (c *Config) Channels() string   { return filepath.Join(c.Home, "channels") }
func (c *Config) Registry() string   { return filepath.Join(c.Home, "registry") }
func (c *Config) Memory() string     { return filepath.Join(c.Home, "memory") }
func (c *Config) Tools() string      { return filepath.Join(c.Home, "tools") }
func (c *Config) Scratch() string    { return filepath.Join(c.Home, "scratch") }
func (c *Config) Quarantine() string { return filepath.Join(c.Home, "quarantine") }
func (c *Config) Logs() string       { return filepath.Join(c.Home, "logs") }

// SystemPromptPath is ALEPH.md, the system-prompt body with the
// {{TOOL_DESCRIPTIONS}} marker (spec §6).
func (c *Config) SystemPromptPath() string {
	return filepath.Join(c.Home, "ALEPH.md")
}
