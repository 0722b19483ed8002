// Package config loads toolflow configuration from a JSON file with
// environment overrides and documented defaults.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultConfigFile is the config filename looked up in the working directory.
const DefaultConfigFile = "toolflow.config.json"

// ToolConfig holds per-call resilience settings applied to every tool.
type ToolConfig struct {
	Endpoint                string  `json:"endpoint"`                  // JSON-RPC endpoint URL
	TimeoutSecs             int     `json:"timeout_secs"`              // Per-call timeout
	MaxRetries              int     `json:"max_retries"`               // Retries after the initial attempt
	RetryBaseDelayMS        int     `json:"retry_base_delay_ms"`       // First backoff delay
	RetryMaxDelayMS         int     `json:"retry_max_delay_ms"`        // Backoff cap
	RetryBackoffFactor      float64 `json:"retry_backoff_factor"`      // Exponential multiplier
	RetryJitter             bool    `json:"retry_jitter"`              // Randomize delays
	BreakerFailureThreshold int     `json:"breaker_failure_threshold"` // Consecutive failures before opening
	BreakerReopenDelaySecs  int     `json:"breaker_reopen_delay_secs"` // Cooldown before the probe
}

// OrchestratorConfig controls workflow execution.
type OrchestratorConfig struct {
	Concurrency int `json:"concurrency"`  // Entities processed per chunk
	EventBuffer int `json:"event_buffer"` // Event channel capacity
}

// ServerConfig controls the dashboard HTTP server.
type ServerConfig struct {
	Addr    string `json:"addr"`
	Enabled bool   `json:"enabled"`
}

// EventLogConfig controls the JSONL event log.
type EventLogConfig struct {
	Dir string `json:"dir"`
}

// PersistenceConfig controls the run-history database.
type PersistenceConfig struct {
	Path string `json:"path"`
}

// Config is the root configuration.
type Config struct {
	Tool         ToolConfig         `json:"tool"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Server       ServerConfig       `json:"server"`
	EventLog     EventLogConfig     `json:"event_log"`
	Persistence  PersistenceConfig  `json:"persistence"`
}

// Default returns the configuration with all documented defaults applied.
func Default() *Config {
	return &Config{
		Tool: ToolConfig{
			TimeoutSecs:             15,
			MaxRetries:              3,
			RetryBaseDelayMS:        500,
			RetryMaxDelayMS:         10000,
			RetryBackoffFactor:      2.0,
			BreakerFailureThreshold: 5,
			BreakerReopenDelaySecs:  30,
		},
		Orchestrator: OrchestratorConfig{
			Concurrency: 2,
			EventBuffer: 64,
		},
		Server: ServerConfig{
			Addr: ":8620",
		},
		EventLog: EventLogConfig{
			Dir: "logs",
		},
		Persistence: PersistenceConfig{
			Path: "toolflow.db",
		},
	}
}

// Load reads configuration from path, falling back to defaults for a
// missing file, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TOOLFLOW_ENDPOINT"); v != "" {
		c.Tool.Endpoint = v
	}
	if v := os.Getenv("TOOLFLOW_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TOOLFLOW_DB"); v != "" {
		c.Persistence.Path = v
	}
}

// Validate checks for values that cannot be dialed at runtime.
func (c *Config) Validate() error {
	if c.Tool.TimeoutSecs <= 0 {
		return fmt.Errorf("tool.timeout_secs must be positive, got %d", c.Tool.TimeoutSecs)
	}
	if c.Tool.MaxRetries < 0 {
		return fmt.Errorf("tool.max_retries must not be negative, got %d", c.Tool.MaxRetries)
	}
	if c.Tool.RetryBaseDelayMS <= 0 {
		return fmt.Errorf("tool.retry_base_delay_ms must be positive, got %d", c.Tool.RetryBaseDelayMS)
	}
	if c.Tool.RetryMaxDelayMS < c.Tool.RetryBaseDelayMS {
		return fmt.Errorf("tool.retry_max_delay_ms (%d) must not be below retry_base_delay_ms (%d)",
			c.Tool.RetryMaxDelayMS, c.Tool.RetryBaseDelayMS)
	}
	if c.Tool.RetryBackoffFactor < 1 {
		return fmt.Errorf("tool.retry_backoff_factor must be at least 1, got %g", c.Tool.RetryBackoffFactor)
	}
	if c.Tool.BreakerFailureThreshold <= 0 {
		return fmt.Errorf("tool.breaker_failure_threshold must be positive, got %d", c.Tool.BreakerFailureThreshold)
	}
	if c.Tool.BreakerReopenDelaySecs <= 0 {
		return fmt.Errorf("tool.breaker_reopen_delay_secs must be positive, got %d", c.Tool.BreakerReopenDelaySecs)
	}
	if c.Orchestrator.Concurrency <= 0 {
		return fmt.Errorf("orchestrator.concurrency must be positive, got %d", c.Orchestrator.Concurrency)
	}
	if c.Orchestrator.EventBuffer <= 0 {
		return fmt.Errorf("orchestrator.event_buffer must be positive, got %d", c.Orchestrator.EventBuffer)
	}
	return nil
}

// Timeout returns the per-call timeout as a duration.
func (c *ToolConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RetryBaseDelay returns the first backoff delay as a duration.
func (c *ToolConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap as a duration.
func (c *ToolConfig) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMS) * time.Millisecond
}

// BreakerReopenDelay returns the breaker cooldown as a duration.
func (c *ToolConfig) BreakerReopenDelay() time.Duration {
	return time.Duration(c.BreakerReopenDelaySecs) * time.Second
}
