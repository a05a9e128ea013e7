// Package config provides configuration types and loading for agenthive.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Agents, Logs, Learning.
type Config struct {
	Paths    PathsConfig            `json:"paths"`
	Agents   map[string]AgentConfig `json:"agents"`
	Logs     LogsConfig             `json:"logs"`
	Learning LearningConfig         `json:"learning"`
}

// PathsConfig groups filesystem path settings.
type PathsConfig struct {
	// DataDir is the root of the coordination document tree
	// (messages, threads, plans, constraints, patterns, rules, insights, logs).
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
}

// AgentConfig describes one registered agent. Only registered agents can
// receive messages.
type AgentConfig struct {
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// LogsConfig groups audit-log retention settings.
type LogsConfig struct {
	// RetentionHours bounds how long append-only logs are kept before the
	// sweep removes them. Zero disables sweeping.
	RetentionHours int `json:"retentionHours" envconfig:"RETENTION_HOURS"`
}

// LearningConfig groups learning-engine thresholds.
type LearningConfig struct {
	// MinPatternFrequency is the observation count at which a failure
	// pattern yields an insight.
	MinPatternFrequency int `json:"minPatternFrequency" envconfig:"MIN_PATTERN_FREQUENCY"`
	// MinConfidenceThreshold gates which adaptation rules are applied.
	MinConfidenceThreshold float64 `json:"minConfidenceThreshold" envconfig:"MIN_CONFIDENCE_THRESHOLD"`
	// HistoryCapacity bounds the persisted learning-event history.
	HistoryCapacity int `json:"historyCapacity" envconfig:"HISTORY_CAPACITY"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Paths: PathsConfig{
			DataDir: filepath.Join(home, ".agenthive", "data"),
		},
		Agents: map[string]AgentConfig{},
		Logs: LogsConfig{
			RetentionHours: 168,
		},
		Learning: LearningConfig{
			MinPatternFrequency:    3,
			MinConfidenceThreshold: 0.7,
			HistoryCapacity:        1000,
		},
	}
}

// ConfigPath resolves the JSON config file location. AGENTHIVE_CONFIG
// wins; otherwise ~/.agenthive/config.json.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv("AGENTHIVE_CONFIG")); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".agenthive", "config.json"), nil
}

// Load builds the effective configuration: defaults, then the JSON config
// file if present, then AGENTHIVE_* environment overrides per group.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	// Load process env vars from ~/.config/agenthive/env (and fallbacks)
	// first. Existing process env vars are never overridden.
	loadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	envconfig.Process("AGENTHIVE_PATHS", &cfg.Paths)
	envconfig.Process("AGENTHIVE_LOGS", &cfg.Logs)
	envconfig.Process("AGENTHIVE_LEARNING", &cfg.Learning)

	return cfg, nil
}

// Save writes the configuration to the resolved config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create config dir: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// KnownAgents returns the registered agent names in sorted order.
func (c *Config) KnownAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnownAgent reports whether name is in the agent registry.
func (c *Config) IsKnownAgent(name string) bool {
	_, ok := c.Agents[name]
	return ok
}

func loadEnvFileCandidates() {
	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv("AGENTHIVE_ENV_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".config", "agenthive", "env"),
			filepath.Join(home, ".agenthive", ".env"),
		)
	}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		// godotenv.Load never overrides variables already in the process env.
		_ = godotenv.Load(p)
	}
}
