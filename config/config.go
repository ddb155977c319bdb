// Package config provides configuration management for Claw Manager.
// It handles the manager's own settings and the gateway's config document.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/claw-manager/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// OpenClawPath is the working directory the gateway is launched from.
	OpenClawPath string `yaml:"openclaw_path"`
	// PnpmPath is the pnpm executable used to run the gateway.
	PnpmPath string `yaml:"pnpm_path"`
	// GatewayConfigPath points at the gateway's openclaw.json.
	GatewayConfigPath string `yaml:"gateway_config_path"`
	// Host is the address the gateway is probed on.
	Host string `yaml:"host"`
	// ShowNotifications enables desktop notifications for gateway events.
	ShowNotifications bool `yaml:"show_notifications"`
	// WatchConfig watches the gateway config document for changes.
	WatchConfig bool `yaml:"watch_config"`
	// AutoApplyConfig restarts the gateway when its endpoint changes on disk.
	AutoApplyConfig bool `yaml:"auto_apply_config"`
	// StopOnExit stops a gateway launched by this session when the tray quits.
	StopOnExit bool `yaml:"stop_on_exit"`
	// MetricsAddr enables a Prometheus endpoint when non-empty, e.g. "127.0.0.1:9464".
	MetricsAddr string `yaml:"metrics_addr"`
	// HistoryPath is the SQLite event history file. Empty uses the data dir.
	HistoryPath string `yaml:"history_path"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Timings overrides supervisor delays. Zero values keep the defaults.
	Timings Timings `yaml:"timings"`

	path string
}

// Timings holds supervisor delay overrides.
type Timings struct {
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	StartPollInterval time.Duration `yaml:"start_poll_interval"`
	StartPollAttempts int           `yaml:"start_poll_attempts"`
	StopSettle        time.Duration `yaml:"stop_settle"`
	RestartSettle     time.Duration `yaml:"restart_settle"`
}

// DefaultTimings returns the stock supervisor delays.
func DefaultTimings() Timings {
	return Timings{
		ProbeTimeout:      common.ProbeTimeout,
		StartPollInterval: common.StartPollInterval,
		StartPollAttempts: common.StartPollAttempts,
		StopSettle:        common.StopSettleDelay,
		RestartSettle:     common.RestartSettleDelay,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		OpenClawPath:      filepath.Join(homeDir, "openclaw"),
		PnpmPath:          "pnpm",
		GatewayConfigPath: common.DefaultGatewayConfigPath(),
		Host:              common.DefaultGatewayHost,
		ShowNotifications: true,
		WatchConfig:       true,
		AutoApplyConfig:   false,
		StopOnExit:        false,
		LogLevel:          "info",
		Timings:           DefaultTimings(),
	}
}

// Load loads the configuration from the default config file.
// If the file doesn't exist, it creates one with default values.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from path, writing defaults there if it is missing.
func LoadFrom(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.path = configPath
		if err := cfg.Save(); err != nil {
			return cfg, err
		}
		return cfg, nil
	}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("error opening configuration: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true) // Strict validation: reject unknown fields

	config := *DefaultConfig()
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("error parsing configuration: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	config.path = configPath

	return &config, nil
}

// validate verifies that configuration values are valid, falling back to
// defaults for empty or out-of-range values.
func (c *Config) validate() error {
	def := DefaultConfig()
	if c.PnpmPath == "" {
		c.PnpmPath = def.PnpmPath
	}
	if c.Host == "" {
		c.Host = def.Host
	}
	if c.GatewayConfigPath == "" {
		c.GatewayConfigPath = def.GatewayConfigPath
	}
	c.GatewayConfigPath = common.ExpandHome(c.GatewayConfigPath)
	c.OpenClawPath = common.ExpandHome(c.OpenClawPath)
	c.HistoryPath = common.ExpandHome(c.HistoryPath)

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}

	c.Timings = c.Timings.WithDefaults()
	return nil
}

// WithDefaults replaces zero or negative fields with the stock values.
func (t Timings) WithDefaults() Timings {
	def := DefaultTimings()
	if t.ProbeTimeout <= 0 {
		t.ProbeTimeout = def.ProbeTimeout
	}
	if t.StartPollInterval <= 0 {
		t.StartPollInterval = def.StartPollInterval
	}
	if t.StartPollAttempts <= 0 {
		t.StartPollAttempts = def.StartPollAttempts
	}
	if t.StopSettle <= 0 {
		t.StopSettle = def.StopSettle
	}
	if t.RestartSettle <= 0 {
		t.RestartSettle = def.RestartSettle
	}
	return t
}

// Save saves the configuration to the file it was loaded from.
func (c *Config) Save() error {
	configPath := c.path
	if configPath == "" {
		var err error
		if configPath, err = getConfigPath(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("error serializing configuration: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("error saving configuration: %w", err)
	}

	return nil
}

// Path returns the file backing this configuration.
func (c *Config) Path() string {
	return c.path
}

// ResolvedHistoryPath returns HistoryPath or the default under the data dir.
func (c *Config) ResolvedHistoryPath() (string, error) {
	if c.HistoryPath != "" {
		return c.HistoryPath, nil
	}
	dataDir, err := common.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, common.HistoryFileName), nil
}

func getConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", common.ConfigDirName, common.ConfigFileName), nil
}
