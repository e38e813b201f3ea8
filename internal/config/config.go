// Package config provides YAML-based configuration loading for Setlist.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Setlist configuration, loaded from setlist.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	DB        DBConfig        `yaml:"db"`
	SMS       SMSConfig       `yaml:"sms"`
	OTP       OTPConfig       `yaml:"otp"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Client    ClientConfig    `yaml:"client"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DBConfig holds datastore connection settings. Driver is "sqlite" for
// local/dev and "mysql" for hosted deployments.
type DBConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"` // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// SMSConfig selects how verification codes are delivered. Provider is
// "none" (return the code inline for local verification), "slack" (post to
// a staging channel) or "command" (shell out to a local gateway).
type SMSConfig struct {
	Provider      string `yaml:"provider"`
	CountryPrefix string `yaml:"country_prefix"`
	SlackToken    string `yaml:"slack_token"`
	SlackChannel  string `yaml:"slack_channel"`
	// Command is a shell template with {{.To}} and {{.Body}} placeholders,
	// e.g. `gammu sendsms TEXT {{.To}} -text {{.Body}}`.
	Command string `yaml:"command"`
}

// OTPConfig holds verification-code settings.
type OTPConfig struct {
	CodeTTLSeconds int `yaml:"code_ttl_seconds"`
}

// CodeTTL returns the configured code lifetime.
func (c OTPConfig) CodeTTL() time.Duration {
	return time.Duration(c.CodeTTLSeconds) * time.Second
}

// AnalyticsConfig holds client batcher settings.
type AnalyticsConfig struct {
	BatchSize       int `yaml:"batch_size"`
	FlushIntervalMS int `yaml:"flush_interval_ms"`
}

// FlushInterval returns the configured idle flush interval.
func (c AnalyticsConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}

// ClientConfig holds settings for the local session store and its remote
// mirror.
type ClientConfig struct {
	StatePath string `yaml:"state_path"`
	APIBase   string `yaml:"api_base"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with all defaults applied, used when no config
// file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Path == "" {
		c.DB.Path = "setlist.db"
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" {
		c.DB.Database = "setlist"
	}
	if c.SMS.Provider == "" {
		c.SMS.Provider = "none"
	}
	if c.SMS.CountryPrefix == "" {
		c.SMS.CountryPrefix = "+972"
	}
	if c.OTP.CodeTTLSeconds == 0 {
		c.OTP.CodeTTLSeconds = 300
	}
	if c.Analytics.BatchSize == 0 {
		c.Analytics.BatchSize = 20
	}
	if c.Analytics.FlushIntervalMS == 0 {
		c.Analytics.FlushIntervalMS = 2000
	}
	if c.Client.StatePath == "" {
		c.Client.StatePath = "setlist-session.json"
	}
	if c.Client.APIBase == "" {
		c.Client.APIBase = fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not one of sqlite, mysql", c.DB.Driver))
	}
	switch c.SMS.Provider {
	case "none", "slack", "command":
	default:
		errs = append(errs, fmt.Sprintf("sms.provider %q is not one of none, slack, command", c.SMS.Provider))
	}
	if c.SMS.Provider == "slack" {
		if c.SMS.SlackToken == "" {
			errs = append(errs, "sms.slack_token is required for the slack provider")
		}
		if c.SMS.SlackChannel == "" {
			errs = append(errs, "sms.slack_channel is required for the slack provider")
		}
	}
	if c.SMS.Provider == "command" && c.SMS.Command == "" {
		errs = append(errs, "sms.command is required for the command provider")
	}
	if !strings.HasPrefix(c.SMS.CountryPrefix, "+") {
		errs = append(errs, "sms.country_prefix must start with +")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
