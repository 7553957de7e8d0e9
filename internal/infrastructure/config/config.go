package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Threshold policies accepted by monitor.threshold_policy.
const (
	PolicyGreater        = "greater"
	PolicyGreaterOrEqual = "greater_or_equal"
)

// SMTP TLS policies accepted by smtp.tls_policy.
const (
	TLSOpportunistic = "opportunistic"
	TLSMandatory     = "mandatory"
	TLSNone          = "none"
)

// Config is the root configuration structure for the watchdog.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	PM2      PM2Config      `yaml:"pm2"`
	Email    EmailConfig    `yaml:"email"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MonitorConfig contains the polling and threshold settings.
type MonitorConfig struct {
	// MaxRestarts is the restart count a process may reach before it is flagged.
	MaxRestarts int `yaml:"max_restarts"`

	// CheckIntervalMinutes is the time between two check cycles.
	CheckIntervalMinutes int `yaml:"check_interval_minutes"`

	// ThresholdPolicy selects the comparison: "greater" (default) flags
	// counts above MaxRestarts, "greater_or_equal" also flags a count equal to it.
	ThresholdPolicy string `yaml:"threshold_policy"`

	// Processes are the pm2 process names to watch, in check order.
	Processes []string `yaml:"processes"`
}

// PM2Config contains settings for querying the pm2 daemon.
type PM2Config struct {
	Binary         string `yaml:"binary"`
	Home           string `yaml:"home"`
	CommandTimeout int    `yaml:"command_timeout"`
}

// EmailConfig contains sender, recipients and optional message templates.
type EmailConfig struct {
	From            string   `yaml:"from"`
	Password        string   `yaml:"password"`
	To              []string `yaml:"to"`
	SubjectTemplate string   `yaml:"subject_template"`
	BodyTemplate    string   `yaml:"body_template"`
}

// SMTPConfig contains mail server connection settings.
type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	TLSPolicy string `yaml:"tls_policy"`
	Timeout   int    `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the status HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// Path receives every record, ErrorPath only error-level records.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	ErrorPath  string `yaml:"error_path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WATCHDOG_SECTION_KEY
// For example: WATCHDOG_EMAIL_PASSWORD, WATCHDOG_SMTP_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// The monitored process list, threshold and interval have no defaults:
// a file that omits them fails validation.
func defaultConfig() *Config {
	return &Config{
		Monitor: MonitorConfig{
			ThresholdPolicy: PolicyGreater,
		},
		PM2: PM2Config{
			Binary:         "pm2",
			CommandTimeout: 15,
		},
		SMTP: SMTPConfig{
			Port:      587,
			TLSPolicy: TLSOpportunistic,
			Timeout:   15,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pm2-watchdog",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "watchdog",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 9615,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     30,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: WATCHDOG_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Email
	if v := os.Getenv("WATCHDOG_EMAIL_PASSWORD"); v != "" {
		cfg.Email.Password = v
	}

	// SMTP
	if v := os.Getenv("WATCHDOG_SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}

	// MQTT
	if v := os.Getenv("WATCHDOG_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WATCHDOG_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WATCHDOG_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("WATCHDOG_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("WATCHDOG_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Every problem is collected so an operator can fix the file in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Monitor validation
	if c.Monitor.MaxRestarts <= 0 {
		errs = append(errs, "monitor.max_restarts must be a positive integer")
	}
	if c.Monitor.CheckIntervalMinutes <= 0 {
		errs = append(errs, "monitor.check_interval_minutes must be a positive integer")
	}
	switch c.Monitor.ThresholdPolicy {
	case PolicyGreater, PolicyGreaterOrEqual:
	default:
		errs = append(errs, fmt.Sprintf("monitor.threshold_policy %q is not one of %q, %q",
			c.Monitor.ThresholdPolicy, PolicyGreater, PolicyGreaterOrEqual))
	}
	errs = append(errs, validateProcesses(c.Monitor.Processes)...)

	// PM2 validation
	if c.PM2.Binary == "" {
		errs = append(errs, "pm2.binary is required")
	}
	if c.PM2.CommandTimeout <= 0 {
		errs = append(errs, "pm2.command_timeout must be a positive integer")
	}

	// Email validation
	if c.Email.From == "" {
		errs = append(errs, "email.from is required")
	}
	if len(c.Email.To) == 0 {
		errs = append(errs, "email.to requires at least one recipient")
	}
	for i, to := range c.Email.To {
		if strings.TrimSpace(to) == "" {
			errs = append(errs, fmt.Sprintf("email.to[%d] is empty", i))
		}
	}

	// SMTP validation
	if c.SMTP.Host == "" {
		errs = append(errs, "smtp.host is required (or set WATCHDOG_SMTP_HOST)")
	}
	if c.SMTP.Port < 1 || c.SMTP.Port > 65535 {
		errs = append(errs, "smtp.port must be between 1 and 65535")
	}
	switch c.SMTP.TLSPolicy {
	case TLSOpportunistic, TLSMandatory, TLSNone:
	default:
		errs = append(errs, fmt.Sprintf("smtp.tls_policy %q is not one of %q, %q, %q",
			c.SMTP.TLSPolicy, TLSOpportunistic, TLSMandatory, TLSNone))
	}

	// MQTT validation (only when enabled)
	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	// InfluxDB validation (only when enabled)
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// API validation (only when enabled)
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validateProcesses checks the monitored process list is non-empty, has no
// blank names and no duplicates.
func validateProcesses(names []string) []string {
	if len(names) == 0 {
		return []string{"monitor.processes requires at least one process name"}
	}

	var errs []string
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Sprintf("monitor.processes[%d] is empty", i))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Sprintf("monitor.processes contains %q more than once", name))
		}
		seen[name] = true
	}
	return errs
}

// CheckInterval returns the time between check cycles as a Duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Monitor.CheckIntervalMinutes) * time.Minute
}

// CommandTimeout returns the per-call pm2 timeout as a Duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.PM2.CommandTimeout) * time.Second
}

// SMTPTimeout returns the SMTP dial and send timeout as a Duration.
func (c *Config) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTP.Timeout) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
