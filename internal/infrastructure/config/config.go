package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// envPrefix starts every environment variable override.
const envPrefix = "MANAGEDMODEL_"

// Config is the service configuration: defaults, then YAML, then
// MANAGEDMODEL_* environment variables.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Compaction CompactionConfig `yaml:"compaction"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// DatabaseConfig locates the SQLite file and tunes the connection.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// QueueSize bounds the number of statements waiting for the worker.
	QueueSize int `yaml:"queue_size"`

	// Template is an optional file on disk copied into place when the
	// database does not exist yet. Empty means the embedded blank template.
	Template string `yaml:"template"`
}

// CompactionConfig controls VACUUM/ANALYZE maintenance.
type CompactionConfig struct {
	OnClose bool `yaml:"on_close"`

	// Schedule is a standard five-field cron expression. Empty disables
	// periodic compaction.
	Schedule string `yaml:"schedule"`
}

// MQTTConfig enables change publishing to a broker.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig addresses the broker. An empty ClientID is generated.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds optional broker credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig controls the read-only HTTP API.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig holds server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains change stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig enables statement metrics. FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects level, format and destination of log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// Output is "stdout", "stderr" or "file".
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig locates the log file when Output is "file".
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// Load layers the YAML file at path (skipped when path is "") and the
// environment over the defaults, then validates the result.
//
// Environment keys are MANAGEDMODEL_<SECTION>_<KEY>, for example
// MANAGEDMODEL_DATABASE_PATH or MANAGEDMODEL_API_PORT.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/managedmodel.db",
			WALMode:     true,
			BusyTimeout: 5,
			QueueSize:   64,
		},
		Compaction: CompactionConfig{
			OnClose: true,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "managedmodel",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "managedmodel",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides sets fields from non-empty environment variables.
// Malformed numbers and booleans are errors.
func applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"DATABASE_PATH":       &cfg.Database.Path,
		"COMPACTION_SCHEDULE": &cfg.Compaction.Schedule,
		"MQTT_HOST":           &cfg.MQTT.Broker.Host,
		"MQTT_USERNAME":       &cfg.MQTT.Auth.Username,
		"MQTT_PASSWORD":       &cfg.MQTT.Auth.Password,
		"API_HOST":            &cfg.API.Host,
		"INFLUXDB_URL":        &cfg.InfluxDB.URL,
		"INFLUXDB_TOKEN":      &cfg.InfluxDB.Token,
		"LOG_LEVEL":           &cfg.Logging.Level,
	}
	for key, dst := range strs {
		if v := os.Getenv(envPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"API_PORT":  &cfg.API.Port,
		"MQTT_PORT": &cfg.MQTT.Broker.Port,
	}
	for key, dst := range ints {
		if v := os.Getenv(envPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"DATABASE_WAL_MODE": &cfg.Database.WALMode,
		"MQTT_ENABLED":      &cfg.MQTT.Enabled,
		"INFLUXDB_ENABLED":  &cfg.InfluxDB.Enabled,
		"API_ENABLED":       &cfg.API.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(envPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = b
		}
	}

	return nil
}

// Validate reports every invalid setting in a single error.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout must not be negative")
	}
	if c.Database.QueueSize < 0 {
		errs = append(errs, "database.queue_size must not be negative")
	}

	if c.Compaction.Schedule != "" {
		if _, err := cron.ParseStandard(c.Compaction.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("compaction.schedule is invalid: %v", err))
		}
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1 or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url, influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	switch c.Logging.Output {
	case "stdout", "stderr", "":
	case "file":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required when logging.output is file")
		}
	default:
		errs = append(errs, fmt.Sprintf("logging.output %q is not one of stdout, stderr, file", c.Logging.Output))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
}

// ReadTimeout bounds reading a request, headers included.
func (t APITimeoutConfig) ReadTimeout() time.Duration {
	return seconds(t.Read)
}

// WriteTimeout bounds writing a response.
func (t APITimeoutConfig) WriteTimeout() time.Duration {
	return seconds(t.Write)
}

// IdleTimeout bounds keep-alive waits between requests.
func (t APITimeoutConfig) IdleTimeout() time.Duration {
	return seconds(t.Idle)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
