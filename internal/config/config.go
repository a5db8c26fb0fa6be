package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pondwatch/internal/notify"
)

// Config holds runtime configuration for the service.
type Config struct {
	LogLevel string `yaml:"log_level"`

	HTTP       HTTPConfig       `yaml:"http"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	SMS        SMSConfig        `yaml:"sms"`
	Postgres   PostgresConfig   `yaml:"postgres"`
	Thresholds ThresholdsConfig `yaml:"thresholds"`
}

// HTTPConfig configures the API server
type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	MaxBodySize  int64         `yaml:"max_body_size"`

	// AllowedOrigins lists dashboard origins granted CORS access
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// KafkaConfig configures the readings consumer and the alerts producer.
// An empty broker list disables Kafka; an empty alerts topic disables publishing.
type KafkaConfig struct {
	Brokers       []string       `yaml:"brokers"`
	ReadingsTopic string         `yaml:"readings_topic"`
	GroupID       string         `yaml:"group_id"`
	AlertsTopic   string         `yaml:"alerts_topic"`
	Producer      ProducerConfig `yaml:"producer"`
}

// ProducerConfig tunes the Kafka writer pool
type ProducerConfig struct {
	PoolSize     int           `yaml:"pool_size"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	RequiredAcks int           `yaml:"required_acks"`
	Compression  string        `yaml:"compression"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// AlertsConfig configures evaluation. Workers is at least one per sensor kind.
type AlertsConfig struct {
	Cooldown    time.Duration `yaml:"cooldown"`
	Workers     int           `yaml:"workers"`
	QueueSize   int           `yaml:"queue_size"`
	SendTimeout time.Duration `yaml:"send_timeout"`
}

// SMSConfig configures the Twilio gateway. Without credentials alerts are only logged.
type SMSConfig struct {
	AccountSID string             `yaml:"account_sid"`
	AuthToken  string             `yaml:"auth_token"`
	From       string             `yaml:"from"`
	To         string             `yaml:"to"`
	Retry      notify.RetryPolicy `yaml:"retry"`
}

// PostgresConfig configures the alert log. An empty DSN disables it.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// ThresholdsConfig points at an optional calibration file merged over the defaults
type ThresholdsConfig struct {
	File string `yaml:"file"`
}

// Enabled reports whether SMS credentials are configured
func (c SMSConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxBodySize:  1 << 20,
			AllowedOrigins: []string{
				"http://localhost:5173",
				"http://localhost:3000",
			},
		},
		Kafka: KafkaConfig{
			ReadingsTopic: "pond.readings",
			GroupID:       "pondwatch",
			Producer: ProducerConfig{
				PoolSize:     2,
				BatchSize:    1,
				BatchTimeout: 10 * time.Millisecond,
				WriteTimeout: 10 * time.Second,
				RequiredAcks: -1,
				Compression:  "snappy",
				MaxRetries:   3,
				RetryBackoff: 100 * time.Millisecond,
			},
		},
		Alerts: AlertsConfig{
			Cooldown:    30 * time.Minute,
			Workers:     5,
			QueueSize:   256,
			SendTimeout: 30 * time.Second,
		},
		SMS: SMSConfig{
			Retry: notify.DefaultRetryPolicy(),
		},
	}
}

// Load reads a YAML file over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv adds variables from .env files to the environment. Missing files
// are skipped and variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from environment variables
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PONDWATCH_LOG_LEVEL", &c.LogLevel)
	str("PONDWATCH_HTTP_ADDR", &c.HTTP.Addr)
	if v, ok := lookup("PONDWATCH_KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	if v, ok := lookup("PONDWATCH_ALLOWED_ORIGINS"); ok {
		c.HTTP.AllowedOrigins = splitList(v)
	}
	str("PONDWATCH_KAFKA_READINGS_TOPIC", &c.Kafka.ReadingsTopic)
	str("PONDWATCH_KAFKA_GROUP_ID", &c.Kafka.GroupID)
	str("PONDWATCH_KAFKA_ALERTS_TOPIC", &c.Kafka.AlertsTopic)
	str("PONDWATCH_POSTGRES_DSN", &c.Postgres.DSN)
	str("PONDWATCH_THRESHOLDS_FILE", &c.Thresholds.File)
	str("TWILIO_ACCOUNT_SID", &c.SMS.AccountSID)
	str("TWILIO_AUTH_TOKEN", &c.SMS.AuthToken)
	str("TWILIO_FROM", &c.SMS.From)
	str("TWILIO_TO", &c.SMS.To)

	for _, err := range []error{
		dur("PONDWATCH_ALERT_COOLDOWN", &c.Alerts.Cooldown),
		dur("PONDWATCH_SEND_TIMEOUT", &c.Alerts.SendTimeout),
		num("PONDWATCH_WORKERS", &c.Alerts.Workers),
		num("PONDWATCH_QUEUE_SIZE", &c.Alerts.QueueSize),
		num("PONDWATCH_SMS_MAX_ATTEMPTS", &c.SMS.Retry.MaxAttempts),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validation errors
var (
	ErrNegativeCooldown   = errors.New("alerts.cooldown cannot be negative")
	ErrMissingReadings    = errors.New("kafka.readings_topic is required when brokers are set")
	ErrMissingSMSRouting  = errors.New("sms.from and sms.to are required when twilio credentials are set")
	ErrPartialCredentials = errors.New("sms.account_sid and sms.auth_token must be set together")
	ErrMissingHTTPAddr    = errors.New("http.addr is required")
)

// Validate rejects incoherent settings
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return ErrMissingHTTPAddr
	}
	if c.Alerts.Cooldown < 0 {
		return ErrNegativeCooldown
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.ReadingsTopic == "" {
		return ErrMissingReadings
	}
	if (c.SMS.AccountSID == "") != (c.SMS.AuthToken == "") {
		return ErrPartialCredentials
	}
	if c.SMS.Enabled() && (c.SMS.From == "" || c.SMS.To == "") {
		return ErrMissingSMSRouting
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
