// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

// Package config loads TaskHub configuration.
//
// Sources are layered, later ones winning: built-in defaults, a YAML file,
// a .env file, TASKHUB_* environment variables, then explicitly set
// command-line flags. Nested keys use "." in YAML and flags and "__" in
// environment variable names, e.g. TASKHUB_AUTH__JWT_SECRET.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/taskhub/taskhub/internal/xdg"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TASKHUB_"

// CodeInvalid is the error code for unusable configuration.
const CodeInvalid = "CONFIG_INVALID"

// Config is the complete service configuration.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Control  ControlConfig  `koanf:"control"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Notify   NotifyConfig   `koanf:"notify"`
}

// LogConfig selects log output.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// HTTPConfig configures the JSON API listener.
type HTTPConfig struct {
	Addr           string        `koanf:"addr"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	ShutdownGrace  time.Duration `koanf:"shutdown_grace"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// ControlConfig configures the gRPC health listener. An empty Addr disables it.
type ControlConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxConns        int32         `koanf:"max_conns"`
	MinConns        int32         `koanf:"min_conns"`
	MaxConnLifetime time.Duration `koanf:"max_conn_lifetime"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// AuthConfig configures credentials and token handling.
type AuthConfig struct {
	JWTSecret           string        `koanf:"jwt_secret"`
	Issuer              string        `koanf:"issuer"`
	SessionTTL          time.Duration `koanf:"session_ttl"`
	ResetTokenTTL       time.Duration `koanf:"reset_token_ttl"`
	EmailVerification   bool          `koanf:"email_verification"`
	RequireVerification bool          `koanf:"require_verification"`
	VerifyURL           string        `koanf:"verify_url"`
	ResetURL            string        `koanf:"reset_url"`
	HashConcurrency     int           `koanf:"hash_concurrency"`
	PurgeInterval       time.Duration `koanf:"purge_interval"`
}

// Notifier drivers.
const (
	DriverLog   = "log"
	DriverSMTP  = "smtp"
	DriverKafka = "kafka"
)

// NotifyConfig selects and configures the notification transport.
type NotifyConfig struct {
	Driver   string        `koanf:"driver"`
	Attempts int           `koanf:"attempts"`
	Backoff  time.Duration `koanf:"backoff"`
	SMTP     SMTPConfig    `koanf:"smtp"`
	Kafka    KafkaConfig   `koanf:"kafka"`
}

// SMTPConfig configures direct mail delivery.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
}

// KafkaConfig configures event publishing for an external mail service.
type KafkaConfig struct {
	Brokers      []string      `koanf:"brokers"`
	Topic        string        `koanf:"topic"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	TLS          bool          `koanf:"tls"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// Defaults returns the built-in configuration as a flat key map.
func Defaults() map[string]any {
	return map[string]any{
		"log.level":                  "info",
		"log.format":                 "json",
		"http.addr":                  ":3001",
		"http.allowed_origins":       []string{"http://localhost:3000"},
		"http.read_timeout":          "15s",
		"http.write_timeout":         "30s",
		"http.shutdown_grace":        "10s",
		"metrics.addr":               "127.0.0.1:9100",
		"control.addr":               "127.0.0.1:9101",
		"database.max_conns":         10,
		"database.min_conns":         1,
		"database.max_conn_lifetime": "1h",
		"database.connect_attempts":  5,
		"database.connect_backoff":   "500ms",
		"database.auto_migrate":      false,
		"auth.issuer":                "taskhub",
		"auth.session_ttl":           "2h",
		"auth.reset_token_ttl":       "1h",
		"auth.email_verification":    true,
		"auth.require_verification":  false,
		"auth.verify_url":            "http://localhost:3000/verify-email",
		"auth.reset_url":             "http://localhost:3000/reset-password",
		"auth.hash_concurrency":      0,
		"auth.purge_interval":        "15m",
		"notify.driver":              DriverLog,
		"notify.attempts":            3,
		"notify.backoff":             "200ms",
		"notify.smtp.port":           587,
		"notify.smtp.from_name":      "TaskHub",
		"notify.kafka.topic":         "taskhub.emails",
		"notify.kafka.write_timeout": "10s",
	}
}

// legacyEnv maps unprefixed variable names still accepted for compatibility
// with existing deployments.
var legacyEnv = map[string]string{
	"DATABASE_URL": "database.url",
	"JWT_SECRET":   "auth.jwt_secret",
}

// listKeys are split on commas when they come from the environment.
var listKeys = map[string]bool{
	"http.allowed_origins": true,
	"notify.kafka.brokers": true,
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is a YAML file path. Empty means the XDG default, if present.
	ConfigFile string
	// EnvFile is a dotenv file. Empty means ".env", if present.
	EnvFile string
	// Flags, when set, overrides keys for flags the user explicitly set.
	// Flag names are config keys, e.g. "http.addr".
	Flags *pflag.FlagSet
}

// Load assembles configuration from all sources. It does not validate;
// commands call Validate or ValidateDatabase for the parts they use.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code(CodeInvalid).With("source", "defaults").Wrap(err)
	}

	if path, ok := configFile(opts.ConfigFile); ok {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code(CodeInvalid).With("source", path).Wrap(err)
		}
	} else if opts.ConfigFile != "" {
		return nil, oops.Code(CodeInvalid).With("source", opts.ConfigFile).Errorf("config file not found")
	}

	if err := loadDotEnv(opts.EnvFile); err != nil {
		return nil, err
	}

	if err := k.Load(env.ProviderWithValue("", ".", legacyValue), nil); err != nil {
		return nil, oops.Code(CodeInvalid).With("source", "legacy env").Wrap(err)
	}
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", prefixedValue), nil); err != nil {
		return nil, oops.Code(CodeInvalid).With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.Provider(opts.Flags, ".", k), nil); err != nil {
			return nil, oops.Code(CodeInvalid).With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code(CodeInvalid).With("source", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

func configFile(explicit string) (string, bool) {
	if explicit != "" {
		info, err := os.Stat(explicit)
		return explicit, err == nil && !info.IsDir()
	}
	return xdg.DefaultConfigFile()
}

// loadDotEnv exports variables from a dotenv file without overriding ones
// already set in the process environment. A missing default file is fine.
func loadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return oops.Code(CodeInvalid).With("source", path).Wrap(err)
}

func legacyValue(name, value string) (string, any) {
	key, ok := legacyEnv[name]
	if !ok {
		return "", nil
	}
	return key, value
}

// prefixedValue maps TASKHUB_AUTH__JWT_SECRET to auth.jwt_secret.
func prefixedValue(name, value string) (string, any) {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	key = strings.ReplaceAll(key, "__", ".")
	if listKeys[key] {
		return key, splitList(value)
	}
	return key, value
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
