// Package config loads the studio settings from an optional YAML file and
// the process environment. Environment values always win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env      string         `yaml:"env"`
	Database DatabaseConfig `yaml:"database"`
	Broker   BrokerConfig   `yaml:"broker"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Auth     AuthConfig     `yaml:"auth"`
	Sentry   SentryConfig   `yaml:"sentry"`
	Studio   StudioConfig   `yaml:"studio"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// DSN is the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

type BrokerConfig struct {
	Address     string `yaml:"address"`
	Concurrency int    `yaml:"concurrency"`
}

type StorageConfig struct {
	AccountID       string `yaml:"account_id"`
	AccessKeyID     string `yaml:"access_key_id"`
	AccessKeySecret string `yaml:"access_key_secret"`
	Bucket          string `yaml:"bucket"`
}

type AIConfig struct {
	APIKey        string `yaml:"api_key"`
	ClassifyModel string `yaml:"classify_model"`
	TryOnModel    string `yaml:"tryon_model"`
}

type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	GoogleClientID string `yaml:"google_client_id"`
	AppleTeamID    string `yaml:"apple_team_id"`
	AppleKeyID     string `yaml:"apple_key_id"`
	AppleClientID  string `yaml:"apple_client_id"`
}

// ApplePrivateKeyEnv holds the base64 encoded p8 key; it is never read from the file.
const ApplePrivateKeyEnv = "APPLE_SIGNIN_PKEY_BASE64"

type SentryConfig struct {
	DSN     string `yaml:"dsn"`
	Release string `yaml:"release"`
}

type StudioConfig struct {
	// CallDelay separates consecutive try-on generations.
	CallDelay string `yaml:"call_delay"`
	// ClassifyDelay separates consecutive classification calls.
	ClassifyDelay     string `yaml:"classify_delay"`
	MaxUploadBytes    int64  `yaml:"max_upload_bytes"`
	DailyAttemptLimit int32  `yaml:"daily_attempt_limit"`
	StaleAfter        string `yaml:"stale_after"`
}

type LoggingConfig struct {
	File string `yaml:"file"`
}

func Default() *Config {
	return &Config{
		Env: "local",
		Database: DatabaseConfig{
			Host: "localhost",
			Port: "5432",
		},
		Broker: BrokerConfig{
			Address:     "localhost:6379",
			Concurrency: 10,
		},
		AI: AIConfig{
			ClassifyModel: "gemini-2.5-flash",
			TryOnModel:    "gemini-2.5-flash-image",
		},
		Sentry: SentryConfig{
			Release: "stylestudio@1.0.0",
		},
		Studio: StudioConfig{
			CallDelay:         "0s",
			ClassifyDelay:     "4.5s",
			MaxUploadBytes:    5 << 20,
			DailyAttemptLimit: 30,
			StaleAfter:        "30m",
		},
	}
}

// Load reads path when it exists and then applies environment overrides.
// An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Env, "ENV")
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USERNAME")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Broker.Address, "ASYNC_BROKER_ADDRESS")
	setString(&c.Storage.AccountID, "R2_ACCOUNT_ID")
	setString(&c.Storage.AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&c.Storage.AccessKeySecret, "R2_ACCESS_KEY_SECRET")
	setString(&c.Storage.Bucket, "R2_BUCKET_NAME")
	setString(&c.AI.APIKey, "GOOGLE_API_KEY")
	setString(&c.AI.ClassifyModel, "STUDIO_CLASSIFY_MODEL")
	setString(&c.AI.TryOnModel, "STUDIO_TRYON_MODEL")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Auth.AppleTeamID, "APPLE_TEAM_ID")
	setString(&c.Auth.AppleKeyID, "APPLE_KEY_ID")
	setString(&c.Auth.AppleClientID, "APPLE_CLIENT_ID")
	setString(&c.Sentry.DSN, "SENTRY_DSN")
	setString(&c.Studio.CallDelay, "STUDIO_CALL_DELAY")
	setString(&c.Studio.ClassifyDelay, "STUDIO_CLASSIFY_DELAY")
	setString(&c.Studio.StaleAfter, "STUDIO_STALE_AFTER")
	setString(&c.Logging.File, "LOG_FILE")

	if value, ok := os.LookupEnv("STUDIO_MAX_UPLOAD_BYTES"); ok && value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("STUDIO_MAX_UPLOAD_BYTES: %w", err)
		}
		c.Studio.MaxUploadBytes = parsed
	}
	if value, ok := os.LookupEnv("STUDIO_DAILY_ATTEMPT_LIMIT"); ok && value != "" {
		parsed, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			return fmt.Errorf("STUDIO_DAILY_ATTEMPT_LIMIT: %w", err)
		}
		c.Studio.DailyAttemptLimit = int32(parsed)
	}
	if value, ok := os.LookupEnv("ASYNC_CONCURRENCY"); ok && value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("ASYNC_CONCURRENCY: %w", err)
		}
		c.Broker.Concurrency = parsed
	}
	return nil
}

// Validate checks the values that are parsed lazily.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"studio.call_delay":     c.Studio.CallDelay,
		"studio.classify_delay": c.Studio.ClassifyDelay,
		"studio.stale_after":    c.Studio.StaleAfter,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s %q: negative duration", name, value)
		}
	}
	if c.Studio.MaxUploadBytes <= 0 {
		return fmt.Errorf("invalid studio.max_upload_bytes %d", c.Studio.MaxUploadBytes)
	}
	return nil
}

func (s StudioConfig) CallDelayDuration() time.Duration {
	return mustDuration(s.CallDelay)
}

func (s StudioConfig) ClassifyDelayDuration() time.Duration {
	return mustDuration(s.ClassifyDelay)
}

func (s StudioConfig) StaleAfterDuration() time.Duration {
	return mustDuration(s.StaleAfter)
}

// mustDuration is only called on values Validate accepted.
func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

func setString(target *string, key string) {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		*target = value
	}
}
