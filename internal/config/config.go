package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Transfer TransferConfig `mapstructure:"transfer"`
	Outbox   OutboxConfig   `mapstructure:"outbox"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	RateLimitRPS   int `mapstructure:"rate_limit_rps"`
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	MaxRetries   int    `mapstructure:"max_retries"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

// WebhookConfig authenticates the billing provider. TokenHash is a bcrypt
// hash of the shared webhook token; the plaintext never lives in config.
type WebhookConfig struct {
	TokenHash string `mapstructure:"token_hash"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// RewardsConfig is the role x tier reward table. Caps and values are cents.
type RewardsConfig struct {
	PerReferralCents     int64            `mapstructure:"per_referral_cents"`
	HomeownerCaps        map[string]int64 `mapstructure:"homeowner_caps"`
	ContractorCaps       map[string]int64 `mapstructure:"contractor_caps"`
	AgentCommissionCents int64            `mapstructure:"agent_commission_cents"`
	VestingMonths        int              `mapstructure:"vesting_months"`
}

type TransferConfig struct {
	ProviderURL    string        `mapstructure:"provider_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxFailures    int           `mapstructure:"max_failures"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Rewards.PerReferralCents == 0 {
		c.Rewards.PerReferralCents = 100
	}
	if c.Rewards.VestingMonths == 0 {
		c.Rewards.VestingMonths = 4
	}
	if c.Outbox.BatchSize == 0 {
		c.Outbox.BatchSize = 100
	}
	if c.Outbox.PollInterval == 0 {
		c.Outbox.PollInterval = 5 * time.Second
	}
	if c.Outbox.RetryAttempts == 0 {
		c.Outbox.RetryAttempts = 3
	}
	if c.Outbox.RetryDelay == 0 {
		c.Outbox.RetryDelay = 5 * time.Second
	}
	if c.Transfer.RequestTimeout == 0 {
		c.Transfer.RequestTimeout = 10 * time.Second
	}
}

// WorkerEnv carries deployment-environment overrides for the worker binary,
// which typically runs without a mounted config file.
type WorkerEnv struct {
	DatabaseURL  string        `envconfig:"DATABASE_URL"`
	RedisURL     string        `envconfig:"REDIS_URL"`
	TransferURL  string        `envconfig:"TRANSFER_PROVIDER_URL"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"100"`
}

func LoadWorkerEnv() (*WorkerEnv, error) {
	var env WorkerEnv
	if err := envconfig.Process("referral_worker", &env); err != nil {
		return nil, fmt.Errorf("failed to process worker env: %w", err)
	}
	return &env, nil
}

// Apply overlays non-empty env values onto the loaded config.
func (e *WorkerEnv) Apply(cfg *Config) error {
	if e.DatabaseURL != "" {
		db, err := ParseDatabaseURL(e.DatabaseURL)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_URL: %w", err)
		}
		cfg.Database = db
	}
	if e.RedisURL != "" {
		cfg.Redis.URL = e.RedisURL
	}
	if e.TransferURL != "" {
		cfg.Transfer.ProviderURL = e.TransferURL
	}
	if e.PollInterval > 0 {
		cfg.Outbox.PollInterval = e.PollInterval
	}
	if e.BatchSize > 0 {
		cfg.Outbox.BatchSize = e.BatchSize
	}
	return nil
}

// ParseDatabaseURL converts a postgres:// connection URL into the field form
// used by the rest of the config. sslmode defaults to require when the URL
// does not carry one.
func ParseDatabaseURL(raw string) (DatabaseConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return DatabaseConfig{}, err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return DatabaseConfig{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	db := DatabaseConfig{
		Host:    u.Hostname(),
		Port:    5432,
		Name:    strings.TrimPrefix(u.Path, "/"),
		SSLMode: "require",
	}
	if db.Host == "" {
		return DatabaseConfig{}, fmt.Errorf("missing host")
	}
	if db.Name == "" {
		return DatabaseConfig{}, fmt.Errorf("missing database name")
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return DatabaseConfig{}, fmt.Errorf("invalid port %q", p)
		}
		db.Port = port
	}
	if u.User != nil {
		db.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			db.Password = pw
		}
	}
	if mode := u.Query().Get("sslmode"); mode != "" {
		db.SSLMode = mode
	}
	return db, nil
}
