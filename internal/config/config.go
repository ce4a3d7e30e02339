// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Bot        BotConfig        `mapstructure:"bot"`
	Rewards    RewardsConfig    `mapstructure:"rewards"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
	Estimator  EstimatorConfig  `mapstructure:"estimator"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP API configuration.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	AllowOrigins    string        `mapstructure:"allow_origins"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// DatabaseConfig holds store configuration. Driver is "postgres" or "memory".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	TxRetries       int           `mapstructure:"tx_retries"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"`
}

// AdminConfig lists account ids that are created with the admin flag.
type AdminConfig struct {
	BootstrapIDs []string `mapstructure:"bootstrap_ids"`
}

// BotConfig holds the optional Telegram companion bot configuration.
// AllowedChats limits which group chats the bot answers in; private chats
// are always served. An empty list allows every chat.
type BotConfig struct {
	Token        string        `mapstructure:"token"`
	AllowedChats []int64       `mapstructure:"allowed_chats"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// RewardsConfig holds claim amounts and cooldowns.
type RewardsConfig struct {
	Timezone      string      `mapstructure:"timezone"`
	StartingBonus int64       `mapstructure:"starting_bonus"`
	ReferralBonus int64       `mapstructure:"referral_bonus"`
	Hourly        TimedReward `mapstructure:"hourly"`
	Faucet        TimedReward `mapstructure:"faucet"`
	DailySchedule []int64     `mapstructure:"daily_schedule"`
	Game          GameConfig  `mapstructure:"game"`
}

// TimedReward is a fixed-amount reward behind a fixed cooldown.
type TimedReward struct {
	Amount   int64         `mapstructure:"amount"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// GameConfig holds mini-game conversion settings.
type GameConfig struct {
	PointsPerCoin       int64 `mapstructure:"points_per_coin"`
	MaxPointsPerSession int64 `mapstructure:"max_points_per_session"`
}

// WalletConfig holds conversion limits. Rates and packages live in the store.
type WalletConfig struct {
	MinConvertCoins int64 `mapstructure:"min_convert_coins"`
}

// WithdrawalConfig holds withdrawal limits.
type WithdrawalConfig struct {
	MinCashPKR float64 `mapstructure:"min_cash_pkr"`
}

// EstimatorConfig holds the text-generation pricing estimator client settings.
type EstimatorConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// RateLimitConfig holds per-account API rate limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// e.g. AUTH_JWT_SECRET, DATABASE_HOST, BOT_TOKEN
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allow_origins", "*")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Keys need a default for AutomaticEnv to reach them on Unmarshal.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "coins")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "coins")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.tx_retries", 5)
	v.SetDefault("database.lock_timeout", "5s")

	v.SetDefault("rewards.timezone", "Asia/Karachi")
	v.SetDefault("rewards.starting_bonus", 100)
	v.SetDefault("rewards.referral_bonus", 500)
	v.SetDefault("rewards.hourly.amount", 50)
	v.SetDefault("rewards.hourly.cooldown", "1h")
	v.SetDefault("rewards.faucet.amount", 10)
	v.SetDefault("rewards.faucet.cooldown", "5m")
	v.SetDefault("rewards.daily_schedule", []int64{15, 30, 45, 60, 75, 90, 120})
	v.SetDefault("rewards.game.points_per_coin", 10)
	v.SetDefault("rewards.game.max_points_per_session", 5000)

	v.SetDefault("wallet.min_convert_coins", 1000)
	v.SetDefault("withdrawal.min_cash_pkr", 100)

	v.SetDefault("bot.token", "")
	v.SetDefault("bot.poll_timeout", "10s")

	v.SetDefault("estimator.endpoint", "")
	v.SetDefault("estimator.api_key", "")
	v.SetDefault("estimator.model", "")
	v.SetDefault("estimator.timeout", "20s")

	v.SetDefault("ratelimit.requests_per_second", 5)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// Validate rejects configurations the ledger cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Rewards.DailySchedule) != 7 {
		errs = append(errs, fmt.Errorf("rewards.daily_schedule must have 7 entries, got %d", len(c.Rewards.DailySchedule)))
	}
	if c.Rewards.Hourly.Cooldown <= 0 || c.Rewards.Faucet.Cooldown <= 0 {
		errs = append(errs, errors.New("reward cooldowns must be positive"))
	}
	if c.Rewards.Game.PointsPerCoin <= 0 {
		errs = append(errs, errors.New("rewards.game.points_per_coin must be positive"))
	}
	if _, err := time.LoadLocation(c.Rewards.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("rewards.timezone: %w", err))
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

// Location returns the timezone used for calendar-day rewards.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Rewards.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsBootstrapAdmin checks if an account id is in the bootstrap admin list.
func (a AdminConfig) IsBootstrapAdmin(accountID string) bool {
	for _, id := range a.BootstrapIDs {
		if id == accountID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a group chat may use the bot.
func (c *Config) IsChatAllowed(chatID int64) bool {
	if len(c.Bot.AllowedChats) == 0 {
		return true
	}
	for _, id := range c.Bot.AllowedChats {
		if id == chatID {
			return true
		}
	}
	return false
}
