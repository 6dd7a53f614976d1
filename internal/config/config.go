package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Log        LogConfig
	JWT        JWTConfig
	Platform   PlatformConfig
	Prediction PredictionConfig
	Sync       SyncConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	Seed       SeedConfig
}

type AppConfig struct {
	Name string
	Env  string
	Port string
}

type DatabaseConfig struct {
	URL             string // takes precedence over the discrete fields
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string // silent, error, warn, info
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// PlatformConfig configures the commerce platform REST client
type PlatformConfig struct {
	APIVersion        string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	MaxRetries        int
	BaseURLOverride   string // tests and proxies; empty means https://{shop}
}

// PredictionConfig configures the external prediction service
type PredictionConfig struct {
	BaseURL string
	Timeout time.Duration
}

type SyncConfig struct {
	PageSize          int
	Workers           int
	OrderLookbackDays int
	LockTTL           time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// SchedulerConfig controls the optional periodic background refresh
type SchedulerConfig struct {
	Enabled            bool
	Interval           time.Duration
	RunRecommendations bool
	MaxConcurrent      int
}

// SeedConfig creates a merchant on startup when ShopDomain is set
type SeedConfig struct {
	ShopDomain  string
	AccessToken string
	Secret      string
}

// Load reads .env (if present), config.toml (if present) and INV_* environment
// variables, in increasing order of priority.
func Load() (*Config, error) {
	// .env is optional; real environment variables always win
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("INV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetDuration("jwt.expiration"),
			Issuer:     v.GetString("jwt.issuer"),
		},
		Platform: PlatformConfig{
			APIVersion:        v.GetString("platform.api_version"),
			Timeout:           v.GetDuration("platform.timeout"),
			RequestsPerSecond: v.GetFloat64("platform.requests_per_second"),
			Burst:             v.GetInt("platform.burst"),
			MaxRetries:        v.GetInt("platform.max_retries"),
			BaseURLOverride:   v.GetString("platform.base_url_override"),
		},
		Prediction: PredictionConfig{
			BaseURL: v.GetString("prediction.base_url"),
			Timeout: v.GetDuration("prediction.timeout"),
		},
		Sync: SyncConfig{
			PageSize:          v.GetInt("sync.page_size"),
			Workers:           v.GetInt("sync.workers"),
			OrderLookbackDays: v.GetInt("sync.order_lookback_days"),
			LockTTL:           v.GetDuration("sync.lock_ttl"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Scheduler: SchedulerConfig{
			Enabled:            v.GetBool("scheduler.enabled"),
			Interval:           v.GetDuration("scheduler.interval"),
			RunRecommendations: v.GetBool("scheduler.run_recommendations"),
			MaxConcurrent:      v.GetInt("scheduler.max_concurrent"),
		},
		Seed: SeedConfig{
			ShopDomain:  v.GetString("seed.shop_domain"),
			AccessToken: v.GetString("seed.access_token"),
			Secret:      v.GetString("seed.secret"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "stock-analytics"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "3000"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "inventory"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 100
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.JWT.Secret == "" {
		cfg.JWT.Secret = "your-super-secret-key-change-in-production"
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = 24 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "go-stock-analytics"
	}
	if cfg.Platform.APIVersion == "" {
		cfg.Platform.APIVersion = "2024-01"
	}
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = 30 * time.Second
	}
	if cfg.Platform.RequestsPerSecond == 0 {
		cfg.Platform.RequestsPerSecond = 2
	}
	if cfg.Platform.Burst == 0 {
		cfg.Platform.Burst = 4
	}
	if cfg.Platform.MaxRetries == 0 {
		cfg.Platform.MaxRetries = 3
	}
	if cfg.Prediction.BaseURL == "" {
		cfg.Prediction.BaseURL = "http://localhost:5050"
	}
	if cfg.Prediction.Timeout == 0 {
		cfg.Prediction.Timeout = 45 * time.Second
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 250
	}
	if cfg.Sync.Workers == 0 {
		cfg.Sync.Workers = 4
	}
	if cfg.Sync.OrderLookbackDays == 0 {
		cfg.Sync.OrderLookbackDays = 90
	}
	if cfg.Sync.LockTTL == 0 {
		cfg.Sync.LockTTL = 30 * time.Minute
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = time.Hour
	}
	if cfg.Scheduler.MaxConcurrent == 0 {
		cfg.Scheduler.MaxConcurrent = 2
	}
}

func (c *Config) validate() error {
	if c.Sync.PageSize < 1 || c.Sync.PageSize > 250 {
		return fmt.Errorf("sync.page_size must be between 1 and 250, got %d", c.Sync.PageSize)
	}
	if c.Sync.Workers < 1 {
		return fmt.Errorf("sync.workers must be positive")
	}
	if c.Sync.OrderLookbackDays < 1 {
		return fmt.Errorf("sync.order_lookback_days must be positive")
	}
	if c.Prediction.Timeout < 30*time.Second {
		return fmt.Errorf("prediction.timeout must be at least 30s, got %s", c.Prediction.Timeout)
	}
	if c.Platform.RequestsPerSecond <= 0 {
		return fmt.Errorf("platform.requests_per_second must be positive")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval < time.Minute {
		return fmt.Errorf("scheduler.interval must be at least 1m")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "your-super-secret-key-change-in-production" || len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be set to at least 32 characters in production")
		}
		if c.Database.URL == "" && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
