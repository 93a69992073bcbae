package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Queue      QueueConfig
	RateLimit  RateLimitConfig
	Scheduler  SchedulerConfig
	Connectors ConnectorsConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. Redis is optional; when
// disabled the rate limiter falls back to the database-backed store.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64
}

// QueueConfig holds job queue configuration
type QueueConfig struct {
	MaxParallelism int
	Capacity       int
	DrainTimeout   time.Duration
}

// RateLimitConfig holds platform rate limit settings
type RateLimitConfig struct {
	DefaultHourlyLimit int64
	// PlatformLimits overrides the default per platform code
	PlatformLimits map[string]int64
}

// ConnectorsConfig holds the per-platform connector gateway endpoints
type ConnectorsConfig struct {
	Shopify ConnectorEndpoint
	Meta    ConnectorEndpoint
}

// ConnectorEndpoint is one gateway's address and credentials. A connector
// with an empty base URL is treated as not configured.
type ConnectorEndpoint struct {
	BaseURL        string
	APIToken       string
	TimeoutSeconds int
}

// SchedulerConfig holds adaptive sync scheduling settings
type SchedulerConfig struct {
	BusinessHoursStart int // hour of day, inclusive
	BusinessHoursEnd   int // hour of day, exclusive
	DefaultInterval    time.Duration
	DefaultPriority    int
}

// Load loads configuration from a TOML file and environment variables.
// Priority (highest to lowest): SP_-prefixed env vars, config.toml, defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Missing config file is fine, defaults and env vars apply.
	}

	v.SetEnvPrefix("SP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:  v.GetDuration("http.read_timeout"),
			WriteTimeout: v.GetDuration("http.write_timeout"),
			IdleTimeout:  v.GetDuration("http.idle_timeout"),
			MaxBodyBytes: v.GetInt64("http.max_body_bytes"),
		},
		Queue: QueueConfig{
			MaxParallelism: v.GetInt("queue.max_parallelism"),
			Capacity:       v.GetInt("queue.capacity"),
			DrainTimeout:   v.GetDuration("queue.drain_timeout"),
		},
		RateLimit: RateLimitConfig{
			DefaultHourlyLimit: v.GetInt64("ratelimit.default_hourly_limit"),
			PlatformLimits:     toInt64Map(v.GetStringMapString("ratelimit.platform_limits")),
		},
		Scheduler: SchedulerConfig{
			BusinessHoursStart: v.GetInt("scheduler.business_hours_start"),
			BusinessHoursEnd:   v.GetInt("scheduler.business_hours_end"),
			DefaultInterval:    v.GetDuration("scheduler.default_interval"),
			DefaultPriority:    v.GetInt("scheduler.default_priority"),
		},
		Connectors: ConnectorsConfig{
			Shopify: ConnectorEndpoint{
				BaseURL:        v.GetString("connectors.shopify.base_url"),
				APIToken:       v.GetString("connectors.shopify.api_token"),
				TimeoutSeconds: v.GetInt("connectors.shopify.timeout_seconds"),
			},
			Meta: ConnectorEndpoint{
				BaseURL:        v.GetString("connectors.meta.base_url"),
				APIToken:       v.GetString("connectors.meta.api_token"),
				TimeoutSeconds: v.GetInt("connectors.meta.timeout_seconds"),
			},
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func toInt64Map(in map[string]string) map[string]int64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]int64, len(in))
	for k, s := range in {
		var n int64
		if _, err := fmt.Sscanf(s, "%d", &n); err == nil {
			out[k] = n
		}
	}
	return out
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storepulse-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "storepulse"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
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
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxBodyBytes == 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20 // 1MB
	}
	if cfg.Queue.MaxParallelism == 0 {
		cfg.Queue.MaxParallelism = 10
	}
	if cfg.Queue.Capacity == 0 {
		cfg.Queue.Capacity = 1000
	}
	if cfg.Queue.DrainTimeout == 0 {
		cfg.Queue.DrainTimeout = 30 * time.Second
	}
	if cfg.RateLimit.DefaultHourlyLimit == 0 {
		cfg.RateLimit.DefaultHourlyLimit = 10000
	}
	if cfg.Scheduler.BusinessHoursStart == 0 {
		cfg.Scheduler.BusinessHoursStart = 8
	}
	if cfg.Scheduler.BusinessHoursEnd == 0 {
		cfg.Scheduler.BusinessHoursEnd = 19
	}
	if cfg.Scheduler.DefaultInterval == 0 {
		cfg.Scheduler.DefaultInterval = 24 * time.Hour
	}
	if cfg.Scheduler.DefaultPriority == 0 {
		cfg.Scheduler.DefaultPriority = 5
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Queue.MaxParallelism <= 0 {
		return fmt.Errorf("queue.max_parallelism must be positive")
	}
	if c.RateLimit.DefaultHourlyLimit <= 0 {
		return fmt.Errorf("ratelimit.default_hourly_limit must be positive")
	}
	if c.Scheduler.BusinessHoursStart < 0 || c.Scheduler.BusinessHoursStart > 23 {
		return fmt.Errorf("scheduler.business_hours_start must be an hour of day")
	}
	if c.Scheduler.BusinessHoursEnd <= c.Scheduler.BusinessHoursStart || c.Scheduler.BusinessHoursEnd > 24 {
		return fmt.Errorf("scheduler.business_hours_end must be after business_hours_start")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
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

// Addr returns the Redis address in host:port form
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
