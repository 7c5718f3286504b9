package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

const (
	DispatchModeNoop  = "noop"
	DispatchModeRedis = "redis"
	DispatchModeHTTP  = "http"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
}

type DatabaseConfig struct {
	Host         string        `mapstructure:"host" validate:"required"`
	Port         int           `mapstructure:"port" validate:"gt=0,lte=65535"`
	User         string        `mapstructure:"user" validate:"required"`
	Password     string        `mapstructure:"password"`
	Name         string        `mapstructure:"name" validate:"required"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	QueryTimeout time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
}

// DSN renders the lib/pq keyword/value connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type SecurityConfig struct {
	// EncryptionKey is zero-padded to the next AES key size, so at most 32 bytes.
	EncryptionKey string `mapstructure:"encryption_key" validate:"required,max=32"`
}

type DispatchConfig struct {
	Mode string `mapstructure:"mode" validate:"oneof=noop redis http"`
	// Target is the stream name in redis mode and the processor URL in http mode.
	Target  string        `mapstructure:"target" validate:"required_unless=Mode noop"`
	Region  string        `mapstructure:"region"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Breaker BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	MaxFailures int           `mapstructure:"max_failures"`
	Interval    time.Duration `mapstructure:"interval"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	URL          string `mapstructure:"url"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type CacheConfig struct {
	ReferenceTTL time.Duration `mapstructure:"reference_ttl"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// legacyEnv carries the variable names the deployed functions were configured with.
type legacyEnv struct {
	PGUser         string `envconfig:"PG_USER"`
	PGHost         string `envconfig:"PG_HOST"`
	PGDB           string `envconfig:"PG_DB"`
	PGPassword     string `envconfig:"PG_PASSWORD"`
	PGPort         int    `envconfig:"PG_PORT"`
	EncryptionKey  string `envconfig:"ENCRYPTION_KEY"`
	DispatchMode   string `envconfig:"DISPATCH_MODE"`
	DispatchTarget string `envconfig:"DISPATCH_TARGET"`
	DispatchRegion string `envconfig:"DISPATCH_REGION"`
	RedisURL       string `envconfig:"REDIS_URL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.query_timeout", 5*time.Second)

	v.SetDefault("security.encryption_key", "")

	v.SetDefault("dispatch.mode", DispatchModeNoop)
	v.SetDefault("dispatch.target", "")
	v.SetDefault("dispatch.region", "ap-northeast-2")
	v.SetDefault("dispatch.timeout", 3*time.Second)
	v.SetDefault("dispatch.breaker.max_failures", 5)
	v.SetDefault("dispatch.breaker.interval", time.Minute)
	v.SetDefault("dispatch.breaker.timeout", 30*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.max_retries", 3)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("cache.reference_ttl", 10*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
}

// LoadConfig builds the configuration from defaults, an optional config file,
// environment keys (database.host -> DATABASE_HOST) and finally the
// legacy PG_*/ENCRYPTION_KEY variables. An empty path searches the usual locations.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var env legacyEnv
	if err := envconfig.Process("", &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	cfg.applyLegacyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyLegacyEnv(env legacyEnv) {
	overlay := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	overlay(&c.Database.User, env.PGUser)
	overlay(&c.Database.Host, env.PGHost)
	overlay(&c.Database.Name, env.PGDB)
	overlay(&c.Database.Password, env.PGPassword)
	if env.PGPort != 0 {
		c.Database.Port = env.PGPort
	}
	overlay(&c.Security.EncryptionKey, env.EncryptionKey)
	overlay(&c.Dispatch.Mode, env.DispatchMode)
	overlay(&c.Dispatch.Target, env.DispatchTarget)
	overlay(&c.Dispatch.Region, env.DispatchRegion)
	overlay(&c.Redis.URL, env.RedisURL)
}

// Validate checks the loaded configuration before any dependency is built.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Dispatch.Mode == DispatchModeRedis && c.Redis.URL == "" {
		return errors.New("invalid configuration: redis.url is required when dispatch.mode is redis")
	}
	return nil
}
