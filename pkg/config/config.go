// Package config loads mako settings from a YAML file and MAKO_ environment
// variables and converts them into the configuration types of the other
// packages.
//
// Environment variables map onto keys by upper-casing and replacing dots with
// underscores: client.user_agent becomes MAKO_CLIENT_USER_AGENT. List values
// read from the environment are comma separated.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/Sternrassler/mako-go/pkg/client"
	"github.com/Sternrassler/mako-go/pkg/logging"
	"github.com/Sternrassler/mako-go/pkg/pagination"
	"github.com/Sternrassler/mako-go/pkg/session"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "MAKO"

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete file/environment configuration.
type Config struct {
	Client  ClientConfig  `mapstructure:"client"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Session SessionConfig `mapstructure:"session"`
	Logging LoggingConfig `mapstructure:"logging"`
	Collect CollectConfig `mapstructure:"collect"`
}

// ClientConfig maps onto client.Config.
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required,url"`
	UserAgent      string        `mapstructure:"user_agent" validate:"required"`
	AcceptLanguage string        `mapstructure:"accept_language" validate:"required"`
	RateLimit      float64       `mapstructure:"rate_limit" validate:"gte=0"`
	Burst          int           `mapstructure:"burst" validate:"gte=1"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
}

// RedisConfig enables the shared throttle store when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0,lte=15"`
}

// SessionConfig seeds the initial session: stored credentials and the
// result filters applied by engine validation.
type SessionConfig struct {
	AccessToken  string   `mapstructure:"access_token"`
	RefreshToken string   `mapstructure:"refresh_token"`
	UserID       string   `mapstructure:"user_id" validate:"omitempty,numeric"`
	Premium      bool     `mapstructure:"premium"`
	Bypass       bool     `mapstructure:"bypass"`
	MirrorHost   string   `mapstructure:"mirror_host" validate:"omitempty,hostname"`
	ExcludeTags  []string `mapstructure:"exclude_tags" validate:"dive,required"`
	IncludeTags  []string `mapstructure:"include_tags" validate:"dive,required"`
	MinBookmark  int      `mapstructure:"min_bookmark" validate:"gte=0"`
}

// LoggingConfig maps onto logging.Config.
type LoggingConfig struct {
	Level  string            `mapstructure:"level" validate:"oneof=debug info warn error"`
	Pretty bool              `mapstructure:"pretty"`
	Fields map[string]string `mapstructure:"fields"`
}

// CollectConfig maps onto pagination.Config.
type CollectConfig struct {
	MaxConcurrency int           `mapstructure:"max_concurrency" validate:"gte=1,lte=64"`
	Limit          int           `mapstructure:"limit" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads the YAML file at path, applies MAKO_ environment overrides and
// validates the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return decode(v)
}

// LoadReader is Load for an in-memory document of the given type
// ("yaml", "json", "toml").
func LoadReader(r io.Reader, configType string) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults mirrors client.DefaultConfig, logging.DefaultConfig and
// pagination.DefaultConfig. Every key needs a default for AutomaticEnv to
// pick it up during Unmarshal.
func setDefaults(v *viper.Viper) {
	cc := client.DefaultConfig("")
	v.SetDefault("client.base_url", cc.BaseURL)
	v.SetDefault("client.user_agent", "")
	v.SetDefault("client.accept_language", cc.AcceptLanguage)
	v.SetDefault("client.rate_limit", cc.RateLimit)
	v.SetDefault("client.burst", cc.Burst)
	v.SetDefault("client.timeout", cc.Timeout)
	v.SetDefault("client.max_retries", cc.MaxRetries)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("session.access_token", "")
	v.SetDefault("session.refresh_token", "")
	v.SetDefault("session.user_id", "")
	v.SetDefault("session.premium", false)
	v.SetDefault("session.bypass", false)
	v.SetDefault("session.mirror_host", "")
	v.SetDefault("session.exclude_tags", []string{})
	v.SetDefault("session.include_tags", []string{})
	v.SetDefault("session.min_bookmark", 0)

	v.SetDefault("logging.level", string(logging.DefaultConfig().Level))
	v.SetDefault("logging.pretty", false)

	pc := pagination.DefaultConfig()
	v.SetDefault("collect.max_concurrency", pc.MaxConcurrency)
	v.SetDefault("collect.limit", pc.Limit)
	v.SetDefault("collect.timeout", pc.Timeout)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of cfg.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ClientConfig builds the client configuration. The Redis client is created
// when redis.addr is set; the caller owns it.
func (c *Config) ClientConfig() client.Config {
	cc := client.DefaultConfig(c.Client.UserAgent)
	cc.BaseURL = c.Client.BaseURL
	cc.AcceptLanguage = c.Client.AcceptLanguage
	cc.RateLimit = c.Client.RateLimit
	cc.Burst = c.Client.Burst
	cc.Timeout = c.Client.Timeout
	cc.MaxRetries = c.Client.MaxRetries
	cc.Redis = c.RedisClient()
	cc.Session = c.InitialSession()
	return cc
}

// RedisClient returns a client for redis.addr, or nil when unset.
func (c *Config) RedisClient() *redis.Client {
	if c.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	})
}

// InitialSession returns the configured session, or nil when neither token
// is set. A session holding only a refresh token needs Client.Refresh before
// the first request.
func (c *Config) InitialSession() *session.Session {
	s := c.Session
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &session.Session{
		ID:           s.UserID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		IsPremium:    s.Premium,
		Bypass:       s.Bypass,
		MirrorHost:   s.MirrorHost,
		ExcludeTags:  s.ExcludeTags,
		IncludeTags:  s.IncludeTags,
		MinBookmark:  s.MinBookmark,
	}
}

// LoggingConfig builds the logging configuration. Output is left nil so
// logging.Setup writes to stderr.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Logging.Level),
		Pretty: c.Logging.Pretty,
		Fields: c.Logging.Fields,
	}
}

// CollectConfig builds the batch collector configuration.
func (c *Config) CollectConfig() pagination.Config {
	return pagination.Config{
		MaxConcurrency: c.Collect.MaxConcurrency,
		Limit:          c.Collect.Limit,
		Timeout:        c.Collect.Timeout,
	}
}

