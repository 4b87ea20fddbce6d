package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type TokenStoreKind string

const (
	TokenStoreFile   TokenStoreKind = "file"
	TokenStoreRedis  TokenStoreKind = "redis"
	TokenStoreMemory TokenStoreKind = "memory"
)

// Config is everything the client reads from the environment. Variables are
// prefixed with WELLNESS_ except the logging ones.
type Config struct {
	// BackendURL is the API host; requests go to BackendURL + "/api".
	BackendURL     string        `env:"BACKEND_URL"     envDefault:"http://localhost:8001"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`

	// OriginURL is sent with checkouts so the payment processor redirects
	// back to the return server. Empty means http://<ReturnAddr>.
	OriginURL  string `env:"ORIGIN_URL"`
	ReturnAddr string `env:"RETURN_ADDR" envDefault:"localhost:8765"`

	// AuthURL is the identity provider page browser sign-in starts at.
	AuthURL string `env:"AUTH_URL" envDefault:"https://auth.emergentagent.com/"`

	TokenStore TokenStoreKind `env:"TOKEN_STORE" envDefault:"file"`
	TokenFile  string         `env:"TOKEN_FILE"`
	TokenTTL   time.Duration  `env:"TOKEN_TTL"   envDefault:"168h"`

	Redis RedisConfig `envPrefix:"REDIS_"`
	Cache CacheConfig `envPrefix:"CACHE_"`
	Poll  PollConfig  `envPrefix:"POLL_"`

	Breaker BreakerConfig `envPrefix:"BREAKER_"`
}

type RedisConfig struct {
	// Addr empty disables Redis: no catalog cache, and the redis token store
	// cannot be selected.
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"       envDefault:"0"`
}

type CacheConfig struct {
	TTL time.Duration `env:"TTL" envDefault:"5m"`
}

type PollConfig struct {
	Interval    time.Duration `env:"INTERVAL"     envDefault:"2s"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `env:"FAILURE_THRESHOLD" envDefault:"5"`
	MaxRequests      uint32        `env:"MAX_REQUESTS"      envDefault:"1"`
	Interval         time.Duration `env:"INTERVAL"          envDefault:"60s"`
	Timeout          time.Duration `env:"TIMEOUT"           envDefault:"30s"`
}

// LogConfig is read without the WELLNESS_ prefix.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

const envPrefix = "WELLNESS_"

var ErrRedisNotConfigured = errors.New("WELLNESS_TOKEN_STORE=redis needs WELLNESS_REDIS_ADDR")

// Load reads an optional .env file and then the process environment.
func Load() (Config, LogConfig, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, LogConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}
	return parse(env.Options{})
}

// LoadFrom parses from the given variables only.
func LoadFrom(vars map[string]string) (Config, LogConfig, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, LogConfig, error) {
	var logCfg LogConfig
	if err := env.ParseWithOptions(&logCfg, opts); err != nil {
		return Config{}, LogConfig{}, fmt.Errorf("parse log config: %w", err)
	}

	opts.Prefix = envPrefix
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, logCfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return Config{}, logCfg, err
	}
	return cfg, logCfg, nil
}

// Sanitize applies guardrails to values loaded from env.
func (c *Config) Sanitize() {
	c.BackendURL = strings.TrimRight(strings.TrimSpace(c.BackendURL), "/")
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 15 * time.Second
	}
	if c.ReturnAddr == "" {
		c.ReturnAddr = "localhost:8765"
	}
	if c.OriginURL == "" {
		c.OriginURL = "http://" + c.ReturnAddr
	}
	c.OriginURL = strings.TrimRight(c.OriginURL, "/")

	c.TokenStore = TokenStoreKind(strings.ToLower(string(c.TokenStore)))
	switch c.TokenStore {
	case TokenStoreFile, TokenStoreRedis, TokenStoreMemory:
	default:
		c.TokenStore = TokenStoreFile
	}
	if c.TokenTTL < 0 {
		c.TokenTTL = 0
	}

	if c.Cache.TTL <= 0 {
		c.Cache.TTL = 5 * time.Minute
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 2 * time.Second
	}
	if c.Poll.MaxAttempts <= 0 {
		c.Poll.MaxAttempts = 5
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = 5
	}
}

func (c Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("WELLNESS_BACKEND_URL is required")
	}
	if c.TokenStore == TokenStoreRedis && c.Redis.Addr == "" {
		return ErrRedisNotConfigured
	}
	return nil
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Addr != ""
}
