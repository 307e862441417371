// Package config loads the service configuration from defaults, an optional
// YAML file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxDefaultWorldRadius bounds the radius of fresh worlds. Larger worlds are
// reached by expansion, which prices every ring.
const MaxDefaultWorldRadius = 50

// Config is the full service configuration
type Config struct {
	Redis RedisConfig `yaml:"redis"`
	Mongo MongoConfig `yaml:"mongo"`
	Lock  LockConfig  `yaml:"lock"`
	Game  GameConfig  `yaml:"game"`
	HTTP  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
}

// RedisConfig configures the state store connection
type RedisConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

// MongoConfig configures the optional ledger archive. An empty URI disables it.
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// LockConfig configures the per-player lock
type LockConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	WaitTimeout   time.Duration `yaml:"wait_timeout"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// GameConfig holds the gameplay flags
type GameConfig struct {
	CatalogPath         string `yaml:"catalog_path"`
	DefaultWorldRadius  int    `yaml:"default_world_radius"`
	UnlimitedResources  bool   `yaml:"unlimited_resources"`
	DisableWorldBounds  bool   `yaml:"disable_world_bounds"`
	AllowDevEndpoints   bool   `yaml:"allow_dev_endpoints"`
	EnableShopEndpoints bool   `yaml:"enable_shop_endpoints"`
	DebugDump           bool   `yaml:"debug_dump"`
	SnowflakeNode       int64  `yaml:"snowflake_node"`
}

// HTTPConfig configures the HTTP server
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RateLimit       float64       `yaml:"rate_limit"`
	RateBurst       int           `yaml:"rate_burst"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Redis: RedisConfig{
			URL: "redis://localhost:6379/0",
		},
		Mongo: MongoConfig{
			Database:   "citybuilder",
			Collection: "ledger_entries",
		},
		Lock: LockConfig{
			TTL:           8 * time.Second,
			WaitTimeout:   2500 * time.Millisecond,
			RetryInterval: 35 * time.Millisecond,
		},
		Game: GameConfig{
			DefaultWorldRadius: 3,
			SnowflakeNode:      1,
		},
		HTTP: HTTPConfig{
			Addr: ":8000",
			CORSOrigins: []string{
				"https://isocity.api.ventureout.cz",
				"https://city.api.ventureout.cz",
				"http://localhost:3000",
				"http://localhost:8080",
			},
			RateLimit:       20,
			RateBurst:       40,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// any) and the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
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

// ApplyEnv overlays environment variables. lookup is os.LookupEnv outside tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v) == "1"
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	millis := func(key string, dst *time.Duration) {
		ms := -1
		integer(key, &ms)
		if ms >= 0 {
			*dst = time.Duration(ms) * time.Millisecond
		}
	}

	str("REDIS_URL", &c.Redis.URL)
	str("MONGO_URI", &c.Mongo.URI)
	str("LOG_LEVEL", &c.Log.Level)

	flag("ALLOW_DEV_ENDPOINTS", &c.Game.AllowDevEndpoints)
	flag("DEV_UNLIMITED_RESOURCES", &c.Game.UnlimitedResources)
	flag("DEV_DISABLE_WORLD_BOUNDS", &c.Game.DisableWorldBounds)
	flag("ENABLE_SHOP_ENDPOINTS", &c.Game.EnableShopEndpoints)
	flag("DEBUG_DUMP", &c.Game.DebugDump)
	integer("DEFAULT_WORLD_RADIUS", &c.Game.DefaultWorldRadius)
	str("CATALOG_PATH", &c.Game.CatalogPath)

	millis("USER_LOCK_TTL_MS", &c.Lock.TTL)
	millis("USER_LOCK_WAIT_MS", &c.Lock.WaitTimeout)
	millis("USER_LOCK_RETRY_SLEEP_MS", &c.Lock.RetryInterval)
	millis("USER_LOCK_RETRY_MS", &c.Lock.RetryInterval)

	// 추가 CORS 출처는 기본 목록에 덧붙임
	if v, ok := lookup("CORS_ORIGINS"); ok {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.HTTP.CORSOrigins = append(c.HTTP.CORSOrigins, origin)
			}
		}
	}

	return errors.Join(errs...)
}

// Validate rejects impossible values
func (c *Config) Validate() error {
	var errs []error
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	if c.Lock.TTL <= 0 {
		errs = append(errs, errors.New("lock.ttl must be positive"))
	}
	if c.Lock.WaitTimeout <= 0 {
		errs = append(errs, errors.New("lock.wait_timeout must be positive"))
	}
	if c.Lock.RetryInterval <= 0 {
		errs = append(errs, errors.New("lock.retry_interval must be positive"))
	}
	if c.Game.DefaultWorldRadius < 1 || c.Game.DefaultWorldRadius > MaxDefaultWorldRadius {
		errs = append(errs, fmt.Errorf("game.default_world_radius %d out of range [1, %d]", c.Game.DefaultWorldRadius, MaxDefaultWorldRadius))
	}
	if c.Game.SnowflakeNode < 0 || c.Game.SnowflakeNode > 1023 {
		errs = append(errs, fmt.Errorf("game.snowflake_node %d out of range [0, 1023]", c.Game.SnowflakeNode))
	}
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.RateBurst < 0 {
		errs = append(errs, errors.New("http rate limit must not be negative"))
	}
	return errors.Join(errs...)
}
