// Package config loads learnmap settings.
//
// Settings come from three layers, later ones winning:
//
//  1. built-in defaults ([Default])
//  2. a TOML file, by default $XDG_CONFIG_HOME/learnmap/config.toml
//  3. environment variables prefixed LEARNMAP_ (a .env file in the working
//     directory is loaded first), e.g. LEARNMAP_STORE_BACKEND=redis
//
// Example file:
//
//	[log]
//	level = "debug"
//
//	[store]
//	backend = "file"
//	dir = "/var/lib/learnmap"
//
//	[generator]
//	backend = "http"
//	endpoint = "http://localhost:8081"
//	timeout = "90s"
//
//	[layout]
//	direction = "LR"
//	cache = "file"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/layout"
)

const (
	appName   = "learnmap"
	envPrefix = "LEARNMAP"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMongo  = "mongo"
)

// Generator backends.
const (
	GeneratorOffline = "offline"
	GeneratorHTTP    = "http"
)

// Layout cache backends.
const (
	CacheNull  = "null"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Config is the complete learnmap configuration.
type Config struct {
	Log       LogConfig       `toml:"log" envconfig:"LOG"`
	Store     StoreConfig     `toml:"store" envconfig:"STORE"`
	Generator GeneratorConfig `toml:"generator" envconfig:"GENERATOR"`
	Layout    LayoutConfig    `toml:"layout" envconfig:"LAYOUT"`
	Server    ServerConfig    `toml:"server" envconfig:"SERVER"`
}

type LogConfig struct {
	Level string `toml:"level" envconfig:"LEVEL"`
}

type StoreConfig struct {
	Backend       string `toml:"backend" envconfig:"BACKEND"`
	Dir           string `toml:"dir" envconfig:"DIR"`
	RedisAddr     string `toml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string `toml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `toml:"redis_db" envconfig:"REDIS_DB"`
	MongoURI      string `toml:"mongo_uri" envconfig:"MONGO_URI"`
	MongoDatabase string `toml:"mongo_database" envconfig:"MONGO_DATABASE"`
}

type GeneratorConfig struct {
	Backend  string        `toml:"backend" envconfig:"BACKEND"`
	Endpoint string        `toml:"endpoint" envconfig:"ENDPOINT"`
	APIKey   string        `toml:"api_key" envconfig:"API_KEY"`
	Timeout  time.Duration `toml:"timeout" envconfig:"TIMEOUT"`
	Retries  int           `toml:"retries" envconfig:"RETRIES"`

	// Delay slows the offline generator down, to watch pending states.
	Delay time.Duration `toml:"delay" envconfig:"DELAY"`

	ModuleTitle       string `toml:"module_title" envconfig:"MODULE_TITLE"`
	ModuleDescription string `toml:"module_description" envconfig:"MODULE_DESCRIPTION"`
}

type LayoutConfig struct {
	Direction string        `toml:"direction" envconfig:"DIRECTION"`
	NodeSep   float64       `toml:"node_sep" envconfig:"NODE_SEP"`
	RankSep   float64       `toml:"rank_sep" envconfig:"RANK_SEP"`
	Cache     string        `toml:"cache" envconfig:"CACHE"`
	CacheDir  string        `toml:"cache_dir" envconfig:"CACHE_DIR"`
	CacheTTL  time.Duration `toml:"cache_ttl" envconfig:"CACHE_TTL"`
	RedisURL  string        `toml:"redis_url" envconfig:"REDIS_URL"`
}

type ServerConfig struct {
	Addr        string   `toml:"addr" envconfig:"ADDR"`
	CORSOrigins []string `toml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// Default returns the built-in configuration: an offline generator, a file
// store under the XDG data directory and a file layout cache.
func Default() Config {
	return Config{
		Log:   LogConfig{Level: "info"},
		Store: StoreConfig{Backend: StoreFile, RedisAddr: "localhost:6379", MongoDatabase: appName},
		Generator: GeneratorConfig{
			Backend: GeneratorOffline,
			Timeout: 2 * time.Minute,
			Retries: 3,
		},
		Layout: LayoutConfig{
			Direction: string(layout.TopToBottom),
			NodeSep:   40,
			RankSep:   60,
			Cache:     CacheFile,
			CacheTTL:  7 * 24 * time.Hour,
		},
		Server: ServerConfig{Addr: ":8080", CORSOrigins: []string{"*"}},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/learnmap/config.toml, falling back to
// ~/.config.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName, "config.toml")
}

// Load builds the configuration. An explicit path must exist; with an empty
// path the default file is read if present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.decodeFile(path, explicit); err != nil {
			return Config{}, err
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(path string, required bool) error {
	if _, err := os.Stat(path); os.IsNotExist(err) && !required {
		return nil
	}
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate rejects unknown backends, directions and log levels.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if err := oneOf("store.backend", c.Store.Backend, StoreMemory, StoreFile, StoreRedis, StoreMongo); err != nil {
		return err
	}
	if c.Store.Backend == StoreMongo && c.Store.MongoURI == "" {
		return fmt.Errorf("store.mongo_uri is required for the mongo backend")
	}
	if err := oneOf("generator.backend", c.Generator.Backend, GeneratorOffline, GeneratorHTTP); err != nil {
		return err
	}
	if c.Generator.Backend == GeneratorHTTP && c.Generator.Endpoint == "" {
		return fmt.Errorf("generator.endpoint is required for the http backend")
	}
	if _, err := layout.ParseDirection(c.Layout.Direction); err != nil {
		return fmt.Errorf("layout.direction: %w", err)
	}
	if c.Layout.NodeSep < 0 || c.Layout.RankSep < 0 {
		return fmt.Errorf("layout separations must not be negative")
	}
	if err := oneOf("layout.cache", c.Layout.Cache, CacheNull, CacheFile, CacheRedis); err != nil {
		return err
	}
	if c.Layout.Cache == CacheRedis && c.Layout.RedisURL == "" {
		return fmt.Errorf("layout.redis_url is required for the redis cache")
	}
	return nil
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s: unknown value %q (want one of %s)", field, value, strings.Join(allowed, ", "))
}

// LogLevel returns the parsed log level. Validate guarantees it parses.
func (c Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Direction returns the parsed layout direction.
func (c Config) Direction() layout.Direction {
	d, err := layout.ParseDirection(c.Layout.Direction)
	if err != nil {
		return layout.TopToBottom
	}
	return d
}

// Spacing returns the layout separations.
func (c Config) Spacing() layout.Spacing {
	return layout.Spacing{Node: c.Layout.NodeSep, Rank: c.Layout.RankSep}
}

// DataDir returns the store directory, defaulting to
// $XDG_DATA_HOME/learnmap/maps.
func (c Config) DataDir() (string, error) {
	if c.Store.Dir != "" {
		return c.Store.Dir, nil
	}
	return xdgDir("XDG_DATA_HOME", ".local/share", "maps")
}

// CacheDir returns the layout cache directory, defaulting to
// $XDG_CACHE_HOME/learnmap/layouts.
func (c Config) CacheDir() (string, error) {
	if c.Layout.CacheDir != "" {
		return c.Layout.CacheDir, nil
	}
	return xdgDir("XDG_CACHE_HOME", ".cache", "layouts")
}

func xdgDir(env, fallback, leaf string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName, leaf), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName, leaf), nil
}
