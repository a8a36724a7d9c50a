package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Session     SessionConfig     `toml:"session"`
	Redis       RedisConfig       `toml:"redis"`
	CORS        CORSConfig        `toml:"cors"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify  SpotifyConfig  `toml:"spotify"`
	Telegram TelegramConfig `toml:"telegram"`
}

// SpotifyConfig contains Spotify API credentials and endpoint overrides.
//
// The endpoint fields exist so the flows can be pointed at a local server; they default to Spotify's.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	Username     string `toml:"username"`
	AuthURL      string `toml:"auth_url"`
	TokenURL     string `toml:"token_url"`
	APIBaseURL   string `toml:"api_base_url"`
}

// TelegramConfig contains Telegram application credentials and where session files are kept.
type TelegramConfig struct {
	APIID       int    `toml:"api_id"`
	APIHash     string `toml:"api_hash"`
	SessionName string `toml:"session_name"`
	SessionDir  string `toml:"session_dir"`
	HistorySize int    `toml:"history_size"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	TLSCert         string `toml:"tls_cert"`
	TLSKey          string `toml:"tls_key"`
	OutboundTimeout string `toml:"outbound_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// SessionConfig selects the session store backend and the cookie it is addressed by.
type SessionConfig struct {
	Store      string `toml:"store"` // memory, sqlite or redis
	CookieName string `toml:"cookie_name"`
	Lifetime   string `toml:"lifetime"`
}

// RedisConfig contains Redis connection settings for the redis session store.
type RedisConfig struct {
	URL       string `toml:"url"`
	KeyPrefix string `toml:"key_prefix"`
}

// CORSConfig lists the origins allowed to call the API with credentials.
type CORSConfig struct {
	AllowedOrigins        []string `toml:"allowed_origins"`
	AllowedOriginPatterns []string `toml:"allowed_origin_patterns"`
}

// LogConfig sets the log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Outbound returns the timeout applied to every provider call.
func (s ServerConfig) Outbound() time.Duration {
	return parseDuration(s.OutboundTimeout, 15*time.Second)
}

// Shutdown returns how long in-flight requests get on shutdown.
func (s ServerConfig) Shutdown() time.Duration {
	return parseDuration(s.ShutdownTimeout, 10*time.Second)
}

// TTL returns the rolling session lifetime.
func (s SessionConfig) TTL() time.Duration {
	return parseDuration(s.Lifetime, 7*24*time.Hour)
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Credentials.Spotify.ClientID == "" {
		return fmt.Errorf("%w: spotify client_id is required", ErrInvalidConfig)
	}
	if c.Credentials.Spotify.RedirectURI == "" {
		return fmt.Errorf("%w: spotify redirect_uri is required", ErrInvalidConfig)
	}
	switch c.Session.Store {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("%w: unknown session store %q", ErrInvalidConfig, c.Session.Store)
	}
	if c.Session.Store == "redis" && c.Redis.URL == "" {
		return fmt.Errorf("%w: redis url is required for the redis session store", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from the given .env files (or ./.env) without overriding the environment.
//
// A missing file is not an error; deployments usually inject the environment directly.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(); err != nil {
				return fmt.Errorf("failed to load .env: %w", err)
			}
		}
	}
	return nil
}

// ApplyEnv overrides credentials with values from the environment.
func (c *Config) ApplyEnv() error {
	set := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	set(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	set(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	set(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	set(&c.Credentials.Spotify.Username, "SPOTIFY_USERNAME")
	set(&c.Credentials.Telegram.APIHash, "TELEGRAM_API_HASH")
	set(&c.Redis.URL, "TUNEPIPE_REDIS_URL")
	set(&c.Log.Level, "TUNEPIPE_LOG_LEVEL")

	if v, ok := os.LookupEnv("TELEGRAM_API_ID"); ok && v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: TELEGRAM_API_ID must be numeric: %v", ErrInvalidConfig, err)
		}
		c.Credentials.Telegram.APIID = id
	}
	return nil
}

// Bootstrap loads .env, the config file (when present) and environment overrides, in that order.
func Bootstrap(configPath string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			loaded, err := LoadConfig(configPath)
			if err != nil {
				return nil, err
			}
			config = loaded
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}
