// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/planpoker/internal/cache"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the resolved server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	TurnstileSecret string
	GracePeriod     time.Duration
	LobbyTTL        time.Duration
	LogLevel        logrus.Level
	LogJSON         bool
	Redis           cache.Options
}

// fileConfig mirrors the optional YAML file named by CONFIG_FILE. Durations are
// strings such as "5m".
type fileConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	GracePeriod string   `yaml:"grace_period"`
	LobbyTTL    string   `yaml:"lobby_ttl"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	Redis       struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

func defaults() *Config {
	return &Config{
		Port:        3002,
		CORSOrigins: []string{"*"},
		GracePeriod: 5 * time.Minute,
		LobbyTTL:    24 * time.Hour,
		LogLevel:    logrus.InfoLevel,
		Redis: cache.Options{
			Host: "localhost",
			Port: 6379,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables. Secrets are read from the
// environment only.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if fc.Port != 0 {
		c.Port = fc.Port
	}
	if len(fc.CORSOrigins) > 0 {
		c.CORSOrigins = fc.CORSOrigins
	}
	if err := setDuration(&c.GracePeriod, "grace_period", fc.GracePeriod); err != nil {
		return err
	}
	if err := setDuration(&c.LobbyTTL, "lobby_ttl", fc.LobbyTTL); err != nil {
		return err
	}
	if err := c.setLogLevel(fc.LogLevel); err != nil {
		return err
	}
	if fc.LogFormat != "" {
		c.LogJSON = strings.EqualFold(fc.LogFormat, "json")
	}
	if fc.Redis.Host != "" {
		c.Redis.Host = fc.Redis.Host
	}
	if fc.Redis.Port != 0 {
		c.Redis.Port = fc.Redis.Port
	}
	if fc.Redis.Username != "" {
		c.Redis.Username = fc.Redis.Username
	}
	if fc.Redis.DB != 0 {
		c.Redis.DB = fc.Redis.DB
	}
	return nil
}

func (c *Config) applyEnv() error {
	if err := setInt(&c.Port, "PORT"); err != nil {
		return err
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	c.TurnstileSecret = os.Getenv("TURNSTILE_SECRET_KEY")

	if err := setDuration(&c.GracePeriod, "LOBBY_GRACE_PERIOD", os.Getenv("LOBBY_GRACE_PERIOD")); err != nil {
		return err
	}
	if err := setDuration(&c.LobbyTTL, "LOBBY_TTL", os.Getenv("LOBBY_TTL")); err != nil {
		return err
	}
	if err := c.setLogLevel(os.Getenv("LOG_LEVEL")); err != nil {
		return err
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogJSON = strings.EqualFold(v, "json")
	}

	host := os.Getenv("REDIS_HOST")
	if host == "" {
		host = os.Getenv("REDIS_URL")
	}
	if host != "" {
		c.Redis.Host = host
	}
	if err := setInt(&c.Redis.Port, "REDIS_PORT"); err != nil {
		return err
	}
	if v := os.Getenv("REDIS_USERNAME"); v != "" {
		c.Redis.Username = v
	}
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	return setInt(&c.Redis.DB, "REDIS_DB")
}

func (c *Config) setLogLevel(s string) error {
	if s == "" {
		return nil
	}
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", s, err)
	}
	c.LogLevel = lvl
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// NewLogger returns a logrus logger configured from c.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// AllowsAnyOrigin reports whether CORS is wide open.
func (c *Config) AllowsAnyOrigin() bool {
	for _, o := range c.CORSOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// OriginAllowed reports whether origin may open a realtime connection.
// Requests without an Origin header (non-browser clients) are allowed.
func (c *Config) OriginAllowed(origin string) bool {
	if origin == "" || c.AllowsAnyOrigin() {
		return true
	}
	for _, o := range c.CORSOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, name, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s %q: must be positive", name, v)
	}
	*dst = d
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
