// Package config provides environment-based configuration for the dashboard,
// with an optional YAML file underneath.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the environment variable that points at a YAML config file.
const ConfigFileEnv = "GATEKEEPER_CONFIG"

// Config holds all configuration for the dashboard.
type Config struct {
	Upstream UpstreamConfig `yaml:"upstream"`
	Poll     PollConfig     `yaml:"poll"`
	Web      WebConfig      `yaml:"web"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UpstreamConfig describes the GateKeeper API being observed.
type UpstreamConfig struct {
	BaseURL  string `yaml:"base_url"`
	LogsPath string `yaml:"logs_path"`
	// Token is sent as a bearer token when set.
	Token string `yaml:"token"`
	// TokenAge is an armored age ciphertext of the bearer token.
	TokenAge string `yaml:"token_age"`
	// AgeIdentity is an AGE-SECRET-KEY-1... string or a path to an identity file.
	AgeIdentity string `yaml:"age_identity"`
}

// PollConfig controls the polling loop.
type PollConfig struct {
	Interval       time.Duration `yaml:"interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// WebConfig controls the HTTP listener.
type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// SecureCookies marks the viewer session cookie Secure. Enable when the
	// dashboard is served behind TLS.
	SecureCookies bool `yaml:"secure_cookies"`
}

// GRPCConfig controls the gRPC health listener. Port 0 disables it.
type GRPCConfig struct {
	Port int `yaml:"port"`
}

// AuthConfig controls viewer authentication. An empty secret disables it.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	JWTExpiry time.Duration `yaml:"jwt_expiry"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:  "http://127.0.0.1:8080",
			LogsPath: "/logs",
		},
		Poll: PollConfig{
			Interval:       2 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		GRPC: GRPCConfig{
			Port: 9091,
		},
		Auth: AuthConfig{
			JWTExpiry: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// $GATEKEEPER_CONFIG when path is empty) and the environment, in that order
// of increasing precedence.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile reads a YAML file over the defaults without consulting the
// environment or validating. An empty path yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	if err := cfg.overlayFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Upstream.BaseURL = getEnv("GATEKEEPER_API_URL", getEnv("API_URL", c.Upstream.BaseURL))
	c.Upstream.LogsPath = getEnv("GATEKEEPER_LOGS_PATH", c.Upstream.LogsPath)
	c.Upstream.Token = getEnv("GATEKEEPER_API_TOKEN", c.Upstream.Token)
	c.Upstream.AgeIdentity = getEnv("GATEKEEPER_AGE_IDENTITY", c.Upstream.AgeIdentity)

	c.Poll.Interval = getDurationEnv("POLL_INTERVAL", c.Poll.Interval)
	c.Poll.RequestTimeout = getDurationEnv("POLL_REQUEST_TIMEOUT", c.Poll.RequestTimeout)

	c.Web.Host = getEnv("WEB_HOST", c.Web.Host)
	c.Web.Port = getIntEnv("WEB_PORT", c.Web.Port)
	c.Web.SecureCookies = getBoolEnv("WEB_SECURE_COOKIES", c.Web.SecureCookies)
	c.GRPC.Port = getIntEnv("GRPC_PORT", c.GRPC.Port)

	c.Auth.JWTSecret = getEnv("DASHBOARD_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTExpiry = getDurationEnv("DASHBOARD_JWT_EXPIRY", c.Auth.JWTExpiry)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	c.ShutdownTimeout = getDurationEnv("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Upstream.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("GATEKEEPER_API_URL is not a valid URL: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("GATEKEEPER_API_URL must use http or https, got %q", c.Upstream.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("GATEKEEPER_API_URL must include a host"))
	}

	if c.Poll.Interval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive"))
	}
	if c.Poll.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("POLL_REQUEST_TIMEOUT must be positive"))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("WEB_PORT must be between 1 and 65535"))
	}
	if c.GRPC.Port < 0 || c.GRPC.Port > 65535 {
		errs = append(errs, fmt.Errorf("GRPC_PORT must be between 0 and 65535"))
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("DASHBOARD_JWT_SECRET must be at least 32 characters"))
	}
	if c.Upstream.Token != "" && c.Upstream.TokenAge != "" {
		errs = append(errs, fmt.Errorf("upstream.token and upstream.token_age are mutually exclusive"))
	}
	if c.Upstream.TokenAge != "" && c.Upstream.AgeIdentity == "" {
		errs = append(errs, fmt.Errorf("upstream.token_age requires GATEKEEPER_AGE_IDENTITY"))
	}

	return errors.Join(errs...)
}

// AuthEnabled reports whether viewers must present a token.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

// WebAddr returns the HTTP listen address.
func (c *Config) WebAddr() string {
	return net.JoinHostPort(c.Web.Host, strconv.Itoa(c.Web.Port))
}

// GRPCAddr returns the gRPC listen address, or "" when disabled.
func (c *Config) GRPCAddr() string {
	if c.GRPC.Port == 0 {
		return ""
	}
	return net.JoinHostPort(c.Web.Host, strconv.Itoa(c.GRPC.Port))
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
