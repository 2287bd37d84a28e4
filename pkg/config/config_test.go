package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	ConfigFileEnv, "GATEKEEPER_API_URL", "API_URL", "GATEKEEPER_LOGS_PATH",
	"GATEKEEPER_API_TOKEN", "GATEKEEPER_AGE_IDENTITY", "POLL_INTERVAL",
	"POLL_REQUEST_TIMEOUT", "WEB_HOST", "WEB_PORT", "WEB_SECURE_COOKIES", "GRPC_PORT",
	"DASHBOARD_JWT_SECRET", "DASHBOARD_JWT_EXPIRY", "LOG_LEVEL", "LOG_FORMAT",
	"SHUTDOWN_TIMEOUT",
}

// clearEnv blanks every variable the loader reads for the duration of t.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://127.0.0.1:8080" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.LogsPath != "/logs" {
		t.Errorf("LogsPath = %q", cfg.Upstream.LogsPath)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("Interval = %v, want 2s", cfg.Poll.Interval)
	}
	if cfg.WebAddr() != "0.0.0.0:8090" {
		t.Errorf("WebAddr = %q", cfg.WebAddr())
	}
	if cfg.GRPCAddr() != "0.0.0.0:9091" {
		t.Errorf("GRPCAddr = %q", cfg.GRPCAddr())
	}
	if cfg.AuthEnabled() {
		t.Error("auth should be disabled without a secret")
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "http://fallback:1")
	t.Setenv("GATEKEEPER_API_URL", "https://gatekeeper.internal:8443")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("WEB_PORT", "9000")
	t.Setenv("WEB_SECURE_COOKIES", "true")
	t.Setenv("GRPC_PORT", "0")
	t.Setenv("DASHBOARD_JWT_SECRET", strings.Repeat("s", 32))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "https://gatekeeper.internal:8443" {
		t.Errorf("GATEKEEPER_API_URL should take precedence over API_URL, got %q", cfg.Upstream.BaseURL)
	}
	if cfg.Poll.Interval != 500*time.Millisecond {
		t.Errorf("Interval = %v", cfg.Poll.Interval)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Web.Port = %d", cfg.Web.Port)
	}
	if !cfg.Web.SecureCookies {
		t.Error("WEB_SECURE_COOKIES should be applied")
	}
	if cfg.GRPCAddr() != "" {
		t.Errorf("gRPC should be disabled, got %q", cfg.GRPCAddr())
	}
	if !cfg.AuthEnabled() {
		t.Error("auth should be enabled")
	}
}

func TestAPIURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("API_URL", "http://gatekeeper:8080")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://gatekeeper:8080" {
		t.Errorf("BaseURL = %q", cfg.Upstream.BaseURL)
	}
}

func TestFileOverlayAndEnvPrecedence(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
upstream:
  base_url: http://from-file:8080
  logs_path: /v1/logs
poll:
  interval: 5s
web:
  port: 7000
log:
  level: debug
  format: text
`)
	t.Setenv("WEB_PORT", "7100")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "http://from-file:8080" || cfg.Upstream.LogsPath != "/v1/logs" {
		t.Errorf("file values not applied: %+v", cfg.Upstream)
	}
	if cfg.Poll.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", cfg.Poll.Interval)
	}
	if cfg.Poll.RequestTimeout != 10*time.Second {
		t.Errorf("unset file keys should keep defaults, got %v", cfg.Poll.RequestTimeout)
	}
	if cfg.Web.Port != 7100 {
		t.Errorf("env should win over file, got port %d", cfg.Web.Port)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestConfigFileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(ConfigFileEnv, writeFile(t, "grpc:\n  port: 9999\n"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GRPC.Port != 9999 {
		t.Errorf("GRPC.Port = %d", cfg.GRPC.Port)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFile(writeFile(t, "upstream: [unclosed")); err == nil {
		t.Error("expected error for malformed YAML")
	}

	cfg, err := LoadFile("")
	if err != nil || cfg.Poll.Interval != Defaults().Poll.Interval {
		t.Errorf("empty path should yield defaults, got %+v (%v)", cfg, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.Upstream.BaseURL = "gatekeeper:8080" }, "http or https"},
		{"ftp url", func(c *Config) { c.Upstream.BaseURL = "ftp://host" }, "http or https"},
		{"no host", func(c *Config) { c.Upstream.BaseURL = "http://" }, "host"},
		{"zero interval", func(c *Config) { c.Poll.Interval = 0 }, "POLL_INTERVAL"},
		{"zero timeout", func(c *Config) { c.Poll.RequestTimeout = 0 }, "POLL_REQUEST_TIMEOUT"},
		{"bad web port", func(c *Config) { c.Web.Port = 70000 }, "WEB_PORT"},
		{"bad grpc port", func(c *Config) { c.GRPC.Port = -1 }, "GRPC_PORT"},
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "at least 32"},
		{"both tokens", func(c *Config) {
			c.Upstream.Token = "a"
			c.Upstream.TokenAge = "b"
			c.Upstream.AgeIdentity = "c"
		}, "mutually exclusive"},
		{"age without identity", func(c *Config) { c.Upstream.TokenAge = "b" }, "GATEKEEPER_AGE_IDENTITY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestInvalidEnvValuesKeepDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("WEB_PORT", "eighty")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Poll.Interval != 2*time.Second || cfg.Web.Port != 8090 {
		t.Errorf("unparseable values should be ignored, got interval=%v port=%d", cfg.Poll.Interval, cfg.Web.Port)
	}
}
