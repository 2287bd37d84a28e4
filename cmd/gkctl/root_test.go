package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/narvanalabs/gatekeeper-dashboard/pkg/config"
)

var envKeys = []string{
	config.ConfigFileEnv, "GATEKEEPER_API_URL", "API_URL", "GATEKEEPER_LOGS_PATH",
	"GATEKEEPER_API_TOKEN", "GATEKEEPER_AGE_IDENTITY", "POLL_INTERVAL",
	"POLL_REQUEST_TIMEOUT", "WEB_HOST", "WEB_PORT", "WEB_SECURE_COOKIES", "GRPC_PORT",
	"DASHBOARD_JWT_SECRET", "DASHBOARD_JWT_EXPIRY", "LOG_LEVEL", "LOG_FORMAT",
	"SHUTDOWN_TIMEOUT",
}

// resetFlags blanks the environment and the persistent flag variables for
// the duration of t.
func resetFlags(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}

	saved := []any{flagConfig, flagURL, flagLogsPath, flagToken, flagInterval, flagTimeout, flagLogLevel, flagJSON}
	t.Cleanup(func() {
		flagConfig = saved[0].(string)
		flagURL = saved[1].(string)
		flagLogsPath = saved[2].(string)
		flagToken = saved[3].(string)
		flagInterval = saved[4].(time.Duration)
		flagTimeout = saved[5].(time.Duration)
		flagLogLevel = saved[6].(string)
		flagJSON = saved[7].(bool)
	})

	flagConfig, flagURL, flagLogsPath, flagToken = "", "", "", ""
	flagInterval, flagTimeout = 0, 0
	flagLogLevel = "error"
	flagJSON = false
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gkctl.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigPrecedence(t *testing.T) {
	const file = `
upstream:
  base_url: http://from-file:8080
  logs_path: /file/logs
  token_age: sealed
  age_identity: AGE-SECRET-KEY-1EXAMPLE
poll:
  interval: 5s
  request_timeout: 4s
`

	tests := []struct {
		name  string
		env   map[string]string
		flags func()
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "file only",
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Upstream.BaseURL != "http://from-file:8080" || cfg.Poll.Interval != 5*time.Second {
					t.Errorf("file values not applied: %+v %+v", cfg.Upstream, cfg.Poll)
				}
			},
		},
		{
			name: "env beats file",
			env:  map[string]string{"GATEKEEPER_API_URL": "http://from-env:8080", "POLL_INTERVAL": "3s"},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Upstream.BaseURL != "http://from-env:8080" || cfg.Poll.Interval != 3*time.Second {
					t.Errorf("env values not applied: %+v %+v", cfg.Upstream, cfg.Poll)
				}
			},
		},
		{
			name: "flags beat env and file",
			env:  map[string]string{"GATEKEEPER_API_URL": "http://from-env:8080", "POLL_INTERVAL": "3s", "GATEKEEPER_LOGS_PATH": "/env/logs"},
			flags: func() {
				flagURL = "http://from-flag:8080"
				flagLogsPath = "/flag/logs"
				flagInterval = time.Second
				flagTimeout = 500 * time.Millisecond
			},
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Upstream.BaseURL != "http://from-flag:8080" || cfg.Upstream.LogsPath != "/flag/logs" {
					t.Errorf("Upstream = %+v", cfg.Upstream)
				}
				if cfg.Poll.Interval != time.Second || cfg.Poll.RequestTimeout != 500*time.Millisecond {
					t.Errorf("Poll = %+v", cfg.Poll)
				}
			},
		},
		{
			name:  "token flag clears sealed token",
			flags: func() { flagToken = "plain" },
			check: func(t *testing.T, cfg *config.Config) {
				if cfg.Upstream.Token != "plain" || cfg.Upstream.TokenAge != "" {
					t.Errorf("Upstream = %+v", cfg.Upstream)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			flagConfig = writeConfig(t, file)
			if tt.flags != nil {
				tt.flags()
			}

			cfg, err := loadConfig()
			if err != nil {
				t.Fatalf("loadConfig: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfigRejectsBadURLFlag(t *testing.T) {
	resetFlags(t)
	flagURL = "gatekeeper:8080"

	if _, err := loadConfig(); err == nil {
		t.Fatal("expected validation error for a URL without scheme")
	}
}
