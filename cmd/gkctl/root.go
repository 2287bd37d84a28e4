package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/poller"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/secrets"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
	"github.com/narvanalabs/gatekeeper-dashboard/pkg/config"
	"github.com/narvanalabs/gatekeeper-dashboard/pkg/logger"
	"github.com/narvanalabs/gatekeeper-dashboard/web/api"
)

var (
	// Flags
	flagConfig   string
	flagURL      string
	flagLogsPath string
	flagToken    string
	flagInterval time.Duration
	flagTimeout  time.Duration
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "gkctl",
	Short: "GateKeeper governance console",
	Long: `gkctl polls a GateKeeper instance's decision log and shows spend,
blocked and allowed requests, and the live feed in the terminal.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (env: "+config.ConfigFileEnv+")")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "GateKeeper base URL (env: GATEKEEPER_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagLogsPath, "logs-path", "", "Path of the logs endpoint (env: GATEKEEPER_LOGS_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token for GateKeeper (env: GATEKEEPER_API_TOKEN)")
	rootCmd.PersistentFlags().DurationVar(&flagInterval, "interval", 0, "Polling interval (env: POLL_INTERVAL)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 0, "Per-request timeout (env: POLL_REQUEST_TIMEOUT)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
}

// Execute runs the root command.
func Execute(version string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("gkctl %s\n", version))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and environment, then applies flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if flagURL != "" {
		cfg.Upstream.BaseURL = flagURL
	}
	if flagLogsPath != "" {
		cfg.Upstream.LogsPath = flagLogsPath
	}
	if flagToken != "" {
		cfg.Upstream.Token = flagToken
		cfg.Upstream.TokenAge = ""
	}
	if flagInterval > 0 {
		cfg.Poll.Interval = flagInterval
	}
	if flagTimeout > 0 {
		cfg.Poll.RequestTimeout = flagTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newPoller builds the client, store and poller from cfg. Logs go to stderr
// so they do not interleave with rendered frames.
func newPoller(cfg *config.Config) (*poller.Poller, *state.Store, error) {
	log := logger.NewWithWriter(os.Stderr, logger.ParseLevel(flagLogLevel), false)

	token, err := secrets.ResolveToken(cfg.Upstream.Token, cfg.Upstream.TokenAge, cfg.Upstream.AgeIdentity, log.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving upstream token: %w", err)
	}

	client := api.NewClient(cfg.Upstream.BaseURL).
		WithLogsPath(cfg.Upstream.LogsPath).
		WithToken(token).
		WithTimeout(cfg.Poll.RequestTimeout)

	store := state.NewStore()
	return poller.New(client, store, cfg.Poll.Interval, log.WithComponent("poller").Logger), store, nil
}
