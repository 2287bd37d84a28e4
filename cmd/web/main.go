// Package main provides the entry point for the GateKeeper dashboard server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/auth"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/dashboard"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/feed"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/grpchealth"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/poller"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/secrets"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/shutdown"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
	"github.com/narvanalabs/gatekeeper-dashboard/pkg/config"
	"github.com/narvanalabs/gatekeeper-dashboard/pkg/logger"
	"github.com/narvanalabs/gatekeeper-dashboard/web/api"
	"github.com/narvanalabs/gatekeeper-dashboard/web/health"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file (or set "+config.ConfigFileEnv+")")
	showVersion := flag.Bool("version", false, "Print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(Version)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Default().Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logger.FromConfig(cfg.Log.Level, cfg.Log.Format)
	health.Version = Version

	token, err := secrets.ResolveToken(cfg.Upstream.Token, cfg.Upstream.TokenAge, cfg.Upstream.AgeIdentity, log.Logger)
	if err != nil {
		log.Error("failed to resolve upstream token", "error", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.Upstream.BaseURL).
		WithLogsPath(cfg.Upstream.LogsPath).
		WithToken(token).
		WithTimeout(cfg.Poll.RequestTimeout)

	store := state.NewStore()
	broker := feed.NewBroker(log.WithComponent("feed").Logger)
	store.OnChange(broker.PublishSnapshot)

	p := poller.New(client, store, cfg.Poll.Interval, log.WithComponent("poller").Logger)

	checker := health.NewChecker(Version)
	checker.SetTimeout(cfg.Poll.RequestTimeout)
	checker.Register("poller", health.PollerCheck(p.Running))
	checker.Register("upstream", health.UpstreamCheck(store.Snapshot))

	var validator *auth.Service
	if cfg.AuthEnabled() {
		validator = auth.NewService(&auth.Config{
			JWTSecret:   []byte(cfg.Auth.JWTSecret),
			TokenExpiry: cfg.Auth.JWTExpiry,
		}, log.WithComponent("auth").Logger)
	} else {
		log.Warn("viewer auth disabled; set DASHBOARD_JWT_SECRET to require tokens")
	}

	srvCfg := &dashboard.Config{
		Addr:          cfg.WebAddr(),
		Upstream:      client.URL(),
		Interval:      cfg.Poll.Interval,
		Version:       Version,
		SecureCookies: cfg.Web.SecureCookies,
	}
	var server *dashboard.Server
	if validator != nil {
		server = dashboard.NewServer(srvCfg, store, broker, checker, validator, log.Logger)
	} else {
		server = dashboard.NewServer(srvCfg, store, broker, checker, nil, log.Logger)
	}

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Registered in reverse stop order: the poller drains first so its last
	// result reaches subscribers before the broker and servers close.
	if addr := cfg.GRPCAddr(); addr != "" {
		grpcServer := grpchealth.NewServer(grpchealth.DefaultConfig(), log.WithComponent("grpc").Logger)
		store.OnChange(grpcServer.OnSnapshot)
		coordinator.Register(shutdown.NewGRPCServerComponent("grpc-health", grpcServer))
		go func() {
			if err := grpcServer.ListenAndServe(addr); err != nil {
				log.Error("gRPC health server failed", "error", err)
				coordinator.Shutdown()
			}
		}()
	}

	coordinator.Register(shutdown.NewHTTPServerComponent("dashboard", server.HTTPServer()))
	coordinator.Register(shutdown.NewFuncComponent("feed", func(context.Context) error {
		broker.Close()
		return nil
	}))
	coordinator.Register(shutdown.NewPollerComponent("poller", p))

	go func() {
		if err := server.Start(ctx); err != nil {
			log.Error("dashboard server failed", "error", err)
			coordinator.Shutdown()
		}
	}()

	go func() {
		if err := p.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("poller failed", "error", err)
		}
	}()

	log.Info("dashboard ready",
		"addr", cfg.WebAddr(),
		"upstream", redact(client.URL()),
		"interval", cfg.Poll.Interval,
		"auth", validator != nil,
		"version", Version,
	)

	coordinator.WaitForSignal()
	coordinator.Wait()
	cancel()

	log.Info("dashboard stopped")
	os.Exit(coordinator.ExitCode())
}

// redact strips credentials from a URL before it is logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
