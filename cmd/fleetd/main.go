// Command fleetd runs one instance of a horizontally scaled web service:
// shared sessions, peer session events, fleet metrics and a scaling advisor,
// all coordinated through the Redis backplane.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/fleet/core/config"
	"github.com/dmitrymomot/fleet/core/fleet"
	"github.com/dmitrymomot/fleet/core/logger"
	"github.com/dmitrymomot/fleet/core/server"
	"github.com/dmitrymomot/fleet/core/session"
)

// logConfig overrides the level implied by APP_ENV.
type logConfig struct {
	Level string `env:"LOG_LEVEL"`
}

func main() {
	var (
		cfg    fleet.Config
		srvCfg server.Config
		logCfg logConfig
	)
	config.MustLoad(&cfg)
	config.MustLoad(&srvCfg)
	config.MustLoad(&logCfg)

	log := newLogger(cfg, logCfg)
	logger.SetAsDefault(log)

	if err := run(cfg, srvCfg, log); err != nil {
		log.Error("fleetd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg fleet.Config, logCfg logConfig) *slog.Logger {
	var opts []logger.Option
	switch cfg.AppEnv {
	case "production":
		opts = append(opts, logger.WithProduction(cfg.AppName))
	case "staging":
		opts = append(opts, logger.WithStaging(cfg.AppName))
	default:
		opts = append(opts, logger.WithDevelopment(cfg.AppName))
	}

	if logCfg.Level != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logCfg.Level)); err == nil {
			opts = append(opts, logger.WithLevel(level))
		}
	}

	opts = append(opts, logger.WithContextExtractors(session.LogAttr))
	return logger.New(opts...)
}

func run(cfg fleet.Config, srvCfg server.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := fleet.New(ctx, cfg, fleet.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			log.Error("failed to close fleet runtime", logger.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reg.MustRegister(rt.Collectors()...)

	srv, err := server.NewFromConfig(srvCfg, server.WithLogger(log))
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(rt.Run(gctx))
	g.Go(srv.Run(gctx, routes(rt, reg, log)))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
