package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/ian-yc-kim/cnts-messaging-svc/api"
	"github.com/ian-yc-kim/cnts-messaging-svc/core/config"
	"github.com/ian-yc-kim/cnts-messaging-svc/core/logger"
	"github.com/ian-yc-kim/cnts-messaging-svc/core/server"
	"github.com/ian-yc-kim/cnts-messaging-svc/integration/database/pg"
	"github.com/ian-yc-kim/cnts-messaging-svc/messaging"
	"github.com/ian-yc-kim/cnts-messaging-svc/migrations"
	"github.com/ian-yc-kim/cnts-messaging-svc/monitor"
	"github.com/ian-yc-kim/cnts-messaging-svc/publisher"
	"github.com/ian-yc-kim/cnts-messaging-svc/registry"
	"github.com/ian-yc-kim/cnts-messaging-svc/telemetry"
	"github.com/ian-yc-kim/cnts-messaging-svc/ws"
)

// Config aggregates per-package configuration loaded from the environment.
type Config struct {
	DB      pg.Config
	Server  server.Config
	Monitor monitor.Config

	AppName  string `env:"APP_NAME" envDefault:"cnts-messaging-svc"`
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	var cfg Config
	config.MustLoad(&cfg)

	log := newLogger(cfg)
	logger.SetAsDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("service terminated", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, migrations.FS, cfg.DB, log); err != nil {
		return err
	}

	reg := registry.New(registry.WithLogger(log.With(logger.Component("registry"))))
	telemetry.Initialize(reg)

	store := messaging.NewStore(pool, messaging.WithLogger(log.With(logger.Component("store"))))
	pub := publisher.New(reg, publisher.WithLogger(log.With(logger.Component("publisher"))))

	mon, err := monitor.NewFromConfig(cfg.Monitor, reg,
		monitor.WithLogger(log.With(logger.Component("monitor"))))
	if err != nil {
		return err
	}

	wsHandler := ws.NewHandler(reg, ws.WithHandlerLogger(log.With(logger.Component("websocket"))))

	router := api.NewRouter(api.Deps{
		Store:     store,
		Publisher: pub,
		WebSocket: wsHandler,
		Logger:    log.With(logger.Component("api")),
		ReadinessChecks: []func(context.Context) error{
			pg.Healthcheck(pool),
			mon.Healthcheck,
		},
	})

	srv, err := server.NewFromConfig(cfg.Server, server.WithLogger(log.With(logger.Component("server"))))
	if err != nil {
		return err
	}

	log.InfoContext(ctx, "service starting",
		logger.Component("main"),
		logger.Event("startup"),
		slog.String("addr", cfg.Server.Addr),
		slog.String("env", cfg.Env))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(srv.Run(ctx, router))
	g.Go(mon.Run(ctx))

	return g.Wait()
}

func newLogger(cfg Config) *slog.Logger {
	opts := []logger.Option{}
	if cfg.Env == "production" {
		opts = append(opts, logger.WithProduction(cfg.AppName))
	} else {
		opts = append(opts, logger.WithDevelopment(cfg.AppName))
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err == nil {
		opts = append(opts, logger.WithLevel(level))
	}

	return logger.New(opts...)
}
