package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/classickits/jerseystore-backend/internal/relay"
	"github.com/classickits/jerseystore-backend/pkg/config"
	"github.com/classickits/jerseystore-backend/pkg/db"
	"github.com/classickits/jerseystore-backend/pkg/logger"
	"github.com/classickits/jerseystore-backend/pkg/metrics"
	"github.com/classickits/jerseystore-backend/pkg/migrate"
	"github.com/classickits/jerseystore-backend/pkg/outbox"
	"github.com/classickits/jerseystore-backend/pkg/outbox/registry"
	"github.com/classickits/jerseystore-backend/pkg/pubsub"
)

const serviceName = "outbox-publisher"

func main() {
	if err := godotenv.Load(); err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Warn(context.Background(), ".env file not found, relying on environment")
	}
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "failed to load config", err)
		return err
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceName})

	fail := func(msg string, err error) error {
		logg.Error(ctx, msg, err)
		return err
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fail("failed to bootstrap database", err)
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fail("failed to run dev migrations", err)
	}

	sink, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fail("failed to bootstrap pubsub", err)
	}
	defer func() {
		if err := sink.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	routes, err := registry.New(cfg.PubSub)
	if err != nil {
		return fail("failed to build event registry", err)
	}

	r, err := relay.New(relay.Params{
		Config:   cfg.Outbox,
		Logger:   logg,
		DB:       dbClient,
		Store:    outbox.NewRepository(dbClient.DB()),
		Registry: routes,
		Sink:     sink,
		Metrics:  metrics.NewCommerceMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fail("failed to create outbox relay", err)
	}

	logg.Info(ctx, "starting outbox publisher")
	if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fail("outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
	return nil
}
