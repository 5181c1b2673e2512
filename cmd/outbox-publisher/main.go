package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sabunku/storefront-backend/pkg/config"
	"github.com/sabunku/storefront-backend/pkg/db"
	"github.com/sabunku/storefront-backend/pkg/kafka"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/metrics"
	"github.com/sabunku/storefront-backend/pkg/migrate"
	"github.com/sabunku/storefront-backend/pkg/outbox"
	"github.com/sabunku/storefront-backend/pkg/outbox/registry"
	"github.com/sabunku/storefront-backend/pkg/pubsub"
)

// metricsAddr serves /metrics for the publisher process.
const metricsAddr = ":9102"

func main() {
	listDLQ := flag.Int("list-dlq", 0, "print the newest N dead-lettered events and exit")
	requeue := flag.String("requeue", "", "move a dead-lettered outbox event id back to the queue and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	if *listDLQ > 0 || *requeue != "" {
		dlq := outbox.NewDLQRepository(dbClient.DB())
		if err := runDLQCommand(context.Background(), dlq, *listDLQ, *requeue, os.Stdout); err != nil {
			logg.Error(context.Background(), "dlq command failed", err)
			os.Exit(1)
		}
		return
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.Events)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}

	var eventBroker broker
	switch cfg.Events.BrokerKind() {
	case config.BrokerKafka:
		publisher, err := kafka.NewPublisher(cfg.Kafka)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap kafka", err)
			os.Exit(1)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logg.Error(context.Background(), "error closing kafka writer", err)
			}
		}()
		eventBroker = publisher
	case config.BrokerPubSub:
		client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, eventRegistry.Topics(), logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := client.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		eventBroker = client
	default:
		logg.Warn(context.Background(), "no event broker configured, outbox rows are only logged")
		eventBroker = logBroker{logg: logg}
	}

	metricsRegistry := metrics.NewRegistry()
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Broker:        eventBroker,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(metricsRegistry),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"broker":      cfg.Events.BrokerKind(),
	})

	go func() {
		if err := metrics.Serve(ctx, metricsAddr, metricsRegistry); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
