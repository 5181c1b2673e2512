package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sabunku/storefront-backend/internal/cron"
	"github.com/sabunku/storefront-backend/internal/orders"
	"github.com/sabunku/storefront-backend/pkg/config"
	"github.com/sabunku/storefront-backend/pkg/db"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/metrics"
	"github.com/sabunku/storefront-backend/pkg/migrate"
	"github.com/sabunku/storefront-backend/pkg/outbox"
	"github.com/sabunku/storefront-backend/pkg/redis"
)

const (
	serviceKind = "cron-worker"
	metricsAddr = ":9101"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	bootLog := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		bootLog.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		bootLog.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind})

	if err := run(ctx, cfg, logg, *once); err != nil {
		logg.Error(ctx, "cron worker failed", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	jobs, err := buildJobs(cfg, dbClient, logg)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(serviceKind), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("cron lock: %w", err)
	}

	registry := metrics.NewRegistry()
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(registry),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return fmt.Errorf("cron service: %w", err)
	}

	ctx = logg.WithField(ctx, "jobs", len(jobs.Jobs()))
	if once {
		logg.Info(ctx, "running single cron cycle")
		return service.RunOnce(ctx)
	}

	go func() {
		if err := metrics.Serve(ctx, metricsAddr, registry); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildJobs registers pending order expiry (when enabled) and outbox
// retention.
func buildJobs(cfg *config.Config, dbClient *db.Client, logg *logger.Logger) (*cron.Registry, error) {
	conn := dbClient.DB()
	jobs := cron.NewRegistry()

	if maxAge := cfg.Orders.PendingExpiry(); maxAge > 0 {
		orderService, err := orders.NewService(orders.ServiceParams{
			Repository: orders.NewRepository(conn),
			Tx:         dbClient,
			Outbox:     outbox.NewService(outbox.NewRepository(conn), logg),
			Logger:     logg,
		})
		if err != nil {
			return nil, fmt.Errorf("order service: %w", err)
		}
		expiry, err := cron.NewOrderExpiryJob(cron.OrderExpiryJobParams{Logger: logg, Orders: orderService, MaxAge: maxAge})
		if err != nil {
			return nil, fmt.Errorf("order expiry job: %w", err)
		}
		jobs.Register(expiry)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Outbox:     outbox.NewRepository(conn),
		DeadLetter: outbox.NewDLQRepository(conn),
		Retention:  cfg.Outbox.RetentionDays,
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}
	jobs.Register(retention)
	return jobs, nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+what, err)
	}
}
