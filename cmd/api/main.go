package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sabunku/storefront-backend/api/routes"
	"github.com/sabunku/storefront-backend/internal/auth"
	checkoutsvc "github.com/sabunku/storefront-backend/internal/checkout"
	"github.com/sabunku/storefront-backend/internal/media"
	"github.com/sabunku/storefront-backend/internal/orders"
	products "github.com/sabunku/storefront-backend/internal/products"
	"github.com/sabunku/storefront-backend/internal/reviews"
	"github.com/sabunku/storefront-backend/internal/users"
	"github.com/sabunku/storefront-backend/pkg/auth/session"
	"github.com/sabunku/storefront-backend/pkg/config"
	"github.com/sabunku/storefront-backend/pkg/db"
	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/metrics"
	"github.com/sabunku/storefront-backend/pkg/migrate"
	"github.com/sabunku/storefront-backend/pkg/outbox"
	"github.com/sabunku/storefront-backend/pkg/redis"
	"github.com/sabunku/storefront-backend/pkg/security"
	"github.com/sabunku/storefront-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	registry := metrics.NewRegistry()
	conn := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		Admins:         users.NewRepository(conn),
		SessionManager: sessionManager,
		Hasher:         security.NewHasher(cfg.Password),
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}
	if cfg.Admin.BootstrapEnabled() {
		created, err := authService.Bootstrap(context.Background(), cfg.Admin.BootstrapEmail, cfg.Admin.BootstrapPassword)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap admin", err)
			os.Exit(1)
		}
		if created {
			logg.Info(logg.WithField(context.Background(), "email", cfg.Admin.BootstrapEmail), "bootstrap admin created")
		}
	}

	var imageCleaner media.Service
	if cfg.GCS.Enabled() {
		gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap gcs", err)
			os.Exit(1)
		}
		imageCleaner, err = media.NewService(media.ServiceParams{
			Store:  gcsClient,
			Prefix: cfg.GCS.ImagePrefix,
			Logger: logg,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create media service", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "gcs bucket not configured, product image cleanup disabled")
	}

	productService, err := products.NewService(products.NewRepository(conn), dbClient, logg, imageCleaner)
	if err != nil {
		logg.Error(context.Background(), "failed to create product service", err)
		os.Exit(1)
	}
	reviewService, err := reviews.NewService(reviews.NewRepository(conn), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create review service", err)
		os.Exit(1)
	}
	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Tx:         dbClient,
		Repository: checkoutsvc.NewRepository(conn),
		Outbox:     emitter,
		Metrics:    metrics.NewCheckoutMetrics(registry),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(conn),
		Tx:         dbClient,
		Outbox:     emitter,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:         cfg,
			Logger:         logg,
			DB:             dbClient,
			Redis:          redisClient,
			Sessions:       sessionManager,
			Auth:           authService,
			Products:       productService,
			Reviews:        reviewService,
			Checkout:       checkoutService,
			Orders:         orderService,
			HTTPMetrics:    metrics.NewHTTPMetrics(registry),
			MetricsHandler: metrics.Handler(registry),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}
