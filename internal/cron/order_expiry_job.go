package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sabunku/storefront-backend/pkg/logger"
)

type staleOrderExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

// OrderExpiryJobParams configure the stale pending order job.
type OrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders staleOrderExpirer
	MaxAge time.Duration
	Now    func() time.Time
}

// NewOrderExpiryJob builds the job that cancels pending orders older than
// MaxAge, returning their stock.
func NewOrderExpiryJob(params OrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.MaxAge <= 0 {
		return nil, fmt.Errorf("pending order max age must be positive")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &orderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		maxAge: params.MaxAge,
		now:    now,
	}, nil
}

type orderExpiryJob struct {
	logg   *logger.Logger
	orders staleOrderExpirer
	maxAge time.Duration
	now    func() time.Time
}

func (j *orderExpiryJob) Name() string { return "order-expiry" }

func (j *orderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	expired, err := j.orders.ExpireStale(ctx, cutoff)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	})
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	j.logg.Info(logCtx, "pending order expiry complete")
	return nil
}
