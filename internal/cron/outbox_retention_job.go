package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/sabunku/storefront-backend/pkg/logger"
)

const outboxRetentionDays = 14

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Outbox     publishedOutboxPurger
	DeadLetter deadLetterPurger
	Retention  int
	Now        func() time.Time
}

type publishedOutboxPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &outboxRetentionJob{
		logg:       params.Logger,
		outbox:     params.Outbox,
		deadLetter: params.DeadLetter,
		retention:  retention,
		now:        now,
	}, nil
}

type outboxRetentionJob struct {
	logg       *logger.Logger
	outbox     publishedOutboxPurger
	deadLetter deadLetterPurger
	retention  int
	now        func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run purges published outbox rows and dead letters older than the
// retention window. Both purges run even if one fails.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	var errs error
	published, err := j.outbox.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge published outbox: %w", err))
	}
	var deadLettered int64
	if j.deadLetter != nil {
		deadLettered, err = j.deadLetter.DeleteBefore(ctx, cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge outbox dlq: %w", err))
		}
	}
	if errs != nil {
		return errs
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":           cutoff,
		"retention_days":   j.retention,
		"published_purged": published,
		"dlq_purged":       deadLettered,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
