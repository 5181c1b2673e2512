package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/sabunku/storefront-backend/pkg/logger"
	"github.com/sabunku/storefront-backend/pkg/metrics"
)

const defaultInterval = time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs the registered maintenance jobs every interval. A cycle only
// runs on the worker that wins the lock, so several cron-worker replicas
// can be deployed without expiring the same order twice.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	svc := &Service{
		logg:     params.Logger,
		registry: params.Registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: params.Interval,
	}
	if svc.registry == nil {
		svc.registry = NewRegistry()
	}
	if svc.interval <= 0 {
		svc.interval = defaultInterval
	}
	return svc, nil
}

// RunOnce runs a single cycle. Used by `cron-worker -once`.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.cycle(ctx)
}

// Run runs a cycle immediately and then on every tick until ctx ends. Cycle
// errors are logged; they never stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.cycle(ctx); err != nil && ctx.Err() == nil {
			s.logg.Error(ctx, "cron cycle failed", err)
		}
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// jobResult is one job's line in the cycle summary.
type jobResult struct {
	name string
	took time.Duration
	err  error
}

func (s *Service) cycle(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	won, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !won {
		s.logg.Info(ctx, "cron lock held elsewhere, skipping cycle")
		return nil
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release cron lock", err)
		}
	}()

	started := time.Now()
	var (
		results []jobResult
		errs    error
	)
	for _, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		res := s.runJob(ctx, job)
		results = append(results, res)
		if res.err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"jobs":        len(results),
		"failed":      failed,
		"duration_ms": time.Since(started).Milliseconds(),
	}), "cron cycle finished")
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) jobResult {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Debug(jobCtx, "job start")

	res := jobResult{name: job.Name()}
	start := time.Now()
	res.err = job.Run(jobCtx)
	res.took = time.Since(start)
	s.metrics.Record(res.name, res.took, res.err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", res.took.Milliseconds())
	if res.err != nil {
		s.logg.Error(jobCtx, "job failed", res.err)
	} else {
		s.logg.Info(jobCtx, "job completed")
	}
	return res
}
