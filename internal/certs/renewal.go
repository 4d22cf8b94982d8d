package certs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"siteman/logger"
)

// RenewalScheduler runs certificate renewal on a fixed interval for
// long-lived invocations (the dashboard). The renewer itself decides which
// certificates are actually due; running the job often is harmless.
type RenewalScheduler struct {
	orchestrator *Orchestrator
	scheduler    gocron.Scheduler
	interval     time.Duration
}

func NewRenewalScheduler(o *Orchestrator, interval time.Duration) (*RenewalScheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &RenewalScheduler{orchestrator: o, scheduler: scheduler, interval: interval}, nil
}

// Start queues the renewal job and starts the scheduler. Overlapping runs
// are serialized.
func (r *RenewalScheduler) Start(ctx context.Context) error {
	job, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.run, ctx),
		gocron.WithSingletonMode(gocron.LimitModeWait))
	if err != nil {
		return err
	}

	logger.Info("renewal job queued",
		zap.String("Name", job.Name()),
		zap.Duration("Interval", r.interval))
	r.scheduler.Start()
	return nil
}

func (r *RenewalScheduler) run(ctx context.Context) {
	if err := r.orchestrator.Renew(ctx); err != nil {
		logger.Error("scheduled renewal failed", zap.Error(err))
		return
	}
	logger.Info("scheduled renewal completed")
}

func (r *RenewalScheduler) Stop() error {
	return r.scheduler.Shutdown()
}
