package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is a unit of background work run on a schedule.
type Job interface {
	RunOnce(ctx context.Context) error
}

// Scheduler owns the cron runner of the background jobs. A run that is still
// in progress when its next tick fires causes that tick to be skipped.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	stop context.CancelFunc
}

// New creates a scheduler whose jobs log through logger.
func New(logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	ctx, stop := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		ctx:  ctx,
		stop: stop,
	}
}

// Every registers job to run at the given interval.
func (s *Scheduler) Every(interval time.Duration, name string, job Job) error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if err := job.RunOnce(s.ctx); err != nil {
			logrus.WithError(err).Errorf("%s failed", name)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	return nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further runs, cancels running jobs and waits for them to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
