// Package scheduler runs the posting job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"twiper/internal/logging"
)

// Job is one posting run.
type Job func(ctx context.Context) error

type Runner struct {
	c   *cron.Cron
	log *logging.Logger
}

// NewRunner schedules job with a standard 5-field cron expression. The
// job is never run concurrently with itself: a tick that fires while a
// run is still in progress is skipped.
func NewRunner(spec string, job Job, log *logging.Logger) (*Runner, error) {
	c := cron.New()

	running := make(chan struct{}, 1)
	_, err := c.AddFunc(spec, func() {
		select {
		case running <- struct{}{}:
		default:
			log.Warnf("previous posting run still in progress, skipping tick")
			return
		}
		defer func() { <-running }()

		start := time.Now()
		log.Infof("cron job started at %s", start.UTC().Format(time.RFC3339))
		if err := job(context.Background()); err != nil {
			log.Errorf("cron job failed: %v", err)
			return
		}
		log.Infof("cron job finished successfully in %s", time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	return &Runner{c: c, log: log}, nil
}

// Run starts the cron loop and blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.c.Start()
	<-ctx.Done()
	stopCtx := r.c.Stop()
	// Let an in-flight run finish before returning.
	<-stopCtx.Done()
	r.log.Infof("scheduler stopped")
}
