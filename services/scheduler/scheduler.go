// Package scheduler runs the periodic jobs of the API process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/cadence/academy/core"
)

// JobFunc is a periodic job. Its context is cancelled after the job timeout.
type JobFunc func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	logger  core.Logger
	timeout time.Duration
}

func New(logger core.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		timeout: 5 * time.Minute,
	}
}

// Add registers fn to run on the standard 5-field cron spec.
func (s *Scheduler) Add(name, spec string, fn JobFunc) error {
	if _, err := s.cron.AddFunc(spec, func() { s.run(name, fn) }); err != nil {
		return errors.Wrapf(err, "scheduling %s", name)
	}
	return nil
}

func (s *Scheduler) run(name string, fn JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Sprintf("scheduler: %s panicked: %v", name, r))
		}
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("scheduler: %s: %v", name, err), err)
		return
	}
	s.logger.Debug(fmt.Sprintf("scheduler: %s done in %s", name, time.Since(start)))
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop stops scheduling and waits for the running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
