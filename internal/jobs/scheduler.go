// Package jobs runs the periodic work: monthly invoicing, scheduled giveaway
// draws and the daily low-stock digest.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout bounds a single job run.
const DefaultTimeout = 10 * time.Minute

// Recorder observes job outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	JobRun(job string, success bool)
}

// Func is one unit of scheduled work.
type Func func(ctx context.Context) error

type Scheduler struct {
	cron     *cron.Cron
	recorder Recorder
	timeout  time.Duration
	baseCtx  context.Context
	cancel   context.CancelFunc
}

// New returns a scheduler evaluating specs in UTC. Overlapping runs of the same
// job are skipped and panics are recovered.
func New(recorder Recorder) *Scheduler {
	logger := cronLogger{l: log.Logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		recorder: recorder,
		timeout:  DefaultTimeout,
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Add registers fn under a standard five-field cron spec or a descriptor
// such as "@every 1m".
func (s *Scheduler) Add(name, spec string, fn Func) error {
	if _, err := s.cron.AddFunc(spec, func() { s.Run(name, fn) }); err != nil {
		return fmt.Errorf("jobs.Scheduler.Add: %s: %w", name, err)
	}
	log.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return nil
}

// Run executes fn once with the scheduler's timeout, logging and recording the
// outcome.
func (s *Scheduler) Run(name string, fn Func) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if s.recorder != nil {
		s.recorder.JobRun(name, err == nil)
	}
	if err != nil {
		log.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("job failed")
		return
	}
	log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("job finished")
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs.Scheduler.Stop: %w", ctx.Err())
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
