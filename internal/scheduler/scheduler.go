// Package scheduler drives the engine's clockwork: the pre-open universe
// filter, the intraday snapshot-and-trade loop, and the nightly archive.
// All schedules run in exchange time.
package scheduler

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// Job is one scheduled unit of work. Run receives a context that is
// cancelled on shutdown after the in-flight grace period.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// Scheduler wraps cron with exchange-local schedules and a shutdown that
// waits for running jobs.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	baseCtx context.Context
}

// New builds a scheduler. All cron expressions are evaluated in exchange
// time, not the host zone.
func New(log zerolog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(domain.MarketLocation())),
		log:     log.With().Str("component", "scheduler").Logger(),
		cancel:  cancel,
		baseCtx: ctx,
	}
}

// AddJob registers a job on a cron schedule. Job failures are logged, never
// fatal: the next scheduled run gets a clean slate.
func (s *Scheduler) AddJob(spec string, job Job) error {
	_, err := s.cron.AddFunc(spec, func() {
		log := s.log.With().Str("job", job.Name()).Logger()
		log.Debug().Msg("job started")
		if err := job.Run(s.baseCtx); err != nil {
			log.Error().Err(err).Msg("job failed")
			return
		}
		log.Debug().Msg("job completed")
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", spec).Str("job", job.Name()).Msg("job registered")
	return nil
}

// Start begins dispatching jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop drains the scheduler: no new runs are dispatched and the call blocks
// until in-flight jobs return. The job context stays live through the drain
// so a tick in progress finishes its journal writes.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	<-done.Done()
	s.cancel()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes a job immediately, outside its schedule.
func (s *Scheduler) RunNow(job Job) error {
	s.log.Info().Str("job", job.Name()).Msg("running job now")
	return job.Run(s.baseCtx)
}
