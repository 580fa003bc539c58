package scheduler

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-pipeline/internal/pipeline"
	"github.com/i474232898/weather-pipeline/pkg/logger"
)

// Runner performs one full pipeline run. pipeline.Runner implements it.
type Runner interface {
	Run(ctx context.Context, runDate civil.Date) (pipeline.RunResult, error)
}

// Scheduler triggers pipeline runs on a cron schedule.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	spec      string
	today     func() civil.Date
	l         *logger.Logger
}

// New creates a Scheduler. spec is a standard cron expression or a
// descriptor such as @monthly.
func New(spec string, runner Runner, l *logger.Logger) *Scheduler {
	if l == nil {
		l = logger.Nop()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		spec:      spec,
		today:     pipeline.Today,
		l:         l,
	}
}

// Start registers the job and starts the underlying scheduler. Runs use ctx,
// so cancelling it aborts a run in progress. A trigger that fires while the
// previous run is still going is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Cron(s.spec).SingletonMode().Do(func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.scheduler.StartAsync()
	s.l.Info("scheduler started", map[string]any{"schedule": s.spec, "next_run": s.NextRun().Format(time.RFC3339)})
	return nil
}

// NextRun reports when the job fires next, or the zero time before Start.
func (s *Scheduler) NextRun() time.Time {
	_, next := s.scheduler.NextRun()
	return next
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	runDate := s.today()
	s.l.Info("scheduler: running weather pipeline", map[string]any{"run_date": runDate.String()})

	res, err := s.runner.Run(ctx, runDate)
	if err != nil {
		s.l.Error(err, map[string]any{"run_id": res.ID, "run_date": runDate.String()})
		return
	}
	s.l.Info("scheduler: pipeline run completed", map[string]any{"run_id": res.ID, "path": res.Path.String()})
}
