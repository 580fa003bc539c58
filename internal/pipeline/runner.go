package pipeline

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/i474232898/weather-pipeline/internal/metrics"
	"github.com/i474232898/weather-pipeline/pkg/logger"
)

const (
	stageIngest = "ingest"
	stageNotify = "notify"
)

// StageError is returned when a stage still fails after its last attempt.
type StageError struct {
	Stage    string
	Attempts int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// RunResult describes one scheduled-style run.
type RunResult struct {
	ID   string     `json:"run_id"`
	Date civil.Date `json:"run_date"`
	Path Path       `json:"path,omitempty"`
}

// Runner executes ingest then notify, retrying each stage as a whole.
// The handle returned by ingest is passed straight to notify.
type Runner struct {
	p       *Pipeline
	retries int
	delay   time.Duration

	l *logger.Logger
	m *metrics.Metrics
}

func NewRunner(p *Pipeline, retries int, delay time.Duration, l *logger.Logger, m *metrics.Metrics) *Runner {
	if retries < 0 {
		retries = 0
	}
	if l == nil {
		l = logger.Nop()
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Runner{p: p, retries: retries, delay: delay, l: l, m: m}
}

// Today is the run date of a run triggered now.
func Today() civil.Date {
	return civil.DateOf(time.Now())
}

// Run performs a full run for runDate. The returned result carries the run
// id even on failure, and the dated path once ingest has succeeded.
func (r *Runner) Run(ctx context.Context, runDate civil.Date) (RunResult, error) {
	res := RunResult{ID: uuid.NewString(), Date: runDate}
	l := r.l.With(map[string]any{"run_id": res.ID, "run_date": runDate.String()})

	l.Info("pipeline run started")

	err := r.stage(ctx, l, stageIngest, func(ctx context.Context) error {
		handle, err := r.p.Ingest(ctx, runDate)
		if err != nil {
			return err
		}
		res.Path = handle
		return nil
	})
	if err != nil {
		l.Error(err, map[string]any{"stage": stageIngest})
		return res, err
	}

	err = r.stage(ctx, l, stageNotify, func(ctx context.Context) error {
		return r.p.Notify(ctx, res.Path)
	})
	if err != nil {
		l.Error(err, map[string]any{"stage": stageNotify, "path": res.Path.String()})
		return res, err
	}

	l.Info("pipeline run finished", map[string]any{"path": res.Path.String()})
	return res, nil
}

func (r *Runner) stage(ctx context.Context, l *logger.Logger, name string, fn func(context.Context) error) error {
	attempts := r.retries + 1

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		err = fn(ctx)
		r.m.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err == nil {
			r.m.StageRuns.WithLabelValues(name, "success").Inc()
			return nil
		}
		r.m.StageRuns.WithLabelValues(name, "failure").Inc()

		if attempt == attempts {
			break
		}

		l.Warning("stage failed, retrying", map[string]any{
			"stage":   name,
			"attempt": attempt,
			"of":      attempts,
			"delay":   r.delay.String(),
			"error":   err,
		})
		if werr := sleep(ctx, r.delay); werr != nil {
			return &StageError{Stage: name, Attempts: attempt, Err: fmt.Errorf("%w (last error: %v)", werr, err)}
		}
	}

	return &StageError{Stage: name, Attempts: attempts, Err: err}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
