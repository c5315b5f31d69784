package job

import (
	"context"
	"time"

	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/metrics"
)

// StaleSubmissionSweeper fails AI projects that never recorded a provider task
type StaleSubmissionSweeper interface {
	FailStaleSubmissions(ctx context.Context, now time.Time) (int, error)
}

// StaleSubmissionJob fails processing projects left without a Kling task
type StaleSubmissionJob struct {
	sweeper StaleSubmissionSweeper
	now     func() time.Time
}

func NewStaleSubmissionJob(sweeper StaleSubmissionSweeper) *StaleSubmissionJob {
	return &StaleSubmissionJob{sweeper: sweeper, now: time.Now}
}

// Name implements Job
func (j *StaleSubmissionJob) Name() string { return "stale-ai-submissions" }

// Run implements Job
func (j *StaleSubmissionJob) Run(ctx context.Context) error {
	n, err := j.sweeper.FailStaleSubmissions(ctx, j.now().UTC())
	if n > 0 {
		metrics.GenerationOutcomeCounter.WithLabelValues("abandoned").Add(float64(n))
		logging.WithField("failed", n).Warn("Failed AI projects without a provider task")
	}
	return err
}
