// Package worker runs the background loops of the worker process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/live-vibe/internal/adapter"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/metrics"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

const (
	defaultPollInterval = 10 * time.Second
	minPollInterval     = time.Second
	maxPollInterval     = 60 * time.Second
	defaultMaxAttempts  = 30
	defaultBatchSize    = 50
)

// ProjectStore is the part of the AI project repository the poller needs
type ProjectStore interface {
	ListProcessing(ctx context.Context, limit int) ([]*models.AIProject, error)
	MarkCompleted(ctx context.Context, id, videoURL string, completedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string) error
	IncrementPollAttempts(ctx context.Context, id string) (int, error)
}

// TaskStatusSource reports the status of a provider task
type TaskStatusSource interface {
	GetTaskStatus(ctx context.Context, taskID string) (*adapter.TaskData, error)
}

// Notifier creates user notifications
type Notifier interface {
	Notify(ctx context.Context, userID, notificationType, title, message string, data map[string]interface{}) (*models.Notification, error)
}

// PollOutcome is what one poll did to a project
type PollOutcome string

const (
	OutcomeCompleted PollOutcome = "completed"
	OutcomeFailed    PollOutcome = "failed"
	OutcomeTimedOut  PollOutcome = "timed_out"
	OutcomePending   PollOutcome = "pending"
)

// GenerationPoller drives processing AI projects to completed or failed by
// polling their video task
type GenerationPoller struct {
	projects    ProjectStore
	tasks       TaskStatusSource
	notifier    Notifier
	interval    time.Duration
	maxAttempts int
	batchSize   int
	now         func() time.Time

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastPoll time.Time
}

// GenerationPollerConfig holds configuration for a generation poller
type GenerationPollerConfig struct {
	Projects     ProjectStore
	Tasks        TaskStatusSource
	Notifier     Notifier // optional
	PollInterval time.Duration
	MaxAttempts  int
	BatchSize    int
}

// NewGenerationPoller creates a new generation poller
func NewGenerationPoller(cfg *GenerationPollerConfig) (*GenerationPoller, error) {
	if cfg.Projects == nil {
		return nil, fmt.Errorf("project store cannot be nil")
	}
	if cfg.Tasks == nil {
		return nil, fmt.Errorf("task status source cannot be nil")
	}

	interval := cfg.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}
	if interval < minPollInterval || interval > maxPollInterval {
		return nil, fmt.Errorf("poll interval must be between 1 and 60 seconds, got %v", interval)
	}

	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &GenerationPoller{
		projects:    cfg.Projects,
		tasks:       cfg.Tasks,
		notifier:    cfg.Notifier,
		interval:    interval,
		maxAttempts: maxAttempts,
		batchSize:   batchSize,
		now:         time.Now,
	}, nil
}

// Start begins polling in a background goroutine
func (p *GenerationPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("generation poller is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"interval":    p.interval.String(),
		"maxAttempts": p.maxAttempts,
	}).Info("Starting generation poller")

	go p.loop(ctx, p.stopCh, p.doneCh)
	return nil
}

// Stop signals the loop to exit and waits for the current pass to finish
func (p *GenerationPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return fmt.Errorf("generation poller is not running")
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		logging.FromContext(ctx).Info("Generation poller stopped")
	case <-ctx.Done():
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

// IsRunning reports whether the loop is active
func (p *GenerationPoller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// LastPoll returns when the last pass started
func (p *GenerationPoller) LastPoll() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll
}

func (p *GenerationPoller) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if _, err := p.PollOnce(ctx); err != nil {
				logging.FromContext(ctx).WithError(err).Warn("Generation poll pass failed")
			}
		}
	}
}

// PollOnce polls every processing project once and returns how many
// reached a terminal status
func (p *GenerationPoller) PollOnce(ctx context.Context) (int, error) {
	start := p.now()
	p.mu.Lock()
	p.lastPoll = start
	p.mu.Unlock()
	defer func() { metrics.PollerCycleHistogram.Observe(time.Since(start).Seconds()) }()

	projects, err := p.projects.ListProcessing(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list processing projects: %w", err)
	}

	finished := 0
	for _, project := range projects {
		if ctx.Err() != nil {
			return finished, ctx.Err()
		}
		outcome, err := p.PollProject(ctx, project)
		if err != nil {
			logging.FromContext(ctx).WithField("projectId", project.ID).WithError(err).Warn("Failed to poll project")
			continue
		}
		if outcome != OutcomePending {
			finished++
		}
	}
	return finished, nil
}

// PollProject queries the task of one processing project and records the
// result. A status error counts as an attempt so a task that can no longer
// be queried still times out.
func (p *GenerationPoller) PollProject(ctx context.Context, project *models.AIProject) (PollOutcome, error) {
	if project.KlingTaskID == nil || *project.KlingTaskID == "" {
		return "", fmt.Errorf("project %s has no task id", project.ID)
	}
	log := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"projectId": project.ID,
		"taskId":    *project.KlingTaskID,
	})

	task, err := p.tasks.GetTaskStatus(ctx, *project.KlingTaskID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		log.WithError(err).Warn("Task status query failed")
	} else {
		switch {
		case task.TaskStatus == types.KlingTaskSucceed && task.VideoURL() != "":
			return OutcomeCompleted, p.complete(ctx, project, task.VideoURL())
		case task.TaskStatus == types.KlingTaskFailed:
			return OutcomeFailed, p.fail(ctx, project, task.FailureMessage(), OutcomeFailed)
		}
	}

	attempts, err := p.projects.IncrementPollAttempts(ctx, project.ID)
	if err != nil {
		return "", err
	}
	if attempts >= p.maxAttempts {
		log.WithField("attempts", attempts).Warn("Video generation timed out")
		return OutcomeTimedOut, p.fail(ctx, project, adapter.MsgPollTimeout, OutcomeTimedOut)
	}
	return OutcomePending, nil
}

func (p *GenerationPoller) complete(ctx context.Context, project *models.AIProject, videoURL string) error {
	if err := p.projects.MarkCompleted(ctx, project.ID, videoURL, p.now().UTC()); err != nil {
		return err
	}
	metrics.CollectGenerationOutcome(string(types.ProjectCompleted))
	logging.FromContext(ctx).WithField("projectId", project.ID).Info("Video generation completed")

	p.notify(ctx, project, types.NotificationVideoReady, "Video generated!",
		"Your AI music video has been generated successfully with Kling AI!",
		map[string]interface{}{"project_id": project.ID, "video_url": videoURL})
	return nil
}

func (p *GenerationPoller) fail(ctx context.Context, project *models.AIProject, message string, outcome PollOutcome) error {
	if err := p.projects.MarkFailed(ctx, project.ID, message); err != nil {
		return err
	}
	metrics.CollectGenerationOutcome(string(outcome))

	p.notify(ctx, project, types.NotificationVideoFailed, "Video generation failed", message,
		map[string]interface{}{"project_id": project.ID})
	return nil
}

func (p *GenerationPoller) notify(ctx context.Context, project *models.AIProject, notificationType, title, message string, data map[string]interface{}) {
	if p.notifier == nil {
		return
	}
	if _, err := p.notifier.Notify(ctx, project.UserID, notificationType, title, message, data); err != nil {
		logging.FromContext(ctx).WithField("projectId", project.ID).WithError(err).Warn("Failed to notify project owner")
	}
}
