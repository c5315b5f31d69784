package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/live-vibe/internal/adapter"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/metrics"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/retry"
	"github.com/live-vibe/internal/types"
)

// MaxStudioAssetBytes is the largest accepted audio, image or video upload
const MaxStudioAssetBytes = 100 << 20

// StaleSubmissionAge is how long a processing project may go without a
// provider task before the sweep fails it.
const StaleSubmissionAge = 15 * time.Minute

const taskNotRecordedMessage = "Video generation could not be started. Your generation has been returned."

// AIProjectRepository persists AI studio projects
type AIProjectRepository interface {
	Create(ctx context.Context, p *models.AIProject) error
	GetByID(ctx context.Context, id string) (*models.AIProject, error)
	ListByUser(ctx context.Context, userID string) ([]*models.AIProject, error)
	SetTask(ctx context.Context, id, taskID, prompt, negativePrompt string) error
	MarkFailed(ctx context.Context, id, message string) error
	ListStaleSubmissions(ctx context.Context, createdBefore time.Time, limit int) ([]*models.AIProject, error)
	Delete(ctx context.Context, id, userID string) error
}

// UsageRepository tracks monthly AI generation usage
type UsageRepository interface {
	GetOrCreate(ctx context.Context, userID, monthYear string, planLimit int) (*models.AIGenerationUsage, error)
	TryIncrement(ctx context.Context, userID, monthYear string) (bool, error)
	Refund(ctx context.Context, userID, monthYear string) error
	SetLimit(ctx context.Context, userID, monthYear string, planLimit int) error
}

// AIStudioService creates music-video projects and submits them for generation
type AIStudioService struct {
	tx          TxRunner
	projects    AIProjectRepository
	usage       UsageRepository
	generator   VideoGenerator
	files       FileStore
	plans       planResolver
	bucket      string
	recordRetry *retry.Config // retries storing a submitted task id
	now         func() time.Time
}

// NewAIStudioService creates a new AI studio service
func NewAIStudioService(
	tx TxRunner,
	projects AIProjectRepository,
	usage UsageRepository,
	generator VideoGenerator,
	files FileStore,
	subs ActiveSubscriptionReader,
	buckets Buckets,
) *AIStudioService {
	if tx == nil {
		tx = noTx{}
	}
	return &AIStudioService{
		tx:        tx,
		projects:  projects,
		usage:     usage,
		generator: generator,
		files:     files,
		plans:     planResolver{subs: subs},
		bucket:    buckets.AIStudio,
		recordRetry: &retry.Config{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2,
			ShouldRetry:  func(err error) bool { return !apperrors.IsNotFound(err) },
		},
		now: time.Now,
	}
}

// GetUsage returns this month's usage, creating the row from the user's plan if needed
func (s *AIStudioService) GetUsage(ctx context.Context, userID string) (*models.AIGenerationUsage, error) {
	limit, _, err := s.plans.aiGenerationLimit(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.usage.GetOrCreate(ctx, userID, models.MonthYear(s.now()), limit)
}

// CreateProjectInput is the creative brief of a new project
type CreateProjectInput struct {
	UserID         string            `json:"-"`
	Title          string            `json:"title"`
	Description    string            `json:"description,omitempty"`
	ProjectType    types.ProjectType `json:"projectType,omitempty"`
	Lyrics         string            `json:"lyrics"`
	Mood           string            `json:"mood"`
	Theme          string            `json:"theme"`
	Style          string            `json:"style"`
	AudioFileURL   string            `json:"audioFileUrl,omitempty"`
	ImageFiles     []string          `json:"imageFiles,omitempty"`
	VideoSnippets  []string          `json:"videoSnippets,omitempty"`
	SEOTitle       string            `json:"seoTitle,omitempty"`
	SEODescription string            `json:"seoDescription,omitempty"`
	SEOTags        string            `json:"seoTags,omitempty"` // comma separated
}

// CreateProject records a project, consumes one generation from the monthly
// quota and submits the video task. A rejected submission leaves the project
// failed with the provider's message and gives the generation back.
func (s *AIStudioService) CreateProject(ctx context.Context, in CreateProjectInput) (*models.AIProject, error) {
	p := &models.AIProject{
		UserID:        in.UserID,
		Title:         strings.TrimSpace(in.Title),
		ProjectType:   in.ProjectType,
		Lyrics:        strings.TrimSpace(in.Lyrics),
		Mood:          in.Mood,
		Theme:         in.Theme,
		Style:         in.Style,
		ImageFiles:    in.ImageFiles,
		VideoSnippets: in.VideoSnippets,
		AISettings: map[string]interface{}{
			"mood":  in.Mood,
			"theme": in.Theme,
			"style": in.Style,
		},
		SEOSettings: models.SEOSettings{
			Title:       in.SEOTitle,
			Description: in.SEODescription,
			Tags:        splitTags(in.SEOTags),
		},
		Status:              types.ProjectProcessing,
		YouTubeUploadStatus: types.UploadPending,
	}
	if p.ProjectType == "" {
		p.ProjectType = types.ProjectMusicVideo
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		p.Description = &d
	}
	if in.AudioFileURL != "" {
		p.AudioFileURL = &in.AudioFileURL
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	usage, err := s.GetUsage(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if !usage.CanGenerate() {
		return nil, quotaError(usage)
	}

	month := usage.MonthYear
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		ok, err := s.usage.TryIncrement(ctx, in.UserID, month)
		if err != nil {
			return err
		}
		if !ok {
			return quotaError(usage)
		}
		return s.projects.Create(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"projectId": p.ID,
		"userId":    p.UserID,
	})

	req := adapter.NewMusicVideoRequest(adapter.PromptInput{
		Lyrics:      p.Lyrics,
		Mood:        p.Mood,
		Theme:       p.Theme,
		Style:       p.Style,
		Description: strings.TrimSpace(in.Description),
	})
	task, err := s.generator.CreateVideoTask(ctx, req)
	if err != nil {
		log.WithError(err).Warn("Video task submission failed")
		s.failSubmission(ctx, p, month, err)
		return p, nil
	}

	err = retry.Do(ctx, s.recordRetry, func(ctx context.Context, _ int) error {
		return s.projects.SetTask(ctx, p.ID, task.TaskID, req.Prompt, req.NegativePrompt)
	})
	if err != nil {
		// Without the task id the poller cannot see the project; the task is abandoned.
		log.WithField("taskId", task.TaskID).WithError(err).Error("Failed to record submitted video task")
		s.failSubmission(ctx, p, month, apperrors.NewInternalError(taskNotRecordedMessage, err))
		return p, nil
	}
	p.KlingTaskID = &task.TaskID
	p.KlingPrompt = &req.Prompt
	p.KlingNegativePrompt = &req.NegativePrompt
	log.WithField("taskId", task.TaskID).Info("Video task submitted")
	return p, nil
}

func (s *AIStudioService) failSubmission(ctx context.Context, p *models.AIProject, month string, cause error) {
	log := logging.FromContext(ctx).WithField("projectId", p.ID)
	msg := apperrors.Categorize(cause).Message

	if err := s.projects.MarkFailed(ctx, p.ID, msg); err != nil {
		log.WithError(err).Error("Failed to mark project failed")
	}
	if err := s.usage.Refund(ctx, p.UserID, month); err != nil {
		log.WithError(err).Error("Failed to refund generation")
	}
	metrics.CollectGenerationOutcome(string(types.ProjectFailed))
	p.Status = types.ProjectFailed
	p.ErrorMessage = &msg
}

// FailStaleSubmissions fails processing projects that never got a provider
// task, e.g. after a crash between insert and submission, and returns their
// generations. It reports how many projects were failed.
func (s *AIStudioService) FailStaleSubmissions(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.projects.ListStaleSubmissions(ctx, now.Add(-StaleSubmissionAge), 100)
	if err != nil {
		return 0, err
	}
	cause := apperrors.NewInternalError(taskNotRecordedMessage, nil)
	for _, p := range stale {
		s.failSubmission(ctx, p, models.MonthYear(p.CreatedAt), cause)
	}
	return len(stale), nil
}

func quotaError(u *models.AIGenerationUsage) error {
	err := apperrors.NewTierLimitExceededError("ai_generations", u.PlanLimit)
	err.Message = fmt.Sprintf("You have used all %d AI generations for this month. Upgrade your plan for more.", u.PlanLimit)
	err.Details["used"] = u.GenerationsUsed
	return err
}

// ListProjects lists a user's projects, newest first
func (s *AIStudioService) ListProjects(ctx context.Context, userID string) ([]*models.AIProject, error) {
	return s.projects.ListByUser(ctx, userID)
}

// GetProject returns a project owned by userID
func (s *AIStudioService) GetProject(ctx context.Context, userID, id string) (*models.AIProject, error) {
	p, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, apperrors.NewNotFoundError("ai project", id)
	}
	return p, nil
}

// DeleteProject removes a project owned by userID
func (s *AIStudioService) DeleteProject(ctx context.Context, userID, id string) error {
	return s.projects.Delete(ctx, id, userID)
}

// UploadAsset stores an audio, image or video file for a project and returns its URL
func (s *AIStudioService) UploadAsset(ctx context.Context, userID, fileName, contentType string, data []byte) (string, error) {
	kind := FileKind(contentType)
	if kind == "document" {
		return "", apperrors.NewValidationError("file", "Only audio, image or video files can be used")
	}
	if len(data) == 0 {
		return "", apperrors.NewValidationError("file", "File is empty")
	}
	if len(data) > MaxStudioAssetBytes {
		return "", apperrors.NewValidationError("file", "File is larger than 100MB")
	}
	return s.files.Upload(ctx, s.bucket, objectPath(userID, fileName, s.now(), kind), contentType, data)
}

func splitTags(tags string) []string {
	out := []string{}
	for _, t := range strings.Split(tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
