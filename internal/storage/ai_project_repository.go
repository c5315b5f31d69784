package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// AIProjectRepository handles AI studio projects
type AIProjectRepository struct {
	db *PostgresDB
}

// NewAIProjectRepository creates a new AI project repository
func NewAIProjectRepository(db *PostgresDB) *AIProjectRepository {
	return &AIProjectRepository{db: db}
}

const projectColumns = `id, user_id, title, description, project_type, lyrics, mood, theme, style,
	audio_file_url, image_files, video_snippets, ai_settings, seo_settings, status, kling_task_id,
	kling_prompt, kling_negative_prompt, poll_attempts, output_video_url, error_message,
	youtube_video_id, youtube_upload_status, created_at, updated_at, completed_at`

func scanProject(row rowScanner) (*models.AIProject, error) {
	var p models.AIProject
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Description, &p.ProjectType, &p.Lyrics, &p.Mood,
		&p.Theme, &p.Style, &p.AudioFileURL, &p.ImageFiles, &p.VideoSnippets, &p.AISettings,
		&p.SEOSettings, &p.Status, &p.KlingTaskID, &p.KlingPrompt, &p.KlingNegativePrompt,
		&p.PollAttempts, &p.OutputVideoURL, &p.ErrorMessage, &p.YouTubeVideoID,
		&p.YouTubeUploadStatus, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a project
func (r *AIProjectRepository) Create(ctx context.Context, p *models.AIProject) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Status == "" {
		p.Status = types.ProjectDraft
	}
	if p.YouTubeUploadStatus == "" {
		p.YouTubeUploadStatus = types.UploadPending
	}
	if p.AISettings == nil {
		p.AISettings = map[string]interface{}{}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO ai_projects (`+projectColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19,
			$20, $21, $22, $23, $24, $25, $26)
	`, p.ID, p.UserID, p.Title, p.Description, p.ProjectType, p.Lyrics, p.Mood, p.Theme, p.Style,
		p.AudioFileURL, nonNil(p.ImageFiles), nonNil(p.VideoSnippets), p.AISettings, p.SEOSettings,
		p.Status, p.KlingTaskID, p.KlingPrompt, p.KlingNegativePrompt, p.PollAttempts, p.OutputVideoURL,
		p.ErrorMessage, p.YouTubeVideoID, p.YouTubeUploadStatus, p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create ai project: %w", err)
	}
	return nil
}

// GetByID retrieves a project
func (r *AIProjectRepository) GetByID(ctx context.Context, id string) (*models.AIProject, error) {
	p, err := scanProject(r.db.q(ctx).QueryRow(ctx, `SELECT `+projectColumns+` FROM ai_projects WHERE id = $1`, id))
	if err != nil {
		return nil, wrapQueryErr(err, "ai project", id)
	}
	return p, nil
}

// ListByUser lists a user's projects, newest first
func (r *AIProjectRepository) ListByUser(ctx context.Context, userID string) ([]*models.AIProject, error) {
	return r.query(ctx, `SELECT `+projectColumns+` FROM ai_projects WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListProcessing lists projects waiting on a provider task, oldest update first
func (r *AIProjectRepository) ListProcessing(ctx context.Context, limit int) ([]*models.AIProject, error) {
	return r.query(ctx, `
		SELECT `+projectColumns+` FROM ai_projects
		WHERE status = 'processing' AND kling_task_id IS NOT NULL
		ORDER BY updated_at ASC
		LIMIT $1
	`, limit)
}

// ListStaleSubmissions lists processing projects created before createdBefore
// that never recorded a provider task
func (r *AIProjectRepository) ListStaleSubmissions(ctx context.Context, createdBefore time.Time, limit int) ([]*models.AIProject, error) {
	return r.query(ctx, `
		SELECT `+projectColumns+` FROM ai_projects
		WHERE status = 'processing' AND kling_task_id IS NULL AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, createdBefore, limit)
}

func (r *AIProjectRepository) query(ctx context.Context, query string, args ...any) ([]*models.AIProject, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ai projects: %w", err)
	}
	defer rows.Close()

	var out []*models.AIProject
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ai project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetTask records the submitted provider task and moves the project to processing
func (r *AIProjectRepository) SetTask(ctx context.Context, id, taskID, prompt, negativePrompt string) error {
	return r.exec(ctx, id, `
		UPDATE ai_projects
		SET kling_task_id = $2, kling_prompt = $3, kling_negative_prompt = $4,
			status = 'processing', poll_attempts = 0, error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`, taskID, prompt, negativePrompt)
}

// MarkCompleted stores the output video of a processing project
func (r *AIProjectRepository) MarkCompleted(ctx context.Context, id, videoURL string, completedAt time.Time) error {
	return r.exec(ctx, id, `
		UPDATE ai_projects
		SET status = 'completed', output_video_url = $2, completed_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, videoURL, completedAt)
}

// MarkFailed stores the failure reason of a project that has not completed
func (r *AIProjectRepository) MarkFailed(ctx context.Context, id, message string) error {
	return r.exec(ctx, id, `
		UPDATE ai_projects
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('draft', 'processing')
	`, message)
}

// IncrementPollAttempts bumps the poll counter and returns the new value
func (r *AIProjectRepository) IncrementPollAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.q(ctx).QueryRow(ctx, `
		UPDATE ai_projects SET poll_attempts = poll_attempts + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING poll_attempts
	`, id).Scan(&attempts)
	if err != nil {
		return 0, wrapQueryErr(err, "ai project", id)
	}
	return attempts, nil
}

// Delete removes a project owned by userID
func (r *AIProjectRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM ai_projects WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete ai project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("ai project", id)
	}
	return nil
}

func (r *AIProjectRepository) exec(ctx context.Context, id, query string, args ...any) error {
	tag, err := r.db.q(ctx).Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update ai project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewConflictError(fmt.Sprintf("ai project %s is not in a state that allows this update", id))
	}
	return nil
}

// UsageRepository tracks monthly AI generation usage
type UsageRepository struct {
	db *PostgresDB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *PostgresDB) *UsageRepository {
	return &UsageRepository{db: db}
}

const usageColumns = `id, user_id, month_year, generations_used, plan_limit, created_at, updated_at`

func scanUsage(row rowScanner) (*models.AIGenerationUsage, error) {
	var u models.AIGenerationUsage
	if err := row.Scan(&u.ID, &u.UserID, &u.MonthYear, &u.GenerationsUsed, &u.PlanLimit, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetOrCreate returns the usage row for the month, creating it with planLimit if missing
func (r *UsageRepository) GetOrCreate(ctx context.Context, userID, monthYear string, planLimit int) (*models.AIGenerationUsage, error) {
	u, err := scanUsage(r.db.q(ctx).QueryRow(ctx, `
		INSERT INTO ai_generations_usage (id, user_id, month_year, generations_used, plan_limit)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (user_id, month_year) DO UPDATE SET month_year = EXCLUDED.month_year
		RETURNING `+usageColumns,
		uuid.New().String(), userID, monthYear, planLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to load ai usage: %w", err)
	}
	return u, nil
}

// TryIncrement consumes one generation if the monthly limit allows it.
// It returns false when the limit is already reached.
func (r *UsageRepository) TryIncrement(ctx context.Context, userID, monthYear string) (bool, error) {
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE ai_generations_usage
		SET generations_used = generations_used + 1, updated_at = NOW()
		WHERE user_id = $1 AND month_year = $2
			AND (plan_limit = -1 OR generations_used < plan_limit)
	`, userID, monthYear)
	if err != nil {
		return false, fmt.Errorf("failed to increment ai usage: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Refund gives back a generation, used when submission fails before the provider accepts it
func (r *UsageRepository) Refund(ctx context.Context, userID, monthYear string) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		UPDATE ai_generations_usage
		SET generations_used = GREATEST(generations_used - 1, 0), updated_at = NOW()
		WHERE user_id = $1 AND month_year = $2
	`, userID, monthYear)
	if err != nil {
		return fmt.Errorf("failed to refund ai usage: %w", err)
	}
	return nil
}

// SetLimit updates the monthly limit, creating the row if needed
func (r *UsageRepository) SetLimit(ctx context.Context, userID, monthYear string, planLimit int) error {
	_, err := r.db.q(ctx).Exec(ctx, `
		INSERT INTO ai_generations_usage (id, user_id, month_year, generations_used, plan_limit)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (user_id, month_year) DO UPDATE SET plan_limit = EXCLUDED.plan_limit, updated_at = NOW()
	`, uuid.New().String(), userID, monthYear, planLimit)
	if err != nil {
		return fmt.Errorf("failed to set ai usage limit: %w", err)
	}
	return nil
}
