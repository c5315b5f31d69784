package models

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/types"
)

// SEOSettings is the metadata prepared for publishing a finished video
type SEOSettings struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// AIProject is a music-video generation request and its outcome
type AIProject struct {
	ID                  string                 `json:"id" db:"id"`
	UserID              string                 `json:"userId" db:"user_id"`
	Title               string                 `json:"title" db:"title"`
	Description         *string                `json:"description,omitempty" db:"description"`
	ProjectType         types.ProjectType      `json:"projectType" db:"project_type"`
	Lyrics              string                 `json:"lyrics" db:"lyrics"`
	Mood                string                 `json:"mood" db:"mood"`
	Theme               string                 `json:"theme" db:"theme"`
	Style               string                 `json:"style" db:"style"`
	AudioFileURL        *string                `json:"audioFileUrl,omitempty" db:"audio_file_url"`
	ImageFiles          []string               `json:"imageFiles" db:"image_files"`
	VideoSnippets       []string               `json:"videoSnippets" db:"video_snippets"`
	AISettings          map[string]interface{} `json:"aiSettings" db:"ai_settings"`
	SEOSettings         SEOSettings            `json:"seoSettings" db:"seo_settings"`
	Status              types.ProjectStatus    `json:"status" db:"status"`
	KlingTaskID         *string                `json:"klingTaskId,omitempty" db:"kling_task_id"`
	KlingPrompt         *string                `json:"klingPrompt,omitempty" db:"kling_prompt"`
	KlingNegativePrompt *string                `json:"klingNegativePrompt,omitempty" db:"kling_negative_prompt"`
	PollAttempts        int                    `json:"pollAttempts" db:"poll_attempts"`
	OutputVideoURL      *string                `json:"outputVideoUrl,omitempty" db:"output_video_url"`
	ErrorMessage        *string                `json:"errorMessage,omitempty" db:"error_message"`
	YouTubeVideoID      *string                `json:"youtubeVideoId,omitempty" db:"youtube_video_id"`
	YouTubeUploadStatus types.UploadStatus     `json:"youtubeUploadStatus" db:"youtube_upload_status"`
	CreatedAt           time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt           time.Time              `json:"updatedAt" db:"updated_at"`
	CompletedAt         *time.Time             `json:"completedAt,omitempty" db:"completed_at"`
}

// Validate checks the creative inputs needed to build a generation prompt
func (p *AIProject) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return apperrors.NewValidationError("title", "Project title is required")
	}
	if !p.ProjectType.Valid() {
		return apperrors.NewValidationError("projectType", fmt.Sprintf("Unknown project type %q", p.ProjectType))
	}
	if strings.TrimSpace(p.Lyrics) == "" {
		return apperrors.NewValidationError("lyrics", "Lyrics are required")
	}
	for field, v := range map[string]string{"mood": p.Mood, "theme": p.Theme, "style": p.Style} {
		if strings.TrimSpace(v) == "" {
			return apperrors.NewValidationError(field, fmt.Sprintf("%s is required", strings.ToUpper(field[:1])+field[1:]))
		}
	}
	return nil
}

// AIGenerationUsage counts generations per user per calendar month
type AIGenerationUsage struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"userId" db:"user_id"`
	MonthYear       string    `json:"monthYear" db:"month_year"` // YYYY-MM
	GenerationsUsed int       `json:"generationsUsed" db:"generations_used"`
	PlanLimit       int       `json:"planLimit" db:"plan_limit"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// Remaining returns the generations left this month, or Unlimited
func (u *AIGenerationUsage) Remaining() int {
	if u.PlanLimit == Unlimited {
		return Unlimited
	}
	if left := u.PlanLimit - u.GenerationsUsed; left > 0 {
		return left
	}
	return 0
}

// CanGenerate reports whether another generation fits in the monthly limit
func (u *AIGenerationUsage) CanGenerate() bool {
	return u.PlanLimit == Unlimited || u.GenerationsUsed < u.PlanLimit
}

// MonthYear formats t as the usage period key
func MonthYear(t time.Time) string {
	return t.UTC().Format("2006-01")
}
