package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/live-vibe/internal/circuitbreaker"
	"github.com/live-vibe/internal/config"
	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/metrics"
	"github.com/live-vibe/internal/ratelimit"
	"github.com/live-vibe/internal/types"
)

const klingProvider = "kling"

// Generation defaults for music videos
const (
	DefaultCfgScale    = 7.5
	DefaultMode        = "pro"
	DefaultAspectRatio = "16:9"
	DefaultDuration    = 10
	DefaultCameraType  = "horizontal"

	// lyricsSnippetLen is how many characters of lyrics go into a prompt
	lyricsSnippetLen = 200
	tokenTTL         = 30 * time.Minute
)

// Messages recorded on projects that did not produce a video
const (
	MsgPollTimeout      = "Task polling timeout - video generation took too long"
	MsgGenerationFailed = "Video generation failed"
)

// ErrPollTimeout is returned by PollTaskCompletion when the task did not
// finish within the allowed attempts.
var ErrPollTimeout = errors.New(MsgPollTimeout)

var klingErrorPaths = []string{"message", "error.message"}

// KlingClient creates and tracks Kling AI text-to-video tasks
type KlingClient struct {
	p         *httpProvider
	accessKey string
	secretKey string
	now       func() time.Time
}

// NewKlingClient creates a Kling client. When pacer is set every request
// waits for the shared provider budget: polls from the reserved pool and
// submissions from the shared pool.
func NewKlingClient(cfg *config.KlingConfig, pacer *ratelimit.Pacer) *KlingClient {
	var transport http.RoundTripper = metrics.NewRequestWatcher(klingProvider, nil)
	if pacer != nil {
		transport = &ratelimit.Transport{Base: transport, Pacer: pacer}
	}
	return newKlingClient(cfg, transport)
}

func newKlingClient(cfg *config.KlingConfig, transport http.RoundTripper) *KlingClient {
	return &KlingClient{
		p:         newHTTPProvider(klingProvider, cfg.BaseURL, cfg.Timeout, transport),
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		now:       time.Now,
	}
}

// CameraControl selects the camera movement
type CameraControl struct {
	Type string `json:"type"`
}

// VideoRequest is a text2video task submission
type VideoRequest struct {
	Prompt         string         `json:"prompt"`
	NegativePrompt string         `json:"negative_prompt,omitempty"`
	CfgScale       float64        `json:"cfg_scale,omitempty"`
	Mode           string         `json:"mode,omitempty"`
	CameraControl  *CameraControl `json:"camera_control,omitempty"`
	AspectRatio    string         `json:"aspect_ratio,omitempty"`
	Duration       int            `json:"duration,omitempty"`
}

// Video is one generated clip
type Video struct {
	ID       string      `json:"id"`
	URL      string      `json:"url"`
	Duration json.Number `json:"duration"`
}

// TaskData is the task portion of a Kling response
type TaskData struct {
	TaskID        string                `json:"task_id"`
	TaskStatus    types.KlingTaskStatus `json:"task_status"`
	TaskStatusMsg string                `json:"task_status_msg,omitempty"`
	CreatedAt     int64                 `json:"created_at"`
	UpdatedAt     int64                 `json:"updated_at"`
	TaskResult    *TaskResult           `json:"task_result,omitempty"`
}

// TaskResult holds the output of a finished task
type TaskResult struct {
	Videos []Video `json:"videos"`
}

// Done reports whether the task reached a terminal status
func (d *TaskData) Done() bool {
	return d.TaskStatus == types.KlingTaskSucceed || d.TaskStatus == types.KlingTaskFailed
}

// VideoURL returns the first generated video, or ""
func (d *TaskData) VideoURL() string {
	if d.TaskResult == nil || len(d.TaskResult.Videos) == 0 {
		return ""
	}
	return d.TaskResult.Videos[0].URL
}

// FailureMessage returns the provider's reason or the generic failure text
func (d *TaskData) FailureMessage() string {
	if msg := strings.TrimSpace(d.TaskStatusMsg); msg != "" {
		return msg
	}
	return MsgGenerationFailed
}

type taskResponse struct {
	Code      int      `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id"`
	Data      TaskData `json:"data"`
}

// CreateVideoTask submits a text2video task
func (c *KlingClient) CreateVideoTask(ctx context.Context, req VideoRequest) (*TaskData, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, apperrors.NewInvalidParameterError("prompt", "prompt is required")
	}
	ctx = ratelimit.WithPriority(ctx, ratelimit.PriorityLow)
	// A repeated submit after a timeout can start a second billed task.
	return c.task(ctx, call{
		op:     "create_video_task",
		method: http.MethodPost,
		path:   "/v1/videos/text2video",
		body:   req,
		once:   true,
	})
}

// GetTaskStatus fetches the current state of a task
func (c *KlingClient) GetTaskStatus(ctx context.Context, taskID string) (*TaskData, error) {
	if taskID == "" {
		return nil, apperrors.NewInvalidParameterError("taskId", "task id is required")
	}
	ctx = ratelimit.WithPriority(ctx, ratelimit.PriorityHigh)
	return c.task(ctx, call{
		op:     "get_task_status",
		method: http.MethodGet,
		path:   "/v1/videos/text2video/" + url.PathEscape(taskID),
	})
}

func (c *KlingClient) task(ctx context.Context, cl call) (*TaskData, error) {
	token, err := c.token()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to sign kling request", err)
	}
	cl.header = http.Header{"Authorization": []string{"Bearer " + token}}
	cl.detailPaths = klingErrorPaths
	cl.fallback = fmt.Sprintf("Kling API error during %s", strings.ReplaceAll(cl.op, "_", " "))

	body, err := c.p.do(ctx, cl)
	if err != nil {
		return nil, err
	}

	var resp taskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.NewProviderError(klingProvider, "", fmt.Errorf("decode response: %w", err))
	}
	if resp.Code != 0 {
		msg := resp.Message
		if msg == "" {
			msg = cl.fallback
		}
		perr := apperrors.NewProviderError(klingProvider, msg, nil)
		perr.Details["code"] = resp.Code
		return nil, perr
	}
	return &resp.Data, nil
}

// PollTaskCompletion polls a task until it succeeds or fails, checking at
// most maxAttempts times with interval between checks.
func (c *KlingClient) PollTaskCompletion(ctx context.Context, taskID string, maxAttempts int, interval time.Duration) (*TaskData, error) {
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, err := c.GetTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if data.Done() {
			return data, nil
		}
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, ErrPollTimeout
}

// token signs a short-lived HS256 JWT with the secret key
func (c *KlingClient) token() (string, error) {
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.accessKey,
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.secretKey))
}

// Stats exposes the client's circuit breaker
func (c *KlingClient) Stats() circuitbreaker.Stats {
	return c.p.Stats()
}

// PromptInput is the creative brief of a music video
type PromptInput struct {
	Lyrics      string
	Mood        string
	Theme       string
	Style       string
	Description string
}

// GenerateVideoPrompt builds the text2video prompt for a music video
func GenerateVideoPrompt(in PromptInput) string {
	mood := strings.ToLower(in.Mood)
	theme := strings.ToLower(in.Theme)

	snippet := []rune(in.Lyrics)
	if len(snippet) > lyricsSnippetLen {
		snippet = snippet[:lyricsSnippetLen]
	}
	lyrics := strings.ReplaceAll(string(snippet), "\n", " ")

	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s music video with %s mood and %s theme. ", strings.ToLower(in.Style), mood, theme)
	if in.Description != "" {
		fmt.Fprintf(&b, "%s. ", in.Description)
	}
	fmt.Fprintf(&b, "Visual elements should reflect these lyrics: \"%s\". ", lyrics)
	fmt.Fprintf(&b, "The video should have dynamic camera movements, vibrant colors matching the %s mood, ", mood)
	fmt.Fprintf(&b, "and scenic %s backgrounds. High quality, professional music video style.", theme)
	return b.String()
}

// GenerateNegativePrompt returns the elements every music video avoids
func GenerateNegativePrompt() string {
	return "low quality, blurry, distorted, watermark, text overlay, poor lighting, static camera, boring composition"
}

// NewMusicVideoRequest fills a VideoRequest with the music video defaults
func NewMusicVideoRequest(in PromptInput) VideoRequest {
	return VideoRequest{
		Prompt:         GenerateVideoPrompt(in),
		NegativePrompt: GenerateNegativePrompt(),
		CfgScale:       DefaultCfgScale,
		Mode:           DefaultMode,
		CameraControl:  &CameraControl{Type: DefaultCameraType},
		AspectRatio:    DefaultAspectRatio,
		Duration:       DefaultDuration,
	}
}
