package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/live-vibe/internal/adapter"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

type memProjects struct {
	mu       sync.Mutex
	projects map[string]*models.AIProject
}

func newMemProjects(projects ...*models.AIProject) *memProjects {
	m := &memProjects{projects: map[string]*models.AIProject{}}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *memProjects) ListProcessing(ctx context.Context, limit int) ([]*models.AIProject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AIProject
	for _, p := range m.projects {
		if p.Status == types.ProjectProcessing && p.KlingTaskID != nil {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProjects) MarkCompleted(ctx context.Context, id, videoURL string, completedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projects[id]
	p.Status = types.ProjectCompleted
	p.OutputVideoURL = &videoURL
	p.CompletedAt = &completedAt
	return nil
}

func (m *memProjects) MarkFailed(ctx context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projects[id]
	p.Status = types.ProjectFailed
	p.ErrorMessage = &message
	return nil
}

func (m *memProjects) IncrementPollAttempts(ctx context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projects[id]
	p.PollAttempts++
	return p.PollAttempts, nil
}

func (m *memProjects) get(id string) models.AIProject {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.projects[id]
}

type stubTasks struct {
	mu       sync.Mutex
	statuses map[string]*adapter.TaskData
	err      error
	calls    int
}

func (s *stubTasks) GetTaskStatus(ctx context.Context, taskID string) (*adapter.TaskData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if t, ok := s.statuses[taskID]; ok {
		return t, nil
	}
	return &adapter.TaskData{TaskID: taskID, TaskStatus: types.KlingTaskProcessing}, nil
}

type sentNotification struct {
	userID, kind, title, message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (r *recordingNotifier) Notify(ctx context.Context, userID, notificationType, title, message string, data map[string]interface{}) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentNotification{userID, notificationType, title, message})
	return &models.Notification{UserID: userID, Type: notificationType}, nil
}

func processing(id, taskID string) *models.AIProject {
	return &models.AIProject{ID: id, UserID: "owner-" + id, Status: types.ProjectProcessing, KlingTaskID: &taskID}
}

func newTestPoller(t *testing.T, projects ProjectStore, tasks TaskStatusSource, notifier Notifier, maxAttempts int) *GenerationPoller {
	t.Helper()
	p, err := NewGenerationPoller(&GenerationPollerConfig{
		Projects:     projects,
		Tasks:        tasks,
		Notifier:     notifier,
		PollInterval: time.Second,
		MaxAttempts:  maxAttempts,
	})
	require.NoError(t, err)
	return p
}

func TestNewGenerationPoller_Validation(t *testing.T) {
	_, err := NewGenerationPoller(&GenerationPollerConfig{Tasks: &stubTasks{}})
	assert.Error(t, err)

	_, err = NewGenerationPoller(&GenerationPollerConfig{Projects: newMemProjects(), Tasks: &stubTasks{}, PollInterval: 500 * time.Millisecond})
	assert.Error(t, err)

	_, err = NewGenerationPoller(&GenerationPollerConfig{Projects: newMemProjects(), Tasks: &stubTasks{}, PollInterval: 2 * time.Minute})
	assert.Error(t, err)

	p, err := NewGenerationPoller(&GenerationPollerConfig{Projects: newMemProjects(), Tasks: &stubTasks{}})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, p.interval)
	assert.Equal(t, 30, p.maxAttempts)
}

func TestGenerationPoller_Completes(t *testing.T) {
	store := newMemProjects(processing("p1", "t1"))
	tasks := &stubTasks{statuses: map[string]*adapter.TaskData{
		"t1": {
			TaskID:     "t1",
			TaskStatus: types.KlingTaskSucceed,
			TaskResult: &adapter.TaskResult{Videos: []adapter.Video{{ID: "v1", URL: "https://cdn.test/v1.mp4"}}},
		},
	}}
	notifier := &recordingNotifier{}
	p := newTestPoller(t, store, tasks, notifier, 30)

	finished, err := p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, finished)

	got := store.get("p1")
	assert.Equal(t, types.ProjectCompleted, got.Status)
	require.NotNil(t, got.OutputVideoURL)
	assert.Equal(t, "https://cdn.test/v1.mp4", *got.OutputVideoURL)
	assert.NotNil(t, got.CompletedAt)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, sentNotification{"owner-p1", types.NotificationVideoReady, "Video generated!",
		"Your AI music video has been generated successfully with Kling AI!"}, notifier.sent[0])

	finished, err = p.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, finished)
	assert.Equal(t, 1, tasks.calls)
}

func TestGenerationPoller_ProviderFailure(t *testing.T) {
	tests := []struct {
		name    string
		msg     string
		wantMsg string
	}{
		{"with reason", "content policy violation", "content policy violation"},
		{"without reason", "", "Video generation failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemProjects(processing("p1", "t1"))
			tasks := &stubTasks{statuses: map[string]*adapter.TaskData{
				"t1": {TaskID: "t1", TaskStatus: types.KlingTaskFailed, TaskStatusMsg: tt.msg},
			}}
			notifier := &recordingNotifier{}
			p := newTestPoller(t, store, tasks, notifier, 30)

			outcome, err := p.PollProject(context.Background(), processing("p1", "t1"))
			require.NoError(t, err)
			assert.Equal(t, OutcomeFailed, outcome)

			got := store.get("p1")
			assert.Equal(t, types.ProjectFailed, got.Status)
			assert.Equal(t, tt.wantMsg, *got.ErrorMessage)
			require.Len(t, notifier.sent, 1)
			assert.Equal(t, types.NotificationVideoFailed, notifier.sent[0].kind)
			assert.Equal(t, tt.wantMsg, notifier.sent[0].message)
		})
	}
}

func TestGenerationPoller_TimesOut(t *testing.T) {
	store := newMemProjects(processing("p1", "t1"))
	tasks := &stubTasks{}
	p := newTestPoller(t, store, tasks, nil, 3)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		outcome, err := p.PollProject(ctx, processing("p1", "t1"))
		require.NoError(t, err)
		assert.Equal(t, OutcomePending, outcome)
		assert.Equal(t, i, store.get("p1").PollAttempts)
	}

	outcome, err := p.PollProject(ctx, processing("p1", "t1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)

	got := store.get("p1")
	assert.Equal(t, types.ProjectFailed, got.Status)
	assert.Equal(t, adapter.MsgPollTimeout, *got.ErrorMessage)
	assert.Equal(t, 3, got.PollAttempts)
}

func TestGenerationPoller_StatusErrorsCountAsAttempts(t *testing.T) {
	store := newMemProjects(processing("p1", "t1"))
	tasks := &stubTasks{err: errors.New("kling unavailable")}
	p := newTestPoller(t, store, tasks, nil, 2)
	ctx := context.Background()

	_, err := p.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ProjectProcessing, store.get("p1").Status)

	finished, err := p.PollOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, finished)
	assert.Equal(t, types.ProjectFailed, store.get("p1").Status)
}

func TestGenerationPoller_ResumesFromStoredAttempts(t *testing.T) {
	project := processing("p1", "t1")
	project.PollAttempts = 29
	store := newMemProjects(project)
	p := newTestPoller(t, store, &stubTasks{}, nil, 30)

	outcome, err := p.PollProject(context.Background(), project)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, outcome)
}

func TestGenerationPoller_RejectsProjectWithoutTask(t *testing.T) {
	p := newTestPoller(t, newMemProjects(), &stubTasks{}, nil, 30)
	_, err := p.PollProject(context.Background(), &models.AIProject{ID: "p1"})
	assert.Error(t, err)
}

func TestGenerationPoller_StartStop(t *testing.T) {
	p := newTestPoller(t, newMemProjects(), &stubTasks{}, nil, 30)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx))
	assert.True(t, p.IsRunning())
	assert.Error(t, p.Start(ctx))

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(stopCtx))
	assert.False(t, p.IsRunning())
	assert.Error(t, p.Stop(stopCtx))

	// A stopped poller can be started again.
	require.NoError(t, p.Start(ctx))
	require.NoError(t, p.Stop(stopCtx))
}
