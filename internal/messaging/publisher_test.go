package messaging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/live-vibe/internal/config"
	"github.com/live-vibe/internal/models"
)

func TestConnect_EmptyURLDisablesPublishing(t *testing.T) {
	p, err := Connect(&config.NatsConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)

	// a nil publisher is safe to use
	assert.NoError(t, p.PublishNotification(&models.Notification{Type: "booking_request"}))
	p.Close()
}

func TestNotificationSubject(t *testing.T) {
	p := NewPublisher(nil, "")
	assert.Equal(t, "livevibe.notifications.booking_request", p.NotificationSubject("booking_request"))
	assert.Equal(t, "livevibe.notifications.ai_video_ready", p.NotificationSubject("ai_video_ready"))

	custom := NewPublisher(nil, "staging")
	assert.Equal(t, "staging.notifications.a_b_c", custom.NotificationSubject("a.b*c"))
	assert.Equal(t, "staging.notifications.unknown", custom.NotificationSubject(" "))

	var nilPub *Publisher
	assert.Equal(t, "livevibe.notifications.booking_paid", nilPub.NotificationSubject("booking_paid"))
}

func TestPublishNotification_NoConnection(t *testing.T) {
	p := NewPublisher(nil, "livevibe")
	assert.NoError(t, p.PublishNotification(&models.Notification{Type: "booking_paid"}))
}
