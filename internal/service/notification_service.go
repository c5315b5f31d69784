package service

import (
	"context"

	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
)

// NotificationRepository persists in-app notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// NotificationPublisher fans notifications out to other systems
type NotificationPublisher interface {
	PublishNotification(n *models.Notification) error
}

// NotificationService creates and reads user notifications
type NotificationService struct {
	repo      NotificationRepository
	publisher NotificationPublisher
}

// NewNotificationService creates a notification service. publisher may be nil.
func NewNotificationService(repo NotificationRepository, publisher NotificationPublisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher}
}

// Notify stores a notification for userID and publishes it. Publishing is
// best effort; only the database write can fail the call.
func (s *NotificationService) Notify(ctx context.Context, userID, notificationType, title, message string, data map[string]interface{}) (*models.Notification, error) {
	n := &models.Notification{
		UserID:  userID,
		Type:    notificationType,
		Title:   title,
		Message: message,
		Data:    data,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishNotification(n); err != nil {
			logging.FromContext(ctx).WithFields(map[string]interface{}{
				"notificationId": n.ID,
				"type":           n.Type,
			}).WithError(err).Warn("Failed to publish notification")
		}
	}
	return n, nil
}

// notify is Notify for side effects of an operation that already succeeded
func (s *NotificationService) notify(ctx context.Context, userID, notificationType, title, message string, data map[string]interface{}) {
	if s == nil {
		return
	}
	if _, err := s.Notify(ctx, userID, notificationType, title, message, data); err != nil {
		logging.FromContext(ctx).WithFields(map[string]interface{}{
			"userId": userID,
			"type":   notificationType,
		}).WithError(err).Error("Failed to create notification")
	}
}

// List returns a user's notifications, newest first
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit)
}

// MarkRead marks one notification as read
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, id, userID)
}

// MarkAllRead marks every unread notification of a user as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}
