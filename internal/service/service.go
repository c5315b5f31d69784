// Package service implements the business operations of the marketplace on
// top of the storage repositories and provider adapters.
package service

import (
	"context"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/live-vibe/internal/adapter"
	"github.com/live-vibe/internal/config"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// TxRunner runs fn inside a database transaction carried by the context
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// FileStore stores uploaded files and returns their public URL
type FileStore interface {
	Upload(ctx context.Context, bucket, path, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, bucket, path string) error
}

// PaymentGateway is the Square surface used for one-off charges and
// recurring subscriptions
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req adapter.PaymentRequest) (*adapter.Payment, error)
	CreateCustomer(ctx context.Context, req adapter.CustomerRequest) (*adapter.Customer, error)
	CreateCard(ctx context.Context, req adapter.CardRequest) (*adapter.Card, error)
	CreateSubscription(ctx context.Context, req adapter.SubscriptionRequest) (*adapter.Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*adapter.Subscription, error)
}

// VideoGenerator submits and tracks text-to-video tasks
type VideoGenerator interface {
	CreateVideoTask(ctx context.Context, req adapter.VideoRequest) (*adapter.TaskData, error)
	GetTaskStatus(ctx context.Context, taskID string) (*adapter.TaskData, error)
}

// PlanReader reads the subscription plan catalogue
type PlanReader interface {
	ListActive(ctx context.Context, planType types.PlanType) ([]*models.SubscriptionPlan, error)
	GetByID(ctx context.Context, id string) (*models.SubscriptionPlan, error)
}

// ActiveSubscriptionReader looks up a user's active plan
type ActiveSubscriptionReader interface {
	GetActiveWithPlan(ctx context.Context, userID string) (*models.SubscriptionWithPlan, error)
}

// Buckets names the storage buckets uploads go to
type Buckets struct {
	ProfilePhotos string
	ArtPieces     string
	AIStudio      string
}

// BucketsFromConfig reads bucket names from the Supabase configuration
func BucketsFromConfig(cfg *config.SupabaseConfig) Buckets {
	return Buckets{
		ProfilePhotos: cfg.ProfilePhotoBucket,
		ArtPieces:     cfg.ArtPieceBucket,
		AIStudio:      cfg.AIStudioBucket,
	}
}

// noTx runs fn directly. Used when no transaction runner is configured.
type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// objectPath builds "<userID>/<kind...>/<unix millis>.<ext>" for an upload
func objectPath(userID, fileName string, now time.Time, kind ...string) string {
	parts := append([]string{userID}, kind...)
	name := strconv.FormatInt(now.UnixMilli(), 10)
	if ext := fileExt(fileName); ext != "" {
		name += "." + ext
	}
	return path.Join(append(parts, name)...)
}

// fileExt returns the lower-cased extension of a file name without the dot
func fileExt(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(fileName), "."))
}

// FileKind classifies a MIME type as image, audio, video or document
func FileKind(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	case strings.HasPrefix(contentType, "audio/"):
		return "audio"
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	default:
		return "document"
	}
}
