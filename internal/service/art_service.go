package service

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
)

// MaxArtPieceBytes is the largest accepted portfolio file
const MaxArtPieceBytes = 50 << 20

// ArtRepository persists portfolio pieces
type ArtRepository interface {
	Create(ctx context.Context, a *models.ArtPiece) error
	GetByID(ctx context.Context, id string) (*models.ArtPiece, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ArtPiece, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, id, userID string) error
}

// ArtService manages artist portfolios
type ArtService struct {
	repo   ArtRepository
	files  FileStore
	plans  planResolver
	bucket string
	now    func() time.Time
}

// NewArtService creates a new art service
func NewArtService(repo ArtRepository, files FileStore, subs ActiveSubscriptionReader, buckets Buckets) *ArtService {
	return &ArtService{
		repo:   repo,
		files:  files,
		plans:  planResolver{subs: subs},
		bucket: buckets.ArtPieces,
		now:    time.Now,
	}
}

// UploadArtInput is a new portfolio piece
type UploadArtInput struct {
	UserID      string
	Title       string
	Description string
	FileName    string
	ContentType string
	Data        []byte
}

// Upload stores the file and records the piece in the user's portfolio
func (s *ArtService) Upload(ctx context.Context, in UploadArtInput) (*models.ArtPiece, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || len(in.Data) == 0 {
		return nil, apperrors.NewValidationError("file", "Please select a file and provide a title")
	}
	if len(in.Data) > MaxArtPieceBytes {
		return nil, apperrors.NewValidationError("file", "File is larger than 50MB")
	}

	limit, planID, err := s.plans.portfolioLimit(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if limit != models.Unlimited {
		count, err := s.repo.CountByUser(ctx, in.UserID)
		if err != nil {
			return nil, err
		}
		if count >= limit {
			return nil, apperrors.NewTierLimitExceededError(planID, limit)
		}
	}

	path := objectPath(in.UserID, in.FileName, s.now())
	url, err := s.files.Upload(ctx, s.bucket, path, in.ContentType, in.Data)
	if err != nil {
		return nil, err
	}

	piece := &models.ArtPiece{
		UserID:   in.UserID,
		Title:    title,
		Type:     FileKind(in.ContentType),
		FileURL:  url,
		FileName: in.FileName,
		FilePath: path,
		FileSize: int64(len(in.Data)),
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		piece.Description = &d
	}
	if err := s.repo.Create(ctx, piece); err != nil {
		s.removeObject(ctx, path)
		return nil, err
	}
	return piece, nil
}

// List returns a user's portfolio, newest first
func (s *ArtService) List(ctx context.Context, userID string) ([]*models.ArtPiece, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Delete removes a piece and its stored file. Only the owner may delete.
func (s *ArtService) Delete(ctx context.Context, userID, id string) error {
	piece, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if piece.UserID != userID {
		return apperrors.NewNotFoundError("art piece", id)
	}
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.removeObject(ctx, piece.FilePath)
	return nil
}

func (s *ArtService) removeObject(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.files.Delete(ctx, s.bucket, path); err != nil {
		logging.FromContext(ctx).WithField("path", path).WithError(err).Warn("Failed to delete stored art file")
	}
}
