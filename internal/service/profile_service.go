package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/logging"
	"github.com/live-vibe/internal/models"
	"github.com/live-vibe/internal/types"
)

// MaxProfilePhotoBytes is the largest accepted profile photo
const MaxProfilePhotoBytes = 5 << 20

// ProfileRepository persists artist and promoter profiles
type ProfileRepository interface {
	UpsertArtist(ctx context.Context, p *models.ArtistProfile) error
	GetArtistByUserID(ctx context.Context, userID string) (*models.ArtistProfile, error)
	ListArtists(ctx context.Context, filter models.ArtistFilter) ([]*models.ArtistProfile, error)
	UpsertPromoter(ctx context.Context, p *models.PromoterProfile) error
	GetPromoterByUserID(ctx context.Context, userID string) (*models.PromoterProfile, error)
	SetPhotoURL(ctx context.Context, userID string, promoter bool, url string) error
	SetSubscriptionPlan(ctx context.Context, userID, planID string) error
}

// ProfileService manages marketplace profiles
type ProfileService struct {
	repo   ProfileRepository
	files  FileStore
	bucket string
}

// NewProfileService creates a new profile service
func NewProfileService(repo ProfileRepository, files FileStore, buckets Buckets) *ProfileService {
	return &ProfileService{repo: repo, files: files, bucket: buckets.ProfilePhotos}
}

// SaveArtistProfile creates or updates the artist profile of p.UserID
func (s *ProfileService) SaveArtistProfile(ctx context.Context, p *models.ArtistProfile) (*models.ArtistProfile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)
	p.City = strings.TrimSpace(p.City)
	p.Country = strings.TrimSpace(p.Country)

	if err := s.repo.UpsertArtist(ctx, p); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithField("userId", p.UserID).Info("Artist profile saved")
	return p, nil
}

// GetArtistProfile returns the artist profile of userID
func (s *ProfileService) GetArtistProfile(ctx context.Context, userID string) (*models.ArtistProfile, error) {
	return s.repo.GetArtistByUserID(ctx, userID)
}

// ListArtists lists marketplace artists matching filter
func (s *ProfileService) ListArtists(ctx context.Context, filter models.ArtistFilter) ([]*models.ArtistProfile, error) {
	return s.repo.ListArtists(ctx, filter)
}

// SavePromoterProfile creates or updates the promoter profile of p.UserID
func (s *ProfileService) SavePromoterProfile(ctx context.Context, p *models.PromoterProfile) (*models.PromoterProfile, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(p.Name)

	if err := s.repo.UpsertPromoter(ctx, p); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).WithField("userId", p.UserID).Info("Promoter profile saved")
	return p, nil
}

// GetPromoterProfile returns the promoter profile of userID
func (s *ProfileService) GetPromoterProfile(ctx context.Context, userID string) (*models.PromoterProfile, error) {
	return s.repo.GetPromoterByUserID(ctx, userID)
}

// UploadPhotoInput is a profile photo upload
type UploadPhotoInput struct {
	UserID      string
	Role        types.UserRole
	FileName    string
	ContentType string
	Data        []byte
}

// UploadProfilePhoto stores an image as the user's profile photo and
// returns its public URL. Uploading again replaces the previous photo.
func (s *ProfileService) UploadProfilePhoto(ctx context.Context, in UploadPhotoInput) (string, error) {
	if !strings.HasPrefix(in.ContentType, "image/") {
		return "", apperrors.NewValidationError("file", "Please select an image file")
	}
	if len(in.Data) == 0 {
		return "", apperrors.NewValidationError("file", "File is empty")
	}
	if len(in.Data) > MaxProfilePhotoBytes {
		return "", apperrors.NewValidationError("file", "Please select an image smaller than 5MB")
	}
	if !in.Role.Valid() {
		return "", apperrors.NewInvalidParameterError("role", fmt.Sprintf("unknown role %q", in.Role))
	}

	name := "profile"
	if ext := fileExt(in.FileName); ext != "" {
		name += "." + ext
	}
	url, err := s.files.Upload(ctx, s.bucket, in.UserID+"/"+name, in.ContentType, in.Data)
	if err != nil {
		return "", err
	}

	if err := s.repo.SetPhotoURL(ctx, in.UserID, in.Role == types.RolePromoter, url); err != nil {
		// The profile may not exist yet; the URL is returned for the profile form.
		if !apperrors.IsNotFound(err) {
			return "", err
		}
	}
	return url, nil
}
