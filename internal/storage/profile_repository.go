package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
)

// ProfileRepository handles artist and promoter profile persistence
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const socialColumns = `instagram, tiktok, pinterest, youtube, behance, facebook, linkedin, spotify`

const artistColumns = `id, user_id, name, phone_number, city, state, country, travel_distance,
	profile_photo_url, artist_type, visual_artist_category, performing_artist_type,
	music_genres, instruments, subscription_plan, ` + socialColumns + `, created_at, updated_at`

func socialDest(s *models.SocialLinks) []any {
	return []any{&s.Instagram, &s.TikTok, &s.Pinterest, &s.YouTube, &s.Behance, &s.Facebook, &s.LinkedIn, &s.Spotify}
}

func socialArgs(s models.SocialLinks) []any {
	return []any{s.Instagram, s.TikTok, s.Pinterest, s.YouTube, s.Behance, s.Facebook, s.LinkedIn, s.Spotify}
}

func scanArtist(row rowScanner) (*models.ArtistProfile, error) {
	var p models.ArtistProfile
	dest := []any{
		&p.ID, &p.UserID, &p.Name, &p.PhoneNumber, &p.City, &p.State, &p.Country, &p.TravelDistance,
		&p.ProfilePhotoURL, &p.ArtistType, &p.VisualArtistCategory, &p.PerformingArtistType,
		&p.MusicGenres, &p.Instruments, &p.SubscriptionPlan,
	}
	dest = append(dest, socialDest(&p.SocialLinks)...)
	dest = append(dest, &p.CreatedAt, &p.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertArtist creates or replaces the artist profile of profile.UserID
func (r *ProfileRepository) UpsertArtist(ctx context.Context, p *models.ArtistProfile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.SubscriptionPlan == "" {
		p.SubscriptionPlan = "artist_starter"
	}
	now := time.Now().UTC()
	p.UpdatedAt = now

	query := `
		INSERT INTO artist_profiles (id, user_id, name, phone_number, city, state, country, travel_distance,
			profile_photo_url, artist_type, visual_artist_category, performing_artist_type,
			music_genres, instruments, subscription_plan, ` + socialColumns + `, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $24)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			phone_number = EXCLUDED.phone_number,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			travel_distance = EXCLUDED.travel_distance,
			profile_photo_url = COALESCE(EXCLUDED.profile_photo_url, artist_profiles.profile_photo_url),
			artist_type = EXCLUDED.artist_type,
			visual_artist_category = EXCLUDED.visual_artist_category,
			performing_artist_type = EXCLUDED.performing_artist_type,
			music_genres = EXCLUDED.music_genres,
			instruments = EXCLUDED.instruments,
			instagram = EXCLUDED.instagram,
			tiktok = EXCLUDED.tiktok,
			pinterest = EXCLUDED.pinterest,
			youtube = EXCLUDED.youtube,
			behance = EXCLUDED.behance,
			facebook = EXCLUDED.facebook,
			linkedin = EXCLUDED.linkedin,
			spotify = EXCLUDED.spotify,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + artistColumns

	args := []any{
		p.ID, p.UserID, p.Name, p.PhoneNumber, p.City, p.State, p.Country, p.TravelDistance,
		p.ProfilePhotoURL, p.ArtistType, p.VisualArtistCategory, p.PerformingArtistType,
		nonNil(p.MusicGenres), nonNil(p.Instruments), p.SubscriptionPlan,
	}
	args = append(args, socialArgs(p.SocialLinks)...)
	args = append(args, now)

	saved, err := scanArtist(r.db.q(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return fmt.Errorf("failed to upsert artist profile: %w", err)
	}
	*p = *saved
	return nil
}

// GetArtistByUserID retrieves the artist profile of a user
func (r *ProfileRepository) GetArtistByUserID(ctx context.Context, userID string) (*models.ArtistProfile, error) {
	query := `SELECT ` + artistColumns + ` FROM artist_profiles WHERE user_id = $1`
	p, err := scanArtist(r.db.q(ctx).QueryRow(ctx, query, userID))
	if err != nil {
		return nil, wrapQueryErr(err, "artist profile", userID)
	}
	return p, nil
}

// ListArtists lists artist profiles for the marketplace, newest first
func (r *ProfileRepository) ListArtists(ctx context.Context, filter models.ArtistFilter) ([]*models.ArtistProfile, error) {
	var (
		conds []string
		args  []any
	)
	if filter.City != "" {
		args = append(args, strings.ToLower(filter.City))
		conds = append(conds, fmt.Sprintf("lower(city) = $%d", len(args)))
	}
	if filter.ArtistType != "" {
		args = append(args, filter.ArtistType)
		conds = append(conds, fmt.Sprintf("artist_type = $%d", len(args)))
	}
	if filter.Genre != "" {
		args = append(args, filter.Genre)
		conds = append(conds, fmt.Sprintf("$%d = ANY(music_genres)", len(args)))
	}

	query := `SELECT ` + artistColumns + ` FROM artist_profiles`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list artist profiles: %w", err)
	}
	defer rows.Close()

	var out []*models.ArtistProfile
	for rows.Next() {
		p, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const promoterColumns = `id, user_id, name, phone_number, city, state, country, number_of_clients,
	profile_photo_url, promoter_type, subscription_plan, ` + socialColumns + `, created_at, updated_at`

func scanPromoter(row rowScanner) (*models.PromoterProfile, error) {
	var p models.PromoterProfile
	dest := []any{
		&p.ID, &p.UserID, &p.Name, &p.PhoneNumber, &p.City, &p.State, &p.Country, &p.NumberOfClients,
		&p.ProfilePhotoURL, &p.PromoterType, &p.SubscriptionPlan,
	}
	dest = append(dest, socialDest(&p.SocialLinks)...)
	dest = append(dest, &p.CreatedAt, &p.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPromoter creates or replaces the promoter profile of profile.UserID
func (r *ProfileRepository) UpsertPromoter(ctx context.Context, p *models.PromoterProfile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.SubscriptionPlan == "" {
		p.SubscriptionPlan = "vibe_discovery"
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO promoter_profiles (id, user_id, name, phone_number, city, state, country, number_of_clients,
			profile_photo_url, promoter_type, subscription_plan, ` + socialColumns + `, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $20)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			phone_number = EXCLUDED.phone_number,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			country = EXCLUDED.country,
			number_of_clients = EXCLUDED.number_of_clients,
			profile_photo_url = COALESCE(EXCLUDED.profile_photo_url, promoter_profiles.profile_photo_url),
			promoter_type = EXCLUDED.promoter_type,
			instagram = EXCLUDED.instagram,
			tiktok = EXCLUDED.tiktok,
			pinterest = EXCLUDED.pinterest,
			youtube = EXCLUDED.youtube,
			behance = EXCLUDED.behance,
			facebook = EXCLUDED.facebook,
			linkedin = EXCLUDED.linkedin,
			spotify = EXCLUDED.spotify,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + promoterColumns

	args := []any{
		p.ID, p.UserID, p.Name, p.PhoneNumber, p.City, p.State, p.Country, p.NumberOfClients,
		p.ProfilePhotoURL, p.PromoterType, p.SubscriptionPlan,
	}
	args = append(args, socialArgs(p.SocialLinks)...)
	args = append(args, now)

	saved, err := scanPromoter(r.db.q(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		return fmt.Errorf("failed to upsert promoter profile: %w", err)
	}
	*p = *saved
	return nil
}

// GetPromoterByUserID retrieves the promoter profile of a user
func (r *ProfileRepository) GetPromoterByUserID(ctx context.Context, userID string) (*models.PromoterProfile, error) {
	query := `SELECT ` + promoterColumns + ` FROM promoter_profiles WHERE user_id = $1`
	p, err := scanPromoter(r.db.q(ctx).QueryRow(ctx, query, userID))
	if err != nil {
		return nil, wrapQueryErr(err, "promoter profile", userID)
	}
	return p, nil
}

// SetPhotoURL updates the profile photo of an artist or promoter profile
func (r *ProfileRepository) SetPhotoURL(ctx context.Context, userID string, promoter bool, url string) error {
	table := "artist_profiles"
	if promoter {
		table = "promoter_profiles"
	}
	query := `UPDATE ` + table + ` SET profile_photo_url = $2, updated_at = NOW() WHERE user_id = $1`

	tag, err := r.db.q(ctx).Exec(ctx, query, userID, url)
	if err != nil {
		return fmt.Errorf("failed to update profile photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("profile", userID)
	}
	return nil
}

// SetSubscriptionPlan mirrors the user's plan onto whichever profiles they have
func (r *ProfileRepository) SetSubscriptionPlan(ctx context.Context, userID, planID string) error {
	q := r.db.q(ctx)
	if _, err := q.Exec(ctx,
		`UPDATE artist_profiles SET subscription_plan = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, planID); err != nil {
		return fmt.Errorf("failed to update artist plan: %w", err)
	}
	if _, err := q.Exec(ctx,
		`UPDATE promoter_profiles SET subscription_plan = $2, updated_at = NOW() WHERE user_id = $1`,
		userID, planID); err != nil {
		return fmt.Errorf("failed to update promoter plan: %w", err)
	}
	return nil
}
