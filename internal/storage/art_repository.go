package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
)

// ArtRepository handles portfolio art piece persistence
type ArtRepository struct {
	db *PostgresDB
}

// NewArtRepository creates a new art piece repository
func NewArtRepository(db *PostgresDB) *ArtRepository {
	return &ArtRepository{db: db}
}

const artColumns = `id, user_id, title, description, type, file_url, file_name, file_path, file_size, created_at, updated_at`

func scanArt(row rowScanner) (*models.ArtPiece, error) {
	var a models.ArtPiece
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &a.Type, &a.FileURL,
		&a.FileName, &a.FilePath, &a.FileSize, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts an art piece
func (r *ArtRepository) Create(ctx context.Context, a *models.ArtPiece) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	query := `
		INSERT INTO art_pieces (` + artColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.q(ctx).Exec(ctx, query,
		a.ID, a.UserID, a.Title, a.Description, a.Type, a.FileURL,
		a.FileName, a.FilePath, a.FileSize, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create art piece: %w", err)
	}
	return nil
}

// GetByID retrieves an art piece
func (r *ArtRepository) GetByID(ctx context.Context, id string) (*models.ArtPiece, error) {
	a, err := scanArt(r.db.q(ctx).QueryRow(ctx, `SELECT `+artColumns+` FROM art_pieces WHERE id = $1`, id))
	if err != nil {
		return nil, wrapQueryErr(err, "art piece", id)
	}
	return a, nil
}

// ListByUser lists a user's art pieces, newest first
func (r *ArtRepository) ListByUser(ctx context.Context, userID string) ([]*models.ArtPiece, error) {
	rows, err := r.db.q(ctx).Query(ctx,
		`SELECT `+artColumns+` FROM art_pieces WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list art pieces: %w", err)
	}
	defer rows.Close()

	var out []*models.ArtPiece
	for rows.Next() {
		a, err := scanArt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan art piece: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByUser counts a user's art pieces
func (r *ArtRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var n int
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM art_pieces WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count art pieces: %w", err)
	}
	return n, nil
}

// Delete removes an art piece owned by userID
func (r *ArtRepository) Delete(ctx context.Context, id, userID string) error {
	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM art_pieces WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete art piece: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("art piece", id)
	}
	return nil
}
