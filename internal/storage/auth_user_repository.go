package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/live-vibe/internal/errors"
	"github.com/live-vibe/internal/models"
)

// AuthUserRepository handles the username/password auth table
type AuthUserRepository struct {
	db *PostgresDB
}

// NewAuthUserRepository creates a new auth table repository
func NewAuthUserRepository(db *PostgresDB) *AuthUserRepository {
	return &AuthUserRepository{db: db}
}

const authUserColumns = `id, user_name, email, password, module, is_active, last_login, created_at, updated_at`

func scanAuthUser(row rowScanner) (*models.AuthUser, error) {
	var u models.AuthUser
	err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.PasswordHash, &u.Module, &u.IsActive,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a user and fills in the generated id. Duplicate email or
// user name surface as conflicts.
func (r *AuthUserRepository) Create(ctx context.Context, u *models.AuthUser) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now

	err := r.db.q(ctx).QueryRow(ctx, `
		INSERT INTO auth_table (user_name, email, password, module, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id
	`, u.UserName, u.Email, u.PasswordHash, u.Module, u.IsActive, now).Scan(&u.ID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "auth_table_email_key"):
			return apperrors.NewConflictError("An account with this email already exists")
		case isUniqueViolation(err, "auth_table_user_name_key"):
			return apperrors.NewConflictError("This username is already taken")
		}
		return fmt.Errorf("failed to create auth user: %w", err)
	}
	return nil
}

// GetByID retrieves an active user
func (r *AuthUserRepository) GetByID(ctx context.Context, id int64) (*models.AuthUser, error) {
	u, err := scanAuthUser(r.db.q(ctx).QueryRow(ctx,
		`SELECT `+authUserColumns+` FROM auth_table WHERE id = $1 AND is_active`, id))
	if err != nil {
		return nil, wrapQueryErr(err, "user", strconv.FormatInt(id, 10))
	}
	return u, nil
}

// GetByEmail retrieves an active user by email (case-insensitive)
func (r *AuthUserRepository) GetByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	u, err := scanAuthUser(r.db.q(ctx).QueryRow(ctx,
		`SELECT `+authUserColumns+` FROM auth_table WHERE lower(email) = lower($1) AND is_active`, email))
	if err != nil {
		return nil, wrapQueryErr(err, "user", email)
	}
	return u, nil
}

// GetByLogin retrieves a user by email or user name regardless of status
func (r *AuthUserRepository) GetByLogin(ctx context.Context, login string) (*models.AuthUser, error) {
	u, err := scanAuthUser(r.db.q(ctx).QueryRow(ctx, `
		SELECT `+authUserColumns+` FROM auth_table
		WHERE lower(email) = lower($1) OR user_name = $1
		ORDER BY (lower(email) = lower($1)) DESC
		LIMIT 1
	`, login))
	if err != nil {
		return nil, wrapQueryErr(err, "user", login)
	}
	return u, nil
}

// EmailExists reports whether any account uses email
func (r *AuthUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM auth_table WHERE lower(email) = lower($1))`, email)
}

// UserNameExists reports whether any account uses userName
func (r *AuthUserRepository) UserNameExists(ctx context.Context, userName string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS (SELECT 1 FROM auth_table WHERE user_name = $1)`, userName)
}

func (r *AuthUserRepository) exists(ctx context.Context, query, arg string) (bool, error) {
	var exists bool
	if err := r.db.q(ctx).QueryRow(ctx, query, arg).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check auth user: %w", err)
	}
	return exists, nil
}

// Update saves the user name, email and module of an active user
func (r *AuthUserRepository) Update(ctx context.Context, u *models.AuthUser) error {
	u.UpdatedAt = time.Now().UTC()
	tag, err := r.db.q(ctx).Exec(ctx, `
		UPDATE auth_table SET user_name = $2, email = $3, module = $4, updated_at = $5
		WHERE id = $1 AND is_active
	`, u.ID, u.UserName, u.Email, u.Module, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperrors.NewConflictError("email or username is already in use")
		}
		return fmt.Errorf("failed to update auth user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("user", strconv.FormatInt(u.ID, 10))
	}
	return nil
}

// TouchLastLogin records a successful sign in
func (r *AuthUserRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.q(ctx).Exec(ctx, `UPDATE auth_table SET last_login = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a user
func (r *AuthUserRepository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.db.q(ctx).Exec(ctx,
		`UPDATE auth_table SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate auth user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("user", strconv.FormatInt(id, 10))
	}
	return nil
}
