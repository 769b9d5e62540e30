package psql

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/papayapulse/pulse-api/internal/core/domain"
)

const uniqueViolation = "23505"

// UserRepository implements domain.UserRepository using PostgreSQL
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `uid, email, name, role, district, COALESCE(profile_photo, ''), created_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role, district string
	if err := row.Scan(&u.UID, &u.Email, &u.Name, &role, &district, &u.ProfilePhoto, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	u.District = domain.District(district)
	return &u, nil
}

// GetByUID retrieves a profile by external identity id
func (r *UserRepository) GetByUID(ctx context.Context, uid string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get user %q: %w", uid, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// Create inserts a new profile. A uid or email clash returns domain.ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `INSERT INTO users (uid, email, name, role, district, profile_photo)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		user.UID, user.Email, user.Name, string(user.Role), string(user.District), user.ProfilePhoto,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create user %q (%s): %w", user.UID, pgErr.ConstraintName, domain.ErrConflict)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateName changes the display name and returns the updated profile
func (r *UserRepository) UpdateName(ctx context.Context, uid, name string) (*domain.User, error) {
	query := `UPDATE users SET name = $1 WHERE uid = $2 RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, name, uid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("update user %q: %w", uid, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("update user name: %w", err)
	}
	return user, nil
}

// UpdateProfilePhoto stores the photo data URI
func (r *UserRepository) UpdateProfilePhoto(ctx context.Context, uid, photo string) error {
	query := `UPDATE users SET profile_photo = $1 WHERE uid = $2`

	result, err := r.pool.Exec(ctx, query, photo, uid)
	if err != nil {
		return fmt.Errorf("update profile photo: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("update photo for %q: %w", uid, domain.ErrNotFound)
	}
	return nil
}
