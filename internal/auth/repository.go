package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/pkg/database"
)

// Repository handles user persistence.
type Repository struct {
	db database.Querier
}

// NewRepository creates an auth repository.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, email, full_name, created_at, updated_at FROM users WHERE id = $1`
	var u models.User
	err := database.QuerierFromCtx(ctx, r.db).QueryRow(ctx, q, id).
		Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err, "user")
	}
	return &u, nil
}

// UpsertByEmail returns the user for email, creating it on first sign-in.
// An empty stored name is filled from fullName.
func (r *Repository) UpsertByEmail(ctx context.Context, email, fullName string) (*models.User, error) {
	const q = `INSERT INTO users (email, full_name) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET
			full_name = CASE WHEN users.full_name = '' THEN EXCLUDED.full_name ELSE users.full_name END,
			updated_at = NOW()
		RETURNING id, email, full_name, created_at, updated_at`
	var u models.User
	err := database.QuerierFromCtx(ctx, r.db).QueryRow(ctx, q, NormalizeEmail(email), fullName).
		Scan(&u.ID, &u.Email, &u.FullName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err, "user")
	}
	return &u, nil
}
