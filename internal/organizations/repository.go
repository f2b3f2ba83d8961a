package organizations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/pkg/database"
)

// Repository handles organization and membership persistence.
type Repository struct {
	db  database.Querier
	now func() time.Time
}

// NewRepository creates an organizations repository.
func NewRepository(db database.Querier) *Repository {
	return &Repository{db: db, now: time.Now}
}

// Create inserts org, assigning its ID and timestamps.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	now := r.now().UnixMilli()
	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	org.CreatedAt, org.UpdatedAt = now, now
	const q = `INSERT INTO organizations (id, name, slug, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := database.QuerierFromCtx(ctx, r.db).Exec(ctx, q, org.ID, org.Name, org.Slug, now, now)
	return database.MapError(err, "organization")
}

// AddMember adds userID to orgID with role, replacing an earlier role.
func (r *Repository) AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) error {
	if !models.ValidOrgRole(role) {
		return apperr.Validation("invalid role")
	}
	now := r.now().UnixMilli()
	const q = `INSERT INTO organization_members (id, org_id, user_id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (org_id, user_id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at`
	_, err := database.QuerierFromCtx(ctx, r.db).Exec(ctx, q, uuid.New(), orgID, userID, role, now)
	return database.MapError(err, "member")
}

// GetBySlug returns the organization behind slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	const q = `SELECT id, name, slug, created_at, updated_at FROM organizations WHERE slug = $1`
	var o models.Organization
	err := database.QuerierFromCtx(ctx, r.db).QueryRow(ctx, q, slug).
		Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, database.MapError(err, "organization")
	}
	return &o, nil
}

// GetMemberRole returns userID's role in orgID, or "" when not a member.
func (r *Repository) GetMemberRole(ctx context.Context, orgID, userID uuid.UUID) (string, error) {
	const q = `SELECT role FROM organization_members WHERE org_id = $1 AND user_id = $2`
	var role string
	err := database.QuerierFromCtx(ctx, r.db).QueryRow(ctx, q, orgID, userID).Scan(&role)
	if err != nil {
		err = database.MapError(err, "member")
		if errors.Is(err, apperr.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return role, nil
}

// ListForUser returns the organizations userID belongs to, oldest membership first.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	const q = `SELECT o.id, o.name, o.slug, o.created_at, o.updated_at, m.role
		FROM organizations o
		INNER JOIN organization_members m ON m.org_id = o.id
		WHERE m.user_id = $1
		ORDER BY m.created_at, o.name`
	rows, err := database.QuerierFromCtx(ctx, r.db).Query(ctx, q, userID)
	if err != nil {
		return nil, database.MapError(err, "organization")
	}
	defer rows.Close()
	list := []models.Membership{}
	for rows.Next() {
		var m models.Membership
		if err := rows.Scan(&m.ID, &m.Name, &m.Slug, &m.CreatedAt, &m.UpdatedAt, &m.Role); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// IsOwner reports whether userID owns the organization behind slug.
func (r *Repository) IsOwner(ctx context.Context, userID uuid.UUID, slug string) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM organization_members m
		INNER JOIN organizations o ON o.id = m.org_id
		WHERE o.slug = $1 AND m.user_id = $2 AND m.role = $3)`
	var ok bool
	err := database.QuerierFromCtx(ctx, r.db).QueryRow(ctx, q, slug, userID, models.OrgRoleOwner).Scan(&ok)
	if err != nil {
		return false, database.MapError(err, "organization")
	}
	return ok, nil
}

// SlugTaken reports whether an organization uses slug.
func (r *Repository) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var ok bool
	err := database.QuerierFromCtx(ctx, r.db).
		QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM organizations WHERE slug = $1)`, slug).Scan(&ok)
	if err != nil {
		return false, database.MapError(err, "organization")
	}
	return ok, nil
}

// Delete removes an organization. Members and records cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := database.QuerierFromCtx(ctx, r.db).Exec(ctx, `DELETE FROM organizations WHERE id = $1`, id)
	return database.MapError(err, "organization")
}
