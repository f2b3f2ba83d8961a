package organizations

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/domains"
	"github.com/nextoral/backend/internal/models"
)

// Store is the persistence the service needs. *Repository implements it.
type Store interface {
	Create(ctx context.Context, org *models.Organization) error
	AddMember(ctx context.Context, orgID, userID uuid.UUID, role string) error
	GetBySlug(ctx context.Context, slug string) (*models.Organization, error)
	GetMemberRole(ctx context.Context, orgID, userID uuid.UUID) (string, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Membership, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TxRunner is implemented by *database.TxManager.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// DomainRegistry reserves and releases tenant subdomains. *domains.Registry implements it.
type DomainRegistry interface {
	Create(ctx context.Context, subdomain string, createdBy uuid.UUID) (*domains.CreateResult, error)
	Delete(ctx context.Context, subdomain string) error
}

// Service ties organizations to their subdomain mapping.
type Service struct {
	store   Store
	txm     TxRunner
	domains DomainRegistry
	logger  *zap.Logger
}

// NewService creates an organizations service.
func NewService(store Store, txm TxRunner, registry DomainRegistry, logger *zap.Logger) *Service {
	return &Service{store: store, txm: txm, domains: registry, logger: logger}
}

// OnboardResult is the outcome of a successful onboarding.
type OnboardResult struct {
	Organization models.Membership `json:"organization"`
	RedirectURL  string            `json:"redirectUrl"`
}

// Onboard reserves subdomain, then creates the organization with userID as
// owner. The reservation is released if the organization cannot be stored.
func (s *Service) Onboard(ctx context.Context, userID uuid.UUID, name, subdomain string) (*OnboardResult, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 255 {
		return nil, apperr.Validation("name must be 1-255 characters")
	}
	reserved, err := s.domains.Create(ctx, subdomain, userID)
	if err != nil {
		return nil, err
	}

	org := models.Organization{Name: name, Slug: subdomain}
	err = s.txm.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Create(ctx, &org); err != nil {
			return err
		}
		return s.store.AddMember(ctx, org.ID, userID, models.OrgRoleOwner)
	})
	if err != nil {
		if derr := s.domains.Delete(context.WithoutCancel(ctx), subdomain); derr != nil {
			s.logger.Error("release subdomain after failed onboarding",
				zap.String("subdomain", subdomain), zap.Error(derr))
		}
		return nil, err
	}

	s.logger.Info("organization onboarded",
		zap.String("org_id", org.ID.String()), zap.String("subdomain", subdomain))
	return &OnboardResult{
		Organization: models.Membership{Organization: org, Role: models.OrgRoleOwner},
		RedirectURL:  reserved.RedirectURL,
	}, nil
}

// List returns the organizations userID belongs to.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	return s.store.ListForUser(ctx, userID)
}

// Membership returns userID's membership in the organization behind slug.
func (s *Service) Membership(ctx context.Context, userID uuid.UUID, slug string) (*models.Membership, error) {
	org, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	role, err := s.store.GetMemberRole(ctx, org.ID, userID)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return nil, apperr.Forbidden("not a member of this organization")
	}
	return &models.Membership{Organization: *org, Role: role}, nil
}

// Delete removes the organization behind slug and its subdomain. Only owners may do this.
func (s *Service) Delete(ctx context.Context, userID uuid.UUID, slug string) error {
	m, err := s.Membership(ctx, userID, slug)
	if err != nil {
		return err
	}
	if m.Role != models.OrgRoleOwner {
		return apperr.Forbidden("only the owner can delete this organization")
	}
	if err := s.store.Delete(ctx, m.ID); err != nil {
		return err
	}
	if err := s.domains.Delete(ctx, slug); err != nil {
		return err
	}
	s.logger.Info("organization deleted", zap.String("org_id", m.ID.String()), zap.String("subdomain", slug))
	return nil
}
