package organizations

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextoral/backend/internal/middleware"
	"github.com/nextoral/backend/internal/session"
	"github.com/nextoral/backend/pkg/response"
)

// ActiveOrgSetter switches the organization a session acts in. *session.Store implements it.
type ActiveOrgSetter interface {
	SetActiveOrganization(ctx context.Context, token string, orgID uuid.UUID, role string) error
}

// Handler handles organization HTTP endpoints.
type Handler struct {
	svc      *Service
	sessions ActiveOrgSetter
}

// NewHandler creates an organizations handler.
func NewHandler(svc *Service, sessions ActiveOrgSetter) *Handler {
	return &Handler{svc: svc, sessions: sessions}
}

// OnboardRequest is the body for POST /api/onboarding.
type OnboardRequest struct {
	Name      string `json:"name" binding:"required"`
	Subdomain string `json:"subdomain" binding:"required"`
}

// SwitchRequest is the body for POST /api/session/organization.
type SwitchRequest struct {
	Slug string `json:"slug" binding:"required"`
}

// Onboard handles POST /api/onboarding. The new organization becomes the session's active one.
func (h *Handler) Onboard(c *gin.Context) {
	var body OnboardRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "name and subdomain required")
		return
	}
	id := middleware.IdentityFrom(c)
	res, err := h.svc.Onboard(c.Request.Context(), id.UserID, body.Name, strings.TrimSpace(body.Subdomain))
	if err != nil {
		response.Error(c, err)
		return
	}
	if token := session.TokenFrom(c); token != "" {
		if err := h.sessions.SetActiveOrganization(c.Request.Context(), token, res.Organization.ID, res.Organization.Role); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.Created(c, res)
}

// List handles GET /api/organizations.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), middleware.IdentityFrom(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Delete handles DELETE /api/organizations/:slug.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.IdentityFrom(c).UserID, c.Param("slug")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Switch handles POST /api/session/organization. Membership is checked before switching.
func (h *Handler) Switch(c *gin.Context) {
	var body SwitchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "slug required")
		return
	}
	token := session.TokenFrom(c)
	if token == "" {
		response.Unauthorized(c, "session required")
		return
	}
	m, err := h.svc.Membership(c.Request.Context(), middleware.IdentityFrom(c).UserID, body.Slug)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.sessions.SetActiveOrganization(c.Request.Context(), token, m.ID, m.Role); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, m)
}

// Register mounts the organization routes behind requireUser.
func (h *Handler) Register(r gin.IRouter, requireUser gin.HandlerFunc) {
	r.POST("/api/onboarding", requireUser, h.Onboard)
	r.GET("/api/organizations", requireUser, h.List)
	r.DELETE("/api/organizations/:slug", requireUser, h.Delete)
	r.POST("/api/session/organization", requireUser, h.Switch)
}
