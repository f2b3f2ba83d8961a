package domains

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/middleware"
	"github.com/nextoral/backend/pkg/response"
)

// OwnerChecker reports whether a user owns the organization behind slug.
type OwnerChecker interface {
	IsOwner(ctx context.Context, userID uuid.UUID, slug string) (bool, error)
	SlugTaken(ctx context.Context, slug string) (bool, error)
}

// Handler handles the domain API.
type Handler struct {
	registry *Registry
	owners   OwnerChecker
}

// NewHandler creates a domains handler.
func NewHandler(registry *Registry, owners OwnerChecker) *Handler {
	return &Handler{registry: registry, owners: owners}
}

// CreateRequest is the body for POST /api/domains.
type CreateRequest struct {
	Subdomain string `json:"subdomain" binding:"required"`
}

// DeleteResponse is returned by DELETE /api/domains/:subdomain.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Config handles GET /api/domains/config. Public.
func (h *Handler) Config(c *gin.Context) {
	response.OK(c, h.registry.Config())
}

// Get handles GET /api/domains/:domain. Returns null data when unregistered.
func (h *Handler) Get(c *gin.Context) {
	md, err := h.registry.Get(c.Request.Context(), c.Param("domain"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, md)
}

// Create handles POST /api/domains.
func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "subdomain required")
		return
	}
	res, err := h.registry.Create(c.Request.Context(), body.Subdomain, middleware.IdentityFrom(c).UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// Delete handles DELETE /api/domains/:subdomain. The owner of the tenant may
// remove it, and so may the user who reserved a slug no organization uses.
func (h *Handler) Delete(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	slug := Sanitize(c.Param("subdomain"))
	if h.owners != nil {
		ok, err := h.mayDelete(c.Request.Context(), id.UserID, slug)
		if err != nil {
			response.Error(c, err)
			return
		}
		if !ok {
			response.Error(c, apperr.Forbidden("only the organization owner can remove its domain"))
			return
		}
	}
	if err := h.registry.Delete(c.Request.Context(), slug); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, DeleteResponse{Success: true, Message: "Domain " + slug + " has been deleted successfully"})
}

func (h *Handler) mayDelete(ctx context.Context, userID uuid.UUID, slug string) (bool, error) {
	ok, err := h.owners.IsOwner(ctx, userID, slug)
	if err != nil || ok {
		return ok, err
	}
	md, err := h.registry.Get(ctx, slug)
	if err != nil || !md.IsCreator(userID) {
		return false, err
	}
	taken, err := h.owners.SlugTaken(ctx, slug)
	return !taken, err
}

// List handles GET /api/domains.
func (h *Handler) List(c *gin.Context) {
	entries, err := h.registry.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// Landing handles GET /s/:subdomain, the route tenant root requests are rewritten to.
func (h *Handler) Landing(c *gin.Context) {
	slug := c.Param("subdomain")
	md, err := h.registry.Get(c.Request.Context(), slug)
	if err != nil {
		response.Error(c, err)
		return
	}
	if md == nil {
		response.NotFound(c, "tenant not found")
		return
	}
	response.OK(c, gin.H{
		"subdomain": Sanitize(slug),
		"createdAt": md.CreatedAt,
		"url":       h.registry.URL(Sanitize(slug)),
	})
}

// Register mounts the domain routes. auth guards every route except config.
func (h *Handler) Register(r gin.IRouter, auth gin.HandlerFunc) {
	g := r.Group("/api/domains")
	g.GET("/config", h.Config)
	g.GET("", auth, h.List)
	g.GET("/:domain", auth, h.Get)
	g.POST("", auth, h.Create)
	g.DELETE("/:subdomain", auth, h.Delete)
	r.GET("/s/:subdomain", h.Landing)
}
