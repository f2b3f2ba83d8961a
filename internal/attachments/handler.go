package attachments

import (
	"github.com/gin-gonic/gin"

	"github.com/nextoral/backend/internal/middleware"
	"github.com/nextoral/backend/pkg/response"
)

// Handler handles attachment HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates an attachments handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// CreateUpload handles POST /api/attachments/upload-url.
func (h *Handler) CreateUpload(c *gin.Context) {
	var req UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "noteId and filename required")
		return
	}
	up, err := h.svc.CreateUpload(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, up)
}

// DownloadURL handles GET /api/attachments/:id/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	d, err := h.svc.DownloadURL(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, d)
}

// Delete handles DELETE /api/attachments/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.IdentityFrom(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Register mounts the attachment routes. auth must attach an identity with an active organization.
func (h *Handler) Register(r gin.IRouter, auth ...gin.HandlerFunc) {
	g := r.Group("/api/attachments", auth...)
	g.POST("/upload-url", h.CreateUpload)
	g.GET("/:id/download-url", h.DownloadURL)
	g.DELETE("/:id", h.Delete)
}
