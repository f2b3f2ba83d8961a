package syncapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nextoral/backend/internal/middleware"
	"github.com/nextoral/backend/pkg/response"
)

// Handler serves the sync HTTP endpoints.
type Handler struct {
	pusher *Pusher
	puller *Puller
}

// NewHandler creates a sync handler.
func NewHandler(pusher *Pusher, puller *Puller) *Handler {
	return &Handler{pusher: pusher, puller: puller}
}

// Push handles POST /api/sync/push.
func (h *Handler) Push(c *gin.Context) {
	var req PushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "clientID and mutations required")
		return
	}
	resp, err := h.pusher.Push(c.Request.Context(), middleware.IdentityFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Pull handles GET /api/sync/pull/:table?since=version&clientID=.
func (h *Handler) Pull(c *gin.Context) {
	var since int64
	if s := c.Query("since"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 {
			response.BadRequest(c, "since must be a non-negative version")
			return
		}
		since = v
	}
	resp, err := h.puller.Pull(c.Request.Context(), middleware.IdentityFrom(c), c.Param("table"), since, c.Query("clientID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Register mounts the sync routes. bearer resolves the caller from the
// Authorization header; ws serves the poke socket.
func (h *Handler) Register(r gin.IRouter, bearer, ws gin.HandlerFunc) {
	g := r.Group("/api/sync")
	g.POST("/push", bearer, h.Push)
	g.GET("/pull/:table", bearer, h.Pull)
	if ws != nil {
		g.GET("/ws", ws)
	}
}
