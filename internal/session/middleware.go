package session

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nextoral/backend/internal/middleware"
	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/pkg/response"
)

// Load attaches the session identity to the request when the cookie is valid.
// Requests without a valid session continue as anonymous.
func Load(store *Store, cookies Cookies, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.SetIdentity(c, models.Anonymous)
		token := cookies.Read(c)
		if token == "" {
			c.Next()
			return
		}
		data, err := store.Get(c.Request.Context(), token)
		if err != nil {
			logger.Debug("session not loaded", zap.Error(err))
			c.Next()
			return
		}
		middleware.SetIdentity(c, data.Identity())
		c.Set(middleware.ContextSessionID, token)
		c.Next()
	}
}

// TokenFrom returns the session token attached by Load.
func TokenFrom(c *gin.Context) string {
	return c.GetString(middleware.ContextSessionID)
}

// Handler serves the current session.
type Handler struct{}

// Me handles GET /api/session.
func (Handler) Me(c *gin.Context) {
	id := middleware.IdentityFrom(c)
	if id.IsAnonymous() {
		response.OK(c, nil)
		return
	}
	response.OK(c, id)
}
