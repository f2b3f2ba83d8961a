package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/pkg/response"
)

// TokenValidator turns a bearer token into an identity.
type TokenValidator interface {
	IdentityFromToken(token string) (models.Identity, error)
}

// Bearer resolves the identity from an Authorization bearer token. A missing
// header leaves the caller anonymous; a present but invalid token is rejected.
func Bearer(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			SetIdentity(c, models.Anonymous)
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		id, err := v.IdentityFromToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		SetIdentity(c, id)
		c.Next()
	}
}
