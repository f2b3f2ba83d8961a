package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nextoral/backend/internal/models"
	"github.com/nextoral/backend/pkg/response"
)

const (
	// ContextIdentity is the key for the caller's models.Identity in gin context.
	ContextIdentity = "identity"
	// ContextSessionID is the key for the cookie session id in gin context.
	ContextSessionID = "session_id"
)

// SetIdentity stores the caller's identity.
func SetIdentity(c *gin.Context, id models.Identity) {
	c.Set(ContextIdentity, id)
}

// IdentityFrom returns the caller's identity, or Anonymous when none was set.
func IdentityFrom(c *gin.Context) models.Identity {
	if v, ok := c.Get(ContextIdentity); ok {
		if id, ok := v.(models.Identity); ok {
			return id
		}
	}
	return models.Anonymous
}

// RequireUser rejects anonymous callers with 401.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IdentityFrom(c).IsAnonymous() {
			response.Unauthorized(c, "sign in required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOrgRole allows only callers whose active organization role is one of roles.
func RequireOrgRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if id.IsAnonymous() {
			response.Unauthorized(c, "sign in required")
			c.Abort()
			return
		}
		if !id.HasOrg() {
			response.Forbidden(c, "no active organization")
			c.Abort()
			return
		}
		if _, ok := allowed[id.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}
