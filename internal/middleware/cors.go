package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORSPolicy decides which browser origins may call the API.
type CORSPolicy struct {
	origins    map[string]bool
	any        bool
	rootDomain string // tenant origins {slug}.{root} are trusted when set
}

// NewCORSPolicy parses a comma-separated origin list ("*" allows all).
// Origins on a subdomain of rootDomain are always allowed with credentials.
func NewCORSPolicy(allowedOrigins, rootDomain string) CORSPolicy {
	p := CORSPolicy{origins: make(map[string]bool), rootDomain: strings.ToLower(rootDomain)}
	for _, o := range strings.Split(allowedOrigins, ",") {
		o = strings.TrimSpace(o)
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[strings.TrimSuffix(o, "/")] = true
		}
	}
	if len(p.origins) == 0 && p.rootDomain == "" {
		p.any = true
	}
	return p
}

// Allows reports whether origin is trusted to send credentials.
func (p CORSPolicy) Allows(origin string) bool {
	if origin == "" {
		return false
	}
	if p.origins[origin] {
		return true
	}
	if p.rootDomain == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Host)
	return host == p.rootDomain || strings.HasSuffix(host, "."+p.rootDomain)
}

// CORS sets CORS headers. Named and tenant origins get credentials so the
// session cookie travels; a wildcard policy never does.
func CORS(policy CORSPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allow := ""
		switch {
		case policy.Allows(origin):
			allow = origin
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		case policy.any:
			allow = "*"
		}
		if allow != "" {
			c.Header("Access-Control-Allow-Origin", allow)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
