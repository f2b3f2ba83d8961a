package session

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Cookies writes and reads the session cookie. The cookie is scoped to the
// root domain so it is shared by every tenant subdomain.
type Cookies struct {
	Name   string
	Domain string
	Secure bool
	TTL    time.Duration
}

// NewCookies builds cookie settings for rootDomain (port is ignored; plain
// localhost gets a host-only cookie).
func NewCookies(name, rootDomain string, secure bool, ttl time.Duration) Cookies {
	host := rootDomain
	if h, _, err := net.SplitHostPort(rootDomain); err == nil {
		host = h
	}
	domain := ""
	if host != "" && host != "localhost" && strings.Contains(host, ".") {
		domain = "." + host
	}
	return Cookies{Name: name, Domain: domain, Secure: secure, TTL: ttl}
}

// Write sets the session cookie.
func (k Cookies) Write(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     k.Name,
		Value:    token,
		Path:     "/",
		Domain:   k.Domain,
		MaxAge:   int(k.TTL.Seconds()),
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Clear expires the session cookie.
func (k Cookies) Clear(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     k.Name,
		Value:    "",
		Path:     "/",
		Domain:   k.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   k.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the cookie token, or "" when absent.
func (k Cookies) Read(c *gin.Context) string {
	v, err := c.Cookie(k.Name)
	if err != nil {
		return ""
	}
	return v
}
