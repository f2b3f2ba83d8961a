// Package tenant derives the organization subdomain from the request host and
// rewrites tenant routes.
package tenant

import (
	"net"
	"strings"
)

const (
	devSuffix     = ".localhost"
	previewMarker = "---"
	previewSuffix = ".vercel.app"
)

// Resolver maps hostnames to tenant slugs for one root domain.
type Resolver struct {
	root string // lowercase, port stripped
}

// NewResolver creates a Resolver for rootDomain (e.g. "nextoral.com" or "localhost:3000").
func NewResolver(rootDomain string) *Resolver {
	return &Resolver{root: stripPort(strings.ToLower(strings.TrimSpace(rootDomain)))}
}

// RootDomain returns the configured root domain without port.
func (r *Resolver) RootDomain() string { return r.root }

// Resolve returns the tenant slug for host. Hosts that match no convention,
// including malformed ones, resolve to no tenant.
func (r *Resolver) Resolve(host string) (string, bool) {
	hostname := stripPort(strings.ToLower(strings.TrimSpace(host)))
	if hostname == "" {
		return "", false
	}

	// Local development: clinic.localhost
	if strings.Contains(hostname, devSuffix) {
		slug := strings.Split(hostname, ".")[0]
		return slug, slug != "" && slug != "www"
	}

	// Preview deployments: tenant---branch.vercel.app
	if strings.Contains(hostname, previewMarker) && strings.HasSuffix(hostname, previewSuffix) {
		slug := strings.Split(hostname, previewMarker)[0]
		return slug, slug != ""
	}

	if r.root == "" || hostname == r.root || hostname == "www."+r.root {
		return "", false
	}
	if !strings.HasSuffix(hostname, "."+r.root) {
		return "", false
	}
	slug := strings.TrimSuffix(hostname, "."+r.root)
	if slug == "" {
		return "", false
	}
	return slug, true
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}
