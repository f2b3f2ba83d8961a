// Package domains keeps the subdomain → tenant mapping in Redis.
package domains

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nextoral/backend/internal/apperr"
)

// KeyPrefix namespaces registry keys in the shared keyspace.
const KeyPrefix = "subdomain:"

const scanBatch = 100

// Metadata is stored per subdomain.
type Metadata struct {
	CreatedAt int64  `json:"createdAt"` // epoch ms
	CreatedBy string `json:"createdBy,omitempty"`
}

// Entry is a subdomain with its metadata.
type Entry struct {
	Subdomain string `json:"subdomain"`
	CreatedAt int64  `json:"createdAt"`
}

// Config is the public routing configuration.
type Config struct {
	Protocol   string `json:"protocol"`
	RootDomain string `json:"rootDomain"`
}

// CreateResult is returned by a successful Create.
type CreateResult struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirectUrl"`
}

// Registry is the subdomain registry.
type Registry struct {
	rdb    redis.UniversalClient
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// NewRegistry creates a Registry. rootDomain may carry a port (localhost:3000).
func NewRegistry(rdb redis.UniversalClient, protocol, rootDomain string, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		rdb:    rdb,
		cfg:    Config{Protocol: protocol, RootDomain: rootDomain},
		now:    time.Now,
		logger: logger,
	}
}

// Config returns the protocol and root domain.
func (r *Registry) Config() Config { return r.cfg }

// Sanitize lowercases s and strips every character outside [a-z0-9-].
func Sanitize(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '-' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}

// Get returns the metadata for domain, or nil when it is not registered.
func (r *Registry) Get(ctx context.Context, domain string) (*Metadata, error) {
	slug := Sanitize(domain)
	if slug == "" {
		return nil, nil
	}
	raw, err := r.rdb.Get(ctx, KeyPrefix+slug).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subdomain %s: %w", slug, err)
	}
	var md Metadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		return nil, fmt.Errorf("decode subdomain %s: %w", slug, err)
	}
	return &md, nil
}

// IsCreator reports whether userID reserved the subdomain.
func (md *Metadata) IsCreator(userID uuid.UUID) bool {
	return md != nil && md.CreatedBy != "" && userID != uuid.Nil && md.CreatedBy == userID.String()
}

// Create reserves subdomain for createdBy. The existence check and write are one SET NX.
func (r *Registry) Create(ctx context.Context, subdomain string, createdBy uuid.UUID) (*CreateResult, error) {
	slug := Sanitize(subdomain)
	if slug != subdomain {
		return nil, apperr.Validation("subdomain can only have lowercase letters, numbers, and hyphens")
	}
	if slug == "" {
		return nil, apperr.Validation("subdomain is required")
	}

	md := Metadata{CreatedAt: r.now().UnixMilli()}
	if createdBy != uuid.Nil {
		md.CreatedBy = createdBy.String()
	}
	body, err := json.Marshal(md)
	if err != nil {
		return nil, err
	}
	ok, err := r.rdb.SetNX(ctx, KeyPrefix+slug, body, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve subdomain %s: %w", slug, err)
	}
	if !ok {
		return nil, apperr.Conflict("subdomain already taken")
	}
	r.logger.Info("subdomain created", zap.String("subdomain", slug))
	return &CreateResult{Success: true, RedirectURL: r.URL(slug)}, nil
}

// Delete removes subdomain. Deleting an unknown subdomain succeeds.
func (r *Registry) Delete(ctx context.Context, subdomain string) error {
	slug := Sanitize(subdomain)
	if slug == "" {
		return nil
	}
	if err := r.rdb.Del(ctx, KeyPrefix+slug).Err(); err != nil {
		return fmt.Errorf("delete subdomain %s: %w", slug, err)
	}
	r.logger.Info("subdomain deleted", zap.String("subdomain", slug))
	return nil
}

// ListAll returns every registered subdomain. Entries without a readable
// createdAt report the current time.
func (r *Registry) ListAll(ctx context.Context) ([]Entry, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, KeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan subdomains: %w", err)
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget subdomains: %w", err)
	}
	now := r.now().UnixMilli()
	out := make([]Entry, 0, len(keys))
	for i, k := range keys {
		e := Entry{Subdomain: strings.TrimPrefix(k, KeyPrefix), CreatedAt: now}
		if s, ok := values[i].(string); ok {
			var md Metadata
			if json.Unmarshal([]byte(s), &md) == nil && md.CreatedAt > 0 {
				e.CreatedAt = md.CreatedAt
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// URL returns protocol://slug.root for a tenant.
func (r *Registry) URL(slug string) string {
	return fmt.Sprintf("%s://%s.%s", r.cfg.Protocol, slug, r.cfg.RootDomain)
}
