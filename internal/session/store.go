// Package session keeps signed-in browser sessions in Redis behind an
// HMAC-signed cookie.
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/internal/models"
)

const keyPrefix = "session:"

// ErrInvalidSession is returned for unknown, expired or tampered tokens.
var ErrInvalidSession = apperr.Unauthorized("invalid session")

// Data is the stored session.
type Data struct {
	UserID   uuid.UUID `json:"userId"`
	OrgID    uuid.UUID `json:"orgId"`
	Role     string    `json:"role"`
	Email    string    `json:"email"`
	IssuedAt int64     `json:"issuedAt"`
}

// Identity returns the caller identity carried by the session.
func (d Data) Identity() models.Identity {
	return models.Identity{UserID: d.UserID, OrgID: d.OrgID, Role: d.Role, Email: d.Email}
}

// Store persists sessions in Redis.
type Store struct {
	rdb    redis.UniversalClient
	secret []byte
	ttl    time.Duration
}

// NewStore creates a session store. secret must be at least 32 bytes.
func NewStore(rdb redis.UniversalClient, secret []byte, ttl time.Duration) (*Store, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("session TTL must be greater than 0")
	}
	return &Store{rdb: rdb, secret: secret, ttl: ttl}, nil
}

// TTL returns the session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create starts a session for id and returns the signed cookie token.
func (s *Store) Create(ctx context.Context, id models.Identity) (string, error) {
	sid := rand.Text()
	data := Data{UserID: id.UserID, OrgID: id.OrgID, Role: id.Role, Email: id.Email, IssuedAt: time.Now().UnixMilli()}
	if err := s.save(ctx, sid, data, s.ttl); err != nil {
		return "", err
	}
	return sid + "." + s.sign(sid), nil
}

// Get resolves a cookie token to its session.
func (s *Store) Get(ctx context.Context, token string) (*Data, error) {
	sid, err := s.verify(token)
	if err != nil {
		return nil, err
	}
	raw, err := s.rdb.Get(ctx, keyPrefix+sid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ErrInvalidSession
	}
	return &data, nil
}

// Delete ends the session. Unknown tokens are ignored.
func (s *Store) Delete(ctx context.Context, token string) error {
	sid, err := s.verify(token)
	if err != nil {
		return nil
	}
	if err := s.rdb.Del(ctx, keyPrefix+sid).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SetActiveOrganization switches the organization and role the session acts as.
func (s *Store) SetActiveOrganization(ctx context.Context, token string, orgID uuid.UUID, role string) error {
	sid, err := s.verify(token)
	if err != nil {
		return err
	}
	data, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	data.OrgID = orgID
	data.Role = role
	return s.save(ctx, sid, *data, redis.KeepTTL)
}

func (s *Store) save(ctx context.Context, sid string, data Data, ttl time.Duration) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+sid, body, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *Store) sign(sid string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(sid))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Store) verify(token string) (string, error) {
	sid, sig, ok := strings.Cut(token, ".")
	if !ok || sid == "" {
		return "", ErrInvalidSession
	}
	received, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", ErrInvalidSession
	}
	expected, _ := base64.RawURLEncoding.DecodeString(s.sign(sid))
	if !hmac.Equal(received, expected) {
		return "", ErrInvalidSession
	}
	return sid, nil
}
