package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nextoral/backend/internal/apperr"
	"github.com/nextoral/backend/pkg/utils"
)

const otpKeyPrefix = "otp:"

// OTPStore issues and checks one-time email sign-in codes. Only a bcrypt hash
// of the code is stored.
type OTPStore struct {
	rdb         redis.UniversalClient
	ttl         time.Duration
	length      int
	maxAttempts int
}

// NewOTPStore creates an OTP store.
func NewOTPStore(rdb redis.UniversalClient, ttl time.Duration, length, maxAttempts int) *OTPStore {
	return &OTPStore{rdb: rdb, ttl: ttl, length: length, maxAttempts: maxAttempts}
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Issue creates a fresh code for email, replacing any earlier one.
func (s *OTPStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := utils.GenerateNumericCode(s.length)
	if err != nil {
		return "", err
	}
	hash, err := utils.HashSecret(code)
	if err != nil {
		return "", fmt.Errorf("hash code: %w", err)
	}
	key := otpKeyPrefix + NormalizeEmail(email)
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, "hash", hash, "attempts", 0)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("store code: %w", err)
	}
	return code, nil
}

// attemptScript counts one attempt against an existing code and returns its
// hash and the attempt count. A missing key stays missing, so the TTL set by
// Issue is never lost. Past the limit the code is discarded.
var attemptScript = redis.NewScript(`
local hash = redis.call("HGET", KEYS[1], "hash")
if not hash then
	return {"", 0}
end
local attempts = redis.call("HINCRBY", KEYS[1], "attempts", 1)
if attempts > tonumber(ARGV[1]) then
	redis.call("DEL", KEYS[1])
end
return {hash, attempts}
`)

// consumeScript deletes the code only if it is still the one that was checked.
var consumeScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "hash") == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Verify checks code for email and consumes it on success. Each attempt
// counts; after maxAttempts the code is discarded. A code can be consumed once
// even under concurrent verification.
func (s *OTPStore) Verify(ctx context.Context, email, code string) error {
	key := otpKeyPrefix + NormalizeEmail(email)
	res, err := attemptScript.Run(ctx, s.rdb, []string{key}, s.maxAttempts).Slice()
	if err != nil {
		return fmt.Errorf("count attempt: %w", err)
	}
	if len(res) != 2 {
		return fmt.Errorf("count attempt: unexpected reply %v", res)
	}
	hash, _ := res[0].(string)
	attempts, _ := res[1].(int64)
	if hash == "" {
		return apperr.Unauthorized("code expired or not requested")
	}
	if attempts > int64(s.maxAttempts) {
		return apperr.Unauthorized("too many attempts, request a new code")
	}
	if !utils.CheckSecret(strings.TrimSpace(code), hash) {
		return apperr.Unauthorized("invalid code")
	}
	deleted, err := consumeScript.Run(ctx, s.rdb, []string{key}, hash).Int64()
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if deleted == 0 {
		return apperr.Unauthorized("code already used")
	}
	return nil
}

// Attempts returns the failed attempts recorded for email. Used by tests and diagnostics.
func (s *OTPStore) Attempts(ctx context.Context, email string) (int, error) {
	v, err := s.rdb.HGet(ctx, otpKeyPrefix+NormalizeEmail(email), "attempts").Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}
