package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps every Redis connectivity failure surfaced by
// this package. Callers branch on it with errors.Is to distinguish an
// infrastructure fault from a clean negative answer.
var ErrStoreUnavailable = errors.New("revocation store unavailable")

const (
	blacklistPrefix = "blacklist:"
	sessionPrefix   = "session:"

	// revokedValue is the payload stored under a blacklist key. The key's
	// existence is the signal; the value is only for operator inspection.
	revokedValue = "revoked"

	// minBlacklistTTL floors clamped entries so a revocation issued at (or
	// just past) natural expiry still produces a visible record instead of
	// an instantly-evicted key. Decode rejects such tokens anyway.
	minBlacklistTTL = time.Second
)

// Snapshot is the cached public view of a logged-in user. It is a
// convenience cache only; the user directory remains the source of truth.
type Snapshot struct {
	Username  string    `json:"username"`
	LastLogin time.Time `json:"last_login"`
	IsActive  bool      `json:"is_active"`
}

// Store records blacklisted token identifiers and ephemeral session
// snapshots in a shared Redis reachable by every service instance. All
// entries are TTL-bound, so the store never needs a sweeper.
type Store struct {
	redis redis.UniversalClient
}

// New returns a Store backed by the given Redis client.
func New(client redis.UniversalClient) *Store {
	return &Store{redis: client}
}

func blacklistKey(jti string) string {
	return blacklistPrefix + jti
}

func sessionKey(userID string) string {
	return sessionPrefix + userID
}

// Blacklist records jti as revoked for the given duration. Re-blacklisting
// an already-revoked jti is not an error; the later write simply resets
// the TTL. Negative durations are clamped.
//
//	Performance: 1 Redis SET.
func (s *Store) Blacklist(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("empty jti")
	}
	if ttl < minBlacklistTTL {
		ttl = minBlacklistTTL
	}

	if err := s.redis.Set(ctx, blacklistKey(jti), revokedValue, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether jti has a live revocation record.
//
//	Performance: 1 Redis EXISTS.
func (s *Store) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}

// BlacklistTTL returns the remaining lifetime of a revocation record, or
// zero when no record exists. Intended for diagnostics and tests.
func (s *Store) BlacklistTTL(ctx context.Context, jti string) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, blacklistKey(jti)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}

// PutSession caches a snapshot for userID with the given TTL, replacing
// any previous snapshot.
func (s *Store) PutSession(ctx context.Context, userID string, snap Snapshot, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session ttl must be positive")
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, sessionKey(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// GetSession returns the cached snapshot for userID, or nil when none is
// cached. A corrupt blob is treated as a miss after deleting the entry.
func (s *Store) GetSession(ctx context.Context, userID string) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, sessionKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		_ = s.redis.Del(ctx, sessionKey(userID)).Err()
		return nil, nil
	}
	return &snap, nil
}

// DeleteSession removes the cached snapshot for userID. Deleting a missing
// snapshot is not an error.
func (s *Store) DeleteSession(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, sessionKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
