package authd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solgate/authd/store"
	"github.com/solgate/authd/token"
)

// Engine orchestrates the token lifecycle: issuance on login, rotation on
// refresh, revocation on logout. It is stateless between calls; every
// piece of cross-request state lives in the revocation store, so any
// number of instances can run against the same Redis without
// coordination.
//
// A race between two concurrent Refresh calls holding the same refresh
// token is accepted: both may pass the blacklist gate before either
// writes. The window is bounded by one store round trip and at most one
// of the resulting pairs should be treated as canonical by the client.
type Engine struct {
	config    Config
	codec     *token.Codec
	store     RevocationStore
	directory Directory
	logger    *slog.Logger
}

// Login issues a fresh token pair for an already-authenticated user. The
// caller must have resolved the account and verified its credentials; the
// engine trusts its input here.
//
// New tokens are never checked against the blacklist; they start ACTIVE
// by construction, since their jtis are freshly random. The session
// snapshot write is best-effort: a store failure is logged and does not
// block the login.
func (e *Engine) Login(ctx context.Context, user User) (*LoginResult, error) {
	pair, err := e.codec.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue pair: %w", err)
	}

	now := time.Now().UTC()
	if err := e.directory.TouchLastLogin(ctx, user.ID, now); err != nil {
		e.logger.Warn("last-login update failed", "user_id", user.ID, "error", err)
	} else {
		user.LastLogin = now
	}

	if e.config.Session.CacheEnabled {
		snap := store.Snapshot{
			Username:  user.Username,
			LastLogin: now,
			IsActive:  user.IsActive,
		}
		if err := e.store.PutSession(ctx, user.ID, snap, e.config.Session.CacheTTL); err != nil {
			e.logger.Warn("session snapshot write failed", "user_id", user.ID, "error", err)
		}
	}

	return &LoginResult{
		TokenPair: TokenPair{AccessToken: pair.Access, RefreshToken: pair.Refresh},
		User:      user.Public(),
	}, nil
}

// Refresh rotates a refresh token: it validates the presented token,
// issues a brand-new pair for the same subject, and durably revokes the
// old token so it can never be replayed.
//
// The order of checks is load-bearing:
//
//  1. decode: expired or forged tokens are rejected before any store
//     round trip.
//  2. blacklist gate: a previously-rotated token is Revoked, full stop.
//  3. subject re-resolution: catches accounts deactivated or deleted
//     since issuance.
//  4. issue the new pair (fresh jtis, fresh expiry window).
//  5. blacklist the old jti for its remaining lifetime. If this write
//     fails the whole refresh fails: succeeding here would leave old and
//     new refresh tokens simultaneously valid, breaking single-use.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := e.codec.Decode(refreshToken, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	revoked, err := e.store.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	user, err := e.resolveSubject(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	pair, err := e.codec.IssuePair(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue pair: %w", err)
	}

	if err := e.store.Blacklist(ctx, claims.ID, claims.Remaining(time.Now())); err != nil {
		return nil, fmt.Errorf("revoke consumed refresh token: %w", err)
	}

	return &TokenPair{AccessToken: pair.Access, RefreshToken: pair.Refresh}, nil
}

// Logout revokes a refresh token ahead of its natural expiry. Both tokens
// must decode and must carry the same subject; otherwise nothing is
// written. The access token itself is not blacklisted; its short
// lifetime bounds the exposure window, and that trade is the chosen
// policy, not an omission.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	access, err := e.codec.Decode(accessToken, token.KindAccess)
	if err != nil {
		return err
	}
	refresh, err := e.codec.Decode(refreshToken, token.KindRefresh)
	if err != nil {
		return err
	}
	if access.Subject != refresh.Subject {
		return ErrSubjectMismatch
	}

	if err := e.store.Blacklist(ctx, refresh.ID, refresh.Remaining(time.Now())); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	if e.config.Session.CacheEnabled {
		if err := e.store.DeleteSession(ctx, refresh.Subject); err != nil {
			e.logger.Warn("session snapshot delete failed", "user_id", refresh.Subject, "error", err)
		}
	}

	return nil
}

// Authorize validates a bearer access token for request handling:
// signature, expiry, and a blacklist check on its jti. Store failures
// fail closed; an unreachable blacklist must not admit traffic.
func (e *Engine) Authorize(ctx context.Context, accessToken string) (*token.Claims, error) {
	claims, err := e.codec.Decode(accessToken, token.KindAccess)
	if err != nil {
		return nil, err
	}

	revoked, err := e.store.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("blacklist lookup: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// UpdateUser applies partial account updates through the directory. Token
// state is untouched: previously issued tokens remain valid until expiry
// or logout.
func (e *Engine) UpdateUser(ctx context.Context, userID string, fields UserUpdate) (User, error) {
	user, err := e.directory.Update(ctx, userID, fields)
	if err != nil {
		return User{}, err
	}

	// Refresh the cached snapshot so reads don't serve stale usernames.
	if e.config.Session.CacheEnabled {
		snap := store.Snapshot{
			Username:  user.Username,
			LastLogin: user.LastLogin,
			IsActive:  user.IsActive,
		}
		if err := e.store.PutSession(ctx, user.ID, snap, e.config.Session.CacheTTL); err != nil {
			e.logger.Warn("session snapshot refresh failed", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

// CachedSession returns the best-effort session snapshot for a user, or
// nil when nothing is cached. Cache misses and store failures both read
// as nil; the directory is the source of truth.
func (e *Engine) CachedSession(ctx context.Context, userID string) *store.Snapshot {
	if !e.config.Session.CacheEnabled {
		return nil
	}
	snap, err := e.store.GetSession(ctx, userID)
	if err != nil {
		e.logger.Warn("session snapshot read failed", "user_id", userID, "error", err)
		return nil
	}
	return snap
}

func (e *Engine) resolveSubject(ctx context.Context, subject string) (User, error) {
	user, err := e.directory.FindByID(ctx, subject)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("directory lookup: %w", err)
	}
	if !user.IsActive {
		return User{}, ErrUserNotFound
	}
	return user, nil
}
