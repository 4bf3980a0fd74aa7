package authd

import (
	"errors"
	"time"
)

// Config is the engine's process-wide configuration. It is loaded once at
// startup, validated by [Builder.Build], and immutable afterwards.
type Config struct {
	Token   TokenConfig
	Session SessionConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig carries the signing configuration handed to the token codec.
type TokenConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte // hs256
	PrivateKey    []byte // ed25519
	PublicKey     []byte // ed25519
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
SESSION CACHE CONFIG
====================================
*/

// SessionConfig controls the best-effort session snapshot cache. The cache
// is an optimization only; disabling it changes no security property.
type SessionConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// DefaultConfig returns the baseline configuration: short-lived access
// tokens, week-long refresh tokens, hour-long session snapshots. Key
// material must still be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			Issuer:        "authd",
		},
		Session: SessionConfig{
			CacheEnabled: true,
			CacheTTL:     time.Hour,
		},
	}
}

// Validate rejects configurations the engine cannot run safely with.
// Codec-level key checks happen again in token.NewCodec; the checks here
// cover the engine's own invariants.
func (c *Config) Validate() error {
	if c.Token.AccessTTL <= 0 {
		return errors.New("token access TTL must be positive")
	}
	if c.Token.RefreshTTL <= 0 {
		return errors.New("token refresh TTL must be positive")
	}
	if c.Token.RefreshTTL < c.Token.AccessTTL {
		return errors.New("refresh TTL must not be shorter than access TTL")
	}
	if c.Session.CacheEnabled && c.Session.CacheTTL <= 0 {
		return errors.New("session cache TTL must be positive when the cache is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
