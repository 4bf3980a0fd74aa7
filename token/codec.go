package token

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind distinguishes the two credential types the codec produces. A token
// carries its kind in the "use" claim so an access token can never be
// presented where a refresh token is expected, and vice versa.
type Kind string

const (
	// KindAccess is the short-lived credential presented on every request.
	KindAccess Kind = "access"
	// KindRefresh is the long-lived credential that authorizes rotation.
	KindRefresh Kind = "refresh"
)

// SigningMethod selects the signature algorithm for issued tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 keypair.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrMalformed is returned when a token cannot be parsed, carries the
	// wrong kind, or is missing required claims.
	ErrMalformed = errors.New("token malformed")
	// ErrBadSignature is returned when the signature does not verify
	// against the configured key material.
	ErrBadSignature = errors.New("token signature invalid")
	// ErrExpired is returned when the token's exp claim is in the past.
	ErrExpired = errors.New("token expired")
)

// Config holds the process-wide signing configuration. It is read once at
// construction and never mutated afterwards.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte // hs256
	PrivateKey    []byte // ed25519, raw or PEM
	PublicKey     []byte // ed25519, raw or PEM
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

// Claims is the decoded body of an access or refresh token. Subject carries
// the user ID and ID (jti) the unique token identifier used as the
// revocation key.
type Claims struct {
	Use Kind `json:"use"`
	jwt.RegisteredClaims
}

// Remaining reports the token's remaining lifetime at the given instant.
// Negative values mean the token has already passed its natural expiry.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}

// Pair is the result of a single issuance: an access token and a refresh
// token bound to the same subject, each with its own jti.
type Pair struct {
	Access  string
	Refresh string
}

// Codec signs and verifies token pairs. It is pure: no I/O, no shared
// mutable state, safe for concurrent use.
type Codec struct {
	config Config
}

// NewCodec validates the configuration and returns an immutable Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must not be shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) < 32 {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
	case MethodEd25519:
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	return &Codec{config: cfg}, nil
}

// IssuePair creates an access/refresh pair for the subject. Both tokens
// receive a freshly random jti; the pair shares an issue instant but each
// token expires on its own schedule.
func (c *Codec) IssuePair(subject string) (Pair, error) {
	if subject == "" {
		return Pair{}, errors.New("empty subject")
	}

	now := time.Now()
	access, err := c.sign(subject, KindAccess, now, c.config.AccessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := c.sign(subject, KindRefresh, now, c.config.RefreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (c *Codec) sign(subject string, kind Kind, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Use: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if c.config.Issuer != "" {
		claims.Issuer = c.config.Issuer
	}

	tok := jwt.NewWithClaims(c.method(), claims)
	key, err := c.signKey()
	if err != nil {
		return "", err
	}
	return tok.SignedString(key)
}

// Decode verifies signature and expiry and checks that the token is of the
// expected kind. It never consults the revocation store; blacklist checks
// are the caller's responsibility.
func (c *Codec) Decode(tokenString string, expected Kind) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.verifyKey()
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrMalformed
	}
	if claims.Use != expected {
		return nil, fmt.Errorf("%w: expected %s token, got %s", ErrMalformed, expected, claims.Use)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing sub or jti", ErrMalformed)
	}
	return claims, nil
}

// classify maps golang-jwt parser failures onto the codec's taxonomy.
// Expiry wins over signature mismatch so that an expired token signed with
// a rotated-away key still reads as Expired to the caller.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (c *Codec) method() jwt.SigningMethod {
	switch c.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (c *Codec) signKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.Secret, nil
	default:
		return parseEdPrivateKey(c.config.PrivateKey)
	}
}

func (c *Codec) verifyKey() (interface{}, error) {
	switch c.config.SigningMethod {
	case MethodHS256:
		return c.config.Secret, nil
	default:
		return parseEdPublicKey(c.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
