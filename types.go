package authd

import (
	"context"
	"time"

	"github.com/solgate/authd/store"
)

// User is the account record as resolved from the user directory. The
// engine only ever reads it; all writes go through [Directory].
type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	IsActive     bool
	LastLogin    time.Time
	CreatedAt    time.Time
}

// Public returns the externally visible view of the user. The password
// hash never leaves the service boundary.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		LastLogin: u.LastLogin,
	}
}

// PublicUser is the user summary returned alongside issued tokens and by
// the listing endpoint.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	LastLogin time.Time `json:"last_login"`
}

// CreateUserInput is the input for [Directory.Create]. PasswordHash must
// already be hashed; the directory never sees plaintext credentials.
type CreateUserInput struct {
	Email        string
	Username     string
	PasswordHash string
}

// UserUpdate carries partial account updates. Nil fields are left
// untouched.
type UserUpdate struct {
	Email        *string
	Username     *string
	PasswordHash *string
}

// Directory is the external user lookup/storage collaborator. It takes no
// part in token logic. Implementations return [ErrUserNotFound] for
// missing accounts and [ErrEmailTaken]/[ErrUsernameTaken] for uniqueness
// conflicts.
type Directory interface {
	FindByID(ctx context.Context, id string) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByUsername(ctx context.Context, username string) (User, error)
	Create(ctx context.Context, input CreateUserInput) (User, error)
	Update(ctx context.Context, id string, fields UserUpdate) (User, error)
	List(ctx context.Context) ([]User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// RevocationStore is the engine's only storage boundary for token state.
// The canonical implementation is [store.Store]; the interface exists so
// tests can inject store failure modes.
type RevocationStore interface {
	Blacklist(ctx context.Context, jti string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
	PutSession(ctx context.Context, userID string, snap store.Snapshot, ttl time.Duration) error
	GetSession(ctx context.Context, userID string) (*store.Snapshot, error)
	DeleteSession(ctx context.Context, userID string) error
}

// TokenPair is an access/refresh pair issued by login or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	TokenPair
	User PublicUser `json:"user"`
}
