package authd

import "errors"

var (
	// ErrTokenRevoked is returned when a presented token's jti has a live
	// blacklist entry. A rotated-away refresh token presented again hits
	// this gate; it is never re-validated against user state.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrUserNotFound is returned when a token subject (or lookup target)
	// no longer resolves to an active account.
	ErrUserNotFound = errors.New("user not found")
	// ErrSubjectMismatch is returned by logout when the access and refresh
	// tokens carry different subjects. Nothing is written in that case.
	ErrSubjectMismatch = errors.New("token subject mismatch")
	// ErrInvalidCredentials is returned when email/password verification
	// fails. Deliberately indistinguishable between unknown email and
	// wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned by directory writes on email conflicts.
	ErrEmailTaken = errors.New("email already exists")
	// ErrUsernameTaken is returned by directory writes on username conflicts.
	ErrUsernameTaken = errors.New("username already exists")
)
