// Package userdir provides implementations of the authd user directory.
//
// Postgres is the production backend, built on a pgx connection pool.
// Memory is a map-backed directory with the same uniqueness semantics,
// used by tests and the local development mode. Both translate storage
// errors into the directory sentinels (authd.ErrUserNotFound,
// authd.ErrEmailTaken, authd.ErrUsernameTaken) so callers never branch
// on driver types.
package userdir
