// Package store implements the Redis-backed revocation list and session
// snapshot cache shared by all service instances.
//
// # Key layout
//
//	blacklist:<jti>   -> "revoked"        (TTL = remaining token lifetime)
//	session:<user_id> -> JSON snapshot    (fixed TTL)
//
// The two namespaces never collide. Blacklist entries are created on
// logout and on every successful refresh, never updated, and expire
// passively; there is no background sweeper.
//
// # Architecture boundaries
//
// This package owns raw store operations only. It does not decode tokens
// or decide revocation policy; both belong to the Engine.
package store
