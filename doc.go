// Package authd implements the token lifecycle core of the authentication
// service: issuance on login, single-use rotation on refresh, and
// revocation on logout, backed by a shared Redis blacklist.
//
// The [Engine] is the only component with state-transition semantics. A
// (user, refresh-jti) pair moves ISSUED -> ACTIVE (implicit, unrecorded)
// and terminates as either CONSUMED (used for refresh) or REVOKED
// (explicit logout); both terminal states are recorded identically as
// blacklist entries, because both must make the old refresh token
// permanently unusable.
//
// Subpackages: token (signed pair codec), store (Redis revocation list +
// session cache), password (argon2id hashing), userdir (user directory
// implementations), httpapi (HTTP gateway).
package authd
