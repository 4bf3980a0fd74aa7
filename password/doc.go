// Package password provides one-way credential hashing with argon2id in
// PHC string format, an optional process-wide pepper, and the account
// password strength policy.
//
// The rest of the service treats this package as a black box satisfying
// hash(secret) -> digest and verify(secret, digest) -> bool, deterministic
// across processes and never reversible.
package password
