// Package token issues and verifies signed access/refresh token pairs.
//
// The codec is deliberately stateless: it proves signature validity and
// non-expiry only. Whether a token has been revoked is a question for the
// store package, asked by the Engine. Keeping this package free of I/O
// makes every decode a pure function of the token string and the process
// signing configuration.
package token
