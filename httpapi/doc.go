// Package httpapi is the HTTP gateway over the authd engine. It owns
// request parsing, validation, and status-code mapping; every security
// decision (token validation, rotation, revocation) is delegated to the
// engine, so the handlers stay a thin translation layer.
//
// Routes:
//
//	POST  /api/user/create
//	POST  /api/user/login
//	POST  /api/user/refresh   (refresh token in X-Refresh-Token)
//	POST  /api/user/logout    (bearer access token + X-Refresh-Token)
//	PATCH /api/user/update    (bearer-protected)
//	GET   /api/users          (bearer-protected)
//	GET   /metrics
//	GET   /healthz
package httpapi
