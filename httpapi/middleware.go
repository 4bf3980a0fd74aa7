package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/solgate/authd/token"
)

const refreshHeader = "X-Refresh-Token"

type claimsContextKey struct{}

// ClaimsFromContext returns the access-token claims attached by
// [Server.requireAuth], if any.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return claims, ok
}

// requireAuth guards a route behind a valid, unrevoked bearer access
// token and attaches the decoded claims to the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.engine.Authorize(r.Context(), bearer)
		if err != nil {
			writeEngineError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}
