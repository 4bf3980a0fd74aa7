package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	authd "github.com/solgate/authd"
	"github.com/solgate/authd/password"
	"github.com/solgate/authd/store"
	"github.com/solgate/authd/userdir"
)

const (
	testEmail    = "alice@example.com"
	testPassword = "StrongPassword123!"
)

type gatewayEnv struct {
	server *httptest.Server
	mr     *miniredis.Miniredis
	dir    *userdir.Memory
}

func newGatewayEnv(t *testing.T) *gatewayEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	st := store.New(client)
	dir := userdir.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := authd.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")

	engine, err := authd.New().
		WithConfig(cfg).
		WithStore(st).
		WithDirectory(dir).
		WithLogger(logger).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	hashCfg := password.DefaultConfig()
	hashCfg.Memory = 8 * 1024 // keep tests fast
	hasher, err := password.NewHasher(hashCfg)
	if err != nil {
		t.Fatalf("hasher build failed: %v", err)
	}

	gw := NewServer(engine, dir, hasher, st, logger)
	ts := httptest.NewServer(gw.Router())
	t.Cleanup(ts.Close)

	return &gatewayEnv{server: ts, mr: mr, dir: dir}
}

func (e *gatewayEnv) do(t *testing.T, method, path string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (e *gatewayEnv) createUser(t *testing.T) {
	t.Helper()

	resp, body := e.do(t, http.MethodPost, "/api/user/create", map[string]string{
		"email":    testEmail,
		"username": "alice",
		"password": testPassword,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body = %v", resp.StatusCode, body)
	}
}

func (e *gatewayEnv) login(t *testing.T) (access, refresh string) {
	t.Helper()

	resp, body := e.do(t, http.MethodPost, "/api/user/login", map[string]string{
		"email":    testEmail,
		"password": testPassword,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body = %v", resp.StatusCode, body)
	}

	access, _ = body["access_token"].(string)
	refresh, _ = body["refresh_token"].(string)
	if access == "" || refresh == "" {
		t.Fatalf("login returned incomplete pair: %v", body)
	}
	return access, refresh
}

func TestCreateUser(t *testing.T) {
	env := newGatewayEnv(t)
	env.createUser(t)

	// Duplicate email.
	resp, _ := env.do(t, http.MethodPost, "/api/user/create", map[string]string{
		"email":    testEmail,
		"username": "alice2",
		"password": testPassword,
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, want 409", resp.StatusCode)
	}
}

func TestCreateUserRejections(t *testing.T) {
	env := newGatewayEnv(t)

	cases := []struct {
		name string
		body map[string]string
	}{
		{"weak password", map[string]string{"email": "a@example.com", "username": "alice", "password": "weak"}},
		{"bad email", map[string]string{"email": "not-an-email", "username": "alice", "password": testPassword}},
		{"reserved username", map[string]string{"email": "a@example.com", "username": "admin", "password": testPassword}},
		{"short username", map[string]string{"email": "a@example.com", "username": "ab", "password": testPassword}},
		{"non-alnum username", map[string]string{"email": "a@example.com", "username": "al ice", "password": testPassword}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/user/create", tc.body, nil)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %v)", resp.StatusCode, body)
			}
		})
	}
}

func TestLoginAndBadCredentials(t *testing.T) {
	env := newGatewayEnv(t)
	env.createUser(t)
	env.login(t)

	resp, _ := env.do(t, http.MethodPost, "/api/user/login", map[string]string{
		"email":    testEmail,
		"password": "WrongPassword123!",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("wrong password status = %d, want 400", resp.StatusCode)
	}

	// Unknown email answers identically to a wrong password.
	resp, _ = env.do(t, http.MethodPost, "/api/user/login", map[string]string{
		"email":    "nobody@example.com",
		"password": testPassword,
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown email status = %d, want 400", resp.StatusCode)
	}
}

func TestRefreshRotationAndReplay(t *testing.T) {
	env := newGatewayEnv(t)
	env.createUser(t)
	_, refresh := env.login(t)

	resp, body := env.do(t, http.MethodPost, "/api/user/refresh", nil, map[string]string{
		"X-Refresh-Token": refresh,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d, body = %v", resp.StatusCode, body)
	}
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Fatalf("refresh returned incomplete pair: %v", body)
	}

	// The consumed token is rejected on replay.
	resp, _ = env.do(t, http.MethodPost, "/api/user/refresh", nil, map[string]string{
		"X-Refresh-Token": refresh,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want 401", resp.StatusCode)
	}
}

func TestRefreshWithoutHeader(t *testing.T) {
	env := newGatewayEnv(t)

	resp, _ := env.do(t, http.MethodPost, "/api/user/refresh", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing header status = %d, want 400", resp.StatusCode)
	}
}

func TestLogout(t *testing.T) {
	env := newGatewayEnv(t)
	env.createUser(t)
	access, refresh := env.login(t)

	resp, _ := env.do(t, http.MethodPost, "/api/user/logout", nil, map[string]string{
		"Authorization":   "Bearer " + access,
		"X-Refresh-Token": refresh,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/user/refresh", nil, map[string]string{
		"X-Refresh-Token": refresh,
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d, want 401", resp.StatusCode)
	}
}

func TestLogoutSubjectMismatch(t *testing.T) {
	env := newGatewayEnv(t)
	env.createUser(t)
	access, _ := env.login(t)

	resp, body := env.do(t, http.MethodPost, "/api/user/create", map[string]string{
		"email":    "bob@example.com",
		"username": "bob",
		"password": testPassword,
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create bob status = %d, body = %v", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodPost, "/api/user/login", map[string]string{
		"email":    "bob@example.com",
		"password": testPassword,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login bob status = %d, body = %v", resp.StatusCode, body)
	}
	bobRefresh, _ := body["refresh_token"].(string)

	resp, _ = env.do(t, http.MethodPost, "/api/user/logout", nil, map[string]string{
		"Authorization":   "Bearer " + access,
		"X-Refresh-Token": bobRefresh,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mismatched logout status = %d, want 400", resp.StatusCode)
	}

	// Bob's refresh token survives the rejected logout.
	resp, _ = env.do(t, http.MethodPost, "/api/user/refresh", nil, map[string]string{
		"X-Refresh-Token": bobRefresh,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bob refresh status = %d, want 200", resp.StatusCode)
	}
}

func TestProtectedRoutes(t *testing.T) {
	env := newGatewayEnv(t)
	env.createUser(t)
	access, _ := env.login(t)

	resp, _ := env.do(t, http.MethodGet, "/api/users", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status = %d, want 401", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodGet, "/api/users", nil, map[string]string{
		"Authorization": "Bearer " + access,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, body = %v", resp.StatusCode, body)
	}
	users, _ := body["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("listed %d users, want 1 (%v)", len(users), body)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/users", nil, map[string]string{
		"Authorization": "Bearer garbage",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("garbage bearer status = %d, want 401", resp.StatusCode)
	}
}

func TestUpdateUser(t *testing.T) {
	env := newGatewayEnv(t)
	env.createUser(t)
	access, _ := env.login(t)

	auth := map[string]string{"Authorization": "Bearer " + access}

	resp, body := env.do(t, http.MethodPatch, "/api/user/update", map[string]string{
		"username": "alicerenamed",
	}, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, body = %v", resp.StatusCode, body)
	}
	if body["username"] != "alicerenamed" {
		t.Fatalf("updated username = %v, want alicerenamed", body["username"])
	}

	// Password change requires a matching confirmation.
	resp, _ = env.do(t, http.MethodPatch, "/api/user/update", map[string]string{
		"password":         "NewPassword123!",
		"password_confirm": "Different123!",
	}, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mismatched confirm status = %d, want 400", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPatch, "/api/user/update", map[string]string{
		"password":         "NewPassword123!",
		"password_confirm": "NewPassword123!",
	}, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("password update status = %d, want 200", resp.StatusCode)
	}

	// The new password is live immediately.
	resp, _ = env.do(t, http.MethodPost, "/api/user/login", map[string]string{
		"email":    testEmail,
		"password": "NewPassword123!",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login with new password status = %d, want 200", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPatch, "/api/user/update", map[string]string{}, auth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty update status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	env := newGatewayEnv(t)

	resp, _ := env.do(t, http.MethodGet, "/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}

	env.mr.Close()
	resp, _ = env.do(t, http.MethodGet, "/healthz", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("healthz with store down status = %d, want 503", resp.StatusCode)
	}
}
