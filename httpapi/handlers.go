package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authd "github.com/solgate/authd"
	"github.com/solgate/authd/password"
)

// Server is the HTTP gateway. Construct with [NewServer] and mount
// [Server.Router].
type Server struct {
	engine    *authd.Engine
	directory authd.Directory
	hasher    *password.Hasher
	health    Pinger
	logger    *slog.Logger
	validate  *validator.Validate
}

// Pinger is the health-probe dependency, satisfied by store.Store. Nil
// disables the Redis check on /healthz.
type Pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// NewServer wires the gateway's collaborators.
func NewServer(engine *authd.Engine, directory authd.Directory, hasher *password.Hasher, health Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		engine:    engine,
		directory: directory,
		hasher:    hasher,
		health:    health,
		logger:    logger,
		validate:  validator.New(),
	}
}

// Router returns the fully assembled chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/user/create", s.handleCreate)
		r.Post("/user/login", s.handleLogin)
		r.Post("/user/refresh", s.handleRefresh)
		r.Post("/user/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Patch("/user/update", s.handleUpdate)
			r.Get("/users", s.handleList)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", s.handleHealth)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

/*
====================================
REQUEST TYPES
====================================
*/

type createRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type updateRequest struct {
	Email           *string `json:"email,omitempty"`
	Username        *string `json:"username,omitempty"`
	Password        *string `json:"password,omitempty"`
	PasswordConfirm *string `json:"password_confirm,omitempty"`
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// validateUsername applies the account naming policy: 3-30 alphanumeric
// characters, and "admin" is reserved.
func validateUsername(username string) []string {
	var errs []string
	if len(username) < 3 || len(username) > 30 {
		errs = append(errs, "username must be between 3 and 30 characters")
	}
	for _, r := range username {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			errs = append(errs, "username must contain only letters and digits")
			break
		}
	}
	if strings.EqualFold(username, "admin") {
		errs = append(errs, "username is reserved")
	}
	return errs
}

/*
====================================
HANDLERS
====================================
*/

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", validationDetails(err)...)
		return
	}
	if errs := validateUsername(req.Username); len(errs) > 0 {
		writeError(w, http.StatusBadRequest, "validation failed", errs...)
		return
	}
	if ok, errs := password.IsStrong(req.Password); !ok {
		writeError(w, http.StatusBadRequest, "weak password", errs...)
		return
	}

	digest, err := s.hasher.Hash(req.Password)
	if err != nil {
		s.logger.Error("password hashing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	user, err := s.directory.Create(r.Context(), authd.CreateUserInput{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: digest,
	})
	if err != nil {
		if errors.Is(err, authd.ErrEmailTaken) || errors.Is(err, authd.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("user creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, user.Public())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", validationDetails(err)...)
		return
	}

	user, err := s.authenticate(r, req.Email, req.Password)
	if err != nil {
		recordAuthEvent("login", "rejected")
		// Unknown email and wrong password answer identically.
		writeError(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	result, err := s.engine.Login(r.Context(), user)
	if err != nil {
		recordAuthEvent("login", "error")
		s.logger.Error("login failed", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	recordAuthEvent("login", "ok")
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) authenticate(r *http.Request, email, plaintext string) (authd.User, error) {
	user, err := s.directory.FindByEmail(r.Context(), email)
	if err != nil {
		return authd.User{}, authd.ErrInvalidCredentials
	}
	ok, err := s.hasher.Verify(plaintext, user.PasswordHash)
	if err != nil || !ok {
		return authd.User{}, authd.ErrInvalidCredentials
	}
	if !user.IsActive {
		return authd.User{}, authd.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := r.Header.Get(refreshHeader)
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing "+refreshHeader+" header")
		return
	}

	pair, err := s.engine.Refresh(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, authd.ErrTokenRevoked) {
			recordAuthEvent("refresh", "replay")
		} else {
			recordAuthEvent("refresh", "rejected")
		}
		writeEngineError(w, err)
		return
	}

	recordAuthEvent("refresh", "ok")
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	refreshToken := r.Header.Get(refreshHeader)
	if refreshToken == "" {
		writeError(w, http.StatusBadRequest, "missing "+refreshHeader+" header")
		return
	}

	if err := s.engine.Logout(r.Context(), accessToken, refreshToken); err != nil {
		recordAuthEvent("logout", "rejected")
		writeEngineError(w, err)
		return
	}

	recordAuthEvent("logout", "ok")
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}

	var req updateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var fields authd.UserUpdate
	var details []string

	if req.Email != nil {
		if err := s.validate.Var(*req.Email, "required,email"); err != nil {
			details = append(details, "invalid email address")
		}
		fields.Email = req.Email
	}
	if req.Username != nil {
		details = append(details, validateUsername(*req.Username)...)
		fields.Username = req.Username
	}
	if req.Password != nil {
		if req.PasswordConfirm == nil || *req.Password != *req.PasswordConfirm {
			details = append(details, "password confirmation does not match")
		}
		if ok, errs := password.IsStrong(*req.Password); !ok {
			details = append(details, errs...)
		}
	}
	if len(details) > 0 {
		writeError(w, http.StatusBadRequest, "validation failed", details...)
		return
	}
	if req.Password != nil {
		digest, err := s.hasher.Hash(*req.Password)
		if err != nil {
			s.logger.Error("password hashing failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		fields.PasswordHash = &digest
	}
	if fields.Email == nil && fields.Username == nil && fields.PasswordHash == nil {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	user, err := s.engine.UpdateUser(r.Context(), claims.Subject, fields)
	if err != nil {
		switch {
		case errors.Is(err, authd.ErrEmailTaken), errors.Is(err, authd.ErrUsernameTaken):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, authd.ErrUserNotFound):
			writeError(w, http.StatusUnauthorized, "unknown subject")
		default:
			s.logger.Error("user update failed", "user_id", claims.Subject, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, user.Public())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	users, err := s.directory.List(r.Context())
	if err != nil {
		s.logger.Error("user listing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]authd.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	latency, err := s.health.Ping(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"redis_ms": latency.Milliseconds(),
	})
}

func validationDetails(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, strings.ToLower(fe.Field())+" failed on "+fe.Tag())
	}
	return details
}
