package userdir

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	authd "github.com/solgate/authd"
)

// Memory is an in-memory [authd.Directory] used by tests and the local
// development mode. It applies the same uniqueness rules as the Postgres
// implementation.
type Memory struct {
	mu         sync.RWMutex
	byID       map[string]authd.User
	byEmail    map[string]string
	byUsername map[string]string
}

// NewMemory returns an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		byID:       make(map[string]authd.User),
		byEmail:    make(map[string]string),
		byUsername: make(map[string]string),
	}
}

// Seed inserts a user verbatim, generating an ID when missing. Test
// helper; bypasses uniqueness checks only for the zero-value cases Create
// would reject.
func (m *Memory) Seed(u authd.User) authd.User {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	m.byUsername[u.Username] = u.ID
	return u
}

func (m *Memory) FindByID(_ context.Context, id string) (authd.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.byID[id]
	if !ok {
		return authd.User{}, authd.ErrUserNotFound
	}
	return u, nil
}

func (m *Memory) FindByEmail(_ context.Context, email string) (authd.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return authd.User{}, authd.ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *Memory) FindByUsername(_ context.Context, username string) (authd.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return authd.User{}, authd.ErrUserNotFound
	}
	return m.byID[id], nil
}

func (m *Memory) Create(_ context.Context, input authd.CreateUserInput) (authd.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byEmail[input.Email]; exists {
		return authd.User{}, authd.ErrEmailTaken
	}
	if _, exists := m.byUsername[input.Username]; exists {
		return authd.User{}, authd.ErrUsernameTaken
	}

	u := authd.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: input.PasswordHash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u.ID
	m.byUsername[u.Username] = u.ID
	return u, nil
}

func (m *Memory) Update(_ context.Context, id string, fields authd.UserUpdate) (authd.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return authd.User{}, authd.ErrUserNotFound
	}

	if fields.Email != nil && *fields.Email != u.Email {
		if _, exists := m.byEmail[*fields.Email]; exists {
			return authd.User{}, authd.ErrEmailTaken
		}
		delete(m.byEmail, u.Email)
		u.Email = *fields.Email
		m.byEmail[u.Email] = u.ID
	}
	if fields.Username != nil && *fields.Username != u.Username {
		if _, exists := m.byUsername[*fields.Username]; exists {
			return authd.User{}, authd.ErrUsernameTaken
		}
		delete(m.byUsername, u.Username)
		u.Username = *fields.Username
		m.byUsername[u.Username] = u.ID
	}
	if fields.PasswordHash != nil {
		u.PasswordHash = *fields.PasswordHash
	}

	m.byID[u.ID] = u
	return u, nil
}

func (m *Memory) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.byID[id]
	if !ok {
		return authd.ErrUserNotFound
	}
	u.LastLogin = at.UTC()
	m.byID[id] = u
	return nil
}

func (m *Memory) List(_ context.Context) ([]authd.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]authd.User, 0, len(m.byID))
	for _, u := range m.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.Before(users[j].CreatedAt) })
	return users, nil
}

var _ authd.Directory = (*Memory)(nil)
