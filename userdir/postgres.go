package userdir

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	authd "github.com/solgate/authd"
)

// Postgres is the production [authd.Directory] backed by a pgx pool.
//
// Expected schema:
//
//	CREATE TABLE users (
//	    id            UUID PRIMARY KEY,
//	    email         TEXT NOT NULL UNIQUE,
//	    username      TEXT NOT NULL UNIQUE,
//	    password_hash TEXT NOT NULL,
//	    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
//	    last_login    TIMESTAMPTZ,
//	    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a directory backed by the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const userColumns = `id, email, username, password_hash, is_active, COALESCE(last_login, 'epoch'::timestamptz), created_at`

func (p *Postgres) FindByID(ctx context.Context, id string) (authd.User, error) {
	return p.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (p *Postgres) FindByEmail(ctx context.Context, email string) (authd.User, error) {
	return p.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (p *Postgres) FindByUsername(ctx context.Context, username string) (authd.User, error) {
	return p.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (p *Postgres) findOne(ctx context.Context, query string, arg any) (authd.User, error) {
	row := p.pool.QueryRow(ctx, query, arg)

	var u authd.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsActive, &u.LastLogin, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authd.User{}, authd.ErrUserNotFound
		}
		return authd.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (p *Postgres) Create(ctx context.Context, input authd.CreateUserInput) (authd.User, error) {
	u := authd.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: input.PasswordHash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id, email, username, password_hash, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Username, u.PasswordHash, u.IsActive, u.CreatedAt,
	)
	if err != nil {
		if taken := uniquenessError(err); taken != nil {
			return authd.User{}, taken
		}
		return authd.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (p *Postgres) Update(ctx context.Context, id string, fields authd.UserUpdate) (authd.User, error) {
	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if fields.Email != nil {
		args = append(args, *fields.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}
	if fields.Username != nil {
		args = append(args, *fields.Username)
		sets = append(sets, fmt.Sprintf("username = $%d", len(args)))
	}
	if fields.PasswordHash != nil {
		args = append(args, *fields.PasswordHash)
		sets = append(sets, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	if len(sets) == 0 {
		return p.FindByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s WHERE id = $%d RETURNING `+userColumns,
		strings.Join(sets, ", "), len(args),
	)

	row := p.pool.QueryRow(ctx, query, args...)
	var u authd.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsActive, &u.LastLogin, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authd.User{}, authd.ErrUserNotFound
		}
		if taken := uniquenessError(err); taken != nil {
			return authd.User{}, taken
		}
		return authd.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (p *Postgres) List(ctx context.Context) ([]authd.User, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []authd.User
	for rows.Next() {
		var u authd.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsActive, &u.LastLogin, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// TouchLastLogin records a successful login instant. Failures are the
// caller's to log; they never block authentication.
func (p *Postgres) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := p.pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// uniquenessError maps Postgres unique violations (23505) onto the
// directory's conflict sentinels by constraint name.
func uniquenessError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return nil
	}
	if strings.Contains(pgErr.ConstraintName, "email") {
		return authd.ErrEmailTaken
	}
	if strings.Contains(pgErr.ConstraintName, "username") {
		return authd.ErrUsernameTaken
	}
	return authd.ErrEmailTaken
}

var _ authd.Directory = (*Postgres)(nil)
