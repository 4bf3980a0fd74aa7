package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	authd "github.com/solgate/authd"
	"github.com/solgate/authd/httpapi"
	"github.com/solgate/authd/password"
	"github.com/solgate/authd/store"
	"github.com/solgate/authd/userdir"
)

type envConfig struct {
	Addr     string `env:"AUTHD_ADDR" envDefault:":8080"`
	LogLevel string `env:"AUTHD_LOG_LEVEL" envDefault:"info"`

	SigningMethod     string        `env:"AUTHD_SIGNING_METHOD" envDefault:"hs256"`
	TokenSecret       string        `env:"AUTHD_TOKEN_SECRET"`
	Ed25519PrivateKey string        `env:"AUTHD_ED25519_PRIVATE_KEY"`
	Ed25519PublicKey  string        `env:"AUTHD_ED25519_PUBLIC_KEY"`
	AccessTTL         time.Duration `env:"AUTHD_ACCESS_TTL" envDefault:"15m"`
	RefreshTTL        time.Duration `env:"AUTHD_REFRESH_TTL" envDefault:"168h"`
	Issuer            string        `env:"AUTHD_ISSUER" envDefault:"authd"`
	Leeway            time.Duration `env:"AUTHD_LEEWAY" envDefault:"0s"`

	RedisAddr     string `env:"AUTHD_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"AUTHD_REDIS_PASSWORD"`
	RedisDB       int    `env:"AUTHD_REDIS_DB" envDefault:"0"`

	PostgresDSN string `env:"AUTHD_POSTGRES_DSN"`

	PasswordPepper string `env:"AUTHD_PASSWORD_PEPPER"`

	SessionCacheEnabled bool          `env:"AUTHD_SESSION_CACHE" envDefault:"true"`
	SessionCacheTTL     time.Duration `env:"AUTHD_SESSION_CACHE_TTL" envDefault:"1h"`

	ShutdownTimeout time.Duration `env:"AUTHD_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func main() {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		slog.Error("config parse failed", "error", err)
		os.Exit(1)
	}

	logger := newLogger(ec.LogLevel)
	slog.SetDefault(logger)

	if err := run(ec, logger); err != nil {
		logger.Error("authd exited", "error", err)
		os.Exit(1)
	}
}

func run(ec envConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     ec.RedisAddr,
		Password: ec.RedisPassword,
		DB:       ec.RedisDB,
	})
	defer rdb.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return errors.New("redis unreachable: " + err.Error())
	}

	directory, cleanup, err := buildDirectory(ctx, ec, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := authd.DefaultConfig()
	cfg.Token.SigningMethod = ec.SigningMethod
	cfg.Token.Secret = []byte(ec.TokenSecret)
	cfg.Token.PrivateKey = []byte(ec.Ed25519PrivateKey)
	cfg.Token.PublicKey = []byte(ec.Ed25519PublicKey)
	cfg.Token.AccessTTL = ec.AccessTTL
	cfg.Token.RefreshTTL = ec.RefreshTTL
	cfg.Token.Issuer = ec.Issuer
	cfg.Token.Leeway = ec.Leeway
	cfg.Session.CacheEnabled = ec.SessionCacheEnabled
	cfg.Session.CacheTTL = ec.SessionCacheTTL

	st := store.New(rdb)
	engine, err := authd.New().
		WithConfig(cfg).
		WithStore(st).
		WithDirectory(directory).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	hashCfg := password.DefaultConfig()
	hashCfg.Pepper = ec.PasswordPepper
	hasher, err := password.NewHasher(hashCfg)
	if err != nil {
		return err
	}

	gateway := httpapi.NewServer(engine, directory, hasher, st, logger)

	srv := &http.Server{
		Addr:              ec.Addr,
		Handler:           gateway.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authd listening", "addr", ec.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ec.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func buildDirectory(ctx context.Context, ec envConfig, logger *slog.Logger) (authd.Directory, func(), error) {
	if ec.PostgresDSN == "" {
		logger.Warn("no postgres DSN configured, using the in-memory user directory")
		return userdir.NewMemory(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, ec.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, errors.New("postgres unreachable: " + err.Error())
	}
	return userdir.NewPostgres(pool), pool.Close, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
