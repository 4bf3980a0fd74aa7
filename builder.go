package authd

import (
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/solgate/authd/store"
	"github.com/solgate/authd/token"
)

// Builder assembles an [Engine] from its collaborators. Use it once:
//
//	engine, err := authd.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithDirectory(dir).
//		Build()
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	revstore  RevocationStore
	directory Directory
	logger    *slog.Logger

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the default revocation store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore overrides the revocation store. Intended for tests; production
// wiring should prefer [Builder.WithRedis].
func (b *Builder) WithStore(s RevocationStore) *Builder {
	b.revstore = s
	return b
}

// WithDirectory sets the external user directory.
func (b *Builder) WithDirectory(d Directory) *Builder {
	b.directory = d
	return b
}

// WithLogger sets the engine's structured logger. Defaults to
// [slog.Default].
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// Build validates the configuration, constructs the token codec and the
// revocation store, and returns the ready engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	revstore := b.revstore
	if revstore == nil {
		if b.redis == nil {
			return nil, errors.New("redis client required")
		}
		revstore = store.New(b.redis)
	}

	codec, err := token.NewCodec(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		Secret:        cloneBytes(cfg.Token.Secret),
		PrivateKey:    cloneBytes(cfg.Token.PrivateKey),
		PublicKey:     cloneBytes(cfg.Token.PublicKey),
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		Issuer:        cfg.Token.Issuer,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	b.built = true

	return &Engine{
		config:    cfg,
		codec:     codec,
		store:     revstore,
		directory: b.directory,
		logger:    logger,
	}, nil
}
