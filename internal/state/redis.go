package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexjbarnes/momo-credentials/momo"
	"github.com/go-redis/redis/v8"
)

// RedisConfig configures the redis credential store.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int

	// KeyPrefix namespaces the keys. Defaults to "momo:credentials:".
	KeyPrefix string
}

// Redis keeps credential records in redis so several processes can share
// one integration's API user.
type Redis struct {
	rdb    *redis.Client
	prefix string
	sealer *Sealer
	now    func() time.Time
}

// NewRedis connects to redis and checks the connection with a ping.
func NewRedis(cfg *RedisConfig, sealer *Sealer) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if cfg.Address == "" {
		cfg.Address = "localhost:6379"
	}

	if cfg.PoolSize == 0 {
		cfg.PoolSize = 10
	}

	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "momo:credentials:"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &Redis{rdb: rdb, prefix: cfg.KeyPrefix, sealer: sealer, now: time.Now}, nil
}

// Close closes the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Health pings redis.
func (r *Redis) Health(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Credentials returns the store for one integration.
func (r *Redis) Credentials(integration string) *RedisStore {
	return &RedisStore{redis: r, key: r.prefix + integration}
}

// Forget removes the stored credentials of an integration.
func (r *Redis) Forget(ctx context.Context, integration string) error {
	if err := r.rdb.Del(ctx, r.prefix+integration).Err(); err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}

	return nil
}

// Integrations lists every integration with stored credentials.
func (r *Redis) Integrations(ctx context.Context) ([]string, error) {
	var names []string

	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		names = append(names, strings.TrimPrefix(iter.Val(), r.prefix))
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}

	sort.Strings(names)

	return names, nil
}

// RedisStore is the momo.CredentialStore of a single integration.
type RedisStore struct {
	redis *Redis
	key   string
}

var _ momo.CredentialStore = (*RedisStore)(nil)

// Load returns the stored credentials, or nil if there are none.
func (s *RedisStore) Load(ctx context.Context) (*momo.Credentials, error) {
	data, err := s.redis.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	return decodeRecord(data, s.redis.sealer)
}

// Save stores creds only if the key is still free, so when two processes
// provision at the same time exactly one record wins.
func (s *RedisStore) Save(ctx context.Context, creds momo.Credentials) error {
	data, err := encodeRecord(creds, s.redis.sealer, s.redis.now())
	if err != nil {
		return err
	}

	ok, err := s.redis.rdb.SetNX(ctx, s.key, data, 0).Result()
	if err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	if !ok {
		return fmt.Errorf("%w: %s", ErrCredentialsExist, s.key)
	}

	return nil
}
