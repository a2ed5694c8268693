// Package lock provides the optional per-identifier run lock.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ReleaseFunc gives a held lock back
type ReleaseFunc func(ctx context.Context) error

// 🔒 Locker hands out run locks keyed by identifier
type Locker interface {
	// Acquire returns ok=false without error when someone else holds key
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error)
}

// Noop always grants the lock
type Noop struct{}

var _ Locker = Noop{}

func (Noop) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisOptions configures the redis locker
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// Prefix is prepended to every key
	Prefix string
}

// 🔴 Redis holds locks with SET NX and a per-holder token
type Redis struct {
	client redis.UniversalClient
	prefix string
}

var _ Locker = (*Redis)(nil)

// NewRedis connects and pings the server
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	if opts.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Errorf("pinging redis: %w", err)
	}
	return NewRedisWithClient(client, opts.Prefix), nil
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "drsholding:lock:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	if key == "" {
		return nil, false, errors.New("lock key is required")
	}
	full := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, full, token, ttl).Result()
	if err != nil {
		return nil, false, errors.Errorf("acquiring lock %s: %w", full, err)
	}
	if !ok {
		zerolog.Ctx(ctx).Debug().Str("key", full).Msg("lock already held")
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, r.client, []string{full}, token).Err(); err != nil {
			return errors.Errorf("releasing lock %s: %w", full, err)
		}
		return nil
	}
	return release, true, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
