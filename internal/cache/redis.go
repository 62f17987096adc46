package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultKeyPrefix namespaces checksum keys in a shared Redis database.
const defaultKeyPrefix = "zeitdl:checksum:"

const redisOpTimeout = 2 * time.Second

func init() {
	Register("redis", newRedisStore)
}

// redisStore keeps checksums as plain string keys with a TTL, so several
// machines writing to the same output share their hashing work.
// Size is not enforced; Redis expiry bounds the key count.
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	opts   Options
}

func newRedisStore(opts Options) (Store, error) {
	if opts.RedisAddress == "" {
		return nil, errors.New("redis cache requires cache.redis_address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddress,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &redisStore{client: client, ttl: opts.TTL, prefix: prefix, opts: opts}, nil
}

func (r *redisStore) logError(msg string, err error) {
	if r.opts.Logger != nil {
		r.opts.Logger.Error().Err(err).Msg(msg)
	}
}

func (r *redisStore) Get(ctx context.Context, key string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	checksum, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		// redis.Nil is a plain miss
		if !errors.Is(err, redis.Nil) {
			r.logError("redis checksum cache Get failed", err)
		}
		return "", false
	}
	return checksum, true
}

func (r *redisStore) Set(ctx context.Context, key, checksum string) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, checksum, r.ttl).Err(); err != nil {
		r.logError("redis checksum cache Set failed", err)
	}
}

// Len counts the keys under the store prefix.
func (r *redisStore) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	count := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		r.logError("redis checksum cache Len failed", err)
		return 0
	}
	return count
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
