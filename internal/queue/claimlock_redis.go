package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseClaimScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisClaimLocker implements the outer lock with SET NX PX and a
// compare-and-delete release. The TTL bounds how long a crashed holder can
// block other processes.
type RedisClaimLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisClaimLocker connects to redisURL and verifies the server responds.
func NewRedisClaimLocker(redisURL, key string, ttl time.Duration) (*RedisClaimLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisClaimLocker{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisClaimLocker) Lock(ctx context.Context) (func() error, error) {
	ctx = ensureContext(ctx)
	token := uuid.NewString()
	for {
		ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx %s: %w", l.key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(claimLockPollInterval):
		}
	}
	return func() error {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return releaseClaimScript.Run(releaseCtx, l.client, []string{l.key}, token).Err()
	}, nil
}

func (l *RedisClaimLocker) Close() error {
	return l.client.Close()
}
