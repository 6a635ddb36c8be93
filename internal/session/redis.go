package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "speechwriter:inflight:"

// releaseScript deletes the key only while it still holds our lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard shares leases across API replicas. Only the lease token is
// stored; no transcript or speech content ever reaches Redis.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Acquire(ctx context.Context, session, lease string) error {
	ok, err := g.client.SetNX(ctx, key(session), lease, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire session lease: %w", err)
	}
	if !ok {
		return ErrBusy
	}
	return nil
}

func (g *RedisGuard) Release(ctx context.Context, session, lease string) error {
	if err := releaseScript.Run(ctx, g.client, []string{key(session)}, lease).Err(); err != nil {
		return fmt.Errorf("release session lease: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (g *RedisGuard) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}

func key(session string) string {
	return keyPrefix + session
}
