package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

// releaseScript deletes the key only while it still holds this holder's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisRunLock implements reconciliation.RunLock with Redis SET NX.
// It lets several shipcheck instances share one run lock.
type RedisRunLock struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string
}

// NewRedisRunLock connects to Redis and returns a run lock backed by it
func NewRedisRunLock(ctx context.Context, cfg RedisConfig) (*RedisRunLock, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunLockWithClient(client), nil
}

// NewRedisRunLockWithClient wraps an existing client
func NewRedisRunLockWithClient(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{
		client: client,
		tokens: make(map[string]string),
	}
}

// TryAcquire sets key with a fresh token if it is not held
func (l *RedisRunLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release drops the lock if this instance still owns it.
// A lock that already expired and was taken by someone else is left alone.
func (l *RedisRunLock) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis client
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}

var _ reconciliation.RunLock = (*RedisRunLock)(nil)
