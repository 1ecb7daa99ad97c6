// Package lock serializes pipeline runs per item id, in process or across
// workers through Redis.
package lock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"HappyPlaceLocal/internal/domain"
	"HappyPlaceLocal/internal/ports"
)

// MemoryLocker guards ids within one process. Acquire never waits.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[int64]struct{}
}

var _ ports.Locker = (*MemoryLocker)(nil)

// NewMemoryLocker returns an empty locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[int64]struct{}{}}
}

// Acquire takes the lock for id or returns domain.ErrLocked.
func (m *MemoryLocker) Acquire(_ context.Context, id int64) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.held[id]; busy {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrLocked)
	}
	m.held[id] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, id)
			m.mu.Unlock()
		})
	}, nil
}

const defaultLockTTL = 2 * time.Minute

// releaseScript deletes the key only when it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds a SET NX key with a TTL per item. The TTL must exceed the
// stage timeout so a lock cannot lapse under a running stage.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

var _ ports.Locker = (*RedisLocker)(nil)

// NewRedisLocker wraps an existing client.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RedisLocker{client: client, ttl: ttl, prefix: "hpl:lock:item:", logger: logger}
}

// Acquire takes the lock for id or returns domain.ErrLocked.
func (r *RedisLocker) Acquire(ctx context.Context, id int64) (func(), error) {
	key := fmt.Sprintf("%s%d", r.prefix, id)
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock item %d: %w", id, err)
	}
	if !ok {
		return nil, fmt.Errorf("item %d: %w", id, domain.ErrLocked)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{key}, token).Err(); err != nil {
				r.logger.Warn("release lock failed", "item_id", id, "error", err)
			}
		})
	}, nil
}
