package services

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gramsender/gramsender-go/internal/infrastructure/observability/logging"
)

// DedupSet records which target user ids have already been messaged by any
// worker in this process (or, with the Redis backend, by any process sharing
// the same address).
type DedupSet interface {
	// CheckAndAdd atomically marks the user id as processed. It returns true
	// when the id was new and the caller may proceed.
	CheckAndAdd(userID string) bool
}

// NewDedupSet selects the backend: Redis when an address is configured,
// in-process memory otherwise.
func NewDedupSet(redisAddr, redisPassword string, logger *logging.ChanneledLogger) DedupSet {
	if redisAddr == "" {
		return newMemoryDedup()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
	})
	logger.System().Info("Using Redis for processed-target deduplication", "addr", redisAddr)
	return &redisDedup{client: client, logger: logger}
}

type memoryDedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func newMemoryDedup() *memoryDedup {
	return &memoryDedup{seen: make(map[string]struct{})}
}

func (d *memoryDedup) CheckAndAdd(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[userID]; ok {
		return false
	}
	d.seen[userID] = struct{}{}
	return true
}

const redisProcessedKey = "gramsender:processed_targets"

type redisDedup struct {
	client *redis.Client
	logger *logging.ChanneledLogger

	fallback memoryDedup
	once     sync.Once
}

func (d *redisDedup) CheckAndAdd(userID string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	added, err := d.client.SAdd(ctx, redisProcessedKey, userID).Result()
	if err != nil {
		// Degrade to process-local dedup rather than double-messaging on a
		// flaky Redis.
		d.once.Do(func() {
			d.fallback.seen = make(map[string]struct{})
			d.logger.System().Warn("Redis dedup unavailable, using in-memory fallback", "error", err)
		})
		return d.fallback.CheckAndAdd(userID)
	}
	return added == 1
}
