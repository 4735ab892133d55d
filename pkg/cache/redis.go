package cache

import (
	"context"
	"edu_assessment_backend/internal/model"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	draftKeyPrefix = "attempt:draft:"
	lockKeyPrefix  = "lock:"
)

// unlockScript deletes a lock only while it still carries the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCache keeps client-buffered answers and short-lived locks shared
// across replicas. Locks are tagged with a per-instance owner token.
type RedisCache struct {
	client *redis.Client
	owner  string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, owner: uuid.NewString()}
}

func (c *RedisCache) SaveDraft(ctx context.Context, attemptID string, answers []model.Answer, ttl time.Duration) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, draftKeyPrefix+attemptID, data, ttl).Err()
}

// LoadDraft returns nil, nil when nothing is buffered.
func (c *RedisCache) LoadDraft(ctx context.Context, attemptID string) ([]model.Answer, error) {
	data, err := c.client.Get(ctx, draftKeyPrefix+attemptID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var answers []model.Answer
	if err := json.Unmarshal(data, &answers); err != nil {
		return nil, err
	}
	return answers, nil
}

func (c *RedisCache) DropDraft(ctx context.Context, attemptID string) error {
	return c.client.Del(ctx, draftKeyPrefix+attemptID).Err()
}

// TryLock is a best-effort SETNX lock; it expires by itself after ttl.
func (c *RedisCache) TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, lockKeyPrefix+name, c.owner, ttl).Result()
}

// Unlock leaves the key alone when the lock expired and another instance
// has taken it since.
func (c *RedisCache) Unlock(ctx context.Context, name string) error {
	return unlockScript.Run(ctx, c.client, []string{lockKeyPrefix + name}, c.owner).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
