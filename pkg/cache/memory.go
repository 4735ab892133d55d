package cache

import (
	"context"
	"edu_assessment_backend/internal/model"
	"sync"
	"time"
)

type draftEntry struct {
	answers []model.Answer
	expires time.Time
}

// MemoryCache is the single-instance fallback used when redis is disabled.
type MemoryCache struct {
	mu     sync.Mutex
	drafts map[string]draftEntry
	locks  map[string]time.Time
	now    func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		drafts: make(map[string]draftEntry),
		locks:  make(map[string]time.Time),
		now:    time.Now,
	}
}

func (c *MemoryCache) SaveDraft(_ context.Context, attemptID string, answers []model.Answer, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]model.Answer, len(answers))
	copy(cp, answers)
	c.drafts[attemptID] = draftEntry{answers: cp, expires: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) LoadDraft(_ context.Context, attemptID string) ([]model.Answer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.drafts[attemptID]
	if !ok {
		return nil, nil
	}
	if c.now().After(e.expires) {
		delete(c.drafts, attemptID)
		return nil, nil
	}
	cp := make([]model.Answer, len(e.answers))
	copy(cp, e.answers)
	return cp, nil
}

func (c *MemoryCache) DropDraft(_ context.Context, attemptID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.drafts, attemptID)
	return nil
}

func (c *MemoryCache) TryLock(_ context.Context, name string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if exp, held := c.locks[name]; held && now.Before(exp) {
		return false, nil
	}
	c.locks[name] = now.Add(ttl)
	return true, nil
}

func (c *MemoryCache) Unlock(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.locks, name)
	return nil
}

func (c *MemoryCache) Ping(context.Context) error {
	return nil
}
