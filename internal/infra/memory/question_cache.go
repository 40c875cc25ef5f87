package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

// QuestionCache caches questions with TTL to avoid repeated store hits on every submission.
type QuestionCache struct {
	loader app.QuestionStore
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedQuestion
	// gens counts invalidations per question; a load only fills if no invalidation happened meanwhile.
	gens map[string]uint64
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader app.QuestionStore, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedQuestion),
		gens:   make(map[string]uint64),
	}
}

func (c *QuestionCache) FindQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	if q, ok := c.lookup(questionID); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(questionID, func() (interface{}, error) {
		if q, ok := c.lookup(questionID); ok {
			return q, nil
		}

		c.mu.RLock()
		gen := c.gens[questionID]
		c.mu.RUnlock()

		question, err := c.loader.FindQuestion(ctx, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		c.mu.Lock()
		if c.gens[questionID] == gen {
			c.cache[questionID] = cachedQuestion{
				question:  question,
				expiresAt: c.clock().Add(ttlWithJitter(c.ttl)),
			}
		}
		c.mu.Unlock()
		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Invalidate drops questionID so the next lookup reloads it. Loads already in flight are not
// stored.
func (c *QuestionCache) Invalidate(_ context.Context, questionID string) {
	c.mu.Lock()
	c.gens[questionID]++
	delete(c.cache, questionID)
	c.mu.Unlock()
	c.sf.Forget(questionID)
}

func (c *QuestionCache) lookup(questionID string) (domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.cache[questionID]
	if !ok || !entry.expiresAt.After(c.clock()) {
		return domain.Question{}, false
	}
	return entry.question, true
}

// ttlWithJitter adds up to 10% to ttl to spread expirations.
func ttlWithJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	return ttl + time.Duration(rand.Int63n(jitterMax+1))
}
