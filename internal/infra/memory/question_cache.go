package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"trivora/internal/domain"
)

// QuestionLoader fetches the full catalog from the backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

const catalogKey = "questions:all"

// QuestionCache caches the question catalog with a TTL to avoid repeated store hits.
type QuestionCache struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	rnd       *rand.Rand
	questions []domain.Question
	expiresAt time.Time
	loaded    bool
}

func NewQuestionCache(loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Questions returns a copy of the cached catalog, loading it on a miss.
func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.fresh(c.clock()); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(catalogKey, func() (interface{}, error) {
		now := c.clock()
		if qs, ok := c.fresh(now); ok {
			return qs, nil
		}

		qs, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.questions = qs
		c.loaded = true
		c.expiresAt = now.Add(c.ttlWithJitterLocked())
		c.mu.Unlock()
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

// Invalidate drops the cached catalog.
func (c *QuestionCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.questions = nil
	c.loaded = false
	return nil
}

func (c *QuestionCache) fresh(now time.Time) ([]domain.Question, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded || !c.expiresAt.After(now) {
		return nil, false
	}
	return append([]domain.Question(nil), c.questions...), true
}

func (c *QuestionCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
