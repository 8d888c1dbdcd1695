package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"trivora/internal/domain"
)

// QuestionLoader fetches the full catalog from the backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// CatalogKey holds the JSON-encoded catalog.
const CatalogKey = "questions:all"

// QuestionCache caches the question catalog in Redis and falls back to a loader on miss.
// The catalog is stored as one JSON string so a read is a single GET.
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context) ([]domain.Question, error) {
	if qs, ok := c.cached(ctx); ok {
		return qs, nil
	}

	result, err, _ := c.sf.Do(CatalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if qs, ok := c.cached(ctx); ok {
			return qs, nil
		}

		qs, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		raw, err := json.Marshal(qs)
		if err == nil {
			// a failed write only costs a reload on the next call
			_ = c.client.Set(ctx, CatalogKey, raw, c.ttlWithJitter()).Err()
		}
		return qs, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]domain.Question(nil), result.([]domain.Question)...), nil
}

// Invalidate deletes the cached catalog.
func (c *QuestionCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, CatalogKey).Err()
}

func (c *QuestionCache) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, CatalogKey).Bytes()
	if err != nil {
		// redis.Nil is a plain miss; other errors degrade to the loader
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(raw, &qs); err != nil {
		return nil, false
	}
	return qs, true
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
