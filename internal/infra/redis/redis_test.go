package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trivora/internal/domain"
	"trivora/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	loader := &countingLoader{QuestionLoader: memory.NewQuestionStore(sampleQuestions())}
	cache := NewQuestionCache(client, loader, time.Minute)

	qs, err := cache.Questions(context.Background())
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(qs) != 2 || loader.calls != 1 {
		t.Fatalf("expected 2 questions from one load, got %d / %d calls", len(qs), loader.calls)
	}
	if !mr.Exists(CatalogKey) {
		t.Fatalf("expected catalog key to be set")
	}
	if ttl := mr.TTL(CatalogKey); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("unexpected ttl %s", ttl)
	}

	// Second call should hit cache, loader not incremented.
	qs, _ = cache.Questions(context.Background())
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if qs[0].Answer != "Water" || len(qs[0].Choices) != 2 {
		t.Fatalf("cached question lost fields: %+v", qs[0])
	}

	if err := cache.Invalidate(context.Background()); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists(CatalogKey) {
		t.Fatalf("expected catalog key removed")
	}
	_, _ = cache.Questions(context.Background())
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

func TestNotifierPublishesPerUser(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	ctx := context.Background()
	sub := client.Subscribe(ctx, DefaultChannelPrefix+"u1")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	notifier := NewNotifier(client, "")
	msg := domain.Notification{UserID: "u1", Token: "tok", Title: "Hi", Body: "Play", Data: map[string]string{"type": "test"}}
	if err := notifier.Notify(ctx, msg); err != nil {
		t.Fatalf("notify: %v", err)
	}

	select {
	case m := <-sub.Channel():
		var got domain.Notification
		if err := json.Unmarshal([]byte(m.Payload), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Title != "Hi" || got.Token != "tok" || got.Data["type"] != "test" {
			t.Fatalf("unexpected notification %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification received")
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Category: "Science", Text: "What is H2O?", Choices: []string{"Water", "Salt"}, Answer: "Water", Difficulty: domain.DifficultyEasy},
		{ID: "q2", Category: "Music", Text: "How many keys on a piano?", Choices: []string{"88", "76"}, Answer: "88", Difficulty: domain.DifficultyMedium},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
