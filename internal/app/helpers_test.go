package app_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"trivora/internal/domain"
	"trivora/internal/infra/sqlite"
)

var errNetworkDown = errors.New("dial tcp: connection refused")

// fakeRemote stands in for the backend client.
type fakeRemote struct {
	mu         sync.Mutex
	byCategory map[string][]domain.Question
	fetchErr   error
	submitErr  func(req domain.QuizResultRequest) error
	pingErr    error
	submitted  []domain.QuizResultRequest
	fetches    int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{byCategory: make(map[string][]domain.Question)}
}

func (f *fakeRemote) QuestionsByCategory(_ context.Context, category string) ([]domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]domain.Question(nil), f.byCategory[category]...), nil
}

func (f *fakeRemote) RandomQuestions(_ context.Context, n int) ([]domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []domain.Question
	for _, qs := range f.byCategory {
		out = append(out, qs...)
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakeRemote) AllQuestions(ctx context.Context) ([]domain.Question, error) {
	return f.RandomQuestions(ctx, 1<<30)
}

func (f *fakeRemote) SubmitResult(_ context.Context, req domain.QuizResultRequest) (domain.SubmitResultResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		if err := f.submitErr(req); err != nil {
			return domain.SubmitResultResponse{}, err
		}
	}
	f.submitted = append(f.submitted, req)
	return domain.SubmitResultResponse{QuizID: fmt.Sprintf("srv-%d", len(f.submitted))}, nil
}

func (f *fakeRemote) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pingErr
}

func (f *fakeRemote) submittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func transportErr(op string) error {
	return &domain.RemoteError{Kind: domain.FailureTransport, Op: op, Err: errNetworkDown}
}

func domainErr(op, msg string) error {
	return &domain.RemoteError{Kind: domain.FailureDomain, Op: op, Message: msg}
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeQuestions(category string, n int) []domain.Question {
	qs := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, domain.Question{
			ID:         fmt.Sprintf("%s-%d", category, i),
			Category:   category,
			Text:       fmt.Sprintf("%s question %d", category, i),
			Choices:    []string{"right", "wrong", "also wrong"},
			Answer:     "right",
			Difficulty: domain.DifficultyEasy,
		})
	}
	return qs
}

func cacheQuestions(t *testing.T, store *sqlite.Store, qs []domain.Question) {
	t.Helper()
	now := time.Now()
	quizzes := make([]domain.LocalQuiz, 0, len(qs))
	for _, q := range qs {
		quizzes = append(quizzes, domain.NewLocalQuiz(q, now))
	}
	if err := store.SaveQuestions(context.Background(), quizzes); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
}

func insertResult(t *testing.T, store *sqlite.Store, sessionID string, at time.Time) domain.QuizResult {
	t.Helper()
	r := domain.QuizResult{
		SessionID:      sessionID,
		UserID:         "user-1",
		Category:       "Science",
		Difficulty:     domain.DifficultyEasy,
		Score:          3,
		TotalQuestions: 5,
		CorrectAnswers: 3,
		CompletedAt:    at,
		DeviceID:       "device-1",
	}
	if err := store.InsertResult(context.Background(), &r); err != nil {
		t.Fatalf("insert result: %v", err)
	}
	return r
}
