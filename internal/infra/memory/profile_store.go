package memory

import (
	"context"
	"sort"
	"sync"

	"trivora/internal/domain"
)

// ProfileStore keeps users and their quiz results in process memory. A single
// lock covers both so SaveResult is atomic.
type ProfileStore struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	results map[string][]domain.SubmittedResult
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		users:   make(map[string]domain.User),
		results: make(map[string][]domain.SubmittedResult),
	}
}

func (s *ProfileStore) User(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *ProfileStore) SaveUser(_ context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = u
	return nil
}

func (s *ProfileStore) UsersWithPushToken(context.Context) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0)
	for _, u := range s.users {
		if u.PushToken != "" {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *ProfileStore) SaveResult(_ context.Context, u domain.User, r domain.SubmittedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.UserID] = u
	s.results[r.UserID] = append(s.results[r.UserID], r)
	return nil
}

func (s *ProfileStore) Results(_ context.Context, userID string, limit int) ([]domain.SubmittedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := newestFirst(s.results[userID])
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ProfileStore) ResultsByCategory(_ context.Context, userID, category string) ([]domain.SubmittedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SubmittedResult, 0)
	for _, r := range newestFirst(s.results[userID]) {
		if r.Category == category {
			out = append(out, r)
		}
	}
	return out, nil
}

func newestFirst(results []domain.SubmittedResult) []domain.SubmittedResult {
	out := append([]domain.SubmittedResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
