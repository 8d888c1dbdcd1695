package memory

import (
	"context"
	"fmt"
	"sync"

	"trivora/internal/domain"
)

// QuestionStore keeps questions in process memory in insertion order.
type QuestionStore struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]domain.Question
}

// NewQuestionStore returns a store seeded with questions.
func NewQuestionStore(questions []domain.Question) *QuestionStore {
	s := &QuestionStore{byID: make(map[string]domain.Question)}
	for _, q := range questions {
		s.putLocked(q)
	}
	return s
}

func (s *QuestionStore) LoadQuestions(context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out, nil
}

func (s *QuestionStore) Question(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.byID[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *QuestionStore) CreateQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[q.ID]; ok {
		return fmt.Errorf("question %s already exists", q.ID)
	}
	s.putLocked(q)
	return nil
}

func (s *QuestionStore) UpdateQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[q.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.byID[q.ID] = q
	return nil
}

func (s *QuestionStore) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *QuestionStore) UpsertQuestions(_ context.Context, qs []domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range qs {
		s.putLocked(q)
	}
	return nil
}

func (s *QuestionStore) putLocked(q domain.Question) {
	if _, ok := s.byID[q.ID]; !ok {
		s.order = append(s.order, q.ID)
	}
	s.byID[q.ID] = q
}
