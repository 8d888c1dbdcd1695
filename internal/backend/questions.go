package backend

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trivora/internal/domain"
)

const (
	// DefaultRandomCount applies when the requested count is missing or not a number.
	DefaultRandomCount = 5
	MinRandomCount     = 1
	MaxRandomCount     = 50
)

// QuestionService implements the question catalog use cases.
type QuestionService struct {
	store   QuestionStore
	catalog QuestionCatalog
	logger  *zap.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionService(store QuestionStore, catalog QuestionCatalog, logger *zap.Logger) *QuestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QuestionService{
		store:   store,
		catalog: catalog,
		logger:  logger,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// All returns the whole catalog.
func (s *QuestionService) All(ctx context.Context) ([]domain.Question, error) {
	return s.catalog.Questions(ctx)
}

// ByCategory returns the questions whose category matches exactly.
func (s *QuestionService) ByCategory(ctx context.Context, category string) ([]domain.Question, error) {
	all, err := s.catalog.Questions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Question, 0)
	for _, q := range all {
		if q.Category == category {
			out = append(out, q)
		}
	}
	return out, nil
}

// Categories returns the trimmed, de-duplicated, sorted category names.
func (s *QuestionService) Categories(ctx context.Context) ([]string, error) {
	all, err := s.catalog.Questions(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, q := range all {
		c := strings.TrimSpace(q.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}

// Get returns one question by id.
func (s *QuestionService) Get(ctx context.Context, id string) (domain.Question, error) {
	return s.store.Question(ctx, id)
}

// Random returns one random question, or nil when the catalog is empty.
func (s *QuestionService) Random(ctx context.Context) (*domain.Question, error) {
	all, err := s.catalog.Questions(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	s.rndMu.Lock()
	q := all[s.rnd.Intn(len(all))]
	s.rndMu.Unlock()
	return &q, nil
}

// RandomN returns up to n distinct questions in random order.
func (s *QuestionService) RandomN(ctx context.Context, n int) ([]domain.Question, error) {
	if n < MinRandomCount || n > MaxRandomCount {
		return nil, countError()
	}
	all, err := s.catalog.Questions(ctx)
	if err != nil {
		return nil, err
	}
	shuffled := append([]domain.Question(nil), all...)
	s.rndMu.Lock()
	s.rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	s.rndMu.Unlock()
	if len(shuffled) > n {
		shuffled = shuffled[:n]
	}
	return shuffled, nil
}

// ParseRandomCount turns a path parameter into a count. Missing, zero or
// non-numeric values mean DefaultRandomCount; anything else must be in range.
func ParseRandomCount(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n == 0 {
		return DefaultRandomCount, nil
	}
	if n < MinRandomCount || n > MaxRandomCount {
		return 0, countError()
	}
	return n, nil
}

func countError() error {
	return &domain.ValidationError{Problems: []string{"Count must be between 1 and 50"}}
}

// Create validates and stores a new question, assigning an id when absent.
func (s *QuestionService) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	if err := s.store.CreateQuestion(ctx, q); err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx)
	return q, nil
}

// Update applies patch to an existing question.
func (s *QuestionService) Update(ctx context.Context, id string, patch domain.QuestionPatch) (domain.Question, error) {
	current, err := s.store.Question(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	updated := patch.Apply(current)
	updated.ID = id
	if err := updated.Validate(); err != nil {
		return domain.Question{}, err
	}
	if err := s.store.UpdateQuestion(ctx, updated); err != nil {
		return domain.Question{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a question.
func (s *QuestionService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// Seed loads the bundled sample questions and returns how many were written.
func (s *QuestionService) Seed(ctx context.Context) (int, error) {
	questions, err := SampleQuestions()
	if err != nil {
		return 0, err
	}
	if err := s.store.UpsertQuestions(ctx, questions); err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	s.logger.Info("sample questions seeded", zap.Int("count", len(questions)))
	return len(questions), nil
}

func (s *QuestionService) invalidate(ctx context.Context) {
	if err := s.catalog.Invalidate(ctx); err != nil {
		s.logger.Warn("question catalog invalidation failed", zap.Error(err))
	}
}
