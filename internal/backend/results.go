package backend

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trivora/internal/domain"
)

// DefaultHistoryLimit is used when the history request has no usable limit.
const DefaultHistoryLimit = 10

// ResultService accepts quiz results and folds them into user statistics.
type ResultService struct {
	store  ProfileStore
	now    func() time.Time
	logger *zap.Logger
}

func NewResultService(store ProfileStore, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{store: store, now: time.Now, logger: logger}
}

// Submit validates the result, updates the caller's statistics and stores both together.
func (s *ResultService) Submit(ctx context.Context, caller domain.Caller, req domain.QuizResultRequest) (domain.SubmitResultResponse, error) {
	now := s.now()
	result := domain.SubmittedResult{
		QuizID:         uuid.NewString(),
		UserID:         caller.UserID,
		Category:       req.Category,
		Difficulty:     req.Difficulty,
		Score:          req.Score,
		TotalQuestions: req.TotalQuestions,
		CorrectAnswers: req.CorrectAnswers,
		TimeSpent:      req.TimeSpent,
		Date:           now,
		DeviceID:       req.DeviceID,
	}
	if err := result.Validate(); err != nil {
		return domain.SubmitResultResponse{}, err
	}

	user, err := s.store.User(ctx, caller.UserID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user = domain.NewUser(caller.UserID, callerEmail(caller), caller.Name, now)
	case err != nil:
		return domain.SubmitResultResponse{}, err
	}

	user.ApplyResult(result.Score, result.TotalQuestions, result.CorrectAnswers, result.Category, now)
	if err := s.store.SaveResult(ctx, user, result); err != nil {
		return domain.SubmitResultResponse{}, err
	}

	s.logger.Info("quiz result saved",
		zap.String("user", user.UserID),
		zap.String("quiz", result.QuizID),
		zap.String("category", result.Category),
		zap.Int("score", result.Score),
	)
	return domain.SubmitResultResponse{QuizID: result.QuizID, UserStats: user.Stats()}, nil
}

// History returns the caller's newest results first.
func (s *ResultService) History(ctx context.Context, userID string, limit int) ([]domain.SubmittedResult, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.Results(ctx, userID, limit)
}

// ByCategory returns the caller's results in one category, newest first.
func (s *ResultService) ByCategory(ctx context.Context, userID, category string) ([]domain.SubmittedResult, error) {
	return s.store.ResultsByCategory(ctx, userID, category)
}
