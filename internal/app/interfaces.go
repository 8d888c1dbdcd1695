package app

import (
	"context"
	"time"

	"trivora/internal/domain"
)

// QuestionCache is the on-device question cache used for offline play.
type QuestionCache interface {
	SaveQuestions(ctx context.Context, quizzes []domain.LocalQuiz) error
	QuestionsByCategory(ctx context.Context, category string) ([]domain.LocalQuiz, error)
	AvailableQuestions(ctx context.Context) ([]domain.LocalQuiz, error)
	MarkQuestionCompleted(ctx context.Context, id string) error
}

// ResultLog persists attempts and results and tracks their sync state.
type ResultLog interface {
	InsertAttempt(ctx context.Context, a *domain.Attempt) error
	InsertResult(ctx context.Context, r *domain.QuizResult) error
	UnsyncedResults(ctx context.Context) ([]domain.QuizResult, error)
	SetResultSynced(ctx context.Context, id int64, synced bool) error
	UpdateSyncStatus(ctx context.Context, lastSync time.Time, pending int) error
}

// LocalStore is everything the agent needs from local storage.
type LocalStore interface {
	QuestionCache
	ResultLog
}

// QuestionSource fetches questions from the backend.
type QuestionSource interface {
	QuestionsByCategory(ctx context.Context, category string) ([]domain.Question, error)
	RandomQuestions(ctx context.Context, n int) ([]domain.Question, error)
}

// ResultUploader submits a completed result to the backend.
type ResultUploader interface {
	SubmitResult(ctx context.Context, req domain.QuizResultRequest) (domain.SubmitResultResponse, error)
}

// Prober checks whether the backend is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

// RemoteClient is the slice of the backend API the agent depends on.
type RemoteClient interface {
	QuestionSource
	ResultUploader
	Prober
}

// NetworkState is the online/offline view the session engine consults.
type NetworkState interface {
	Online() bool
	MarkOffline(cause error)
}
