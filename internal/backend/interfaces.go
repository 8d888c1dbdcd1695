package backend

import (
	"context"

	"trivora/internal/domain"
)

// QuestionLoader reads the full question catalog from the backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionStore is the authoritative question storage.
type QuestionStore interface {
	QuestionLoader
	Question(ctx context.Context, id string) (domain.Question, error)
	CreateQuestion(ctx context.Context, q domain.Question) error
	UpdateQuestion(ctx context.Context, q domain.Question) error
	DeleteQuestion(ctx context.Context, id string) error
	UpsertQuestions(ctx context.Context, qs []domain.Question) error
}

// QuestionCatalog serves catalog reads, possibly from a cache.
type QuestionCatalog interface {
	Questions(ctx context.Context) ([]domain.Question, error)
	Invalidate(ctx context.Context) error
}

// ProfileStore persists users and their submitted results.
type ProfileStore interface {
	User(ctx context.Context, userID string) (domain.User, error)
	SaveUser(ctx context.Context, u domain.User) error
	UsersWithPushToken(ctx context.Context) ([]domain.User, error)
	// SaveResult stores r and the updated user in one atomic step.
	SaveResult(ctx context.Context, u domain.User, r domain.SubmittedResult) error
	Results(ctx context.Context, userID string, limit int) ([]domain.SubmittedResult, error)
	ResultsByCategory(ctx context.Context, userID, category string) ([]domain.SubmittedResult, error)
}

// Notifier delivers a push notification.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}
