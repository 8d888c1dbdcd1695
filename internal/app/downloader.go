package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trivora/internal/domain"
)

// CatalogSource is the part of the backend the downloader reads from.
type CatalogSource interface {
	QuestionsByCategory(ctx context.Context, category string) ([]domain.Question, error)
	AllQuestions(ctx context.Context) ([]domain.Question, error)
}

// Downloader stores backend questions locally so they can be played offline.
type Downloader struct {
	remote CatalogSource
	cache  QuestionCache
	now    func() time.Time
	logger *zap.Logger
}

func NewDownloader(remote CatalogSource, cache QuestionCache, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{remote: remote, cache: cache, now: time.Now, logger: logger}
}

// Download caches every question of category, or the whole catalog when
// category is empty, and returns how many were stored.
func (d *Downloader) Download(ctx context.Context, category string) (int, error) {
	var (
		questions []domain.Question
		err       error
	)
	if category == "" {
		questions, err = d.remote.AllQuestions(ctx)
	} else {
		questions, err = d.remote.QuestionsByCategory(ctx, category)
	}
	if err != nil {
		return 0, fmt.Errorf("download %q: %w", category, err)
	}

	now := d.now()
	quizzes := make([]domain.LocalQuiz, 0, len(questions))
	for _, q := range questions {
		quizzes = append(quizzes, domain.NewLocalQuiz(q, now))
	}
	if err := d.cache.SaveQuestions(ctx, quizzes); err != nil {
		return 0, err
	}
	d.logger.Info("questions downloaded for offline play",
		zap.String("category", category),
		zap.Int("count", len(quizzes)),
	)
	return len(quizzes), nil
}
