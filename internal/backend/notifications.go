package backend

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"trivora/internal/domain"
)

const (
	reminderTitle = "Time for your daily trivia!"
	reminderBody  = "Keep your streak going. A new quiz is waiting for you."
	maxConcurrent = 10
)

// NotificationService addresses push notifications to users.
type NotificationService struct {
	store    ProfileStore
	notifier Notifier
	logger   *zap.Logger
}

func NewNotificationService(store ProfileStore, notifier Notifier, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{store: store, notifier: notifier, logger: logger}
}

// SendToUser pushes one notification to a user that has a push token.
func (s *NotificationService) SendToUser(ctx context.Context, userID, title, body string, data map[string]string) error {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return err
	}
	if user.PushToken == "" {
		return domain.ErrNoPushToken
	}
	return s.notifier.Notify(ctx, domain.Notification{
		UserID: userID,
		Token:  user.PushToken,
		Title:  title,
		Body:   body,
		Data:   data,
	})
}

// SendDailyReminders notifies every user with a push token.
func (s *NotificationService) SendDailyReminders(ctx context.Context) (domain.ReminderReport, error) {
	users, err := s.store.UsersWithPushToken(ctx)
	if err != nil {
		return domain.ReminderReport{}, fmt.Errorf("list reminder recipients: %w", err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report domain.ReminderReport
	)
	sem := make(chan struct{}, maxConcurrent)
	for _, u := range users {
		wg.Add(1)
		sem <- struct{}{}

		go func(u domain.User) {
			defer wg.Done()
			defer func() { <-sem }()

			err := s.notifier.Notify(ctx, domain.Notification{
				UserID: u.UserID,
				Token:  u.PushToken,
				Title:  reminderTitle,
				Body:   reminderBody,
				Data:   map[string]string{"type": "daily_reminder"},
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				s.logger.Warn("daily reminder failed", zap.String("user", u.UserID), zap.Error(err))
				return
			}
			report.Sent++
		}(u)
	}
	wg.Wait()

	s.logger.Info("daily reminders processed", zap.Int("sent", report.Sent), zap.Int("failed", report.Failed))
	return report, nil
}

// LogNotifier only logs notifications; used when no delivery channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.logger.Info("notification",
		zap.String("user", msg.UserID),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
	)
	return nil
}
