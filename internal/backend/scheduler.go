package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	DefaultReminderSpec     = "0 9 * * *"
	DefaultReminderTimezone = "Africa/Johannesburg"
)

// ReminderScheduler runs the daily reminder fan-out on a cron schedule.
type ReminderScheduler struct {
	notifications *NotificationService
	spec          string
	location      *time.Location
	logger        *zap.Logger
}

// NewReminderScheduler validates spec and timezone up front.
func NewReminderScheduler(notifications *NotificationService, spec, timezone string, logger *zap.Logger) (*ReminderScheduler, error) {
	if spec == "" {
		spec = DefaultReminderSpec
	}
	if timezone == "" {
		timezone = DefaultReminderTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("reminder timezone: %w", err)
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("reminder schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScheduler{notifications: notifications, spec: spec, location: loc, logger: logger}, nil
}

// Start blocks until ctx is done, sending reminders on every tick.
func (s *ReminderScheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.location))
	_, err := c.AddFunc(s.spec, func() {
		s.logger.Info("cron triggered: sending daily reminders")
		if _, err := s.notifications.SendDailyReminders(ctx); err != nil {
			s.logger.Error("daily reminders failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("add reminder job: %w", err)
	}

	c.Start()
	s.logger.Info("reminder scheduler started", zap.String("spec", s.spec), zap.String("timezone", s.location.String()))

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("reminder scheduler stopped")
	return nil
}

// Next returns the next fire time after t.
func (s *ReminderScheduler) Next(t time.Time) time.Time {
	sched, err := cron.ParseStandard(s.spec)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(t.In(s.location))
}
