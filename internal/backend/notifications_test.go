package backend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivora/internal/domain"
	"trivora/internal/infra/memory"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	fail map[string]bool
}

func (n *recordingNotifier) Notify(_ context.Context, msg domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[msg.UserID] {
		return errors.New("gateway unavailable")
	}
	n.sent = append(n.sent, msg)
	return nil
}

func seedUsers(t *testing.T, store *memory.ProfileStore, tokens map[string]string) {
	t.Helper()
	for id, token := range tokens {
		u := domain.NewUser(id, id+"@example.com", id, fixedNow)
		u.PushToken = token
		if err := store.SaveUser(context.Background(), u); err != nil {
			t.Fatalf("save user: %v", err)
		}
	}
}

func TestSendToUser(t *testing.T) {
	ctx := context.Background()
	store := memory.NewProfileStore()
	seedUsers(t, store, map[string]string{"u1": "tok-1", "u2": ""})
	notifier := &recordingNotifier{}
	svc := NewNotificationService(store, notifier, nil)

	if err := svc.SendToUser(ctx, "u1", "Hello", "Body", map[string]string{"type": "test"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Token != "tok-1" || notifier.sent[0].Data["type"] != "test" {
		t.Fatalf("unexpected notifications %+v", notifier.sent)
	}

	if err := svc.SendToUser(ctx, "u2", "Hello", "Body", nil); !errors.Is(err, domain.ErrNoPushToken) {
		t.Fatalf("expected no push token, got %v", err)
	}
	if err := svc.SendToUser(ctx, "ghost", "Hello", "Body", nil); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestSendDailyRemindersReportsFailures(t *testing.T) {
	store := memory.NewProfileStore()
	tokens := map[string]string{"u-none": ""}
	for i := 0; i < 25; i++ {
		tokens["u"+string(rune('a'+i))] = "tok"
	}
	seedUsers(t, store, tokens)
	notifier := &recordingNotifier{fail: map[string]bool{"ua": true, "ub": true}}
	svc := NewNotificationService(store, notifier, nil)

	report, err := svc.SendDailyReminders(context.Background())
	if err != nil {
		t.Fatalf("reminders: %v", err)
	}
	if report.Sent != 23 || report.Failed != 2 {
		t.Fatalf("unexpected report %+v", report)
	}
	for _, n := range notifier.sent {
		if n.Data["type"] != "daily_reminder" || n.Title != reminderTitle {
			t.Fatalf("unexpected reminder %+v", n)
		}
	}
}

func TestReminderSchedulerNextRun(t *testing.T) {
	sched, err := NewReminderScheduler(nil, "", "", nil)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	loc, _ := time.LoadLocation(DefaultReminderTimezone)

	// 12:00 in Johannesburg, so the next run is tomorrow 09:00 local.
	next := sched.Next(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	want := time.Date(2024, 1, 2, 9, 0, 0, 0, loc)
	if !next.Equal(want) {
		t.Fatalf("expected %s, got %s", want, next)
	}

	// 06:00 UTC is 08:00 local; fires the same day
	next = sched.Next(time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC))
	if !next.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, loc)) {
		t.Fatalf("unexpected same-day run %s", next)
	}
}

func TestReminderSchedulerRejectsBadInput(t *testing.T) {
	if _, err := NewReminderScheduler(nil, "not a cron", "", nil); err == nil {
		t.Fatalf("expected invalid spec error")
	}
	if _, err := NewReminderScheduler(nil, "", "Mars/Olympus", nil); err == nil {
		t.Fatalf("expected invalid timezone error")
	}
}

func TestReminderSchedulerStopsOnCancel(t *testing.T) {
	svc := NewNotificationService(memory.NewProfileStore(), &recordingNotifier{}, nil)
	sched, err := NewReminderScheduler(svc, "", "", nil)
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop")
	}
}
