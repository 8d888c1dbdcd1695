package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"trivora/internal/app"
	"trivora/internal/domain"
)

func TestSyncOnceFlipsOnlySuccessfulUploads(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	remote := newFakeRemote()
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	insertResult(t, store, "ok-1", base)
	insertResult(t, store, "rejected", base.Add(time.Minute))
	insertResult(t, store, "ok-2", base.Add(2*time.Minute))
	insertResult(t, store, "unreachable", base.Add(3*time.Minute))

	// uploads run oldest first, so failures are routed by call order
	calls := 0
	remote.submitErr = func(domain.QuizResultRequest) error {
		calls++
		switch calls {
		case 2:
			return domainErr("submit result", "Validation failed")
		case 4:
			return transportErr("submit result")
		}
		return nil
	}

	now := base.Add(time.Hour)
	rec := app.NewReconcilerWithClock(store, remote, nil, time.Hour, zap.NewNop(), func() time.Time { return now })
	report, err := rec.SyncOnce(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Attempted != 4 || report.Synced != 2 || report.Failed != 2 || report.Pending != 2 {
		t.Fatalf("unexpected report %+v", report)
	}

	pending, err := store.UnsyncedResults(ctx)
	if err != nil {
		t.Fatalf("unsynced: %v", err)
	}
	if len(pending) != 2 || pending[0].SessionID != "rejected" || pending[1].SessionID != "unreachable" {
		t.Fatalf("unexpected pending set %+v", pending)
	}

	status, err := store.SyncStatus(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.PendingSyncCount != len(pending) {
		t.Fatalf("pending count %d does not match unsynced set %d", status.PendingSyncCount, len(pending))
	}
	if !status.LastSyncTime.Equal(now) {
		t.Fatalf("expected last sync %s, got %s", now, status.LastSyncTime)
	}

	// failures are retried on the next pass
	report, err = rec.SyncOnce(ctx)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if report.Attempted != 2 || report.Synced != 2 || report.Pending != 0 {
		t.Fatalf("unexpected second report %+v", report)
	}
	results, _ := store.Results(ctx)
	if len(results) != 4 {
		t.Fatalf("reconciler must never delete results, have %d", len(results))
	}
}

func TestSyncOnceWithNothingPendingResetsCount(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	if err := store.UpdateSyncStatus(ctx, time.Time{}, 9); err != nil {
		t.Fatalf("seed status: %v", err)
	}

	rec := app.NewReconciler(store, newFakeRemote(), nil, time.Hour, zap.NewNop())
	if _, err := rec.SyncOnce(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	status, _ := store.SyncStatus(ctx)
	if status.PendingSyncCount != 0 || status.LastSyncTime.IsZero() {
		t.Fatalf("unexpected status %+v", status)
	}
}

// blockingUploader holds every upload until released.
type blockingUploader struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (b *blockingUploader) SubmitResult(ctx context.Context, req domain.QuizResultRequest) (domain.SubmitResultResponse, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	return domain.SubmitResultResponse{}, nil
}

func TestConcurrentTriggersShareOnePass(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	insertResult(t, store, "only", time.Now())

	up := &blockingUploader{started: make(chan struct{}, 1), release: make(chan struct{})}
	rec := app.NewReconciler(store, up, nil, time.Hour, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = rec.SyncOnce(ctx)
	}()
	<-up.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = rec.SyncOnce(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	close(up.release)
	wg.Wait()

	if up.calls != 1 {
		t.Fatalf("expected a single upload across concurrent triggers, got %d", up.calls)
	}
}

func TestRunSyncsWhenConnectivityRestored(t *testing.T) {
	store := openStore(t)
	remote := newFakeRemote()
	network := app.NewConnectivity(remote, 0, zap.NewNop())
	network.MarkOffline(errNetworkDown)

	rec := app.NewReconciler(store, remote, network, time.Hour, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	// offline at startup: nothing is uploaded
	insertResult(t, store, "queued", time.Now())
	time.Sleep(20 * time.Millisecond)
	if remote.submittedCount() != 0 {
		t.Fatalf("must not sync while offline")
	}

	if !network.Probe(context.Background()) {
		t.Fatalf("probe should succeed")
	}
	deadline := time.Now().Add(2 * time.Second)
	for remote.submittedCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if remote.submittedCount() != 1 {
		t.Fatalf("expected restore-triggered upload, got %d", remote.submittedCount())
	}
}

func TestClientErrorsKeepDeviceOnline(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	remote := newFakeRemote()
	network := app.NewConnectivity(remote, 0, zap.NewNop())
	rec := app.NewReconciler(store, remote, network, time.Hour, zap.NewNop())
	insertResult(t, store, "rejected", time.Now())

	remote.submitErr = func(domain.QuizResultRequest) error {
		return &domain.RemoteError{Kind: domain.FailureHTTP, Op: "submit result", StatusCode: 401, Message: "Unauthorized"}
	}
	report, err := rec.SyncOnce(ctx)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if report.Failed != 1 || !network.Online() {
		t.Fatalf("a 401 must fail the upload without marking offline: %+v online=%v", report, network.Online())
	}

	remote.submitErr = func(domain.QuizResultRequest) error {
		return &domain.RemoteError{Kind: domain.FailureHTTP, Op: "submit result", StatusCode: 503, Message: "Service Unavailable"}
	}
	if _, err := rec.SyncOnce(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if network.Online() {
		t.Fatalf("a 503 should mark the device offline")
	}
}
