package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"trivora/internal/domain"
)

// DefaultSyncInterval is how often the reconciler runs while online.
const DefaultSyncInterval = 30 * time.Minute

// SyncReport summarizes one reconciliation pass.
type SyncReport struct {
	Attempted int       `json:"attempted"`
	Synced    int       `json:"synced"`
	Failed    int       `json:"failed"`
	Pending   int       `json:"pending"`
	At        time.Time `json:"at"`
}

// Reconciler uploads unsynced quiz results and keeps SyncStatus in step with
// the unsynced set. Failed uploads stay unsynced and are retried next pass.
type Reconciler struct {
	store    ResultLog
	remote   ResultUploader
	network  *Connectivity
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger

	sf singleflight.Group
}

// NewReconciler builds a reconciler. network may be nil, in which case every
// trigger runs a pass.
func NewReconciler(store ResultLog, remote ResultUploader, network *Connectivity, interval time.Duration, logger *zap.Logger) *Reconciler {
	return NewReconcilerWithClock(store, remote, network, interval, logger, time.Now)
}

// NewReconcilerWithClock is NewReconciler with an injected clock for tests.
func NewReconcilerWithClock(store ResultLog, remote ResultUploader, network *Connectivity, interval time.Duration, logger *zap.Logger, now func() time.Time) *Reconciler {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		store:    store,
		remote:   remote,
		network:  network,
		interval: interval,
		now:      now,
		logger:   logger,
	}
}

// SyncOnce runs one pass. Concurrent callers share the pass already in flight.
func (r *Reconciler) SyncOnce(ctx context.Context) (SyncReport, error) {
	v, err, _ := r.sf.Do("sync", func() (interface{}, error) {
		return r.syncPass(ctx)
	})
	if err != nil {
		return SyncReport{}, err
	}
	return v.(SyncReport), nil
}

func (r *Reconciler) syncPass(ctx context.Context) (SyncReport, error) {
	pending, err := r.store.UnsyncedResults(ctx)
	if err != nil {
		return SyncReport{}, fmt.Errorf("sync: %w", err)
	}

	report := SyncReport{Attempted: len(pending)}
	for i := range pending {
		result := pending[i]
		if err := r.UploadResult(ctx, &result); err != nil {
			report.Failed++
			r.logger.Warn("result upload failed",
				zap.Int64("resultId", result.ID),
				zap.String("sessionId", result.SessionID),
				zap.Stringer("kind", domain.FailureKindOf(err)),
				zap.Error(err),
			)
			continue
		}
		report.Synced++
	}

	remaining, err := r.store.UnsyncedResults(ctx)
	if err != nil {
		return report, fmt.Errorf("sync: %w", err)
	}
	report.Pending = len(remaining)
	report.At = r.now()
	if err := r.store.UpdateSyncStatus(ctx, report.At, report.Pending); err != nil {
		return report, fmt.Errorf("sync: %w", err)
	}

	if report.Attempted > 0 {
		r.logger.Info("sync pass finished",
			zap.Int("attempted", report.Attempted),
			zap.Int("synced", report.Synced),
			zap.Int("failed", report.Failed),
			zap.Int("pending", report.Pending),
		)
	}
	return report, nil
}

// UploadResult submits one result and flips it to synced on domain success.
func (r *Reconciler) UploadResult(ctx context.Context, result *domain.QuizResult) error {
	if _, err := r.remote.SubmitResult(ctx, result.Request()); err != nil {
		if r.network != nil && domain.Unreachable(err) {
			r.network.MarkOffline(err)
		}
		return err
	}
	if err := r.store.SetResultSynced(ctx, result.ID, true); err != nil {
		return fmt.Errorf("mark result %d synced: %w", result.ID, err)
	}
	result.IsSynced = true
	return nil
}

// Run syncs at start, on every interval tick and whenever connectivity is
// restored, skipping triggers while offline. It returns when ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	var restored <-chan struct{}
	if r.network != nil {
		ch, cancel := r.network.Restored()
		defer cancel()
		restored = ch
	}

	r.trigger(ctx, "startup")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.trigger(ctx, "interval")
		case <-restored:
			r.trigger(ctx, "connectivity restored")
		}
	}
}

func (r *Reconciler) trigger(ctx context.Context, reason string) {
	if r.network != nil && !r.network.Online() {
		r.logger.Debug("skipping sync while offline", zap.String("trigger", reason))
		return
	}
	if _, err := r.SyncOnce(ctx); err != nil {
		r.logger.Error("sync pass failed", zap.String("trigger", reason), zap.Error(err))
	}
}
