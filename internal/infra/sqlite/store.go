package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"trivora/internal/domain"
)

// StaleAfter is how long a cached question stays eligible for offline play.
const StaleAfter = 30 * 24 * time.Hour

// Store is the on-device cache of questions, attempts, results and sync status.
// One Store is opened per process and shared by every component.
type Store struct {
	db     *bun.DB
	now    func() time.Time
	logger *zap.Logger
}

// Open opens (or creates) the SQLite database at path.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	return OpenWithClock(ctx, path, logger, time.Now)
}

// OpenWithClock is Open with an injected clock for deterministic cleanup in tests.
func OpenWithClock(ctx context.Context, path string, logger *zap.Logger, now func() time.Time) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	// a single connection serializes writers; sqlite allows only one anyway
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := ensureSchema(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: now, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveQuestions inserts or replaces cached questions by id in one transaction.
func (s *Store) SaveQuestions(ctx context.Context, quizzes []domain.LocalQuiz) error {
	if len(quizzes) == 0 {
		return nil
	}
	rows := make([]quizRow, 0, len(quizzes))
	for _, q := range quizzes {
		rows = append(rows, toQuizRow(q))
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (id) DO UPDATE").
			Set("question = EXCLUDED.question").
			Set("options = EXCLUDED.options").
			Set("correct_answer = EXCLUDED.correct_answer").
			Set("category = EXCLUDED.category").
			Set("difficulty = EXCLUDED.difficulty").
			Set("downloaded_at = EXCLUDED.downloaded_at").
			Set("is_completed = EXCLUDED.is_completed").
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	return nil
}

// QuestionsByCategory returns cached questions of a category that are not completed.
func (s *Store) QuestionsByCategory(ctx context.Context, category string) ([]domain.LocalQuiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("category = ?", category).
		Where("is_completed = ?", false).
		OrderExpr("downloaded_at DESC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("questions by category: %w", err)
	}
	return quizzesFromRows(rows), nil
}

// AvailableQuestions returns every cached question that is not completed, newest first.
func (s *Store) AvailableQuestions(ctx context.Context) ([]domain.LocalQuiz, error) {
	var rows []quizRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("is_completed = ?", false).
		OrderExpr("downloaded_at DESC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("available questions: %w", err)
	}
	return quizzesFromRows(rows), nil
}

// AvailableCount counts cached questions that are not completed.
func (s *Store) AvailableCount(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*quizRow)(nil)).Where("is_completed = ?", false).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("available count: %w", err)
	}
	return n, nil
}

// Question returns one cached question by id.
func (s *Store) Question(ctx context.Context, id string) (domain.LocalQuiz, error) {
	var row quizRow
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.LocalQuiz{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.LocalQuiz{}, fmt.Errorf("question %s: %w", id, err)
	}
	return row.toDomain(), nil
}

// MarkQuestionCompleted flips isCompleted for a cached question.
func (s *Store) MarkQuestionCompleted(ctx context.Context, id string) error {
	_, err := s.db.NewUpdate().
		Model((*quizRow)(nil)).
		Set("is_completed = ?", true).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark question completed: %w", err)
	}
	return nil
}

// DeleteQuestionsBefore removes cached questions downloaded before cutoff.
func (s *Store) DeleteQuestionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*quizRow)(nil)).
		Where("downloaded_at < ?", toMillis(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete old questions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// CleanupStale removes cached questions older than StaleAfter.
func (s *Store) CleanupStale(ctx context.Context) (int64, error) {
	n, err := s.DeleteQuestionsBefore(ctx, s.now().Add(-StaleAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("removed stale cached questions", zap.Int64("count", n))
	}
	return n, nil
}

// InsertAttempt stores a new attempt and sets its id.
func (s *Store) InsertAttempt(ctx context.Context, a *domain.Attempt) error {
	row := attemptRow{
		QuizID:         a.QuizID,
		SelectedAnswer: a.SelectedAnswer,
		IsCorrect:      a.IsCorrect,
		TimeSpent:      a.TimeSpentSeconds,
		CompletedAt:    toMillis(a.CompletedAt),
		IsSynced:       a.IsSynced,
	}
	res, err := s.db.NewInsert().Model(&row).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	a.ID = insertedID(row.ID, res)
	return nil
}

// UnsyncedAttempts lists attempts not yet uploaded, oldest first.
func (s *Store) UnsyncedAttempts(ctx context.Context) ([]domain.Attempt, error) {
	var rows []attemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("is_synced = ?", false).
		OrderExpr("completed_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("unsynced attempts: %w", err)
	}
	return attemptsFromRows(rows), nil
}

// Attempts lists all attempts, newest first.
func (s *Store) Attempts(ctx context.Context) ([]domain.Attempt, error) {
	var rows []attemptRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("completed_at DESC, id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("attempts: %w", err)
	}
	return attemptsFromRows(rows), nil
}

// SetAttemptSynced flips isSynced for one attempt.
func (s *Store) SetAttemptSynced(ctx context.Context, id int64, synced bool) error {
	_, err := s.db.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("is_synced = ?", synced).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set attempt synced: %w", err)
	}
	return nil
}

// AttemptStats returns the number of correct attempts and the total.
func (s *Store) AttemptStats(ctx context.Context) (correct, total int, err error) {
	total, err = s.db.NewSelect().Model((*attemptRow)(nil)).Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("attempt stats: %w", err)
	}
	correct, err = s.db.NewSelect().Model((*attemptRow)(nil)).Where("is_correct = ?", true).Count(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("attempt stats: %w", err)
	}
	return correct, total, nil
}

// InsertResult stores a completed quiz result and sets its id.
func (s *Store) InsertResult(ctx context.Context, r *domain.QuizResult) error {
	row := resultRow{
		SessionID:      r.SessionID,
		UserID:         r.UserID,
		Category:       r.Category,
		Difficulty:     r.Difficulty,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		TimeSpent:      r.TimeSpentSeconds,
		CompletedAt:    toMillis(r.CompletedAt),
		DeviceID:       r.DeviceID,
		IsSynced:       r.IsSynced,
	}
	res, err := s.db.NewInsert().Model(&row).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	r.ID = insertedID(row.ID, res)
	return nil
}

// UnsyncedResults lists results with isSynced=false, oldest first.
func (s *Store) UnsyncedResults(ctx context.Context) ([]domain.QuizResult, error) {
	var rows []resultRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("is_synced = ?", false).
		OrderExpr("completed_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("unsynced results: %w", err)
	}
	return resultsFromRows(rows), nil
}

// Results lists all local results, newest first.
func (s *Store) Results(ctx context.Context) ([]domain.QuizResult, error) {
	var rows []resultRow
	if err := s.db.NewSelect().Model(&rows).OrderExpr("completed_at DESC, id DESC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	return resultsFromRows(rows), nil
}

// ResultsByCategory lists local results of one category, newest first.
func (s *Store) ResultsByCategory(ctx context.Context, category string) ([]domain.QuizResult, error) {
	var rows []resultRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("category = ?", category).
		OrderExpr("completed_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("results by category: %w", err)
	}
	return resultsFromRows(rows), nil
}

// SetResultSynced flips isSynced for one result.
func (s *Store) SetResultSynced(ctx context.Context, id int64, synced bool) error {
	_, err := s.db.NewUpdate().
		Model((*resultRow)(nil)).
		Set("is_synced = ?", synced).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("set result synced: %w", err)
	}
	return nil
}

// SyncStatus reads the singleton sync status, initializing it when absent.
func (s *Store) SyncStatus(ctx context.Context) (domain.SyncStatus, error) {
	var row syncStatusRow
	err := s.db.NewSelect().Model(&row).Where("id = 1").Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		if err := s.InitSyncStatus(ctx); err != nil {
			return domain.SyncStatus{}, err
		}
		return domain.SyncStatus{}, nil
	}
	if err != nil {
		return domain.SyncStatus{}, fmt.Errorf("sync status: %w", err)
	}
	return domain.SyncStatus{
		LastSyncTime:     fromMillis(row.LastSyncTime),
		PendingSyncCount: row.PendingSyncCount,
	}, nil
}

// InitSyncStatus creates the singleton sync status if it does not exist yet.
func (s *Store) InitSyncStatus(ctx context.Context) error {
	_, err := s.db.NewInsert().
		Model(&syncStatusRow{ID: 1}).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("init sync status: %w", err)
	}
	return nil
}

// UpdateSyncStatus overwrites the singleton in place.
func (s *Store) UpdateSyncStatus(ctx context.Context, lastSync time.Time, pending int) error {
	row := syncStatusRow{ID: 1, LastSyncTime: toMillis(lastSync), PendingSyncCount: pending}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (id) DO UPDATE").
		Set("last_sync_time = EXCLUDED.last_sync_time").
		Set("pending_sync_count = EXCLUDED.pending_sync_count").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update sync status: %w", err)
	}
	return nil
}

// UpdatePendingCount rewrites only the pending counter.
func (s *Store) UpdatePendingCount(ctx context.Context, pending int) error {
	if err := s.InitSyncStatus(ctx); err != nil {
		return err
	}
	_, err := s.db.NewUpdate().
		Model((*syncStatusRow)(nil)).
		Set("pending_sync_count = ?", pending).
		Where("id = 1").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update pending count: %w", err)
	}
	return nil
}

// Wipe clears cached questions, attempts and results and resets sync status.
// The install identity is kept.
func (s *Store) Wipe(ctx context.Context) error {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range []any{(*quizRow)(nil), (*attemptRow)(nil), (*resultRow)(nil), (*syncStatusRow)(nil)} {
			if _, err := tx.NewDelete().Model(model).Where("1 = 1").Exec(ctx); err != nil {
				return err
			}
		}
		_, err := tx.NewInsert().Model(&syncStatusRow{ID: 1}).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("wipe local data: %w", err)
	}
	return nil
}

// Identity returns the install identity, creating it on first use. userID is
// only consulted when no identity exists yet.
func (s *Store) Identity(ctx context.Context, userID string) (domain.Identity, error) {
	var row identityRow
	err := s.db.NewSelect().Model(&row).Where("id = 1").Scan(ctx)
	if err == nil {
		return identityFromRow(row), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Identity{}, fmt.Errorf("read identity: %w", err)
	}

	if userID == "" {
		userID = "unknown"
	}
	row = identityRow{
		ID:        1,
		DeviceID:  uuid.NewString(),
		UserID:    userID,
		CreatedAt: toMillis(s.now()),
	}
	if _, err := s.db.NewInsert().Model(&row).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
		return domain.Identity{}, fmt.Errorf("create identity: %w", err)
	}
	// re-read so a concurrent creator wins consistently
	if err := s.db.NewSelect().Model(&row).Where("id = 1").Scan(ctx); err != nil {
		return domain.Identity{}, fmt.Errorf("read identity: %w", err)
	}
	return identityFromRow(row), nil
}

func identityFromRow(row identityRow) domain.Identity {
	return domain.Identity{
		DeviceID:  row.DeviceID,
		UserID:    row.UserID,
		CreatedAt: fromMillis(row.CreatedAt),
	}
}

func insertedID(modelID int64, res sql.Result) int64 {
	if modelID != 0 || res == nil {
		return modelID
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0
	}
	return id
}

func quizzesFromRows(rows []quizRow) []domain.LocalQuiz {
	out := make([]domain.LocalQuiz, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func attemptsFromRows(rows []attemptRow) []domain.Attempt {
	out := make([]domain.Attempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

func resultsFromRows(rows []resultRow) []domain.QuizResult {
	out := make([]domain.QuizResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}
