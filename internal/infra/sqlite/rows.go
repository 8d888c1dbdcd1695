package sqlite

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"trivora/internal/domain"
)

// choiceList stores answer choices as a JSON array in a TEXT column.
type choiceList []string

func (c choiceList) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(c))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (c *choiceList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*c = nil
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("choiceList: unsupported source %T", src)
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*c = out
	return nil
}

type quizRow struct {
	bun.BaseModel `bun:"table:local_quizzes"`

	ID            string     `bun:"id,pk"`
	Question      string     `bun:"question"`
	Options       choiceList `bun:"options"`
	CorrectAnswer string     `bun:"correct_answer"`
	Category      string     `bun:"category"`
	Difficulty    string     `bun:"difficulty"`
	DownloadedAt  int64      `bun:"downloaded_at"`
	IsCompleted   bool       `bun:"is_completed"`
}

func toQuizRow(q domain.LocalQuiz) quizRow {
	return quizRow{
		ID:            q.ID,
		Question:      q.Text,
		Options:       choiceList(q.Choices),
		CorrectAnswer: q.Answer,
		Category:      q.Category,
		Difficulty:    q.Difficulty,
		DownloadedAt:  toMillis(q.DownloadedAt),
		IsCompleted:   q.Completed,
	}
}

func (r quizRow) toDomain() domain.LocalQuiz {
	return domain.LocalQuiz{
		Question: domain.Question{
			ID:         r.ID,
			Category:   r.Category,
			Text:       r.Question,
			Choices:    []string(r.Options),
			Answer:     r.CorrectAnswer,
			Difficulty: r.Difficulty,
		},
		DownloadedAt: fromMillis(r.DownloadedAt),
		Completed:    r.IsCompleted,
	}
}

type attemptRow struct {
	bun.BaseModel `bun:"table:quiz_attempts"`

	ID             int64  `bun:"id,pk,autoincrement"`
	QuizID         string `bun:"quiz_id"`
	SelectedAnswer string `bun:"selected_answer"`
	IsCorrect      bool   `bun:"is_correct"`
	TimeSpent      int    `bun:"time_spent"`
	CompletedAt    int64  `bun:"completed_at"`
	IsSynced       bool   `bun:"is_synced"`
}

func (r attemptRow) toDomain() domain.Attempt {
	return domain.Attempt{
		ID:               r.ID,
		QuizID:           r.QuizID,
		SelectedAnswer:   r.SelectedAnswer,
		IsCorrect:        r.IsCorrect,
		TimeSpentSeconds: r.TimeSpent,
		CompletedAt:      fromMillis(r.CompletedAt),
		IsSynced:         r.IsSynced,
	}
}

type resultRow struct {
	bun.BaseModel `bun:"table:local_quiz_results"`

	ID             int64  `bun:"id,pk,autoincrement"`
	SessionID      string `bun:"session_id"`
	UserID         string `bun:"user_id"`
	Category       string `bun:"category"`
	Difficulty     string `bun:"difficulty"`
	Score          int    `bun:"score"`
	TotalQuestions int    `bun:"total_questions"`
	CorrectAnswers int    `bun:"correct_answers"`
	TimeSpent      int64  `bun:"time_spent"`
	CompletedAt    int64  `bun:"completed_at"`
	DeviceID       string `bun:"device_id"`
	IsSynced       bool   `bun:"is_synced"`
}

func (r resultRow) toDomain() domain.QuizResult {
	return domain.QuizResult{
		ID:               r.ID,
		SessionID:        r.SessionID,
		UserID:           r.UserID,
		Category:         r.Category,
		Difficulty:       r.Difficulty,
		Score:            r.Score,
		TotalQuestions:   r.TotalQuestions,
		CorrectAnswers:   r.CorrectAnswers,
		TimeSpentSeconds: r.TimeSpent,
		CompletedAt:      fromMillis(r.CompletedAt),
		DeviceID:         r.DeviceID,
		IsSynced:         r.IsSynced,
	}
}

type syncStatusRow struct {
	bun.BaseModel `bun:"table:sync_status"`

	ID               int   `bun:"id,pk"`
	LastSyncTime     int64 `bun:"last_sync_time"`
	PendingSyncCount int   `bun:"pending_sync_count"`
}

type identityRow struct {
	bun.BaseModel `bun:"table:install_identity"`

	ID        int    `bun:"id,pk"`
	DeviceID  string `bun:"device_id"`
	UserID    string `bun:"user_id"`
	CreatedAt int64  `bun:"created_at"`
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
