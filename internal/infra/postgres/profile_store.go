package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivora/internal/domain"
)

// ProfileStore persists users and submitted quiz results.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

const userColumns = `user_id, email, display_name, total_score, total_quizzes, correct_answers,
	total_questions, average_score, best_category, push_token, created_at, updated_at`

const upsertUser = `INSERT INTO users (` + userColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (user_id) DO UPDATE SET
	  email=EXCLUDED.email, display_name=EXCLUDED.display_name,
	  total_score=EXCLUDED.total_score, total_quizzes=EXCLUDED.total_quizzes,
	  correct_answers=EXCLUDED.correct_answers, total_questions=EXCLUDED.total_questions,
	  average_score=EXCLUDED.average_score, best_category=EXCLUDED.best_category,
	  push_token=EXCLUDED.push_token, updated_at=EXCLUDED.updated_at`

const resultColumns = `quiz_id, user_id, category, difficulty, score, total_questions,
	correct_answers, time_spent, date, device_id`

func (s *ProfileStore) User(ctx context.Context, userID string) (domain.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id=$1`, userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *ProfileStore) SaveUser(ctx context.Context, u domain.User) error {
	if _, err := s.pool.Exec(ctx, upsertUser, userArgs(u)...); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *ProfileStore) UsersWithPushToken(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE push_token <> '' ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("load users with token: %w", err)
	}
	defer rows.Close()

	out := make([]domain.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("load users with token: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SaveResult inserts the result and the updated user in one transaction.
func (s *ProfileStore) SaveResult(ctx context.Context, u domain.User, r domain.SubmittedResult) error {
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertUser, userArgs(u)...); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO quiz_results (`+resultColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			r.QuizID, r.UserID, r.Category, r.Difficulty, r.Score, r.TotalQuestions,
			r.CorrectAnswers, r.TimeSpent, r.Date, r.DeviceID)
		return err
	})
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

func (s *ProfileStore) Results(ctx context.Context, userID string, limit int) ([]domain.SubmittedResult, error) {
	query := `SELECT ` + resultColumns + ` FROM quiz_results WHERE user_id=$1 ORDER BY date DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return s.queryResults(ctx, "load history", query, args...)
}

func (s *ProfileStore) ResultsByCategory(ctx context.Context, userID, category string) ([]domain.SubmittedResult, error) {
	return s.queryResults(ctx, "load category results",
		`SELECT `+resultColumns+` FROM quiz_results WHERE user_id=$1 AND category=$2 ORDER BY date DESC`,
		userID, category)
}

func (s *ProfileStore) queryResults(ctx context.Context, op, query string, args ...interface{}) ([]domain.SubmittedResult, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]domain.SubmittedResult, 0)
	for rows.Next() {
		var r domain.SubmittedResult
		if err := rows.Scan(&r.QuizID, &r.UserID, &r.Category, &r.Difficulty, &r.Score, &r.TotalQuestions,
			&r.CorrectAnswers, &r.TimeSpent, &r.Date, &r.DeviceID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func userArgs(u domain.User) []interface{} {
	return []interface{}{
		u.UserID, u.Email, u.DisplayName, u.TotalScore, u.TotalQuizzes, u.CorrectAnswers,
		u.TotalQuestions, u.AverageScore, u.BestCategory, u.PushToken, u.CreatedAt, u.UpdatedAt,
	}
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.UserID, &u.Email, &u.DisplayName, &u.TotalScore, &u.TotalQuizzes, &u.CorrectAnswers,
		&u.TotalQuestions, &u.AverageScore, &u.BestCategory, &u.PushToken, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
