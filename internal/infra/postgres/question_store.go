package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivora/internal/domain"
)

// QuestionStore persists the question catalog in Postgres. Choices are stored as JSONB.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

const questionColumns = `id, category, question_text, choices, answer, difficulty`

func (s *QuestionStore) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+questionColumns+` FROM questions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Question, 0)
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	return out, nil
}

func (s *QuestionStore) Question(ctx context.Context, id string) (domain.Question, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

func (s *QuestionStore) CreateQuestion(ctx context.Context, q domain.Question) error {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return fmt.Errorf("encode choices: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO questions (id, category, question_text, choices, answer, difficulty)
		 VALUES ($1, $2, $3, $4::jsonb, $5, $6)`,
		q.ID, q.Category, q.Text, string(choices), q.Answer, q.Difficulty)
	if err != nil {
		return fmt.Errorf("create question: %w", err)
	}
	return nil
}

func (s *QuestionStore) UpdateQuestion(ctx context.Context, q domain.Question) error {
	choices, err := json.Marshal(q.Choices)
	if err != nil {
		return fmt.Errorf("encode choices: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE questions SET category=$2, question_text=$3, choices=$4::jsonb, answer=$5, difficulty=$6
		 WHERE id=$1`,
		q.ID, q.Category, q.Text, string(choices), q.Answer, q.Difficulty)
	if err != nil {
		return fmt.Errorf("update question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

func (s *QuestionStore) DeleteQuestion(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrQuestionNotFound
	}
	return nil
}

// UpsertQuestions writes all questions in one batch.
func (s *QuestionStore) UpsertQuestions(ctx context.Context, qs []domain.Question) error {
	batch := &pgx.Batch{}
	for _, q := range qs {
		choices, err := json.Marshal(q.Choices)
		if err != nil {
			return fmt.Errorf("encode choices: %w", err)
		}
		batch.Queue(
			`INSERT INTO questions (id, category, question_text, choices, answer, difficulty)
			 VALUES ($1, $2, $3, $4::jsonb, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET category=EXCLUDED.category, question_text=EXCLUDED.question_text,
			   choices=EXCLUDED.choices, answer=EXCLUDED.answer, difficulty=EXCLUDED.difficulty`,
			q.ID, q.Category, q.Text, string(choices), q.Answer, q.Difficulty)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range qs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert questions: %w", err)
		}
	}
	return nil
}

func scanQuestion(row pgx.Row) (domain.Question, error) {
	var (
		q   domain.Question
		raw []byte
	)
	if err := row.Scan(&q.ID, &q.Category, &q.Text, &raw, &q.Answer, &q.Difficulty); err != nil {
		return domain.Question{}, err
	}
	if err := json.Unmarshal(raw, &q.Choices); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal choices: %w", err)
	}
	return q, nil
}
