package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-platform/internal/domain"
)

// QuestionLoader reads single questions for the scoring path; it backs the question caches.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) FindQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var (
		q         domain.Question
		label     string
		status    string
		createdBy *string
	)
	err := l.pool.QueryRow(ctx, `
		SELECT id, text, option_a, option_b, option_c, correct_label, image_url, category_id, status, created_by, created_at
		FROM questions WHERE id = $1`, questionID,
	).Scan(&q.ID, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &label, &q.ImageURL, &q.CategoryID, &status, &createdBy, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, domain.Persistence("load question", err)
	}
	q.CorrectLabel = domain.Label(label)
	q.Status = domain.QuestionStatus(status)
	if createdBy != nil {
		q.CreatedBy = *createdBy
	}
	return q, nil
}
