package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

// querier is the subset shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const answerColumns = `id, user_id, question_id, category_id, chosen_label, is_correct, reviewer_id, created_at`

const scoreColumns = `id, user_id, category_id, correct, incorrect, total, percentage, reviewer_id, created_at`

// ScoringStore persists answers and scores with pgx. Outside RunInTx every call runs on the
// pool; inside, the store handed to the callback is bound to the transaction.
type ScoringStore struct {
	pool *pgxpool.Pool
	q    querier
}

func NewScoringStore(pool *pgxpool.Pool) *ScoringStore {
	return &ScoringStore{pool: pool, q: pool}
}

func (s *ScoringStore) Answers() app.AnswerStore { return s }
func (s *ScoringStore) Scores() app.ScoreStore   { return s }

// RunInTx serializes work on key with a transaction-scoped advisory lock.
func (s *ScoringStore) RunInTx(ctx context.Context, key domain.ScoreKey, fn func(ctx context.Context, tx app.ScoringTx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Persistence("begin tx", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1), hashtext($2))`, key.UserID, key.CategoryID); err != nil {
		return domain.Persistence("lock score key", err)
	}
	if err := fn(ctx, &ScoringStore{pool: s.pool, q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Persistence("commit tx", err)
	}
	return nil
}

func (s *ScoringStore) CreateAnswer(ctx context.Context, a domain.AnswerRecord) (domain.AnswerRecord, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO answers (id, user_id, question_id, category_id, chosen_label, is_correct, reviewer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+answerColumns,
		a.ID, a.UserID, a.QuestionID, a.CategoryID, string(a.ChosenLabel), a.IsCorrect, a.ReviewerID, a.CreatedAt,
	)
	saved, err := scanAnswer(row)
	if err != nil {
		return domain.AnswerRecord{}, domain.Persistence("insert answer", err)
	}
	return saved, nil
}

func (s *ScoringStore) GetAnswer(ctx context.Context, answerID string) (domain.AnswerRecord, error) {
	row := s.q.QueryRow(ctx, `SELECT `+answerColumns+` FROM answers WHERE id = $1`, answerID)
	a, err := scanAnswer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AnswerRecord{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.AnswerRecord{}, domain.Persistence("get answer", err)
	}
	return a, nil
}

func (s *ScoringStore) UpdateCorrection(ctx context.Context, answerID string, isCorrect bool, reviewerID string) (domain.AnswerRecord, error) {
	row := s.q.QueryRow(ctx, `
		UPDATE answers SET is_correct = $2, reviewer_id = $3
		WHERE id = $1
		RETURNING `+answerColumns,
		answerID, isCorrect, reviewerID,
	)
	a, err := scanAnswer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AnswerRecord{}, domain.ErrAnswerNotFound
	}
	if err != nil {
		return domain.AnswerRecord{}, domain.Persistence("update answer", err)
	}
	return a, nil
}

func (s *ScoringStore) TallyAnswers(ctx context.Context, key domain.ScoreKey) (int, int, error) {
	var correct, incorrect int
	err := s.q.QueryRow(ctx, `
		SELECT count(*) FILTER (WHERE is_correct), count(*) FILTER (WHERE NOT is_correct)
		FROM answers WHERE user_id = $1 AND category_id = $2`,
		key.UserID, key.CategoryID,
	).Scan(&correct, &incorrect)
	if err != nil {
		return 0, 0, domain.Persistence("tally answers", err)
	}
	return correct, incorrect, nil
}

func (s *ScoringStore) ListAnswers(ctx context.Context, filter app.AnswerFilter) ([]domain.AnswerRecord, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+answerColumns+` FROM answers
		WHERE ($1::text = '' OR user_id = $1)
		ORDER BY created_at DESC, id`,
		filter.UserID,
	)
	if err != nil {
		return nil, domain.Persistence("list answers", err)
	}
	defer rows.Close()

	out := make([]domain.AnswerRecord, 0)
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, domain.Persistence("scan answer", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("list answers", err)
	}
	return out, nil
}

func (s *ScoringStore) ScoreKeys(ctx context.Context) ([]domain.ScoreKey, error) {
	rows, err := s.q.Query(ctx, `SELECT DISTINCT user_id, category_id FROM answers ORDER BY user_id, category_id`)
	if err != nil {
		return nil, domain.Persistence("list score keys", err)
	}
	defer rows.Close()

	keys := make([]domain.ScoreKey, 0)
	for rows.Next() {
		var key domain.ScoreKey
		if err := rows.Scan(&key.UserID, &key.CategoryID); err != nil {
			return nil, domain.Persistence("scan score key", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("list score keys", err)
	}
	return keys, nil
}

func (s *ScoringStore) FindByUserAndCategory(ctx context.Context, key domain.ScoreKey) (domain.ScoreRecord, error) {
	row := s.q.QueryRow(ctx, `SELECT `+scoreColumns+` FROM scores WHERE user_id = $1 AND category_id = $2`, key.UserID, key.CategoryID)
	rec, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	if err != nil {
		return domain.ScoreRecord{}, domain.Persistence("find score", err)
	}
	return rec, nil
}

// CreateScore uses ON CONFLICT DO NOTHING so a lost race does not abort the surrounding transaction.
func (s *ScoringStore) CreateScore(ctx context.Context, rec domain.ScoreRecord) (domain.ScoreRecord, error) {
	row := s.q.QueryRow(ctx, `
		INSERT INTO scores (id, user_id, category_id, correct, incorrect, total, percentage, reviewer_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, category_id) DO NOTHING
		RETURNING `+scoreColumns,
		rec.ID, rec.UserID, rec.CategoryID, rec.Correct, rec.Incorrect, rec.Total, rec.Percentage, rec.ReviewerID, rec.CreatedAt,
	)
	created, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreRecord{}, domain.ErrScoreExists
	}
	if err != nil {
		return domain.ScoreRecord{}, domain.Persistence("insert score", err)
	}
	return created, nil
}

// IncrementAndRecompute is a single UPDATE; the right-hand sides see the pre-update row.
func (s *ScoringStore) IncrementAndRecompute(ctx context.Context, scoreID string, wasCorrect bool) (domain.ScoreRecord, error) {
	hit := 0
	if wasCorrect {
		hit = 1
	}
	row := s.q.QueryRow(ctx, `
		UPDATE scores SET
			correct    = correct + $2,
			incorrect  = incorrect + (1 - $2),
			total      = total + 1,
			percentage = (200 * (correct + $2) + total + 1) / (2 * (total + 1))
		WHERE id = $1
		RETURNING `+scoreColumns,
		scoreID, hit,
	)
	rec, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	if err != nil {
		return domain.ScoreRecord{}, domain.Persistence("increment score", err)
	}
	return rec, nil
}

func (s *ScoringStore) ReplaceTally(ctx context.Context, scoreID string, correct, incorrect int, reviewerID *string) (domain.ScoreRecord, error) {
	tally := domain.ScoreRecord{}.WithTally(correct, incorrect)
	row := s.q.QueryRow(ctx, `
		UPDATE scores SET correct = $2, incorrect = $3, total = $4, percentage = $5, reviewer_id = $6
		WHERE id = $1
		RETURNING `+scoreColumns,
		scoreID, tally.Correct, tally.Incorrect, tally.Total, tally.Percentage, reviewerID,
	)
	rec, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	if err != nil {
		return domain.ScoreRecord{}, domain.Persistence("replace score tally", err)
	}
	return rec, nil
}

func (s *ScoringStore) GetScore(ctx context.Context, id string) (domain.ScoreRecord, error) {
	rec, err := scanScore(s.q.QueryRow(ctx, `SELECT `+scoreColumns+` FROM scores WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	if err != nil {
		return domain.ScoreRecord{}, domain.Persistence("get score", err)
	}
	return rec, nil
}

func (s *ScoringStore) ListScores(ctx context.Context, filter app.ScoreFilter) ([]domain.ScoreRecord, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+scoreColumns+` FROM scores
		WHERE ($1::text = '' OR user_id = $1)
		  AND ($2::text = '' OR category_id = $2)
		ORDER BY created_at DESC, id`,
		filter.UserID, filter.CategoryID,
	)
	if err != nil {
		return nil, domain.Persistence("list scores", err)
	}
	defer rows.Close()

	out := make([]domain.ScoreRecord, 0)
	for rows.Next() {
		rec, err := scanScore(rows)
		if err != nil {
			return nil, domain.Persistence("scan score", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Persistence("list scores", err)
	}
	return out, nil
}

func scanAnswer(row pgx.Row) (domain.AnswerRecord, error) {
	var (
		a     domain.AnswerRecord
		label string
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.CategoryID, &label, &a.IsCorrect, &a.ReviewerID, &a.CreatedAt); err != nil {
		return domain.AnswerRecord{}, err
	}
	a.ChosenLabel = domain.Label(label)
	return a, nil
}

func scanScore(row pgx.Row) (domain.ScoreRecord, error) {
	var rec domain.ScoreRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.CategoryID, &rec.Correct, &rec.Incorrect, &rec.Total, &rec.Percentage, &rec.ReviewerID, &rec.CreatedAt)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	return rec, nil
}
