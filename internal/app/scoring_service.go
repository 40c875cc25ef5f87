package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quiz-platform/internal/domain"
)

// QuestionStore resolves questions for scoring (cache or backing store).
type QuestionStore interface {
	FindQuestion(ctx context.Context, questionID string) (domain.Question, error)
}

// AnswerFilter narrows answer listings; empty fields match everything.
type AnswerFilter struct {
	UserID string
}

// AnswerStore persists answer records. The answer records are the source of truth for scores.
type AnswerStore interface {
	CreateAnswer(ctx context.Context, answer domain.AnswerRecord) (domain.AnswerRecord, error)
	GetAnswer(ctx context.Context, answerID string) (domain.AnswerRecord, error)
	UpdateCorrection(ctx context.Context, answerID string, isCorrect bool, reviewerID string) (domain.AnswerRecord, error)
	// TallyAnswers counts correct and incorrect answers of a (user, category) pair.
	TallyAnswers(ctx context.Context, key domain.ScoreKey) (correct, incorrect int, err error)
	ListAnswers(ctx context.Context, filter AnswerFilter) ([]domain.AnswerRecord, error)
	// ScoreKeys lists every (user, category) pair that has at least one answer.
	ScoreKeys(ctx context.Context) ([]domain.ScoreKey, error)
}

// ScoreStore persists the per-user-per-category aggregates.
type ScoreStore interface {
	FindByUserAndCategory(ctx context.Context, key domain.ScoreKey) (domain.ScoreRecord, error)
	// CreateScore returns domain.ErrScoreExists when the pair already has a record.
	CreateScore(ctx context.Context, score domain.ScoreRecord) (domain.ScoreRecord, error)
	// IncrementAndRecompute atomically counts one answer and recomputes the percentage.
	IncrementAndRecompute(ctx context.Context, scoreID string, wasCorrect bool) (domain.ScoreRecord, error)
	// ReplaceTally overwrites the counts of a record and recomputes total and percentage.
	ReplaceTally(ctx context.Context, scoreID string, correct, incorrect int, reviewerID *string) (domain.ScoreRecord, error)
}

// ScoringTx exposes the stores bound to one unit of work.
type ScoringTx interface {
	Answers() AnswerStore
	Scores() ScoreStore
}

// TxRunner runs fn as one atomic unit of work, mutually exclusive with every other unit of
// work on the same key. Either all writes made through tx apply or none do.
type TxRunner interface {
	RunInTx(ctx context.Context, key domain.ScoreKey, fn func(ctx context.Context, tx ScoringTx) error) error
}

// Auditor records activity; implementations must never fail the caller.
type Auditor interface {
	Record(ctx context.Context, entry domain.ActivityLog)
}

// ScoreNotifier fans out score updates to live subscribers.
type ScoreNotifier interface {
	Publish(ctx context.Context, score domain.ScoreRecord)
}

// ScoringService accumulates answer submissions into per-category scores.
type ScoringService struct {
	questions QuestionStore
	answers   AnswerStore
	tx        TxRunner
	audit     Auditor
	notifier  ScoreNotifier
	now       func() time.Time
	newID     func() string
	log       *slog.Logger
}

// ScoringOption customizes a ScoringService.
type ScoringOption func(*ScoringService)

func WithAuditor(a Auditor) ScoringOption {
	return func(s *ScoringService) { s.audit = a }
}

func WithNotifier(n ScoreNotifier) ScoringOption {
	return func(s *ScoringService) { s.notifier = n }
}

// WithClock is meant for tests that need deterministic timestamps.
func WithClock(now func() time.Time) ScoringOption {
	return func(s *ScoringService) { s.now = now }
}

func WithIDGenerator(newID func() string) ScoringOption {
	return func(s *ScoringService) { s.newID = newID }
}

func WithLogger(log *slog.Logger) ScoringOption {
	return func(s *ScoringService) { s.log = log }
}

func NewScoringService(questions QuestionStore, answers AnswerStore, tx TxRunner, opts ...ScoringOption) *ScoringService {
	s := &ScoringService{
		questions: questions,
		answers:   answers,
		tx:        tx,
		audit:     nopAuditor{},
		notifier:  nopNotifier{},
		now:       time.Now,
		newID:     uuid.NewString,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitAnswer scores one submission, persists the answer and updates the matching score
// record in a single unit of work.
func (s *ScoringService) SubmitAnswer(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	if !sub.ChosenLabel.Valid() {
		return domain.SubmissionResult{}, domain.ErrInvalidLabel
	}
	if sub.UserID == "" || sub.QuestionID == "" {
		return domain.SubmissionResult{}, domain.Invalid("userId and questionId are required")
	}

	question, err := s.questions.FindQuestion(ctx, sub.QuestionID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	now := s.now()
	answer := domain.AnswerRecord{
		ID:          s.newID(),
		UserID:      sub.UserID,
		QuestionID:  question.ID,
		CategoryID:  question.CategoryID,
		ChosenLabel: sub.ChosenLabel,
		IsCorrect:   question.IsCorrect(sub.ChosenLabel),
		CreatedAt:   now,
	}
	key := domain.ScoreKey{UserID: sub.UserID, CategoryID: question.CategoryID}

	var result domain.SubmissionResult
	err = s.tx.RunInTx(ctx, key, func(ctx context.Context, tx ScoringTx) error {
		saved, err := tx.Answers().CreateAnswer(ctx, answer)
		if err != nil {
			return err
		}
		score, err := s.accumulate(ctx, tx.Scores(), key, saved.IsCorrect, now)
		if err != nil {
			return err
		}
		result = domain.SubmissionResult{Answer: saved, Score: score}
		return nil
	})
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("submit answer: %w", err)
	}

	verdict := "incorrect"
	if result.Answer.IsCorrect {
		verdict = "correct"
	}
	s.audit.Record(ctx, domain.ActivityLog{
		UserID:      domain.Ref(sub.UserID),
		Action:      domain.ActionSubmit,
		Table:       "answers",
		Description: fmt.Sprintf("answered question %s with %s (%s)", question.ID, sub.ChosenLabel, verdict),
	})
	s.notifier.Publish(ctx, result.Score)
	return result, nil
}

// accumulate finds or creates the score record of key and counts one answer on it.
func (s *ScoringService) accumulate(ctx context.Context, scores ScoreStore, key domain.ScoreKey, correct bool, now time.Time) (domain.ScoreRecord, error) {
	current, err := scores.FindByUserAndCategory(ctx, key)
	switch {
	case errors.Is(err, domain.ErrScoreNotFound):
		created, err := scores.CreateScore(ctx, domain.NewScoreRecord(s.newID(), key, correct, now))
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, domain.ErrScoreExists) {
			return domain.ScoreRecord{}, err
		}
		// Lost the create race to another writer; count on the winner's record.
		current, err = scores.FindByUserAndCategory(ctx, key)
		if err != nil {
			return domain.ScoreRecord{}, err
		}
	case err != nil:
		return domain.ScoreRecord{}, err
	}
	return scores.IncrementAndRecompute(ctx, current.ID, correct)
}

// CorrectAnswer overrides the correctness of an answer and recomputes the score of its
// (user, category) pair from all of that pair's answers.
func (s *ScoringService) CorrectAnswer(ctx context.Context, answerID string, isCorrect bool, reviewerID string) (domain.CorrectionResult, error) {
	if reviewerID == "" {
		return domain.CorrectionResult{}, domain.Invalid("reviewer is required")
	}
	existing, err := s.answers.GetAnswer(ctx, answerID)
	if err != nil {
		return domain.CorrectionResult{}, err
	}
	key := domain.ScoreKey{UserID: existing.UserID, CategoryID: existing.CategoryID}

	var result domain.CorrectionResult
	err = s.tx.RunInTx(ctx, key, func(ctx context.Context, tx ScoringTx) error {
		updated, err := tx.Answers().UpdateCorrection(ctx, answerID, isCorrect, reviewerID)
		if err != nil {
			return err
		}
		score, _, err := s.recompute(ctx, tx, key, domain.Ref(reviewerID))
		if err != nil {
			return err
		}
		result = domain.CorrectionResult{Answer: updated, Score: score}
		return nil
	})
	if err != nil {
		return domain.CorrectionResult{}, fmt.Errorf("correct answer: %w", err)
	}

	s.audit.Record(ctx, domain.ActivityLog{
		AdminID:     domain.Ref(reviewerID),
		UserID:      domain.Ref(existing.UserID),
		Action:      domain.ActionUpdate,
		Table:       "answers",
		Description: fmt.Sprintf("corrected answer %s to isCorrect=%t", answerID, isCorrect),
	})
	s.notifier.Publish(ctx, result.Score)
	return result, nil
}

// RecomputeScore rebuilds the score record of key from its answers.
func (s *ScoringService) RecomputeScore(ctx context.Context, key domain.ScoreKey) (domain.ScoreRecord, error) {
	var (
		score domain.ScoreRecord
		found bool
	)
	err := s.tx.RunInTx(ctx, key, func(ctx context.Context, tx ScoringTx) error {
		var err error
		score, found, err = s.recompute(ctx, tx, key, nil)
		return err
	})
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("recompute score %s: %w", key, err)
	}
	if !found {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	return score, nil
}

// ReconcileScores recomputes every score record that has answers and returns how many were rebuilt.
func (s *ScoringService) ReconcileScores(ctx context.Context) (int, error) {
	keys, err := s.answers.ScoreKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("list score keys: %w", err)
	}
	rebuilt := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return rebuilt, err
		}
		if _, err := s.RecomputeScore(ctx, key); err != nil {
			return rebuilt, err
		}
		rebuilt++
	}
	s.log.Info("scores reconciled", "count", rebuilt)
	return rebuilt, nil
}

// ListAnswers returns answers newest first.
func (s *ScoringService) ListAnswers(ctx context.Context, filter AnswerFilter) ([]domain.AnswerRecord, error) {
	return s.answers.ListAnswers(ctx, filter)
}

// recompute reports found=false when the pair has neither answers nor a record.
func (s *ScoringService) recompute(ctx context.Context, tx ScoringTx, key domain.ScoreKey, reviewerID *string) (domain.ScoreRecord, bool, error) {
	correct, incorrect, err := tx.Answers().TallyAnswers(ctx, key)
	if err != nil {
		return domain.ScoreRecord{}, false, err
	}

	current, err := tx.Scores().FindByUserAndCategory(ctx, key)
	switch {
	case errors.Is(err, domain.ErrScoreNotFound):
		if correct+incorrect == 0 {
			return domain.ScoreRecord{}, false, nil
		}
		fresh := domain.ScoreRecord{
			ID:         s.newID(),
			UserID:     key.UserID,
			CategoryID: domain.Ref(key.CategoryID),
			ReviewerID: reviewerID,
			CreatedAt:  s.now(),
		}.WithTally(correct, incorrect)
		created, err := tx.Scores().CreateScore(ctx, fresh)
		return created, err == nil, err
	case err != nil:
		return domain.ScoreRecord{}, false, err
	}

	if reviewerID == nil {
		reviewerID = current.ReviewerID
	}
	updated, err := tx.Scores().ReplaceTally(ctx, current.ID, correct, incorrect, reviewerID)
	return updated, err == nil, err
}

type nopAuditor struct{}

func (nopAuditor) Record(context.Context, domain.ActivityLog) {}

type nopNotifier struct{}

func (nopNotifier) Publish(context.Context, domain.ScoreRecord) {}
