package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"quiz-platform/internal/domain"
)

// ScoreFilter narrows score listings; empty fields match everything.
type ScoreFilter struct {
	UserID     string
	CategoryID string
}

// ScoreRepository adds admin queries on top of the scoring store.
type ScoreRepository interface {
	ListScores(ctx context.Context, filter ScoreFilter) ([]domain.ScoreRecord, error)
	GetScore(ctx context.Context, id string) (domain.ScoreRecord, error)
}

// ScoreTally is an admin-supplied set of counts.
type ScoreTally struct {
	UserID     string
	CategoryID string
	Correct    int
	Incorrect  int
}

func (t ScoreTally) validate() error {
	if t.Correct < 0 || t.Incorrect < 0 {
		return domain.Invalid("correct and incorrect must not be negative")
	}
	return nil
}

// ScoreService serves score listings and admin overrides.
type ScoreService struct {
	scores     ScoreRepository
	users      UserStore
	categories CategoryStore
	tx         TxRunner
	audit      Auditor
	notifier   ScoreNotifier
	now        func() time.Time
}

func NewScoreService(scores ScoreRepository, users UserStore, categories CategoryStore, tx TxRunner, audit Auditor, notifier ScoreNotifier) *ScoreService {
	if audit == nil {
		audit = nopAuditor{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ScoreService{scores: scores, users: users, categories: categories, tx: tx, audit: audit, notifier: notifier, now: time.Now}
}

func (s *ScoreService) ListScores(ctx context.Context, actorID string, filter ScoreFilter) ([]domain.ScoreRecord, error) {
	scores, err := s.scores.ListScores(ctx, filter)
	if err != nil {
		return nil, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionView, "scores", "listed scores")
	return scores, nil
}

// UserScores lists the category scores of one user; administrative aggregates are hidden.
func (s *ScoreService) UserScores(ctx context.Context, userID string) ([]domain.ScoreRecord, error) {
	scores, err := s.scores.ListScores(ctx, ScoreFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	visible := scores[:0]
	for _, score := range scores {
		if score.CategoryID != nil {
			visible = append(visible, score)
		}
	}
	return visible, nil
}

// CreateScore records an admin-supplied tally. The category may be empty for aggregates.
func (s *ScoreService) CreateScore(ctx context.Context, actorID string, tally ScoreTally) (domain.ScoreRecord, error) {
	if err := tally.validate(); err != nil {
		return domain.ScoreRecord{}, err
	}
	if _, err := s.users.GetUser(ctx, tally.UserID); err != nil {
		return domain.ScoreRecord{}, err
	}
	if tally.CategoryID != "" {
		if _, err := s.categories.GetCategory(ctx, tally.CategoryID); err != nil {
			return domain.ScoreRecord{}, err
		}
	}

	key := domain.ScoreKey{UserID: tally.UserID, CategoryID: tally.CategoryID}
	record := domain.ScoreRecord{
		ID:         uuid.NewString(),
		UserID:     tally.UserID,
		CategoryID: domain.Ref(tally.CategoryID),
		ReviewerID: domain.Ref(actorID),
		CreatedAt:  s.now(),
	}.WithTally(tally.Correct, tally.Incorrect)

	var created domain.ScoreRecord
	err := s.tx.RunInTx(ctx, key, func(ctx context.Context, tx ScoringTx) error {
		var err error
		created, err = tx.Scores().CreateScore(ctx, record)
		return err
	})
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("create score: %w", err)
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionInsert, "scores", fmt.Sprintf("created score %s", created.ID))
	s.notifier.Publish(ctx, created)
	return created, nil
}

// UpdateScore overwrites the counts of a record and marks the admin as reviewer.
func (s *ScoreService) UpdateScore(ctx context.Context, actorID, id string, correct, incorrect int) (domain.ScoreRecord, error) {
	if err := (ScoreTally{Correct: correct, Incorrect: incorrect}).validate(); err != nil {
		return domain.ScoreRecord{}, err
	}
	current, err := s.scores.GetScore(ctx, id)
	if err != nil {
		return domain.ScoreRecord{}, err
	}

	var updated domain.ScoreRecord
	err = s.tx.RunInTx(ctx, current.Key(), func(ctx context.Context, tx ScoringTx) error {
		var err error
		updated, err = tx.Scores().ReplaceTally(ctx, id, correct, incorrect, domain.Ref(actorID))
		return err
	})
	if err != nil {
		return domain.ScoreRecord{}, fmt.Errorf("update score: %w", err)
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionUpdate, "scores", fmt.Sprintf("updated score %s", id))
	s.notifier.Publish(ctx, updated)
	return updated, nil
}
