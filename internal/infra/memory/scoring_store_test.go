package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	store := NewScoringStore()
	ctx := context.Background()
	key := domain.ScoreKey{UserID: "u1", CategoryID: "c1"}
	boom := errors.New("boom")

	err := store.RunInTx(ctx, key, func(ctx context.Context, tx app.ScoringTx) error {
		if _, err := tx.Answers().CreateAnswer(ctx, domain.AnswerRecord{ID: "a1", UserID: "u1", CategoryID: "c1", IsCorrect: true}); err != nil {
			return err
		}
		if _, err := tx.Scores().CreateScore(ctx, domain.NewScoreRecord("s1", key, true, time.Now())); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := store.GetAnswer(ctx, "a1"); !errors.Is(err, domain.ErrAnswerNotFound) {
		t.Fatalf("expected answer rolled back, got %v", err)
	}
	if _, err := store.FindByUserAndCategory(ctx, key); !errors.Is(err, domain.ErrScoreNotFound) {
		t.Fatalf("expected score rolled back, got %v", err)
	}
}

func TestRunInTxRestoresPreviousValues(t *testing.T) {
	store := NewScoringStore()
	ctx := context.Background()
	key := domain.ScoreKey{UserID: "u1", CategoryID: "c1"}
	seed := domain.NewScoreRecord("s1", key, true, time.Now())
	if _, err := store.CreateScore(ctx, seed); err != nil {
		t.Fatalf("seed score: %v", err)
	}
	if _, err := store.CreateAnswer(ctx, domain.AnswerRecord{ID: "a1", UserID: "u1", CategoryID: "c1", IsCorrect: true}); err != nil {
		t.Fatalf("seed answer: %v", err)
	}

	_ = store.RunInTx(ctx, key, func(ctx context.Context, tx app.ScoringTx) error {
		if _, err := tx.Answers().UpdateCorrection(ctx, "a1", false, "admin-1"); err != nil {
			return err
		}
		if _, err := tx.Scores().IncrementAndRecompute(ctx, "s1", false); err != nil {
			return err
		}
		if _, err := tx.Scores().ReplaceTally(ctx, "s1", 0, 5, nil); err != nil {
			return err
		}
		return errors.New("abort")
	})

	answer, _ := store.GetAnswer(ctx, "a1")
	if !answer.IsCorrect || answer.Reviewed() {
		t.Fatalf("expected answer restored, got %+v", answer)
	}
	score, _ := store.GetScore(ctx, "s1")
	if score.Correct != 1 || score.Total != 1 || score.Percentage != 100 {
		t.Fatalf("expected score restored to 1/0/1/100, got %+v", score)
	}
}

func TestCreateScoreRejectsDuplicateKey(t *testing.T) {
	store := NewScoringStore()
	ctx := context.Background()
	key := domain.ScoreKey{UserID: "u1", CategoryID: "c1"}

	if _, err := store.CreateScore(ctx, domain.NewScoreRecord("s1", key, true, time.Now())); err != nil {
		t.Fatalf("create score: %v", err)
	}
	if _, err := store.CreateScore(ctx, domain.NewScoreRecord("s2", key, false, time.Now())); !errors.Is(err, domain.ErrScoreExists) {
		t.Fatalf("expected ErrScoreExists, got %v", err)
	}

	aggregate := domain.ScoreRecord{ID: "s3", UserID: "u1"}.WithTally(3, 1)
	if _, err := store.CreateScore(ctx, aggregate); err != nil {
		t.Fatalf("category-less aggregate must not collide: %v", err)
	}
	scores, _ := store.ListScores(ctx, app.ScoreFilter{UserID: "u1", CategoryID: "c1"})
	if len(scores) != 1 || scores[0].ID != "s1" {
		t.Fatalf("expected category filter to return s1 only, got %+v", scores)
	}
}

func TestTallyAndScoreKeys(t *testing.T) {
	store := NewScoringStore()
	ctx := context.Background()
	answers := []domain.AnswerRecord{
		{ID: "a1", UserID: "u1", CategoryID: "c1", IsCorrect: true},
		{ID: "a2", UserID: "u1", CategoryID: "c1", IsCorrect: false},
		{ID: "a3", UserID: "u1", CategoryID: "c2", IsCorrect: true},
		{ID: "a4", UserID: "u2", CategoryID: "c1", IsCorrect: true},
	}
	for _, a := range answers {
		if _, err := store.CreateAnswer(ctx, a); err != nil {
			t.Fatalf("create answer: %v", err)
		}
	}

	correct, incorrect, err := store.TallyAnswers(ctx, domain.ScoreKey{UserID: "u1", CategoryID: "c1"})
	if err != nil || correct != 1 || incorrect != 1 {
		t.Fatalf("expected 1/1, got %d/%d err=%v", correct, incorrect, err)
	}
	keys, _ := store.ScoreKeys(ctx)
	if len(keys) != 3 {
		t.Fatalf("expected 3 keys, got %+v", keys)
	}
}

func TestCanceledContextFailsWrites(t *testing.T) {
	store := NewScoringStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.RunInTx(ctx, domain.ScoreKey{UserID: "u1", CategoryID: "c1"}, func(context.Context, app.ScoringTx) error {
		t.Fatalf("fn must not run on a canceled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunInTxGivesUpWaitingAtDeadline(t *testing.T) {
	store := NewScoringStore()
	key := domain.ScoreKey{UserID: "u1", CategoryID: "c1"}

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.RunInTx(context.Background(), key, func(context.Context, app.ScoringTx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := store.RunInTx(ctx, key, func(context.Context, app.ScoringTx) error {
		t.Errorf("fn must not run while the key is held")
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("RunInTx blocked %v past its deadline", waited)
	}
}
