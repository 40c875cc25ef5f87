package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

// ScoringStore keeps answers and scores in process. RunInTx serializes work per score key and
// undoes partial writes when the unit of work fails.
type ScoringStore struct {
	locks *KeyLocks

	mu      sync.RWMutex
	answers map[string]domain.AnswerRecord
	scores  map[string]domain.ScoreRecord
	byKey   map[domain.ScoreKey]string
}

func NewScoringStore() *ScoringStore {
	return &ScoringStore{
		locks:   NewKeyLocks(),
		answers: make(map[string]domain.AnswerRecord),
		scores:  make(map[string]domain.ScoreRecord),
		byKey:   make(map[domain.ScoreKey]string),
	}
}

func (s *ScoringStore) RunInTx(ctx context.Context, key domain.ScoreKey, fn func(ctx context.Context, tx app.ScoringTx) error) error {
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()

	tx := &scoringTx{ScoringStore: s}
	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *ScoringStore) CreateAnswer(ctx context.Context, answer domain.AnswerRecord) (domain.AnswerRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnswerRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answer.ID] = answer
	return answer, nil
}

func (s *ScoringStore) GetAnswer(ctx context.Context, answerID string) (domain.AnswerRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnswerRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	answer, ok := s.answers[answerID]
	if !ok {
		return domain.AnswerRecord{}, domain.ErrAnswerNotFound
	}
	return answer, nil
}

func (s *ScoringStore) UpdateCorrection(ctx context.Context, answerID string, isCorrect bool, reviewerID string) (domain.AnswerRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.AnswerRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	answer, ok := s.answers[answerID]
	if !ok {
		return domain.AnswerRecord{}, domain.ErrAnswerNotFound
	}
	answer.IsCorrect = isCorrect
	answer.ReviewerID = domain.Ref(reviewerID)
	s.answers[answerID] = answer
	return answer, nil
}

func (s *ScoringStore) TallyAnswers(ctx context.Context, key domain.ScoreKey) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	correct, incorrect := 0, 0
	for _, answer := range s.answers {
		if answer.UserID != key.UserID || answer.CategoryID != key.CategoryID {
			continue
		}
		if answer.IsCorrect {
			correct++
		} else {
			incorrect++
		}
	}
	return correct, incorrect, nil
}

func (s *ScoringStore) ListAnswers(ctx context.Context, filter app.AnswerFilter) ([]domain.AnswerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.AnswerRecord, 0, len(s.answers))
	for _, answer := range s.answers {
		if filter.UserID != "" && answer.UserID != filter.UserID {
			continue
		}
		out = append(out, answer)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *ScoringStore) ScoreKeys(ctx context.Context) ([]domain.ScoreKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	seen := make(map[domain.ScoreKey]struct{})
	for _, answer := range s.answers {
		seen[domain.ScoreKey{UserID: answer.UserID, CategoryID: answer.CategoryID}] = struct{}{}
	}
	s.mu.RUnlock()

	keys := make([]domain.ScoreKey, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

func (s *ScoringStore) FindByUserAndCategory(ctx context.Context, key domain.ScoreKey) (domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScoreRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byKey[key]
	if !ok {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	return s.scores[id], nil
}

func (s *ScoringStore) CreateScore(ctx context.Context, score domain.ScoreRecord) (domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScoreRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if score.CategoryID != nil {
		key := score.Key()
		if _, exists := s.byKey[key]; exists {
			return domain.ScoreRecord{}, domain.ErrScoreExists
		}
		s.byKey[key] = score.ID
	}
	s.scores[score.ID] = score
	return score, nil
}

func (s *ScoringStore) IncrementAndRecompute(ctx context.Context, scoreID string, wasCorrect bool) (domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScoreRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[scoreID]
	if !ok {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	score = score.Increment(wasCorrect)
	s.scores[scoreID] = score
	return score, nil
}

func (s *ScoringStore) ReplaceTally(ctx context.Context, scoreID string, correct, incorrect int, reviewerID *string) (domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScoreRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[scoreID]
	if !ok {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	score = score.WithTally(correct, incorrect)
	score.ReviewerID = reviewerID
	s.scores[scoreID] = score
	return score, nil
}

func (s *ScoringStore) GetScore(ctx context.Context, id string) (domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScoreRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[id]
	if !ok {
		return domain.ScoreRecord{}, domain.ErrScoreNotFound
	}
	return score, nil
}

func (s *ScoringStore) ListScores(ctx context.Context, filter app.ScoreFilter) ([]domain.ScoreRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]domain.ScoreRecord, 0, len(s.scores))
	for _, score := range s.scores {
		if filter.UserID != "" && score.UserID != filter.UserID {
			continue
		}
		if filter.CategoryID != "" && score.Key().CategoryID != filter.CategoryID {
			continue
		}
		out = append(out, score)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *ScoringStore) restoreAnswer(prev domain.AnswerRecord, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existed {
		s.answers[prev.ID] = prev
	} else {
		delete(s.answers, prev.ID)
	}
}

func (s *ScoringStore) restoreScore(prev domain.ScoreRecord, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existed {
		s.scores[prev.ID] = prev
		return
	}
	delete(s.scores, prev.ID)
	if prev.CategoryID != nil && s.byKey[prev.Key()] == prev.ID {
		delete(s.byKey, prev.Key())
	}
}

// scoringTx journals every write so a failed unit of work can be undone in reverse order.
type scoringTx struct {
	*ScoringStore
	undo []func()
}

func (t *scoringTx) Answers() app.AnswerStore { return t }
func (t *scoringTx) Scores() app.ScoreStore   { return t }

func (t *scoringTx) CreateAnswer(ctx context.Context, answer domain.AnswerRecord) (domain.AnswerRecord, error) {
	saved, err := t.ScoringStore.CreateAnswer(ctx, answer)
	if err == nil {
		t.undo = append(t.undo, func() { t.restoreAnswer(saved, false) })
	}
	return saved, err
}

func (t *scoringTx) UpdateCorrection(ctx context.Context, answerID string, isCorrect bool, reviewerID string) (domain.AnswerRecord, error) {
	prev, err := t.GetAnswer(ctx, answerID)
	if err != nil {
		return domain.AnswerRecord{}, err
	}
	updated, err := t.ScoringStore.UpdateCorrection(ctx, answerID, isCorrect, reviewerID)
	if err == nil {
		t.undo = append(t.undo, func() { t.restoreAnswer(prev, true) })
	}
	return updated, err
}

func (t *scoringTx) CreateScore(ctx context.Context, score domain.ScoreRecord) (domain.ScoreRecord, error) {
	created, err := t.ScoringStore.CreateScore(ctx, score)
	if err == nil {
		t.undo = append(t.undo, func() { t.restoreScore(created, false) })
	}
	return created, err
}

func (t *scoringTx) IncrementAndRecompute(ctx context.Context, scoreID string, wasCorrect bool) (domain.ScoreRecord, error) {
	prev, err := t.GetScore(ctx, scoreID)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	updated, err := t.ScoringStore.IncrementAndRecompute(ctx, scoreID, wasCorrect)
	if err == nil {
		t.undo = append(t.undo, func() { t.restoreScore(prev, true) })
	}
	return updated, err
}

func (t *scoringTx) ReplaceTally(ctx context.Context, scoreID string, correct, incorrect int, reviewerID *string) (domain.ScoreRecord, error) {
	prev, err := t.GetScore(ctx, scoreID)
	if err != nil {
		return domain.ScoreRecord{}, err
	}
	updated, err := t.ScoringStore.ReplaceTally(ctx, scoreID, correct, incorrect, reviewerID)
	if err == nil {
		t.undo = append(t.undo, func() { t.restoreScore(prev, true) })
	}
	return updated, err
}

func (t *scoringTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}
