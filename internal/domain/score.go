package domain

import "time"

// ScoreRecord is the cumulative tally of one user, usually within one category.
// A nil CategoryID is an administrative aggregate never touched by submissions.
type ScoreRecord struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	CategoryID *string   `json:"categoryId,omitempty"`
	Correct    int       `json:"correct"`
	Incorrect  int       `json:"incorrect"`
	Total      int       `json:"total"`
	Percentage int       `json:"percentage"`
	ReviewerID *string   `json:"reviewerId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Percentage returns round(100*correct/total), rounding halves up, and 0 for an empty tally.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

// NewScoreRecord builds the first record of a (user, category) pair from a single answer.
func NewScoreRecord(id string, key ScoreKey, correct bool, now time.Time) ScoreRecord {
	rec := ScoreRecord{
		ID:         id,
		UserID:     key.UserID,
		CategoryID: Ref(key.CategoryID),
		CreatedAt:  now,
	}
	return rec.Increment(correct)
}

// Increment counts one more answer and recomputes the percentage from the cumulative counts.
func (s ScoreRecord) Increment(correct bool) ScoreRecord {
	if correct {
		s.Correct++
	} else {
		s.Incorrect++
	}
	s.Total = s.Correct + s.Incorrect
	s.Percentage = Percentage(s.Correct, s.Total)
	return s
}

// WithTally replaces the counts; total and percentage are derived.
func (s ScoreRecord) WithTally(correct, incorrect int) ScoreRecord {
	s.Correct = correct
	s.Incorrect = incorrect
	s.Total = correct + incorrect
	s.Percentage = Percentage(correct, s.Total)
	return s
}

// Consistent reports whether the record satisfies total = correct + incorrect and the percentage rule.
func (s ScoreRecord) Consistent() bool {
	return s.Correct >= 0 && s.Incorrect >= 0 &&
		s.Total == s.Correct+s.Incorrect &&
		s.Percentage == Percentage(s.Correct, s.Total)
}

// Key returns the (user, category) pair of the record; category is empty for aggregates.
func (s ScoreRecord) Key() ScoreKey {
	key := ScoreKey{UserID: s.UserID}
	if s.CategoryID != nil {
		key.CategoryID = *s.CategoryID
	}
	return key
}
