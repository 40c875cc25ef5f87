package domain

import (
	"strings"
	"time"
)

// Label identifies one of the three options of a question.
type Label string

const (
	LabelA Label = "A"
	LabelB Label = "B"
	LabelC Label = "C"
)

// Valid reports whether l is one of A, B, C.
func (l Label) Valid() bool {
	switch l {
	case LabelA, LabelB, LabelC:
		return true
	}
	return false
}

// QuestionStatus controls whether users can see a question.
type QuestionStatus string

const (
	StatusDraft    QuestionStatus = "draft"
	StatusActive   QuestionStatus = "active"
	StatusInactive QuestionStatus = "inactive"
)

func (s QuestionStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive:
		return true
	}
	return false
}

// Category groups questions; owned by the admin who created it.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ImageURL  string    `json:"imageUrl"`
	CreatedBy string    `json:"createdBy,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Question is a multiple-choice item with three labeled options.
type Question struct {
	ID           string         `json:"id"`
	Text         string         `json:"text"`
	OptionA      string         `json:"optionA"`
	OptionB      string         `json:"optionB"`
	OptionC      string         `json:"optionC"`
	CorrectLabel Label          `json:"correctLabel"`
	ImageURL     string         `json:"imageUrl"`
	CategoryID   string         `json:"categoryId"`
	Status       QuestionStatus `json:"status"`
	CreatedBy    string         `json:"createdBy,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// Validate checks the content invariants of a question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return Invalid("question text is required")
	}
	if strings.TrimSpace(q.OptionA) == "" || strings.TrimSpace(q.OptionB) == "" || strings.TrimSpace(q.OptionC) == "" {
		return Invalid("options A, B and C are required")
	}
	if !q.CorrectLabel.Valid() {
		return ErrInvalidLabel
	}
	if q.CategoryID == "" {
		return Invalid("categoryId is required")
	}
	if !q.Status.Valid() {
		return Invalid("status must be one of draft, active, inactive")
	}
	return nil
}

// IsCorrect reports whether the chosen label matches the correct one.
func (q Question) IsCorrect(chosen Label) bool {
	return chosen == q.CorrectLabel
}

// User is a quiz taker; identified by name only.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Admin manages content and reviews answers.
type Admin struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// AnswerRecord is the persisted outcome of one submission.
// CategoryID is copied from the question at submission time so tallies survive question edits.
type AnswerRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	QuestionID  string    `json:"questionId"`
	CategoryID  string    `json:"categoryId"`
	ChosenLabel Label     `json:"chosenLabel"`
	IsCorrect   bool      `json:"isCorrect"`
	ReviewerID  *string   `json:"reviewerId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Reviewed reports whether an admin has corrected the answer.
func (a AnswerRecord) Reviewed() bool {
	return a.ReviewerID != nil
}

// ScoreKey identifies the per-user-per-category aggregate.
type ScoreKey struct {
	UserID     string
	CategoryID string
}

func (k ScoreKey) String() string {
	return k.UserID + "|" + k.CategoryID
}

// Submission is one answer event coming from a user.
type Submission struct {
	UserID      string
	QuestionID  string
	ChosenLabel Label
}

// SubmissionResult is the answer persisted by a submission and the score it produced.
type SubmissionResult struct {
	Answer AnswerRecord `json:"answer"`
	Score  ScoreRecord  `json:"score"`
}

// CorrectionResult is the corrected answer and the recomputed score, if any answers remain.
type CorrectionResult struct {
	Answer AnswerRecord `json:"answer"`
	Score  ScoreRecord  `json:"score"`
}

// ActivityAction enumerates audit actions.
type ActivityAction string

const (
	ActionLogin  ActivityAction = "LOGIN"
	ActionInsert ActivityAction = "INSERT"
	ActionUpdate ActivityAction = "UPDATE"
	ActionDelete ActivityAction = "DELETE"
	ActionView   ActivityAction = "VIEW"
	ActionSubmit ActivityAction = "SUBMIT"
)

// ActivityLog is one audit entry. AdminID is empty for user-driven events.
type ActivityLog struct {
	ID          string         `json:"id"`
	AdminID     *string        `json:"adminId,omitempty"`
	UserID      *string        `json:"userId,omitempty"`
	Action      ActivityAction `json:"action"`
	Table       string         `json:"table"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Ref returns a pointer to s, or nil when s is empty.
func Ref(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
