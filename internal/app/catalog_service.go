package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-platform/internal/domain"
)

// CategoryStore persists categories.
type CategoryStore interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// QuestionFilter narrows question listings; empty fields match everything.
type QuestionFilter struct {
	CategoryID string
	Status     domain.QuestionStatus
}

// QuestionRepository is the backing store of questions.
type QuestionRepository interface {
	QuestionStore
	ListQuestions(ctx context.Context, filter QuestionFilter) ([]domain.Question, error)
	CreateQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	UpdateQuestion(ctx context.Context, question domain.Question) (domain.Question, error)
	DeleteQuestion(ctx context.Context, id string) error
}

// QuestionCache drops cached copies of a question after it changes.
type QuestionCache interface {
	Invalidate(ctx context.Context, questionID string)
}

// CatalogService manages categories and questions.
type CatalogService struct {
	categories CategoryStore
	questions  QuestionRepository
	cache      QuestionCache
	audit      Auditor
	now        func() time.Time
}

func NewCatalogService(categories CategoryStore, questions QuestionRepository, cache QuestionCache, audit Auditor) *CatalogService {
	if cache == nil {
		cache = nopCache{}
	}
	if audit == nil {
		audit = nopAuditor{}
	}
	return &CatalogService{categories: categories, questions: questions, cache: cache, audit: audit, now: time.Now}
}

func (s *CatalogService) ListCategories(ctx context.Context, actorID string) ([]domain.Category, error) {
	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionView, "categories", "listed categories")
	return categories, nil
}

func (s *CatalogService) CreateCategory(ctx context.Context, actorID, name, imageURL string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.Invalid("category name is required")
	}
	created, err := s.categories.CreateCategory(ctx, domain.Category{
		ID:        uuid.NewString(),
		Name:      name,
		ImageURL:  imageURL,
		CreatedBy: actorID,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Category{}, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionInsert, "categories", fmt.Sprintf("created category %s", created.ID))
	return created, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, actorID, id, name, imageURL string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, domain.Invalid("category name is required")
	}
	current, err := s.categories.GetCategory(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}
	current.Name = name
	current.ImageURL = imageURL
	updated, err := s.categories.UpdateCategory(ctx, current)
	if err != nil {
		return domain.Category{}, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionUpdate, "categories", fmt.Sprintf("updated category %s", id))
	return updated, nil
}

// DeleteCategory refuses to orphan questions.
func (s *CatalogService) DeleteCategory(ctx context.Context, actorID, id string) error {
	if _, err := s.categories.GetCategory(ctx, id); err != nil {
		return err
	}
	questions, err := s.questions.ListQuestions(ctx, QuestionFilter{CategoryID: id})
	if err != nil {
		return err
	}
	if len(questions) > 0 {
		return fmt.Errorf("category %s still has %d questions: %w", id, len(questions), domain.ErrConflict)
	}
	if err := s.categories.DeleteCategory(ctx, id); err != nil {
		return err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionDelete, "categories", fmt.Sprintf("deleted category %s", id))
	return nil
}

func (s *CatalogService) ListQuestions(ctx context.Context, actorID string, filter QuestionFilter) ([]domain.Question, error) {
	questions, err := s.questions.ListQuestions(ctx, filter)
	if err != nil {
		return nil, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionView, "questions", "listed questions")
	return questions, nil
}

// ListActiveQuestions is the quiz taker's view of a category.
func (s *CatalogService) ListActiveQuestions(ctx context.Context, categoryID string) ([]domain.Question, error) {
	if categoryID == "" {
		return nil, domain.Invalid("categoryId is required")
	}
	return s.questions.ListQuestions(ctx, QuestionFilter{CategoryID: categoryID, Status: domain.StatusActive})
}

func (s *CatalogService) GetQuestion(ctx context.Context, actorID, id string) (domain.Question, error) {
	question, err := s.questions.FindQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionView, "questions", fmt.Sprintf("viewed question %s", id))
	return question, nil
}

func (s *CatalogService) CreateQuestion(ctx context.Context, actorID string, question domain.Question) (domain.Question, error) {
	if question.Status == "" {
		question.Status = domain.StatusDraft
	}
	if err := question.Validate(); err != nil {
		return domain.Question{}, err
	}
	if _, err := s.categories.GetCategory(ctx, question.CategoryID); err != nil {
		return domain.Question{}, err
	}
	question.ID = uuid.NewString()
	question.CreatedBy = actorID
	question.CreatedAt = s.now()

	created, err := s.questions.CreateQuestion(ctx, question)
	if err != nil {
		return domain.Question{}, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionInsert, "questions", fmt.Sprintf("created question %s", created.ID))
	return created, nil
}

// UpdateQuestion replaces the editable fields of a question. Existing answers keep the
// correctness and category they were scored with.
func (s *CatalogService) UpdateQuestion(ctx context.Context, actorID, id string, changes domain.Question) (domain.Question, error) {
	current, err := s.questions.FindQuestion(ctx, id)
	if err != nil {
		return domain.Question{}, err
	}
	if changes.Status == "" {
		changes.Status = current.Status
	}
	changes.ID = current.ID
	changes.CreatedBy = current.CreatedBy
	changes.CreatedAt = current.CreatedAt
	if err := changes.Validate(); err != nil {
		return domain.Question{}, err
	}
	if changes.CategoryID != current.CategoryID {
		if _, err := s.categories.GetCategory(ctx, changes.CategoryID); err != nil {
			return domain.Question{}, err
		}
	}

	updated, err := s.questions.UpdateQuestion(ctx, changes)
	if err != nil {
		return domain.Question{}, err
	}
	s.cache.Invalidate(ctx, id)
	recordAdmin(ctx, s.audit, actorID, domain.ActionUpdate, "questions", fmt.Sprintf("updated question %s", id))
	return updated, nil
}

func (s *CatalogService) DeleteQuestion(ctx context.Context, actorID, id string) error {
	if err := s.questions.DeleteQuestion(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx, id)
	recordAdmin(ctx, s.audit, actorID, domain.ActionDelete, "questions", fmt.Sprintf("deleted question %s", id))
	return nil
}

// recordAdmin audits an admin action; anonymous calls are not audited.
func recordAdmin(ctx context.Context, audit Auditor, adminID string, action domain.ActivityAction, table, description string) {
	if adminID == "" {
		return
	}
	audit.Record(ctx, domain.ActivityLog{
		AdminID:     domain.Ref(adminID),
		Action:      action,
		Table:       table,
		Description: description,
	})
}

type nopCache struct{}

func (nopCache) Invalidate(context.Context, string) {}
