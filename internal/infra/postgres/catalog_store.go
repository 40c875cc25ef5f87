package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

type categoryModel struct {
	bun.BaseModel `bun:"table:categories"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	ImageURL  string    `bun:"image_url,notnull"`
	CreatedBy string    `bun:"created_by,nullzero"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (m categoryModel) toDomain() domain.Category {
	return domain.Category{ID: m.ID, Name: m.Name, ImageURL: m.ImageURL, CreatedBy: m.CreatedBy, CreatedAt: m.CreatedAt}
}

func categoryFromDomain(c domain.Category) *categoryModel {
	return &categoryModel{ID: c.ID, Name: c.Name, ImageURL: c.ImageURL, CreatedBy: c.CreatedBy, CreatedAt: c.CreatedAt}
}

type questionModel struct {
	bun.BaseModel `bun:"table:questions"`

	ID           string    `bun:"id,pk"`
	Text         string    `bun:"text,notnull"`
	OptionA      string    `bun:"option_a,notnull"`
	OptionB      string    `bun:"option_b,notnull"`
	OptionC      string    `bun:"option_c,notnull"`
	CorrectLabel string    `bun:"correct_label,notnull"`
	ImageURL     string    `bun:"image_url,notnull"`
	CategoryID   string    `bun:"category_id,notnull"`
	Status       string    `bun:"status,notnull"`
	CreatedBy    string    `bun:"created_by,nullzero"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

func (m questionModel) toDomain() domain.Question {
	return domain.Question{
		ID:           m.ID,
		Text:         m.Text,
		OptionA:      m.OptionA,
		OptionB:      m.OptionB,
		OptionC:      m.OptionC,
		CorrectLabel: domain.Label(m.CorrectLabel),
		ImageURL:     m.ImageURL,
		CategoryID:   m.CategoryID,
		Status:       domain.QuestionStatus(m.Status),
		CreatedBy:    m.CreatedBy,
		CreatedAt:    m.CreatedAt,
	}
}

func questionFromDomain(q domain.Question) *questionModel {
	return &questionModel{
		ID:           q.ID,
		Text:         q.Text,
		OptionA:      q.OptionA,
		OptionB:      q.OptionB,
		OptionC:      q.OptionC,
		CorrectLabel: string(q.CorrectLabel),
		ImageURL:     q.ImageURL,
		CategoryID:   q.CategoryID,
		Status:       string(q.Status),
		CreatedBy:    q.CreatedBy,
		CreatedAt:    q.CreatedAt,
	}
}

// CatalogStore persists categories and questions with bun.
type CatalogStore struct {
	db *bun.DB
}

func NewCatalogStore(db *bun.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

func (s *CatalogStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var rows []categoryModel
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC", "id").Scan(ctx); err != nil {
		return nil, domain.Persistence("list categories", err)
	}
	out := make([]domain.Category, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *CatalogStore) GetCategory(ctx context.Context, id string) (domain.Category, error) {
	var row categoryModel
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	if err != nil {
		return domain.Category{}, domain.Persistence("get category", err)
	}
	return row.toDomain(), nil
}

func (s *CatalogStore) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	if _, err := s.db.NewInsert().Model(categoryFromDomain(c)).Exec(ctx); err != nil {
		return domain.Category{}, domain.Persistence("insert category", err)
	}
	return c, nil
}

func (s *CatalogStore) UpdateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	res, err := s.db.NewUpdate().Model(categoryFromDomain(c)).Column("name", "image_url").WherePK().Exec(ctx)
	if err != nil {
		return domain.Category{}, domain.Persistence("update category", err)
	}
	if err := checkAffected(res, domain.ErrCategoryNotFound); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func (s *CatalogStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*categoryModel)(nil)).Where("id = ?", id).Exec(ctx)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("category %s still has questions: %w", id, domain.ErrConflict)
	}
	if err != nil {
		return domain.Persistence("delete category", err)
	}
	return checkAffected(res, domain.ErrCategoryNotFound)
}

func (s *CatalogStore) FindQuestion(ctx context.Context, id string) (domain.Question, error) {
	var row questionModel
	err := s.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, domain.Persistence("get question", err)
	}
	return row.toDomain(), nil
}

func (s *CatalogStore) ListQuestions(ctx context.Context, filter app.QuestionFilter) ([]domain.Question, error) {
	var rows []questionModel
	q := s.db.NewSelect().Model(&rows)
	if filter.CategoryID != "" {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if err := q.Order("created_at DESC", "id").Scan(ctx); err != nil {
		return nil, domain.Persistence("list questions", err)
	}
	out := make([]domain.Question, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *CatalogStore) CreateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	_, err := s.db.NewInsert().Model(questionFromDomain(q)).Exec(ctx)
	if isForeignKeyViolation(err) {
		return domain.Question{}, domain.ErrCategoryNotFound
	}
	if err != nil {
		return domain.Question{}, domain.Persistence("insert question", err)
	}
	return q, nil
}

func (s *CatalogStore) UpdateQuestion(ctx context.Context, q domain.Question) (domain.Question, error) {
	res, err := s.db.NewUpdate().
		Model(questionFromDomain(q)).
		Column("text", "option_a", "option_b", "option_c", "correct_label", "image_url", "category_id", "status").
		WherePK().
		Exec(ctx)
	if isForeignKeyViolation(err) {
		return domain.Question{}, domain.ErrCategoryNotFound
	}
	if err != nil {
		return domain.Question{}, domain.Persistence("update question", err)
	}
	if err := checkAffected(res, domain.ErrQuestionNotFound); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}

func (s *CatalogStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*questionModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return domain.Persistence("delete question", err)
	}
	return checkAffected(res, domain.ErrQuestionNotFound)
}
