package memory

import (
	"context"
	"sort"
	"sync"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

// CatalogStore keeps categories and questions in process.
type CatalogStore struct {
	mu         sync.RWMutex
	categories map[string]domain.Category
	questions  map[string]domain.Question
}

func NewCatalogStore() *CatalogStore {
	return &CatalogStore{
		categories: make(map[string]domain.Category),
		questions:  make(map[string]domain.Question),
	}
}

func (s *CatalogStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
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

func (s *CatalogStore) GetCategory(_ context.Context, id string) (domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	return c, nil
}

func (s *CatalogStore) CreateCategory(_ context.Context, category domain.Category) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.ID] = category
	return category, nil
}

func (s *CatalogStore) UpdateCategory(_ context.Context, category domain.Category) (domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[category.ID]; !ok {
		return domain.Category{}, domain.ErrCategoryNotFound
	}
	s.categories[category.ID] = category
	return category, nil
}

func (s *CatalogStore) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return domain.ErrCategoryNotFound
	}
	delete(s.categories, id)
	return nil
}

func (s *CatalogStore) FindQuestion(_ context.Context, id string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *CatalogStore) ListQuestions(_ context.Context, filter app.QuestionFilter) ([]domain.Question, error) {
	s.mu.RLock()
	out := make([]domain.Question, 0, len(s.questions))
	for _, q := range s.questions {
		if filter.CategoryID != "" && q.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Status != "" && q.Status != filter.Status {
			continue
		}
		out = append(out, q)
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

func (s *CatalogStore) CreateQuestion(_ context.Context, question domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[question.ID] = question
	return question, nil
}

func (s *CatalogStore) UpdateQuestion(_ context.Context, question domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[question.ID]; !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	s.questions[question.ID] = question
	return question, nil
}

func (s *CatalogStore) DeleteQuestion(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(s.questions, id)
	return nil
}
