package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"quiz-platform/internal/app"
	"quiz-platform/internal/domain"
)

// AccountStore keeps users, admins and the activity trail in process.
type AccountStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	admins   map[string]domain.Admin
	activity []domain.ActivityLog
}

func NewAccountStore() *AccountStore {
	return &AccountStore{
		users:  make(map[string]domain.User),
		admins: make(map[string]domain.Admin),
	}
}

func (s *AccountStore) ListUsers(_ context.Context) ([]domain.User, error) {
	s.mu.RLock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
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

func (s *AccountStore) GetUser(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *AccountStore) FindUserByName(_ context.Context, name string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Name == name {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *AccountStore) CreateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTakenLocked(user.Name, user.ID) {
		return domain.User{}, fmt.Errorf("user name %q: %w", user.Name, domain.ErrConflict)
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *AccountStore) UpdateUser(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	if s.nameTakenLocked(user.Name, user.ID) {
		return domain.User{}, fmt.Errorf("user name %q: %w", user.Name, domain.ErrConflict)
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *AccountStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *AccountStore) nameTakenLocked(name, exceptID string) bool {
	for id, u := range s.users {
		if id != exceptID && u.Name == name {
			return true
		}
	}
	return false
}

func (s *AccountStore) GetAdmin(_ context.Context, id string) (domain.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.admins[id]
	if !ok {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	return a, nil
}

func (s *AccountStore) FindAdminByEmail(_ context.Context, email string) (domain.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.admins {
		if a.Email == email {
			return a, nil
		}
	}
	return domain.Admin{}, domain.ErrAdminNotFound
}

func (s *AccountStore) CreateAdmin(_ context.Context, admin domain.Admin) (domain.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.admins {
		if a.Email == admin.Email {
			return domain.Admin{}, domain.ErrEmailTaken
		}
	}
	s.admins[admin.ID] = admin
	return admin, nil
}

func (s *AccountStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.admins[id]
	if !ok {
		return domain.ErrAdminNotFound
	}
	a.LastLoginAt = &at
	s.admins[id] = a
	return nil
}

func (s *AccountStore) CreateActivity(_ context.Context, entry domain.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, entry)
	return nil
}

// ListActivity returns entries newest first.
func (s *AccountStore) ListActivity(_ context.Context, filter app.ActivityFilter) ([]domain.ActivityLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActivityLog, 0)
	for i := len(s.activity) - 1; i >= 0; i-- {
		entry := s.activity[i]
		if filter.AdminID != "" && (entry.AdminID == nil || *entry.AdminID != filter.AdminID) {
			continue
		}
		if filter.UserID != "" && (entry.UserID == nil || *entry.UserID != filter.UserID) {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		if filter.Table != "" && entry.Table != filter.Table {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
