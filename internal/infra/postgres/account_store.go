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

type userModel struct {
	bun.BaseModel `bun:"table:users"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

func (m userModel) toDomain() domain.User {
	return domain.User{ID: m.ID, Name: m.Name, CreatedAt: m.CreatedAt}
}

type adminModel struct {
	bun.BaseModel `bun:"table:admins"`

	ID           string     `bun:"id,pk"`
	Name         string     `bun:"name,notnull"`
	Email        string     `bun:"email,notnull"`
	PasswordHash string     `bun:"password_hash,notnull"`
	LastLoginAt  *time.Time `bun:"last_login_at"`
	CreatedAt    time.Time  `bun:"created_at,notnull"`
}

func (m adminModel) toDomain() domain.Admin {
	return domain.Admin{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		LastLoginAt:  m.LastLoginAt,
		CreatedAt:    m.CreatedAt,
	}
}

type activityModel struct {
	bun.BaseModel `bun:"table:activity_logs"`

	ID          string    `bun:"id,pk"`
	AdminID     *string   `bun:"admin_id"`
	UserID      *string   `bun:"user_id"`
	Action      string    `bun:"action,notnull"`
	TableRef    string    `bun:"table_name,notnull"`
	Description string    `bun:"description,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

func (m activityModel) toDomain() domain.ActivityLog {
	return domain.ActivityLog{
		ID:          m.ID,
		AdminID:     m.AdminID,
		UserID:      m.UserID,
		Action:      domain.ActivityAction(m.Action),
		Table:       m.TableRef,
		Description: m.Description,
		CreatedAt:   m.CreatedAt,
	}
}

// AccountStore persists users, admins and the activity trail with bun.
type AccountStore struct {
	db *bun.DB
}

func NewAccountStore(db *bun.DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	var rows []userModel
	if err := s.db.NewSelect().Model(&rows).Order("created_at DESC", "id").Scan(ctx); err != nil {
		return nil, domain.Persistence("list users", err)
	}
	out := make([]domain.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *AccountStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *AccountStore) FindUserByName(ctx context.Context, name string) (domain.User, error) {
	return s.findUser(ctx, "name = ?", name)
}

func (s *AccountStore) findUser(ctx context.Context, where string, arg string) (domain.User, error) {
	var row userModel
	err := s.db.NewSelect().Model(&row).Where(where, arg).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, domain.Persistence("get user", err)
	}
	return row.toDomain(), nil
}

func (s *AccountStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	_, err := s.db.NewInsert().Model(&userModel{ID: u.ID, Name: u.Name, CreatedAt: u.CreatedAt}).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.User{}, fmt.Errorf("user name %q: %w", u.Name, domain.ErrConflict)
	}
	if err != nil {
		return domain.User{}, domain.Persistence("insert user", err)
	}
	return u, nil
}

func (s *AccountStore) UpdateUser(ctx context.Context, u domain.User) (domain.User, error) {
	res, err := s.db.NewUpdate().Model(&userModel{ID: u.ID, Name: u.Name}).Column("name").WherePK().Exec(ctx)
	if isUniqueViolation(err) {
		return domain.User{}, fmt.Errorf("user name %q: %w", u.Name, domain.ErrConflict)
	}
	if err != nil {
		return domain.User{}, domain.Persistence("update user", err)
	}
	if err := checkAffected(res, domain.ErrUserNotFound); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *AccountStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.NewDelete().Model((*userModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return domain.Persistence("delete user", err)
	}
	return checkAffected(res, domain.ErrUserNotFound)
}

func (s *AccountStore) GetAdmin(ctx context.Context, id string) (domain.Admin, error) {
	return s.findAdmin(ctx, "id = ?", id)
}

func (s *AccountStore) FindAdminByEmail(ctx context.Context, email string) (domain.Admin, error) {
	return s.findAdmin(ctx, "email = ?", email)
}

func (s *AccountStore) findAdmin(ctx context.Context, where string, arg string) (domain.Admin, error) {
	var row adminModel
	err := s.db.NewSelect().Model(&row).Where(where, arg).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Admin{}, domain.ErrAdminNotFound
	}
	if err != nil {
		return domain.Admin{}, domain.Persistence("get admin", err)
	}
	return row.toDomain(), nil
}

func (s *AccountStore) CreateAdmin(ctx context.Context, a domain.Admin) (domain.Admin, error) {
	_, err := s.db.NewInsert().Model(&adminModel{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		PasswordHash: a.PasswordHash,
		LastLoginAt:  a.LastLoginAt,
		CreatedAt:    a.CreatedAt,
	}).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.Admin{}, domain.ErrEmailTaken
	}
	if err != nil {
		return domain.Admin{}, domain.Persistence("insert admin", err)
	}
	return a, nil
}

func (s *AccountStore) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.NewUpdate().
		Model((*adminModel)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return domain.Persistence("touch admin login", err)
	}
	return checkAffected(res, domain.ErrAdminNotFound)
}

func (s *AccountStore) CreateActivity(ctx context.Context, e domain.ActivityLog) error {
	_, err := s.db.NewInsert().Model(&activityModel{
		ID:          e.ID,
		AdminID:     e.AdminID,
		UserID:      e.UserID,
		Action:      string(e.Action),
		TableRef:    e.Table,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}).Exec(ctx)
	if err != nil {
		return domain.Persistence("insert activity", err)
	}
	return nil
}

func (s *AccountStore) ListActivity(ctx context.Context, filter app.ActivityFilter) ([]domain.ActivityLog, error) {
	var rows []activityModel
	q := s.db.NewSelect().Model(&rows)
	if filter.AdminID != "" {
		q = q.Where("admin_id = ?", filter.AdminID)
	}
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		q = q.Where("action = ?", string(filter.Action))
	}
	if filter.Table != "" {
		q = q.Where("table_name = ?", filter.Table)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Order("created_at DESC", "id").Scan(ctx); err != nil {
		return nil, domain.Persistence("list activity", err)
	}
	out := make([]domain.ActivityLog, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}
