package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiz-platform/internal/auth"
	"quiz-platform/internal/domain"
)

// UserStore persists quiz takers. Names are unique.
type UserStore interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	FindUserByName(ctx context.Context, name string) (domain.User, error)
	// CreateUser returns an error wrapping domain.ErrConflict when the name is taken.
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)
	UpdateUser(ctx context.Context, user domain.User) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// AdminStore persists admin accounts. Emails are stored lowercase and unique.
type AdminStore interface {
	GetAdmin(ctx context.Context, id string) (domain.Admin, error)
	FindAdminByEmail(ctx context.Context, email string) (domain.Admin, error)
	// CreateAdmin returns domain.ErrEmailTaken for a duplicate email.
	CreateAdmin(ctx context.Context, admin domain.Admin) (domain.Admin, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// TokenIssuer mints bearer tokens for authenticated callers.
type TokenIssuer interface {
	IssueAdminToken(adminID string) (string, error)
	IssueUserToken(userID string) (string, error)
}

// AdminSession is the result of a successful admin login.
type AdminSession struct {
	Token string       `json:"token"`
	Admin domain.Admin `json:"admin"`
}

// UserSession is the result of a user login.
type UserSession struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// AccountService handles logins and account management.
type AccountService struct {
	users  UserStore
	admins AdminStore
	tokens TokenIssuer
	audit  Auditor
	now    func() time.Time
}

func NewAccountService(users UserStore, admins AdminStore, tokens TokenIssuer, audit Auditor) *AccountService {
	if audit == nil {
		audit = nopAuditor{}
	}
	return &AccountService{users: users, admins: admins, tokens: tokens, audit: audit, now: time.Now}
}

// AdminLogin verifies credentials and returns a signed admin token.
func (s *AccountService) AdminLogin(ctx context.Context, email, password string) (AdminSession, error) {
	admin, err := s.admins.FindAdminByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrAdminNotFound) {
		return AdminSession{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return AdminSession{}, err
	}
	if !auth.CheckPassword(admin.PasswordHash, password) {
		return AdminSession{}, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueAdminToken(admin.ID)
	if err != nil {
		return AdminSession{}, err
	}
	now := s.now()
	if err := s.admins.TouchLastLogin(ctx, admin.ID, now); err != nil {
		return AdminSession{}, err
	}
	admin.LastLoginAt = &now
	recordAdmin(ctx, s.audit, admin.ID, domain.ActionLogin, "admins", fmt.Sprintf("admin %s logged in", admin.Email))
	return AdminSession{Token: token, Admin: admin}, nil
}

// UserLogin finds or creates the user with the given name and returns a user token.
func (s *AccountService) UserLogin(ctx context.Context, name string) (UserSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return UserSession{}, domain.Invalid("name is required")
	}
	user, err := s.findOrCreateUser(ctx, name)
	if err != nil {
		return UserSession{}, err
	}
	token, err := s.tokens.IssueUserToken(user.ID)
	if err != nil {
		return UserSession{}, err
	}
	s.audit.Record(ctx, domain.ActivityLog{
		UserID:      domain.Ref(user.ID),
		Action:      domain.ActionLogin,
		Table:       "users",
		Description: fmt.Sprintf("user %s logged in", user.Name),
	})
	return UserSession{Token: token, User: user}, nil
}

func (s *AccountService) findOrCreateUser(ctx context.Context, name string) (domain.User, error) {
	user, err := s.users.FindUserByName(ctx, name)
	if err == nil || !errors.Is(err, domain.ErrUserNotFound) {
		return user, err
	}
	user, err = s.users.CreateUser(ctx, domain.User{ID: uuid.NewString(), Name: name, CreatedAt: s.now()})
	if errors.Is(err, domain.ErrConflict) {
		return s.users.FindUserByName(ctx, name)
	}
	return user, err
}

// EnsureAdmin creates the admin unless one with the same email exists. It reports whether it created one.
func (s *AccountService) EnsureAdmin(ctx context.Context, name, email, password string) (bool, error) {
	_, err := s.CreateAdmin(ctx, name, email, password)
	if errors.Is(err, domain.ErrEmailTaken) {
		return false, nil
	}
	return err == nil, err
}

func (s *AccountService) CreateAdmin(ctx context.Context, name, email, password string) (domain.Admin, error) {
	email = normalizeEmail(email)
	if strings.TrimSpace(name) == "" || email == "" {
		return domain.Admin{}, domain.Invalid("name and email are required")
	}
	if len(password) < 6 {
		return domain.Admin{}, domain.Invalid("password must be at least 6 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.Admin{}, err
	}
	return s.admins.CreateAdmin(ctx, domain.Admin{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	})
}

func (s *AccountService) GetAdmin(ctx context.Context, id string) (domain.Admin, error) {
	return s.admins.GetAdmin(ctx, id)
}

func (s *AccountService) ListUsers(ctx context.Context, actorID string) ([]domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionView, "users", "listed users")
	return users, nil
}

func (s *AccountService) GetUser(ctx context.Context, actorID, id string) (domain.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionView, "users", fmt.Sprintf("viewed user %s", id))
	return user, nil
}

func (s *AccountService) RenameUser(ctx context.Context, actorID, id, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, domain.Invalid("name is required")
	}
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	user.Name = name
	updated, err := s.users.UpdateUser(ctx, user)
	if err != nil {
		return domain.User{}, err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionUpdate, "users", fmt.Sprintf("renamed user %s", id))
	return updated, nil
}

// DeleteUser removes the account only; answers and scores stay for the audit trail.
func (s *AccountService) DeleteUser(ctx context.Context, actorID, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	recordAdmin(ctx, s.audit, actorID, domain.ActionDelete, "users", fmt.Sprintf("deleted user %s", id))
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
