package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quiz-platform/internal/domain"
)

// DefaultActivityLimit caps activity listings when the caller gives no limit.
const DefaultActivityLimit = 100

// ActivityFilter narrows activity listings; empty fields match everything.
type ActivityFilter struct {
	AdminID string
	UserID  string
	Action  domain.ActivityAction
	Table   string
	Limit   int
}

// ActivityStore persists the audit trail.
type ActivityStore interface {
	CreateActivity(ctx context.Context, entry domain.ActivityLog) error
	ListActivity(ctx context.Context, filter ActivityFilter) ([]domain.ActivityLog, error)
}

// ActivityService writes audit entries on a best-effort basis and serves them to admins.
type ActivityService struct {
	store   ActivityStore
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

func NewActivityService(store ActivityStore, log *slog.Logger) *ActivityService {
	if log == nil {
		log = slog.Default()
	}
	return &ActivityService{store: store, timeout: 2 * time.Second, now: time.Now, log: log}
}

// Record stores entry. Failures are logged and swallowed; a canceled request still gets audited.
func (s *ActivityService) Record(ctx context.Context, entry domain.ActivityLog) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	if err := s.store.CreateActivity(ctx, entry); err != nil {
		s.log.Warn("activity log write failed",
			"action", entry.Action,
			"table", entry.Table,
			"error", err,
		)
	}
}

// List returns activity newest first, capped at DefaultActivityLimit unless a smaller limit is set.
func (s *ActivityService) List(ctx context.Context, filter ActivityFilter) ([]domain.ActivityLog, error) {
	if filter.Limit <= 0 || filter.Limit > DefaultActivityLimit {
		filter.Limit = DefaultActivityLimit
	}
	return s.store.ListActivity(ctx, filter)
}
