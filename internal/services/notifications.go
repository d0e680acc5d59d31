package services

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/anonto42/nano-social/backend/internal/apperrors"
	"github.com/anonto42/nano-social/backend/internal/metrics"
	"github.com/anonto42/nano-social/backend/internal/models"
	"github.com/anonto42/nano-social/backend/internal/realtime"
	"github.com/anonto42/nano-social/backend/internal/repositories"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Deliverer pushes an event to a user's live sessions without blocking.
type Deliverer interface {
	Deliver(userID primitive.ObjectID, event realtime.Event) int
}

// UnreadCache caches unread counts. Implementations log their own failures.
type UnreadCache interface {
	Get(ctx context.Context, userID string) (int64, bool)
	Set(ctx context.Context, userID string, count int64)
	Invalidate(ctx context.Context, userID string)
}

// unreadStripes is the number of version counters recipients are spread over.
const unreadStripes = 64

// NotificationService persists notifications and fans them out to live sessions.
type NotificationService struct {
	repo   repositories.NotificationRepository
	live   Deliverer
	unread UnreadCache

	// version(user) moves on every write to a user's unread state;
	// UnreadCount only caches a count when its stripe did not move meanwhile.
	versions [unreadStripes]atomic.Uint64
}

// NewNotificationService wires the fan-out. live and unread may be nil.
func NewNotificationService(repo repositories.NotificationRepository, live Deliverer, unread UnreadCache) *NotificationService {
	return &NotificationService{repo: repo, live: live, unread: unread}
}

// Emit stores n and then attempts live delivery to the recipient.
// Self-notifications are dropped. The record is written before any delivery
// so a missed live push is still readable later.
func (s *NotificationService) Emit(ctx context.Context, n *models.Notification) error {
	if n.ActorID == n.RecipientID {
		return nil
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.IsRead = false

	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return apperrors.Internal("failed to store notification", err)
	}
	metrics.NotificationsEmitted.WithLabelValues(string(n.Kind)).Inc()

	s.unreadChanged(ctx, n.RecipientID)
	if s.live != nil {
		s.live.Deliver(n.RecipientID, realtime.Event{Event: realtime.EventNotification, Data: n})
	}
	return nil
}

// notify is Emit for engagement side effects: failures are logged, never returned.
func (s *NotificationService) notify(ctx context.Context, n *models.Notification) {
	if err := s.Emit(ctx, n); err != nil {
		log.WithFields(log.Fields{
			"kind":      n.Kind,
			"recipient": n.RecipientID.Hex(),
			"actor":     n.ActorID.Hex(),
		}).Errorf("Error emitting notification: %s", err)
	}
}

// List returns userID's notifications newest first. limit <= 0 or above the
// cap falls back to the cap.
func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > models.MaxNotificationLimit {
		limit = models.DefaultNotificationLimit
	}
	if offset < 0 {
		offset = 0
	}
	notifications, err := s.repo.ListByRecipient(ctx, userID, int64(limit), int64(offset))
	if err != nil {
		return nil, apperrors.Internal("failed to list notifications", err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	if s.unread != nil {
		if count, ok := s.unread.Get(ctx, userID.Hex()); ok {
			return count, nil
		}
	}
	version := s.version(userID).Load()
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal("failed to count notifications", err)
	}
	if s.unread != nil && s.version(userID).Load() == version {
		s.unread.Set(ctx, userID.Hex(), count)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	if err := s.repo.MarkAsRead(ctx, userID, notificationID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.NotFound("notification not found")
		}
		return apperrors.Internal("failed to update notification", err)
	}
	s.unreadChanged(ctx, userID)
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) error {
	if err := s.repo.MarkAllAsRead(ctx, userID); err != nil {
		return apperrors.Internal("failed to update notifications", err)
	}
	s.unreadChanged(ctx, userID)
	return nil
}

func (s *NotificationService) version(userID primitive.ObjectID) *atomic.Uint64 {
	return &s.versions[int(userID[len(userID)-1])%unreadStripes]
}

// unreadChanged bumps the user's version and drops the cached count.
func (s *NotificationService) unreadChanged(ctx context.Context, userID primitive.ObjectID) {
	s.version(userID).Add(1)
	if s.unread != nil {
		s.unread.Invalidate(ctx, userID.Hex())
	}
}
