package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/anonto42/nano-social/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"
)

// NotificationRecord is the relational row for a notification. Ids are stored
// as hex strings so they line up with the document store.
type NotificationRecord struct {
	ID          string    `gorm:"primaryKey;size:24"`
	RecipientID string    `gorm:"size:24;index:idx_notifications_recipient_created,priority:1"`
	ActorID     string    `gorm:"size:24"`
	ActorHandle string    `gorm:"size:30"`
	Kind        string    `gorm:"size:20"`
	PostID      *string   `gorm:"size:24"`
	Text        string    `gorm:"size:2000"`
	IsRead      bool      `gorm:"default:false;index"`
	CreatedAt   time.Time `gorm:"index:idx_notifications_recipient_created,priority:2"`
}

func (NotificationRecord) TableName() string { return "notifications" }

type postgresNotificationRepository struct {
	db *gorm.DB
}

func NewPostgresNotificationRepository(db *gorm.DB) NotificationRepository {
	return &postgresNotificationRepository{db: db}
}

// MigrateNotifications creates or updates the notifications table.
func MigrateNotifications(db *gorm.DB) error {
	if err := db.AutoMigrate(&NotificationRecord{}); err != nil {
		return fmt.Errorf("migrate notifications: %w", err)
	}
	return nil
}

func (r *postgresNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	notification.ID = primitive.NewObjectID()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	record := toRecord(notification)
	return r.db.WithContext(ctx).Create(&record).Error
}

func (r *postgresNotificationRepository) ListByRecipient(ctx context.Context, recipientID primitive.ObjectID, limit, offset int64) ([]models.Notification, error) {
	var records []NotificationRecord
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID.Hex()).
		Order("created_at DESC").Order("id DESC").
		Offset(int(offset)).Limit(int(limit)).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	notifications := make([]models.Notification, 0, len(records))
	for _, rec := range records {
		n, err := fromRecord(rec)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

func (r *postgresNotificationRepository) CountUnread(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&NotificationRecord{}).
		Where("recipient_id = ? AND is_read = ?", recipientID.Hex(), false).
		Count(&count).Error
	return count, err
}

func (r *postgresNotificationRepository) MarkAsRead(ctx context.Context, recipientID, notificationID primitive.ObjectID) error {
	res := r.db.WithContext(ctx).Model(&NotificationRecord{}).
		Where("id = ? AND recipient_id = ?", notificationID.Hex(), recipientID.Hex()).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// some drivers only count rows whose value changed
		var count int64
		if err := r.db.WithContext(ctx).Model(&NotificationRecord{}).
			Where("id = ? AND recipient_id = ?", notificationID.Hex(), recipientID.Hex()).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}

func (r *postgresNotificationRepository) MarkAllAsRead(ctx context.Context, recipientID primitive.ObjectID) error {
	return r.db.WithContext(ctx).Model(&NotificationRecord{}).
		Where("recipient_id = ? AND is_read = ?", recipientID.Hex(), false).
		Update("is_read", true).Error
}

func toRecord(n *models.Notification) NotificationRecord {
	rec := NotificationRecord{
		ID:          n.ID.Hex(),
		RecipientID: n.RecipientID.Hex(),
		ActorID:     n.ActorID.Hex(),
		ActorHandle: n.ActorHandle,
		Kind:        string(n.Kind),
		Text:        n.Text,
		IsRead:      n.IsRead,
		CreatedAt:   n.CreatedAt,
	}
	if n.PostID != nil {
		postID := n.PostID.Hex()
		rec.PostID = &postID
	}
	return rec
}

func fromRecord(rec NotificationRecord) (models.Notification, error) {
	var n models.Notification
	var err error
	if n.ID, err = primitive.ObjectIDFromHex(rec.ID); err != nil {
		return n, fmt.Errorf("notification %q: %w", rec.ID, err)
	}
	if n.RecipientID, err = primitive.ObjectIDFromHex(rec.RecipientID); err != nil {
		return n, fmt.Errorf("notification %q recipient: %w", rec.ID, err)
	}
	if n.ActorID, err = primitive.ObjectIDFromHex(rec.ActorID); err != nil {
		return n, fmt.Errorf("notification %q actor: %w", rec.ID, err)
	}
	if rec.PostID != nil {
		postID, err := primitive.ObjectIDFromHex(*rec.PostID)
		if err != nil {
			return n, fmt.Errorf("notification %q post: %w", rec.ID, err)
		}
		n.PostID = &postID
	}
	n.ActorHandle = rec.ActorHandle
	n.Kind = models.NotificationKind(rec.Kind)
	n.Text = rec.Text
	n.IsRead = rec.IsRead
	n.CreatedAt = rec.CreatedAt
	return n, nil
}
