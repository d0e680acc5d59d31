package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationKind string

const (
	NotificationLike    NotificationKind = "like"
	NotificationComment NotificationKind = "comment"
	NotificationFollow  NotificationKind = "follow"
)

const (
	DefaultNotificationLimit = 50
	MaxNotificationLimit     = 50
)

// Notification is created only as a side effect of an engagement event.
// ActorHandle is a snapshot taken when the event happened.
type Notification struct {
	ID          primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	RecipientID primitive.ObjectID  `json:"recipient_id" bson:"recipient_id"`
	ActorID     primitive.ObjectID  `json:"actor_id" bson:"actor_id"`
	ActorHandle string              `json:"actor_handle" bson:"actor_handle"`
	Kind        NotificationKind    `json:"kind" bson:"kind"`
	PostID      *primitive.ObjectID `json:"post_id,omitempty" bson:"post_id,omitempty"`
	Text        string              `json:"text,omitempty" bson:"text,omitempty"`
	IsRead      bool                `json:"is_read" bson:"is_read"`
	CreatedAt   time.Time           `json:"created_at" bson:"created_at"`
}
