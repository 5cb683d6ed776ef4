package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType discriminates what a notification is about.
type NotificationType string

const (
	NotificationLike          NotificationType = "like"
	NotificationComment       NotificationType = "comment"
	NotificationAttend        NotificationType = "attend"
	NotificationFollowRequest NotificationType = "follow_request"
)

// Notification is one entry in a user's inbox.
//
// Notifications form an append-mostly log keyed by recipient: they are
// created by the fan-out on likes/comments/attendance/follow requests,
// flipped to read, and never deleted. Event is nil for follow_request
// notifications. Comment holds a snapshot of the comment text at the time
// it was written; later edits to the event do not touch it.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Recipient primitive.ObjectID  `bson:"recipient" json:"recipient"`
	Sender    primitive.ObjectID  `bson:"sender" json:"sender"`
	Type      NotificationType    `bson:"type" json:"type"`
	Event     *primitive.ObjectID `bson:"event,omitempty" json:"event,omitempty"`
	Comment   string              `bson:"comment,omitempty" json:"comment,omitempty"`
	Read      bool                `bson:"read" json:"read"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}
