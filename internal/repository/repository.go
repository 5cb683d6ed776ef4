// Package repository declares the storage interfaces the service layer
// programs against. The mongodb subpackage is the only implementation;
// tests substitute in-memory mocks.
package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/model"
)

// ProfileUpdate is a partial profile edit. Nil fields are left untouched.
// Non-nil fields are written even when empty, which is how an avatar or
// cover image gets removed.
type ProfileUpdate struct {
	Name          *string
	Avatar        *string
	CoverImage    *string
	Bio           *string
	Interests     []string
	PublicProfile *bool
}

// PreferencesUpdate is a partial feed-preferences edit.
type PreferencesUpdate struct {
	Location   *string
	Categories []string
}

// UserRepository stores user records and their social edge sets.
//
// The follow mutations are atomic: each issues conditional updates
// directly to the store ($addToSet/$pull with state filters) rather than
// read-modify-write, and the two-document operations (Follow, Unfollow,
// AcceptFollowRequest) apply both sides as one logical unit.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	GetUsersByID(ctx context.Context, ids []primitive.ObjectID) ([]model.User, error)

	// LinkGoogleID attaches a Google identity (and avatar, when the user
	// has none) to an existing account found by email.
	LinkGoogleID(ctx context.Context, id primitive.ObjectID, googleID, avatar string) error

	UpdateProfile(ctx context.Context, id primitive.ObjectID, update ProfileUpdate) (*model.User, error)
	UpdatePreferences(ctx context.Context, id primitive.ObjectID, update PreferencesUpdate) (*model.User, error)

	// Follow adds follower→target on both edge sets and clears any
	// pending request from the same follower. It is idempotent.
	Follow(ctx context.Context, follower, target primitive.ObjectID) error
	// Unfollow removes follower→target from both edge sets. Idempotent.
	Unfollow(ctx context.Context, follower, target primitive.ObjectID) error

	// AddFollowRequest records a pending request. Returns
	// apperror.ErrConflict when the request is already pending or the
	// requester already follows the target.
	AddFollowRequest(ctx context.Context, requester, target primitive.ObjectID) error
	// RemoveFollowRequest drops a pending request. Returns
	// apperror.ErrNotFound when no such request is pending.
	RemoveFollowRequest(ctx context.Context, requester, target primitive.ObjectID) error
	// AcceptFollowRequest atomically moves requester from the target's
	// followRequests into followers/following. Returns
	// apperror.ErrNotFound when no such request is pending.
	AcceptFollowRequest(ctx context.Context, requester, target primitive.ObjectID) error

	AddOrganizedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error
	RemoveOrganizedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error
	AddAttendingEvent(ctx context.Context, userID, eventID primitive.ObjectID) error
	RemoveAttendingEvent(ctx context.Context, userID, eventID primitive.ObjectID) error
}

// EventFilter narrows the event feed. Zero values mean "no filter" except
// Upcoming, which the service always sets for the default feed.
type EventFilter struct {
	// Upcoming drops events dated before the start of the current day.
	Upcoming bool
	// Category is an exact match against the category enum.
	Category string
	// Search is a case-insensitive substring match on title/description.
	Search string
	// Near restricts to events within RadiusM meters of the point.
	Near    *model.GeoPoint
	RadiusM int
}

// EventRepository stores events and their interaction sets.
type EventRepository interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEventByID(ctx context.Context, id primitive.ObjectID) (*model.Event, error)
	GetEventsByID(ctx context.Context, ids []primitive.ObjectID) ([]model.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]model.Event, error)
	ListEventsByOrganizer(ctx context.Context, organizer primitive.ObjectID) ([]model.Event, error)
	UpdateEvent(ctx context.Context, event *model.Event) error
	DeleteEvent(ctx context.Context, id primitive.ObjectID) error

	// AddAttendee adds userID to the attendee set if absent, enforcing the
	// capacity bound inside the same conditional update. Returns
	// (false, nil) when the user was already attending, and
	// apperror.ErrConflict when the event is at capacity.
	AddAttendee(ctx context.Context, eventID, userID primitive.ObjectID) (added bool, err error)
	// RemoveAttendee removes userID from the attendee set.
	// Returns (false, nil) when the user was not attending.
	RemoveAttendee(ctx context.Context, eventID, userID primitive.ObjectID) (removed bool, err error)
	// ToggleLike flips userID's membership in the like set and reports the
	// resulting state and count.
	ToggleLike(ctx context.Context, eventID, userID primitive.ObjectID) (liked bool, likes int, err error)
	// AddComment appends a comment, filling its ID and CreatedAt.
	AddComment(ctx context.Context, eventID primitive.ObjectID, comment *model.Comment) error
}

// NotificationRepository stores the per-recipient notification log.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	GetNotificationByID(ctx context.Context, id primitive.ObjectID) (*model.Notification, error)
	// HasRecentNotification reports whether a notification with the same
	// (recipient, sender, type, event) exists at or after since.
	HasRecentNotification(ctx context.Context, recipient, sender primitive.ObjectID, typ model.NotificationType, event *primitive.ObjectID, since time.Time) (bool, error)
	ListNotifications(ctx context.Context, recipient primitive.ObjectID, limit int) ([]model.Notification, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
	MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error)
	CountUnread(ctx context.Context, recipient primitive.ObjectID) (int64, error)
}
