package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/repository"
)

// DedupWindow suppresses a repeat notification with the same
// (recipient, sender, type, event) inside this interval. It exists to stop
// rapid like/unlike/like cycling from spamming the organizer's inbox.
const DedupWindow = 5 * time.Minute

const inboxLimit = 50

// Notifier is the fan-out side effect the event and user services trigger.
// Tests substitute a recording mock.
type Notifier interface {
	Notify(ctx context.Context, recipient, sender primitive.ObjectID, typ model.NotificationType, event *primitive.ObjectID, comment string) error
}

// NotificationService owns the per-user notification inbox.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	events        repository.EventRepository
	logger        *slog.Logger
}

var _ Notifier = (*NotificationService)(nil)

func NewNotificationService(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	events repository.EventRepository,
	logger *slog.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		users:         users,
		events:        events,
		logger:        logger,
	}
}

// Notify records a notification for recipient. Self-actions are a silent
// no-op, and a duplicate inside DedupWindow is suppressed.
func (s *NotificationService) Notify(ctx context.Context, recipient, sender primitive.ObjectID, typ model.NotificationType, event *primitive.ObjectID, comment string) error {
	if recipient == sender {
		return nil
	}

	since := time.Now().UTC().Add(-DedupWindow)
	recent, err := s.notifications.HasRecentNotification(ctx, recipient, sender, typ, event, since)
	if err != nil {
		return fmt.Errorf("service/notification: checking recent: %w", err)
	}
	if recent {
		return nil
	}

	n := &model.Notification{
		Recipient: recipient,
		Sender:    sender,
		Type:      typ,
		Event:     event,
		Comment:   comment,
	}
	if err := s.notifications.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("service/notification: creating: %w", err)
	}

	s.logger.Info("notification created",
		slog.String("recipient", recipient.Hex()),
		slog.String("type", string(typ)),
	)
	return nil
}

// SenderView is the populated sender summary on an inbox item.
type SenderView struct {
	ID     primitive.ObjectID `json:"_id"`
	Name   string             `json:"name"`
	Avatar string             `json:"avatar,omitempty"`
}

// EventView is the populated event summary on an inbox item. Nil when the
// notification has no event (follow requests) or the event was deleted.
type EventView struct {
	ID    primitive.ObjectID `json:"_id"`
	Title string             `json:"title"`
	Image string             `json:"image,omitempty"`
}

// NotificationView is one inbox item with its references resolved.
type NotificationView struct {
	ID        primitive.ObjectID     `json:"_id"`
	Sender    SenderView             `json:"sender"`
	Type      model.NotificationType `json:"type"`
	Event     *EventView             `json:"event,omitempty"`
	Comment   string                 `json:"comment,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"createdAt"`
}

// Inbox is the list response: newest first plus the unread badge count.
type Inbox struct {
	Notifications []NotificationView `json:"notifications"`
	Unread        int64              `json:"unreadCount"`
}

// List returns the recipient's newest notifications with sender and event
// references populated in two batched lookups.
func (s *NotificationService) List(ctx context.Context, recipient primitive.ObjectID) (*Inbox, error) {
	items, err := s.notifications.ListNotifications(ctx, recipient, inboxLimit)
	if err != nil {
		return nil, fmt.Errorf("service/notification: listing: %w", err)
	}

	senderIDs := make([]primitive.ObjectID, 0, len(items))
	eventIDs := make([]primitive.ObjectID, 0, len(items))
	seenSender := map[primitive.ObjectID]bool{}
	seenEvent := map[primitive.ObjectID]bool{}
	for _, n := range items {
		if !seenSender[n.Sender] {
			seenSender[n.Sender] = true
			senderIDs = append(senderIDs, n.Sender)
		}
		if n.Event != nil && !seenEvent[*n.Event] {
			seenEvent[*n.Event] = true
			eventIDs = append(eventIDs, *n.Event)
		}
	}

	senders := map[primitive.ObjectID]SenderView{}
	if len(senderIDs) > 0 {
		users, err := s.users.GetUsersByID(ctx, senderIDs)
		if err != nil {
			return nil, fmt.Errorf("service/notification: populating senders: %w", err)
		}
		for _, u := range users {
			senders[u.ID] = SenderView{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
		}
	}

	events := map[primitive.ObjectID]EventView{}
	if len(eventIDs) > 0 {
		evs, err := s.events.GetEventsByID(ctx, eventIDs)
		if err != nil {
			return nil, fmt.Errorf("service/notification: populating events: %w", err)
		}
		for _, ev := range evs {
			events[ev.ID] = EventView{ID: ev.ID, Title: ev.Title, Image: ev.Image}
		}
	}

	views := make([]NotificationView, 0, len(items))
	for _, n := range items {
		view := NotificationView{
			ID:        n.ID,
			Sender:    senders[n.Sender],
			Type:      n.Type,
			Comment:   n.Comment,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		}
		if n.Event != nil {
			if ev, ok := events[*n.Event]; ok {
				view.Event = &ev
			}
		}
		views = append(views, view)
	}

	unread, err := s.notifications.CountUnread(ctx, recipient)
	if err != nil {
		return nil, fmt.Errorf("service/notification: counting unread: %w", err)
	}

	return &Inbox{Notifications: views, Unread: unread}, nil
}

// MarkRead flips the read flag. Only the recipient may do so.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID primitive.ObjectID) error {
	n, err := s.notifications.GetNotificationByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.Recipient != userID {
		return apperror.Forbidden("this notification belongs to another user")
	}
	if err := s.notifications.MarkRead(ctx, notificationID); err != nil {
		return fmt.Errorf("service/notification: marking read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification for the user and returns how
// many were updated.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("service/notification: marking all read: %w", err)
	}
	return count, nil
}
