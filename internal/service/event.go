package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/repository"
)

const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 5000
	MaxCommentLength     = 1000
)

// EventService handles event CRUD, the feed filters, and the interaction
// endpoints that fan out notifications.
type EventService struct {
	events   repository.EventRepository
	users    repository.UserRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewEventService(
	events repository.EventRepository,
	users repository.UserRepository,
	notifier Notifier,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		events:   events,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

// EventInput carries the client-supplied event fields for create and update.
type EventInput struct {
	Title                string
	Description          string
	Category             string
	Date                 time.Time
	Time                 string
	Lat                  float64
	Lng                  float64
	LocationName         string
	Price                float64
	IsFree               bool
	Capacity             int
	HasParking           bool
	AcceptsOnlinePayment bool
	Image                string
}

func (in *EventInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" {
		return apperror.ValidationFailed("title", "event title is required")
	}
	if len(in.Title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if len(in.Description) > MaxDescriptionLength {
		return apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}
	if !model.ValidCategory(in.Category) {
		return apperror.ValidationFailed("category",
			fmt.Sprintf("category must be one of %s", strings.Join(model.Categories, ", ")))
	}
	if in.Date.IsZero() {
		return apperror.ValidationFailed("date", "event date is required")
	}
	if strings.TrimSpace(in.Time) == "" {
		return apperror.ValidationFailed("time", "event time is required")
	}
	if in.Lat < -90 || in.Lat > 90 || in.Lng < -180 || in.Lng > 180 {
		return apperror.ValidationFailed("location", "a valid latitude/longitude is required")
	}
	if in.Capacity < 0 {
		return apperror.ValidationFailed("capacity", "capacity cannot be negative")
	}
	if in.Price < 0 {
		return apperror.ValidationFailed("price", "price cannot be negative")
	}
	if in.IsFree {
		in.Price = 0
	}
	return nil
}

// Create validates and stores a new event. The caller becomes the organizer
// and gets the event appended to their organized list.
func (s *EventService) Create(ctx context.Context, organizer primitive.ObjectID, in EventInput) (*model.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	event := &model.Event{
		Title:                in.Title,
		Description:          in.Description,
		Category:             in.Category,
		Date:                 in.Date,
		Time:                 in.Time,
		Location:             model.NewGeoPoint(in.Lat, in.Lng, in.LocationName),
		Price:                in.Price,
		IsFree:               in.IsFree,
		Capacity:             in.Capacity,
		HasParking:           in.HasParking,
		AcceptsOnlinePayment: in.AcceptsOnlinePayment,
		Image:                in.Image,
		Organizer:            organizer,
	}
	if err := s.events.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("service/event: creating: %w", err)
	}
	if err := s.users.AddOrganizedEvent(ctx, organizer, event.ID); err != nil {
		return nil, fmt.Errorf("service/event: recording organized event: %w", err)
	}

	s.logger.Info("event created",
		slog.String("eventID", event.ID.Hex()),
		slog.String("organizer", organizer.Hex()),
		slog.String("category", event.Category),
	)
	return event, nil
}

// Get returns one event by id.
func (s *EventService) Get(ctx context.Context, id primitive.ObjectID) (*model.Event, error) {
	return s.events.GetEventByID(ctx, id)
}

// Filters are the feed query parameters. Zero values mean "not filtering on
// this"; they compose conjunctively.
type Filters struct {
	Category string
	Search   string
	Lat      *float64
	Lng      *float64
	RadiusM  int
}

// List returns the upcoming-events feed through the optional filters.
func (s *EventService) List(ctx context.Context, f Filters) ([]model.Event, error) {
	if f.Category != "" && !model.ValidCategory(f.Category) {
		return nil, apperror.ValidationFailed("category",
			fmt.Sprintf("unknown category %q", f.Category))
	}

	filter := repository.EventFilter{
		Upcoming: true,
		Category: f.Category,
		Search:   strings.TrimSpace(f.Search),
		RadiusM:  f.RadiusM,
	}
	if f.Lat != nil && f.Lng != nil {
		if *f.Lat < -90 || *f.Lat > 90 || *f.Lng < -180 || *f.Lng > 180 {
			return nil, apperror.ValidationFailed("location", "a valid latitude/longitude is required")
		}
		near := model.NewGeoPoint(*f.Lat, *f.Lng, "")
		filter.Near = &near
	}

	events, err := s.events.ListEvents(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/event: listing: %w", err)
	}
	return events, nil
}

// ListByOrganizer returns all of one user's events, newest first, including
// past ones.
func (s *EventService) ListByOrganizer(ctx context.Context, organizer primitive.ObjectID) ([]model.Event, error) {
	events, err := s.events.ListEventsByOrganizer(ctx, organizer)
	if err != nil {
		return nil, fmt.Errorf("service/event: listing by organizer: %w", err)
	}
	return events, nil
}

// Update applies a full edit. Only the organizer may modify an event.
func (s *EventService) Update(ctx context.Context, userID, eventID primitive.ObjectID, in EventInput) (*model.Event, error) {
	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Organizer != userID {
		return nil, apperror.Forbidden("only the organizer can modify this event")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	event.Title = in.Title
	event.Description = in.Description
	event.Category = in.Category
	event.Date = in.Date
	event.Time = in.Time
	event.Location = model.NewGeoPoint(in.Lat, in.Lng, in.LocationName)
	event.Price = in.Price
	event.IsFree = in.IsFree
	event.Capacity = in.Capacity
	event.HasParking = in.HasParking
	event.AcceptsOnlinePayment = in.AcceptsOnlinePayment
	event.Image = in.Image

	if err := s.events.UpdateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("service/event: updating: %w", err)
	}
	return event, nil
}

// Delete removes an event. Only the organizer may delete it.
func (s *EventService) Delete(ctx context.Context, userID, eventID primitive.ObjectID) error {
	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Organizer != userID {
		return apperror.Forbidden("only the organizer can delete this event")
	}

	if err := s.events.DeleteEvent(ctx, eventID); err != nil {
		return fmt.Errorf("service/event: deleting: %w", err)
	}
	if err := s.users.RemoveOrganizedEvent(ctx, userID, eventID); err != nil {
		return fmt.Errorf("service/event: removing organized event: %w", err)
	}

	s.logger.Info("event deleted",
		slog.String("eventID", eventID.Hex()),
		slog.String("organizer", userID.Hex()),
	)
	return nil
}

// Attend adds the user to the attendee set. Already attending is a no-op;
// a full event is a Conflict. The organizer is notified on a real join.
func (s *EventService) Attend(ctx context.Context, userID, eventID primitive.ObjectID) (*model.Event, error) {
	added, err := s.events.AddAttendee(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !added {
		return event, nil
	}

	if err := s.users.AddAttendingEvent(ctx, userID, eventID); err != nil {
		return nil, fmt.Errorf("service/event: recording attendance: %w", err)
	}
	s.fanOut(ctx, event.Organizer, userID, model.NotificationAttend, eventID, "")
	return event, nil
}

// Unattend removes the user from the attendee set; not attending is a no-op.
func (s *EventService) Unattend(ctx context.Context, userID, eventID primitive.ObjectID) (*model.Event, error) {
	removed, err := s.events.RemoveAttendee(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if removed {
		if err := s.users.RemoveAttendingEvent(ctx, userID, eventID); err != nil {
			return nil, fmt.Errorf("service/event: clearing attendance: %w", err)
		}
	}
	return event, nil
}

// Like toggles the user's like. The organizer is notified only on the
// transition to liked, never on unlike.
func (s *EventService) Like(ctx context.Context, userID, eventID primitive.ObjectID) (liked bool, likes int, err error) {
	liked, likes, err = s.events.ToggleLike(ctx, eventID, userID)
	if err != nil {
		return false, 0, err
	}

	if liked {
		event, err := s.events.GetEventByID(ctx, eventID)
		if err != nil {
			return false, 0, err
		}
		s.fanOut(ctx, event.Organizer, userID, model.NotificationLike, eventID, "")
	}
	return liked, likes, nil
}

// Comment appends a comment and notifies the organizer with the text
// snapshot.
func (s *EventService) Comment(ctx context.Context, userID, eventID primitive.ObjectID, text string) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment text is required")
	}
	if len(text) > MaxCommentLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	event, err := s.events.GetEventByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	comment := &model.Comment{User: userID, Text: text}
	if err := s.events.AddComment(ctx, eventID, comment); err != nil {
		return nil, fmt.Errorf("service/event: adding comment: %w", err)
	}

	s.fanOut(ctx, event.Organizer, userID, model.NotificationComment, eventID, text)
	return comment, nil
}

// fanOut fires a notification without letting a failure break the primary
// operation.
func (s *EventService) fanOut(ctx context.Context, recipient, sender primitive.ObjectID, typ model.NotificationType, eventID primitive.ObjectID, comment string) {
	if err := s.notifier.Notify(ctx, recipient, sender, typ, &eventID, comment); err != nil {
		s.logger.Warn("notification fan-out failed",
			slog.String("type", string(typ)),
			slog.String("eventID", eventID.Hex()),
			slog.String("error", err.Error()),
		)
	}
}
