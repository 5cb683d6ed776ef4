package service

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/repository"
)

// In-memory repository mocks. They reproduce the store's observable
// semantics (conflict on duplicates, capacity bound, idempotent set ops)
// so the services can be tested with plain function calls.

// --- user repository mock ---

type mockUserRepo struct {
	users map[primitive.ObjectID]*model.User
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[primitive.ObjectID]*model.User)}
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperror.Conflict("an account with this email already exists")
		}
	}
	user.ID = primitive.NewObjectID()
	user.Followers = []primitive.ObjectID{}
	user.Following = []primitive.ObjectID{}
	user.FollowRequests = []primitive.ObjectID{}
	user.EventsOrganized = []primitive.ObjectID{}
	user.EventsAttending = []primitive.ObjectID{}
	user.CreatedAt = time.Now().UTC()
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id.Hex())
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *mockUserRepo) GetUserByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	for _, u := range m.users {
		if u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", googleID)
}

func (m *mockUserRepo) GetUsersByID(_ context.Context, ids []primitive.ObjectID) ([]model.User, error) {
	out := []model.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *mockUserRepo) LinkGoogleID(_ context.Context, id primitive.ObjectID, googleID, avatar string) error {
	u, ok := m.users[id]
	if !ok {
		return apperror.NotFound("user", id.Hex())
	}
	u.GoogleID = googleID
	if u.Avatar == "" {
		u.Avatar = avatar
	}
	return nil
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, id primitive.ObjectID, update repository.ProfileUpdate) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id.Hex())
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Avatar != nil {
		u.Avatar = *update.Avatar
	}
	if update.CoverImage != nil {
		u.CoverImage = *update.CoverImage
	}
	if update.Bio != nil {
		u.Bio = *update.Bio
	}
	if update.Interests != nil {
		u.Interests = update.Interests
	}
	if update.PublicProfile != nil {
		u.PublicProfile = *update.PublicProfile
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) UpdatePreferences(_ context.Context, id primitive.ObjectID, update repository.PreferencesUpdate) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id.Hex())
	}
	if update.Location != nil {
		u.Location = *update.Location
	}
	if update.Categories != nil {
		u.Categories = update.Categories
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) Follow(_ context.Context, follower, target primitive.ObjectID) error {
	t, ok := m.users[target]
	if !ok {
		return apperror.NotFound("user", target.Hex())
	}
	f, ok := m.users[follower]
	if !ok {
		return apperror.NotFound("user", follower.Hex())
	}
	t.Followers = addID(t.Followers, follower)
	t.FollowRequests = removeID(t.FollowRequests, follower)
	f.Following = addID(f.Following, target)
	return nil
}

func (m *mockUserRepo) Unfollow(_ context.Context, follower, target primitive.ObjectID) error {
	t, ok := m.users[target]
	if !ok {
		return apperror.NotFound("user", target.Hex())
	}
	f, ok := m.users[follower]
	if !ok {
		return apperror.NotFound("user", follower.Hex())
	}
	t.Followers = removeID(t.Followers, follower)
	f.Following = removeID(f.Following, target)
	return nil
}

func (m *mockUserRepo) AddFollowRequest(_ context.Context, requester, target primitive.ObjectID) error {
	t, ok := m.users[target]
	if !ok {
		return apperror.NotFound("user", target.Hex())
	}
	if containsID(t.FollowRequests, requester) || containsID(t.Followers, requester) {
		return apperror.Conflict("follow request already pending")
	}
	t.FollowRequests = append(t.FollowRequests, requester)
	return nil
}

func (m *mockUserRepo) RemoveFollowRequest(_ context.Context, requester, target primitive.ObjectID) error {
	t, ok := m.users[target]
	if !ok {
		return apperror.NotFound("user", target.Hex())
	}
	if !containsID(t.FollowRequests, requester) {
		return apperror.NotFound("follow request", requester.Hex())
	}
	t.FollowRequests = removeID(t.FollowRequests, requester)
	return nil
}

func (m *mockUserRepo) AcceptFollowRequest(_ context.Context, requester, target primitive.ObjectID) error {
	t, ok := m.users[target]
	if !ok {
		return apperror.NotFound("user", target.Hex())
	}
	r, ok := m.users[requester]
	if !ok {
		return apperror.NotFound("user", requester.Hex())
	}
	if !containsID(t.FollowRequests, requester) {
		return apperror.NotFound("follow request", requester.Hex())
	}
	t.FollowRequests = removeID(t.FollowRequests, requester)
	t.Followers = addID(t.Followers, requester)
	r.Following = addID(r.Following, target)
	return nil
}

func (m *mockUserRepo) AddOrganizedEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID.Hex())
	}
	u.EventsOrganized = addID(u.EventsOrganized, eventID)
	return nil
}

func (m *mockUserRepo) RemoveOrganizedEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID.Hex())
	}
	u.EventsOrganized = removeID(u.EventsOrganized, eventID)
	return nil
}

func (m *mockUserRepo) AddAttendingEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID.Hex())
	}
	u.EventsAttending = addID(u.EventsAttending, eventID)
	return nil
}

func (m *mockUserRepo) RemoveAttendingEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID.Hex())
	}
	u.EventsAttending = removeID(u.EventsAttending, eventID)
	return nil
}

// --- event repository mock ---

type mockEventRepo struct {
	events map[primitive.ObjectID]*model.Event
}

var _ repository.EventRepository = (*mockEventRepo)(nil)

func newMockEventRepo() *mockEventRepo {
	return &mockEventRepo{events: make(map[primitive.ObjectID]*model.Event)}
}

func (m *mockEventRepo) CreateEvent(_ context.Context, event *model.Event) error {
	event.ID = primitive.NewObjectID()
	event.Attendees = []primitive.ObjectID{}
	event.Likes = []primitive.ObjectID{}
	event.Comments = []model.Comment{}
	event.CreatedAt = time.Now().UTC()
	stored := *event
	m.events[event.ID] = &stored
	return nil
}

func (m *mockEventRepo) GetEventByID(_ context.Context, id primitive.ObjectID) (*model.Event, error) {
	ev, ok := m.events[id]
	if !ok {
		return nil, apperror.NotFound("event", id.Hex())
	}
	cp := *ev
	return &cp, nil
}

func (m *mockEventRepo) GetEventsByID(_ context.Context, ids []primitive.ObjectID) ([]model.Event, error) {
	out := []model.Event{}
	for _, id := range ids {
		if ev, ok := m.events[id]; ok {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (m *mockEventRepo) ListEvents(_ context.Context, filter repository.EventFilter) ([]model.Event, error) {
	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	out := []model.Event{}
	for _, ev := range m.events {
		if filter.Upcoming && ev.Date.Before(startOfDay) {
			continue
		}
		if filter.Category != "" && ev.Category != filter.Category {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(ev.Title), needle) &&
				!strings.Contains(strings.ToLower(ev.Description), needle) {
				continue
			}
		}
		out = append(out, *ev)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockEventRepo) ListEventsByOrganizer(_ context.Context, organizer primitive.ObjectID) ([]model.Event, error) {
	out := []model.Event{}
	for _, ev := range m.events {
		if ev.Organizer == organizer {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockEventRepo) UpdateEvent(_ context.Context, event *model.Event) error {
	if _, ok := m.events[event.ID]; !ok {
		return apperror.NotFound("event", event.ID.Hex())
	}
	stored := *event
	m.events[event.ID] = &stored
	return nil
}

func (m *mockEventRepo) DeleteEvent(_ context.Context, id primitive.ObjectID) error {
	if _, ok := m.events[id]; !ok {
		return apperror.NotFound("event", id.Hex())
	}
	delete(m.events, id)
	return nil
}

func (m *mockEventRepo) AddAttendee(_ context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	ev, ok := m.events[eventID]
	if !ok {
		return false, apperror.NotFound("event", eventID.Hex())
	}
	if containsID(ev.Attendees, userID) {
		return false, nil
	}
	if ev.Capacity > 0 && len(ev.Attendees) >= ev.Capacity {
		return false, apperror.Conflict("event is at capacity")
	}
	ev.Attendees = append(ev.Attendees, userID)
	return true, nil
}

func (m *mockEventRepo) RemoveAttendee(_ context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	ev, ok := m.events[eventID]
	if !ok {
		return false, apperror.NotFound("event", eventID.Hex())
	}
	if !containsID(ev.Attendees, userID) {
		return false, nil
	}
	ev.Attendees = removeID(ev.Attendees, userID)
	return true, nil
}

func (m *mockEventRepo) ToggleLike(_ context.Context, eventID, userID primitive.ObjectID) (bool, int, error) {
	ev, ok := m.events[eventID]
	if !ok {
		return false, 0, apperror.NotFound("event", eventID.Hex())
	}
	if containsID(ev.Likes, userID) {
		ev.Likes = removeID(ev.Likes, userID)
		return false, len(ev.Likes), nil
	}
	ev.Likes = append(ev.Likes, userID)
	return true, len(ev.Likes), nil
}

func (m *mockEventRepo) AddComment(_ context.Context, eventID primitive.ObjectID, comment *model.Comment) error {
	ev, ok := m.events[eventID]
	if !ok {
		return apperror.NotFound("event", eventID.Hex())
	}
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = time.Now().UTC()
	ev.Comments = append(ev.Comments, *comment)
	return nil
}

// --- notification repository mock ---

type mockNotificationRepo struct {
	items []model.Notification
}

var _ repository.NotificationRepository = (*mockNotificationRepo)(nil)

func newMockNotificationRepo() *mockNotificationRepo {
	return &mockNotificationRepo{}
}

func (m *mockNotificationRepo) CreateNotification(_ context.Context, n *model.Notification) error {
	n.ID = primitive.NewObjectID()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.items = append(m.items, *n)
	return nil
}

func (m *mockNotificationRepo) GetNotificationByID(_ context.Context, id primitive.ObjectID) (*model.Notification, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			cp := m.items[i]
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("notification", id.Hex())
}

func (m *mockNotificationRepo) HasRecentNotification(_ context.Context, recipient, sender primitive.ObjectID, typ model.NotificationType, event *primitive.ObjectID, since time.Time) (bool, error) {
	for _, n := range m.items {
		if n.Recipient != recipient || n.Sender != sender || n.Type != typ {
			continue
		}
		if (n.Event == nil) != (event == nil) {
			continue
		}
		if n.Event != nil && *n.Event != *event {
			continue
		}
		if !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) ListNotifications(_ context.Context, recipient primitive.ObjectID, limit int) ([]model.Notification, error) {
	out := []model.Notification{}
	for _, n := range m.items {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, id primitive.ObjectID) error {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Read = true
			return nil
		}
	}
	return apperror.NotFound("notification", id.Hex())
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	var count int64
	for i := range m.items {
		if m.items[i].Recipient == recipient && !m.items[i].Read {
			m.items[i].Read = true
			count++
		}
	}
	return count, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, recipient primitive.ObjectID) (int64, error) {
	var count int64
	for _, n := range m.items {
		if n.Recipient == recipient && !n.Read {
			count++
		}
	}
	return count, nil
}

// --- recording notifier ---

type sentNotification struct {
	Recipient primitive.ObjectID
	Sender    primitive.ObjectID
	Type      model.NotificationType
	Event     *primitive.ObjectID
	Comment   string
}

type mockNotifier struct {
	sent []sentNotification
}

var _ Notifier = (*mockNotifier)(nil)

func (m *mockNotifier) Notify(_ context.Context, recipient, sender primitive.ObjectID, typ model.NotificationType, event *primitive.ObjectID, comment string) error {
	m.sent = append(m.sent, sentNotification{
		Recipient: recipient,
		Sender:    sender,
		Type:      typ,
		Event:     event,
		Comment:   comment,
	})
	return nil
}

// --- shared helpers ---

func addID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// seedUser inserts a user directly into the mock store.
func seedUser(t *testing.T, repo *mockUserRepo, name string, public bool) *model.User {
	t.Helper()
	u := &model.User{
		Name:          name,
		Email:         strings.ToLower(name) + "@example.com",
		PublicProfile: public,
	}
	if err := repo.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return u
}
