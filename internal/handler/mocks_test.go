package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/auth"
	"github.com/dabaher71/Enfiestados-App/internal/handler"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/repository"
	"github.com/dabaher71/Enfiestados-App/internal/service"
)

// memStore backs the handlers with a single in-memory implementation of
// the user and event repositories, the same way the Mongo *DB type serves
// both. It reproduces the store's observable semantics so requests can be
// driven through the real middleware and routing.
type memStore struct {
	users  map[primitive.ObjectID]*model.User
	events map[primitive.ObjectID]*model.Event
}

var (
	_ repository.UserRepository  = (*memStore)(nil)
	_ repository.EventRepository = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[primitive.ObjectID]*model.User),
		events: make(map[primitive.ObjectID]*model.Event),
	}
}

func (m *memStore) CreateUser(_ context.Context, user *model.User) error {
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

func (m *memStore) GetUserByID(_ context.Context, id primitive.ObjectID) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id.Hex())
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *memStore) GetUserByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	for _, u := range m.users {
		if u.GoogleID == googleID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", googleID)
}

func (m *memStore) GetUsersByID(_ context.Context, ids []primitive.ObjectID) ([]model.User, error) {
	out := []model.User{}
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memStore) LinkGoogleID(_ context.Context, id primitive.ObjectID, googleID, avatar string) error {
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

func (m *memStore) UpdateProfile(_ context.Context, id primitive.ObjectID, update repository.ProfileUpdate) (*model.User, error) {
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
	u.UpdatedAt = time.Now().UTC()
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdatePreferences(_ context.Context, id primitive.ObjectID, update repository.PreferencesUpdate) (*model.User, error) {
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

func (m *memStore) Follow(_ context.Context, follower, target primitive.ObjectID) error {
	f, ok := m.users[follower]
	if !ok {
		return apperror.NotFound("user", follower.Hex())
	}
	t, ok := m.users[target]
	if !ok {
		return apperror.NotFound("user", target.Hex())
	}
	f.Following = addID(f.Following, target)
	t.Followers = addID(t.Followers, follower)
	t.FollowRequests = removeID(t.FollowRequests, follower)
	return nil
}

func (m *memStore) Unfollow(_ context.Context, follower, target primitive.ObjectID) error {
	f, ok := m.users[follower]
	if !ok {
		return apperror.NotFound("user", follower.Hex())
	}
	t, ok := m.users[target]
	if !ok {
		return apperror.NotFound("user", target.Hex())
	}
	f.Following = removeID(f.Following, target)
	t.Followers = removeID(t.Followers, follower)
	return nil
}

func (m *memStore) AddFollowRequest(_ context.Context, requester, target primitive.ObjectID) error {
	t, ok := m.users[target]
	if !ok {
		return apperror.NotFound("user", target.Hex())
	}
	if containsID(t.FollowRequests, requester) || containsID(t.Followers, requester) {
		return apperror.Conflict("follow request already pending")
	}
	t.FollowRequests = addID(t.FollowRequests, requester)
	return nil
}

func (m *memStore) RemoveFollowRequest(_ context.Context, requester, target primitive.ObjectID) error {
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

func (m *memStore) AcceptFollowRequest(_ context.Context, requester, target primitive.ObjectID) error {
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

func (m *memStore) AddOrganizedEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID.Hex())
	}
	u.EventsOrganized = addID(u.EventsOrganized, eventID)
	return nil
}

func (m *memStore) RemoveOrganizedEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID.Hex())
	}
	u.EventsOrganized = removeID(u.EventsOrganized, eventID)
	return nil
}

func (m *memStore) AddAttendingEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID.Hex())
	}
	u.EventsAttending = addID(u.EventsAttending, eventID)
	return nil
}

func (m *memStore) RemoveAttendingEvent(_ context.Context, userID, eventID primitive.ObjectID) error {
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID.Hex())
	}
	u.EventsAttending = removeID(u.EventsAttending, eventID)
	return nil
}

func (m *memStore) CreateEvent(_ context.Context, event *model.Event) error {
	event.ID = primitive.NewObjectID()
	event.Attendees = []primitive.ObjectID{}
	event.Likes = []primitive.ObjectID{}
	event.Comments = []model.Comment{}
	event.CreatedAt = time.Now().UTC()
	stored := *event
	m.events[event.ID] = &stored
	return nil
}

func (m *memStore) GetEventByID(_ context.Context, id primitive.ObjectID) (*model.Event, error) {
	e, ok := m.events[id]
	if !ok {
		return nil, apperror.NotFound("event", id.Hex())
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) GetEventsByID(_ context.Context, ids []primitive.ObjectID) ([]model.Event, error) {
	out := []model.Event{}
	for _, id := range ids {
		if e, ok := m.events[id]; ok {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) ListEvents(_ context.Context, filter repository.EventFilter) ([]model.Event, error) {
	startOfDay := time.Now().UTC().Truncate(24 * time.Hour)
	out := []model.Event{}
	for _, e := range m.events {
		if filter.Upcoming && e.Date.Before(startOfDay) {
			continue
		}
		if filter.Category != "" && e.Category != filter.Category {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(e.Title), needle) &&
				!strings.Contains(strings.ToLower(e.Description), needle) {
				continue
			}
		}
		out = append(out, *e)
	}
	return out, nil
}

func (m *memStore) ListEventsByOrganizer(_ context.Context, organizer primitive.ObjectID) ([]model.Event, error) {
	out := []model.Event{}
	for _, e := range m.events {
		if e.Organizer == organizer {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memStore) UpdateEvent(_ context.Context, event *model.Event) error {
	if _, ok := m.events[event.ID]; !ok {
		return apperror.NotFound("event", event.ID.Hex())
	}
	stored := *event
	m.events[event.ID] = &stored
	return nil
}

func (m *memStore) DeleteEvent(_ context.Context, id primitive.ObjectID) error {
	if _, ok := m.events[id]; !ok {
		return apperror.NotFound("event", id.Hex())
	}
	delete(m.events, id)
	return nil
}

func (m *memStore) AddAttendee(_ context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	e, ok := m.events[eventID]
	if !ok {
		return false, apperror.NotFound("event", eventID.Hex())
	}
	if containsID(e.Attendees, userID) {
		return false, nil
	}
	if e.Capacity > 0 && len(e.Attendees) >= e.Capacity {
		return false, apperror.Conflict("event is at capacity")
	}
	e.Attendees = addID(e.Attendees, userID)
	return true, nil
}

func (m *memStore) RemoveAttendee(_ context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	e, ok := m.events[eventID]
	if !ok {
		return false, apperror.NotFound("event", eventID.Hex())
	}
	if !containsID(e.Attendees, userID) {
		return false, nil
	}
	e.Attendees = removeID(e.Attendees, userID)
	return true, nil
}

func (m *memStore) ToggleLike(_ context.Context, eventID, userID primitive.ObjectID) (bool, int, error) {
	e, ok := m.events[eventID]
	if !ok {
		return false, 0, apperror.NotFound("event", eventID.Hex())
	}
	if containsID(e.Likes, userID) {
		e.Likes = removeID(e.Likes, userID)
		return false, len(e.Likes), nil
	}
	e.Likes = addID(e.Likes, userID)
	return true, len(e.Likes), nil
}

func (m *memStore) AddComment(_ context.Context, eventID primitive.ObjectID, comment *model.Comment) error {
	e, ok := m.events[eventID]
	if !ok {
		return apperror.NotFound("event", eventID.Hex())
	}
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = time.Now().UTC()
	e.Comments = append(e.Comments, *comment)
	return nil
}

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

// noopNotifier satisfies the service layer's notifier without recording
// anything; the notification path has its own tests.
type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, primitive.ObjectID, primitive.ObjectID, model.NotificationType, *primitive.ObjectID, string) error {
	return nil
}

// testApp wires the real handlers, middleware, and routes over memStore.
type testApp struct {
	store  *memStore
	tokens *auth.TokenService
	router chi.Router
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceForTest(4)

	store := newMemStore()
	authService := service.NewAuthService(store, tokens, passwords, logger)
	userService := service.NewUserService(store, store, noopNotifier{}, logger)
	eventService := service.NewEventService(store, store, noopNotifier{}, logger)

	authHandler := handler.NewAuthHandler(authService, nil, "http://localhost:3000", logger)
	userHandler := handler.NewUserHandler(userService, logger)
	eventHandler := handler.NewEventHandler(eventService, logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.With(auth.RequireAuth(tokens)).Get("/me", authHandler.HandleMe)
		})
		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.HandleList)
			r.Get("/{id}", eventHandler.HandleGet)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Post("/", eventHandler.HandleCreate)
				r.Post("/{id}/attend", eventHandler.HandleAttend)
				r.Post("/{id}/like", eventHandler.HandleLike)
			})
		})
		r.Route("/users", func(r chi.Router) {
			r.With(auth.OptionalAuth(tokens)).Get("/{id}", userHandler.HandleGetProfile)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(tokens))
				r.Put("/profile", userHandler.HandleUpdateProfile)
				r.Post("/{id}/follow", userHandler.HandleFollow())
				r.Post("/{id}/request-follow", userHandler.HandleRequestFollow())
				r.Post("/{id}/accept-follow", userHandler.HandleAcceptFollow())
			})
		})
	})

	return &testApp{store: store, tokens: tokens, router: r}
}

// do runs one request through the router. An empty token leaves the
// request anonymous.
func (a *testApp) do(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

// register creates an account through the API and returns its token and id.
func (a *testApp) register(t *testing.T, name, email string) (token string, id primitive.ObjectID) {
	t.Helper()
	payload := `{"name":"` + name + `","email":"` + email + `","password":"secret123"}`
	rr := a.do(t, http.MethodPost, "/api/auth/register", "", strings.NewReader(payload))
	require.Equal(t, http.StatusCreated, rr.Code)

	body := decodeBody(t, rr)
	token = body["token"].(string)
	user := body["user"].(map[string]interface{})
	id, err := primitive.ObjectIDFromHex(user["id"].(string))
	require.NoError(t, err)
	return token, id
}

// login obtains a fresh token for an account created via register.
func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	payload := `{"email":"` + email + `","password":"secret123"}`
	rr := a.do(t, http.MethodPost, "/api/auth/login", "", strings.NewReader(payload))
	require.Equal(t, http.StatusOK, rr.Code)
	return decodeBody(t, rr)["token"].(string)
}

func userIDByEmail(t *testing.T, a *testApp, email string) primitive.ObjectID {
	t.Helper()
	for id, u := range a.store.users {
		if u.Email == email {
			return id
		}
	}
	t.Fatalf("no user with email %s", email)
	return primitive.NilObjectID
}

// setPrivate flips a stored profile to private directly in the store.
func (a *testApp) setPrivate(t *testing.T, id primitive.ObjectID) {
	t.Helper()
	u, ok := a.store.users[id]
	require.True(t, ok)
	u.PublicProfile = false
}
