package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/service"
)

// EventHandler owns event CRUD, the feed, and the interaction endpoints.
type EventHandler struct {
	events *service.EventService
	logger *slog.Logger
}

func NewEventHandler(events *service.EventService, logger *slog.Logger) *EventHandler {
	return &EventHandler{events: events, logger: logger}
}

type locationRequest struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
}

type eventRequest struct {
	Title                string          `json:"title"`
	Description          string          `json:"description"`
	Category             string          `json:"category"`
	Date                 string          `json:"date"`
	Time                 string          `json:"time"`
	Location             locationRequest `json:"location"`
	Price                float64         `json:"price"`
	IsFree               bool            `json:"isFree"`
	Capacity             int             `json:"capacity"`
	HasParking           bool            `json:"hasParking"`
	AcceptsOnlinePayment bool            `json:"acceptsOnlinePayment"`
	Image                string          `json:"image"`
}

func (req *eventRequest) toInput() (service.EventInput, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return service.EventInput{}, err
	}
	return service.EventInput{
		Title:                req.Title,
		Description:          req.Description,
		Category:             req.Category,
		Date:                 date,
		Time:                 req.Time,
		Lat:                  req.Location.Lat,
		Lng:                  req.Location.Lng,
		LocationName:         req.Location.Name,
		Price:                req.Price,
		IsFree:               req.IsFree,
		Capacity:             req.Capacity,
		HasParking:           req.HasParking,
		AcceptsOnlinePayment: req.AcceptsOnlinePayment,
		Image:                req.Image,
	}, nil
}

// parseDate accepts both a bare calendar date and a full RFC 3339 stamp,
// which is what the date-picker widgets send depending on locale config.
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, apperror.ValidationFailed("date", "must be YYYY-MM-DD or RFC 3339")
}

// HandleList serves the feed with the optional query filters.
//
// GET /api/events?category=music&search=salsa&lat=40.4&lng=-3.7&radius=5000
func (h *EventHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := service.Filters{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	}

	if latStr, lngStr := q.Get("lat"), q.Get("lng"); latStr != "" && lngStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lng, errLng := strconv.ParseFloat(lngStr, 64)
		if errLat != nil || errLng != nil {
			writeError(w, apperror.ValidationFailed("location", "lat and lng must be numbers"))
			return
		}
		filters.Lat = &lat
		filters.Lng = &lng
	}
	if radiusStr := q.Get("radius"); radiusStr != "" {
		radius, err := strconv.Atoi(radiusStr)
		if err != nil || radius < 0 {
			writeError(w, apperror.ValidationFailed("radius", "must be a non-negative integer"))
			return
		}
		filters.RadiusM = radius
	}

	events, err := h.events.List(r.Context(), filters)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"events": events})
}

// HandleGet returns a single event.
//
// GET /api/events/{id}
func (h *EventHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseObjectID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := h.events.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"event": event})
}

// HandleListByOrganizer returns all of one user's events, past included.
//
// GET /api/events/organizer/{id}
func (h *EventHandler) HandleListByOrganizer(w http.ResponseWriter, r *http.Request) {
	organizerID, err := parseObjectID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	events, err := h.events.ListByOrganizer(r.Context(), organizerID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"events": events})
}

// HandleCreate stores a new event with the caller as organizer.
//
// POST /api/events
func (h *EventHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := h.events.Create(r.Context(), userID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]interface{}{"event": event})
}

// HandleUpdate applies a full edit, organizer only.
//
// PUT /api/events/{id}
func (h *EventHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	eventID, err := parseObjectID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := h.events.Update(r.Context(), userID, eventID, input)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"event": event})
}

// HandleDelete removes an event, organizer only.
//
// DELETE /api/events/{id}
func (h *EventHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	eventID, err := parseObjectID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.events.Delete(r.Context(), userID, eventID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"message": "event deleted"})
}

// HandleAttend joins the caller to the event.
//
// POST /api/events/{id}/attend
func (h *EventHandler) HandleAttend(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, h.events.Attend)
}

// HandleUnattend removes the caller from the event.
//
// POST /api/events/{id}/unattend
func (h *EventHandler) HandleUnattend(w http.ResponseWriter, r *http.Request) {
	h.attendance(w, r, h.events.Unattend)
}

func (h *EventHandler) attendance(w http.ResponseWriter, r *http.Request, op func(context.Context, primitive.ObjectID, primitive.ObjectID) (*model.Event, error)) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	eventID, err := parseObjectID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	event, err := op(r.Context(), userID, eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"event": event})
}

// HandleLike toggles the caller's like on the event.
//
// POST /api/events/{id}/like
func (h *EventHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	eventID, err := parseObjectID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	liked, likes, err := h.events.Like(r.Context(), userID, eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"liked": liked,
		"likes": likes,
	})
}

type commentRequest struct {
	Text string `json:"text"`
}

// HandleComment appends a comment to the event.
//
// POST /api/events/{id}/comments {"text": "..."}
func (h *EventHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	eventID, err := parseObjectID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	comment, err := h.events.Comment(r.Context(), userID, eventID, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]interface{}{"comment": comment})
}
