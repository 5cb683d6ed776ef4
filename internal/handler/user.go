package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/service"
)

// UserHandler owns profile reads/updates and the follow endpoints.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// HandleGetProfile returns a profile through the visibility rule. Runs
// behind OptionalAuth so anonymous viewers get the redacted view of
// private profiles.
//
// GET /api/users/{id}
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	targetID, err := parseObjectID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := h.users.GetProfile(r.Context(), viewerID(r), targetID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"user": view})
}

type profileRequest struct {
	Name          *string  `json:"name"`
	Avatar        *string  `json:"avatar"`
	CoverImage    *string  `json:"coverImage"`
	Bio           *string  `json:"bio"`
	Interests     []string `json:"interests"`
	PublicProfile *bool    `json:"perfilPublico"`
}

// HandleUpdateProfile applies a partial edit to the caller's own profile.
// Absent JSON fields stay untouched; present-but-empty strings clear the
// field.
//
// PUT /api/users/profile
func (h *UserHandler) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, service.ProfileInput{
		Name:          req.Name,
		Avatar:        req.Avatar,
		CoverImage:    req.CoverImage,
		Bio:           req.Bio,
		Interests:     req.Interests,
		PublicProfile: req.PublicProfile,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"user": user})
}

type preferencesRequest struct {
	Location   *string  `json:"location"`
	Categories []string `json:"categories"`
}

// HandleUpdatePreferences sets the caller's feed preferences.
//
// PUT /api/users/preferences
func (h *UserHandler) HandleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	user, err := h.users.UpdatePreferences(r.Context(), userID, req.Location, req.Categories)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"user": user})
}

// HandleFollowRequests lists who is waiting on the caller's approval.
//
// GET /api/users/follow-requests
func (h *UserHandler) HandleFollowRequests(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	requests, err := h.users.FollowRequests(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"requests": requests})
}

// followAction adapts one follow-state transition into a handler. All six
// endpoints share the shape: authenticated caller + target id in the
// path, empty success body.
func (h *UserHandler) followAction(message string, action func(ctx context.Context, caller, target primitive.ObjectID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			writeError(w, err)
			return
		}
		targetID, err := parseObjectID("id", chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}

		if err := action(r.Context(), userID, targetID); err != nil {
			writeError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, map[string]interface{}{"message": message})
	}
}

// The six follow mutations, POST /api/users/{id}/<action>.

func (h *UserHandler) HandleFollow() http.HandlerFunc {
	return h.followAction("now following", h.users.Follow)
}

func (h *UserHandler) HandleUnfollow() http.HandlerFunc {
	return h.followAction("unfollowed", h.users.Unfollow)
}

func (h *UserHandler) HandleRequestFollow() http.HandlerFunc {
	return h.followAction("follow request sent", h.users.RequestFollow)
}

func (h *UserHandler) HandleCancelFollowRequest() http.HandlerFunc {
	return h.followAction("follow request cancelled", h.users.CancelFollowRequest)
}

func (h *UserHandler) HandleAcceptFollow() http.HandlerFunc {
	return h.followAction("follow request accepted", h.users.AcceptFollowRequest)
}

func (h *UserHandler) HandleRejectFollow() http.HandlerFunc {
	return h.followAction("follow request rejected", h.users.RejectFollowRequest)
}
