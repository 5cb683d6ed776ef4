package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/auth"
	"github.com/dabaher71/Enfiestados-App/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler owns registration, login, the Google OAuth flow, and /me.
type AuthHandler struct {
	auth        *service.AuthService
	google      *auth.GoogleProvider
	frontendURL string
	logger      *slog.Logger
}

func NewAuthHandler(
	authService *service.AuthService,
	google *auth.GoogleProvider,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:        authService,
		google:      google,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// currentUserID reads the authenticated user id the middleware stored on
// the context. Only called behind RequireAuth, where it cannot fail short
// of a wiring mistake.
func currentUserID(r *http.Request) (primitive.ObjectID, error) {
	raw, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return primitive.NilObjectID, apperror.Unauthorized("valid authentication required")
	}
	return parseObjectID("token", raw)
}

// viewerID is currentUserID for OptionalAuth routes: nil when anonymous.
func viewerID(r *http.Request) *primitive.ObjectID {
	raw, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return nil
	}
	return &id
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account.
//
// POST /api/auth/register {"name","email","password"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	res, err := h.auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]interface{}{
		"token": res.Token,
		"user":  res.User,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin checks credentials and issues a token.
//
// POST /api/auth/login {"email","password"}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "invalid JSON body"))
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{
		"token": res.Token,
		"user":  res.User,
	})
}

// HandleGoogleLogin starts the OAuth flow. The random state value lands in
// a short-lived HttpOnly cookie and rides along to Google for the CSRF
// check on callback.
//
// GET /api/auth/google
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback finishes the OAuth flow: state check, code
// exchange, account resolution, then a redirect to the frontend with the
// token in the query string.
//
// GET /api/auth/google/callback?code=...&state=...
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("google callback: state mismatch")
		writeError(w, apperror.Unauthorized("invalid OAuth state"))
		return
	}

	// Single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("google callback: authorization denied", slog.String("error", errParam))
		http.Redirect(w, r, h.frontendURL+"/auth/callback?error=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	gu, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("google callback: exchange failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	res, err := h.auth.LoginOrRegisterGoogle(r.Context(), gu)
	if err != nil {
		h.logger.Error("google callback: account resolution failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	redirect := h.frontendURL + "/auth/callback?token=" + url.QueryEscape(res.Token)
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// HandleMe returns the authenticated user's own record.
//
// GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]interface{}{"user": user})
}
