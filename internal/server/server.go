// Package server wires the dependency graph and the route table and owns
// the HTTP lifecycle.
//
// main.go builds a Config from the environment; New assembles
// mongodb.DB → repositories → services → handlers and mounts everything
// on a chi router; Start runs the listener with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dabaher71/Enfiestados-App/internal/auth"
	"github.com/dabaher71/Enfiestados-App/internal/handler"
	"github.com/dabaher71/Enfiestados-App/internal/middleware"
	"github.com/dabaher71/Enfiestados-App/internal/repository/mongodb"
	"github.com/dabaher71/Enfiestados-App/internal/service"
)

// Config is the composition root input, populated from the environment in
// cmd/server.
type Config struct {
	Port               int
	MongoURI           string
	MongoDB            string
	JWTSecret          string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	FrontendURL        string
}

// Server owns the router and the database handle; the handle is closed on
// shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *mongodb.DB
}

// New connects to the store and assembles the full dependency chain.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := mongodb.Open(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS(s.config.FrontendURL))

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	var google *auth.GoogleProvider
	if s.config.GoogleClientID != "" {
		google = auth.NewGoogleProvider(
			s.config.GoogleClientID,
			s.config.GoogleClientSecret,
			s.config.GoogleCallbackURL,
		)
	} else {
		s.logger.Warn("google oauth not configured, /api/auth/google disabled")
	}

	// The mongodb.DB value implements all three repository interfaces.
	notificationService := service.NewNotificationService(s.db, s.db, s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, passwords, s.logger)
	userService := service.NewUserService(s.db, s.db, notificationService, s.logger)
	eventService := service.NewEventService(s.db, s.db, notificationService, s.logger)

	authHandler := handler.NewAuthHandler(authService, google, s.config.FrontendURL, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	eventHandler := handler.NewEventHandler(eventService, s.logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, s.logger)

	requireAuth := auth.RequireAuth(tokens)
	optionalAuth := auth.OptionalAuth(tokens)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			if google != nil {
				r.Get("/google", authHandler.HandleGoogleLogin)
				r.Get("/google/callback", authHandler.HandleGoogleCallback)
			}
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", eventHandler.HandleList)
			r.Get("/{id}", eventHandler.HandleGet)
			r.Get("/organizer/{id}", eventHandler.HandleListByOrganizer)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", eventHandler.HandleCreate)
				r.Put("/{id}", eventHandler.HandleUpdate)
				r.Delete("/{id}", eventHandler.HandleDelete)
				r.Post("/{id}/attend", eventHandler.HandleAttend)
				r.Post("/{id}/unattend", eventHandler.HandleUnattend)
				r.Post("/{id}/like", eventHandler.HandleLike)
				r.Post("/{id}/comments", eventHandler.HandleComment)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.With(optionalAuth).Get("/{id}", userHandler.HandleGetProfile)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Put("/profile", userHandler.HandleUpdateProfile)
				r.Put("/preferences", userHandler.HandleUpdatePreferences)
				r.Get("/follow-requests", userHandler.HandleFollowRequests)
				r.Post("/{id}/follow", userHandler.HandleFollow())
				r.Post("/{id}/unfollow", userHandler.HandleUnfollow())
				r.Post("/{id}/request-follow", userHandler.HandleRequestFollow())
				r.Post("/{id}/cancel-follow-request", userHandler.HandleCancelFollowRequest())
				r.Post("/{id}/accept-follow", userHandler.HandleAcceptFollow())
				r.Post("/{id}/reject-follow", userHandler.HandleRejectFollow())
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", notificationHandler.HandleList)
			r.Put("/{id}/read", notificationHandler.HandleMarkRead)
			r.Put("/mark-all-read", notificationHandler.HandleMarkAllRead)
		})
	})

	return nil
}

// Router exposes the assembled handler, used by the HTTP tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the listener until SIGINT/SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer func() {
		if err := s.db.Close(context.Background()); err != nil {
			s.logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.MongoDB),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	}
}
