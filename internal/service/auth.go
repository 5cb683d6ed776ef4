// Package service contains the business logic layer.
//
// Handlers parse HTTP and shape responses; services enforce the rules
// (validation, permissions, the follow-state machine, notification fan-out)
// and talk to the repositories through their interfaces. Services never see
// an *http.Request and never import the mongodb package.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/auth"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/repository"
)

const (
	MinNameLength     = 2
	MinPasswordLength = 6
)

// AuthService handles registration, login, and the Google OAuth upsert.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the user record with the issued JWT so the handler can
// respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a credential-backed account and issues a token.
// A duplicate email surfaces as apperror.ErrConflict from the repository's
// unique index.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*AuthResult, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if len(name) < MinNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be at least %d characters", MinNameLength))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	// New profiles start public; the owner can switch to private later.
	user := &model.User{
		Name:          name,
		Email:         email,
		PasswordHash:  hash,
		PublicProfile: true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID.Hex()),
		slog.String("email", user.Email),
	)

	return s.issue(user)
}

// Login verifies credentials. Unknown email and wrong password produce the
// same Unauthorized error so the response does not reveal which one failed.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: looking up email: %w", err)
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	return s.issue(user)
}

// LoginOrRegisterGoogle resolves a Google profile to a local account.
//
// Resolution order: an account already linked to the Google ID; then an
// account with the same email, which gets the Google ID linked to it; else
// a fresh account with an unguessable random password.
func (s *AuthService) LoginOrRegisterGoogle(ctx context.Context, gu *auth.GoogleUser) (*AuthResult, error) {
	if gu == nil {
		return nil, fmt.Errorf("service/auth: google user must not be nil")
	}

	user, err := s.users.GetUserByGoogleID(ctx, gu.ID)
	if err == nil {
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up google id: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(gu.Email))
	user, err = s.users.GetUserByEmail(ctx, email)
	if err == nil {
		if err := s.users.LinkGoogleID(ctx, user.ID, gu.ID, gu.Picture); err != nil {
			return nil, fmt.Errorf("service/auth: linking google id: %w", err)
		}
		user.GoogleID = gu.ID
		if user.Avatar == "" {
			user.Avatar = gu.Picture
		}
		s.logger.Info("google identity linked", slog.String("userID", user.ID.Hex()))
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/auth: looking up email: %w", err)
	}

	// First login through Google. The account never gets a usable password;
	// hashing a random value keeps the credential path closed.
	hash, err := s.passwords.Hash(xid.New().String() + xid.New().String())
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing placeholder password: %w", err)
	}
	user = &model.User{
		Name:          gu.Name,
		Email:         email,
		PasswordHash:  hash,
		GoogleID:      gu.ID,
		Avatar:        gu.Picture,
		PublicProfile: true,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: creating google user: %w", err)
	}

	s.logger.Info("user registered via google", slog.String("userID", user.ID.Hex()))
	return s.issue(user)
}

// GetUserByID returns the full user record, used by the /api/auth/me handler
// after the middleware validates the token.
func (s *AuthService) GetUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id.Hex(), err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", user.ID.Hex(), err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
