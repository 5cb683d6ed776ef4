package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/repository"
)

const MaxBioLength = 500

// UserService implements the follow-state engine and profile management.
//
// The follow states per (viewer, target) pair are: self, not following,
// request pending, following. Direct follow is allowed only on public
// profiles; private profiles take the request/accept path.
type UserService struct {
	users    repository.UserRepository
	events   repository.EventRepository
	notifier Notifier
	logger   *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	events repository.EventRepository,
	notifier Notifier,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		events:   events,
		notifier: notifier,
		logger:   logger,
	}
}

// Follow creates a mutual follower/following edge. Only valid against a
// public profile; private targets must be asked via RequestFollow.
func (s *UserService) Follow(ctx context.Context, follower, target primitive.ObjectID) error {
	if follower == target {
		return apperror.ValidationFailed("target", "cannot follow yourself")
	}

	targetUser, err := s.users.GetUserByID(ctx, target)
	if err != nil {
		return err
	}
	if !targetUser.PublicProfile {
		return apperror.Forbidden("this profile is private, send a follow request instead")
	}

	if err := s.users.Follow(ctx, follower, target); err != nil {
		return fmt.Errorf("service/user: following %s: %w", target.Hex(), err)
	}

	s.logger.Info("user followed",
		slog.String("follower", follower.Hex()),
		slog.String("target", target.Hex()),
	)
	return nil
}

// Unfollow removes the edge from both users. Unfollowing someone not
// followed is a no-op.
func (s *UserService) Unfollow(ctx context.Context, follower, target primitive.ObjectID) error {
	if follower == target {
		return apperror.ValidationFailed("target", "cannot unfollow yourself")
	}
	if err := s.users.Unfollow(ctx, follower, target); err != nil {
		return fmt.Errorf("service/user: unfollowing %s: %w", target.Hex(), err)
	}
	return nil
}

// RequestFollow files a pending request against a private profile and
// notifies the target. A request already pending is a Conflict.
func (s *UserService) RequestFollow(ctx context.Context, requester, target primitive.ObjectID) error {
	if requester == target {
		return apperror.ValidationFailed("target", "cannot send a follow request to yourself")
	}

	targetUser, err := s.users.GetUserByID(ctx, target)
	if err != nil {
		return err
	}
	if targetUser.PublicProfile {
		return apperror.ValidationFailed("target", "this profile is public, follow it directly")
	}

	if err := s.users.AddFollowRequest(ctx, requester, target); err != nil {
		return err
	}

	if err := s.notifier.Notify(ctx, target, requester, model.NotificationFollowRequest, nil, ""); err != nil {
		// The request itself succeeded; a lost notification is not worth
		// failing the call over.
		s.logger.Warn("follow request notification failed",
			slog.String("target", target.Hex()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// CancelFollowRequest withdraws the requester's own pending request.
func (s *UserService) CancelFollowRequest(ctx context.Context, requester, target primitive.ObjectID) error {
	return s.users.RemoveFollowRequest(ctx, requester, target)
}

// AcceptFollowRequest moves requester from the target's pending set into
// followers/following. The repository applies both documents as one unit.
func (s *UserService) AcceptFollowRequest(ctx context.Context, target, requester primitive.ObjectID) error {
	if target == requester {
		return apperror.ValidationFailed("requester", "cannot accept your own request")
	}
	if err := s.users.AcceptFollowRequest(ctx, requester, target); err != nil {
		return err
	}
	s.logger.Info("follow request accepted",
		slog.String("target", target.Hex()),
		slog.String("requester", requester.Hex()),
	)
	return nil
}

// RejectFollowRequest drops the pending request without creating an edge.
func (s *UserService) RejectFollowRequest(ctx context.Context, target, requester primitive.ObjectID) error {
	return s.users.RemoveFollowRequest(ctx, requester, target)
}

// GetProfile returns the target's profile through the visibility rule.
// Organized events are fetched only when the viewer may see them.
func (s *UserService) GetProfile(ctx context.Context, viewer *primitive.ObjectID, targetID primitive.ObjectID) (*ProfileView, error) {
	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	visible := target.PublicProfile ||
		(viewer != nil && (*viewer == target.ID || target.HasFollower(*viewer)))

	var events []model.Event
	if visible && len(target.EventsOrganized) > 0 {
		events, err = s.events.GetEventsByID(ctx, target.EventsOrganized)
		if err != nil {
			return nil, fmt.Errorf("service/user: fetching organized events: %w", err)
		}
	}

	return ComposeProfile(viewer, target, events), nil
}

// ProfileInput is a partial profile edit from the client. Nil means leave
// the field alone.
type ProfileInput struct {
	Name          *string
	Avatar        *string
	CoverImage    *string
	Bio           *string
	Interests     []string
	PublicProfile *bool
}

// UpdateProfile validates and applies a partial edit, returning the updated
// record.
func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileInput) (*model.User, error) {
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if len(trimmed) < MinNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("name must be at least %d characters", MinNameLength))
		}
		in.Name = &trimmed
	}
	if in.Bio != nil && len(*in.Bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
	}

	user, err := s.users.UpdateProfile(ctx, userID, repository.ProfileUpdate{
		Name:          in.Name,
		Avatar:        in.Avatar,
		CoverImage:    in.CoverImage,
		Bio:           in.Bio,
		Interests:     in.Interests,
		PublicProfile: in.PublicProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("service/user: updating profile: %w", err)
	}
	return user, nil
}

// UpdatePreferences applies the feed preferences (home location and
// interesting categories).
func (s *UserService) UpdatePreferences(ctx context.Context, userID primitive.ObjectID, location *string, categories []string) (*model.User, error) {
	for _, c := range categories {
		if !model.ValidCategory(c) {
			return nil, apperror.ValidationFailed("categories",
				fmt.Sprintf("unknown category %q", c))
		}
	}

	user, err := s.users.UpdatePreferences(ctx, userID, repository.PreferencesUpdate{
		Location:   location,
		Categories: categories,
	})
	if err != nil {
		return nil, fmt.Errorf("service/user: updating preferences: %w", err)
	}
	return user, nil
}

// RequesterView is one pending incoming follow request, populated for the
// approval list.
type RequesterView struct {
	ID     primitive.ObjectID `json:"_id"`
	Name   string             `json:"name"`
	Avatar string             `json:"avatar,omitempty"`
}

// FollowRequests lists who is waiting on the user's approval.
func (s *UserService) FollowRequests(ctx context.Context, userID primitive.ObjectID) ([]RequesterView, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(user.FollowRequests) == 0 {
		return []RequesterView{}, nil
	}

	requesters, err := s.users.GetUsersByID(ctx, user.FollowRequests)
	if err != nil {
		return nil, fmt.Errorf("service/user: fetching requesters: %w", err)
	}

	views := make([]RequesterView, 0, len(requesters))
	for _, u := range requesters {
		views = append(views, RequesterView{ID: u.ID, Name: u.Name, Avatar: u.Avatar})
	}
	return views, nil
}
