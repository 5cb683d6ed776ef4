package service

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dabaher71/Enfiestados-App/internal/model"
)

// ProfileView is the response shape for a profile read. Which fields carry
// data depends on the visibility rule in ComposeProfile.
type ProfileView struct {
	ID              primitive.ObjectID   `json:"_id"`
	Name            string               `json:"name"`
	Avatar          string               `json:"avatar,omitempty"`
	CoverImage      string               `json:"coverImage,omitempty"`
	Bio             string               `json:"bio,omitempty"`
	PublicProfile   bool                 `json:"perfilPublico"`
	Followers       []primitive.ObjectID `json:"followers"`
	Following       []primitive.ObjectID `json:"following"`
	Interests       []string             `json:"interests,omitempty"`
	Location        string               `json:"location,omitempty"`
	Categories      []string             `json:"categories,omitempty"`
	EventsOrganized []model.Event        `json:"eventsOrganized"`

	// Set only on a redacted view.
	IsPrivate         bool `json:"isPrivate,omitempty"`
	HasPendingRequest bool `json:"hasPendingRequest,omitempty"`
}

// ComposeProfile applies the visibility rule and shapes the response.
//
// The full profile with the organized-events list is visible when the
// viewer is the target, the target is public, or the viewer is a follower.
// Anyone else gets the redacted shape: the identity fields and the edge
// sets, an empty event list, isPrivate, and whether the viewer already has
// a request pending.
//
// Pure function of its inputs; viewer is nil for anonymous requests.
func ComposeProfile(viewer *primitive.ObjectID, target *model.User, events []model.Event) *ProfileView {
	view := &ProfileView{
		ID:            target.ID,
		Name:          target.Name,
		Avatar:        target.Avatar,
		CoverImage:    target.CoverImage,
		Bio:           target.Bio,
		PublicProfile: target.PublicProfile,
		Followers:     emptyIfNil(target.Followers),
		Following:     emptyIfNil(target.Following),
	}

	visible := target.PublicProfile ||
		(viewer != nil && (*viewer == target.ID || target.HasFollower(*viewer)))

	if !visible {
		view.IsPrivate = true
		view.HasPendingRequest = viewer != nil && target.HasFollowRequestFrom(*viewer)
		view.EventsOrganized = []model.Event{}
		return view
	}

	view.Interests = target.Interests
	view.Location = target.Location
	view.Categories = target.Categories
	if events == nil {
		events = []model.Event{}
	}
	view.EventsOrganized = events
	return view
}

func emptyIfNil(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return []primitive.ObjectID{}
	}
	return ids
}
