// Package model defines the data structures used throughout the application.
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered account.
//
// Identity comes from either email+password registration or Google OAuth.
// GoogleID is empty for password-only accounts; the sparse unique index on
// googleId allows any number of documents without the field.
//
// The social edges (Followers, Following, FollowRequests) are sets of user
// ids stored as arrays. All mutations go through $addToSet/$pull so the
// arrays never hold duplicates, and a user id never appears in its own
// followers or following.
//
// WHY primitive.ObjectID AND NOT string?
// Every id in the store is an ObjectID. Parsing the hex form exactly once
// at the HTTP boundary means the rest of the code never compares ids as
// strings, and a malformed id is rejected before it reaches a query.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"`
	GoogleID     string             `bson:"googleId,omitempty" json:"-"`

	Avatar     string   `bson:"avatar" json:"avatar"`
	CoverImage string   `bson:"coverImage" json:"coverImage"`
	Bio        string   `bson:"bio" json:"bio"` // at most 500 characters
	Interests  []string `bson:"interests" json:"interests"`

	// Feed preferences: a free-form home location and the event categories
	// the user wants surfaced first.
	Location   string   `bson:"location" json:"location"`
	Categories []string `bson:"categories" json:"categories"`

	EventsOrganized []primitive.ObjectID `bson:"eventsOrganized" json:"eventsOrganized"`
	EventsAttending []primitive.ObjectID `bson:"eventsAttending" json:"eventsAttending"`

	Followers      []primitive.ObjectID `bson:"followers" json:"followers"`
	Following      []primitive.ObjectID `bson:"following" json:"following"`
	FollowRequests []primitive.ObjectID `bson:"followRequests" json:"-"`

	// PublicProfile controls profile visibility. Public profiles can be
	// followed directly; private ones require an approved follow request.
	// The wire name perfilPublico is the field the clients already speak.
	PublicProfile bool `bson:"perfilPublico" json:"perfilPublico"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// HasFollower reports whether id is in the user's followers set.
func (u *User) HasFollower(id primitive.ObjectID) bool {
	return containsID(u.Followers, id)
}

// HasFollowRequestFrom reports whether id has a pending follow request.
func (u *User) HasFollowRequestFrom(id primitive.ObjectID) bool {
	return containsID(u.FollowRequests, id)
}

// IsFollowing reports whether the user follows id.
func (u *User) IsFollowing(id primitive.ObjectID) bool {
	return containsID(u.Following, id)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
