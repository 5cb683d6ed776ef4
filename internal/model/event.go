package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Categories is the fixed set of event categories. Every event belongs to
// exactly one of these; anything else is a validation error.
var Categories = []string{
	"music", "art", "food", "sports", "tech", "wellness",
	"nightlife", "culture", "education", "nature", "family", "business",
}

// ValidCategory reports whether c is one of the fixed categories.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// GeoPoint is a GeoJSON point with an optional human-readable place name.
//
// Coordinates are [longitude, latitude], longitude first, which is the
// GeoJSON convention the store's 2dsphere index expects. Callers always
// work in (lat, lng) pairs; the repository builds the GeoJSON form.
type GeoPoint struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
	Name        string    `bson:"name" json:"name"`
}

// NewGeoPoint builds a GeoPoint from a (lat, lng) pair.
func NewGeoPoint(lat, lng float64, name string) GeoPoint {
	return GeoPoint{
		Type:        "Point",
		Coordinates: []float64{lng, lat},
		Name:        name,
	}
}

// Lat returns the latitude component, 0 if the point is malformed.
func (p GeoPoint) Lat() float64 {
	if len(p.Coordinates) != 2 {
		return 0
	}
	return p.Coordinates[1]
}

// Lng returns the longitude component, 0 if the point is malformed.
func (p GeoPoint) Lng() float64 {
	if len(p.Coordinates) != 2 {
		return 0
	}
	return p.Coordinates[0]
}

// Comment is an embedded event comment. Comments are append-only; they are
// never edited or removed in place.
type Comment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Event is a single published event.
//
// Attendees and Likes are id sets maintained with atomic conditional
// updates, never read-modify-write, so concurrent toggles cannot lose
// each other. When Capacity is set (> 0), attendees never exceeds it;
// the capacity check is part of the same filtered update that adds the
// attendee.
type Event struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category" json:"category"`

	// Date is the calendar day of the event; Time is the wall-clock start
	// ("20:30") kept as the clients submit it.
	Date time.Time `bson:"date" json:"date"`
	Time string    `bson:"time" json:"time"`

	Location GeoPoint `bson:"location" json:"location"`

	Price    float64 `bson:"price" json:"price"`
	IsFree   bool    `bson:"isFree" json:"isFree"`
	Capacity int     `bson:"capacity,omitempty" json:"capacity,omitempty"` // 0 = unlimited

	HasParking           bool   `bson:"hasParking" json:"hasParking"`
	AcceptsOnlinePayment bool   `bson:"acceptsOnlinePayment" json:"acceptsOnlinePayment"`
	Image                string `bson:"image" json:"image"`

	Organizer primitive.ObjectID   `bson:"organizer" json:"organizer"`
	Attendees []primitive.ObjectID `bson:"attendees" json:"attendees"`
	Likes     []primitive.ObjectID `bson:"likes" json:"likes"`
	Comments  []Comment            `bson:"comments" json:"comments"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// IsAttending reports whether id is in the attendees set.
func (e *Event) IsAttending(id primitive.ObjectID) bool {
	return containsID(e.Attendees, id)
}

// IsLikedBy reports whether id is in the likes set.
func (e *Event) IsLikedBy(id primitive.ObjectID) bool {
	return containsID(e.Likes, id)
}
