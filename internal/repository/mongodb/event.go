package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/repository"
)

var _ repository.EventRepository = (*DB)(nil)

// defaultRadiusM is the proximity-filter radius when the caller gives none.
const defaultRadiusM = 10_000

func (db *DB) CreateEvent(ctx context.Context, event *model.Event) error {
	event.CreatedAt = time.Now().UTC()
	if event.Attendees == nil {
		event.Attendees = []primitive.ObjectID{}
	}
	if event.Likes == nil {
		event.Likes = []primitive.ObjectID{}
	}
	if event.Comments == nil {
		event.Comments = []model.Comment{}
	}

	res, err := db.events.InsertOne(ctx, event)
	if err != nil {
		return fmt.Errorf("mongodb: inserting event: %w", err)
	}
	event.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) GetEventByID(ctx context.Context, id primitive.ObjectID) (*model.Event, error) {
	var event model.Event
	err := db.events.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("event", id.Hex())
		}
		return nil, fmt.Errorf("mongodb: getting event %s: %w", id.Hex(), err)
	}
	return &event, nil
}

func (db *DB) GetEventsByID(ctx context.Context, ids []primitive.ObjectID) ([]model.Event, error) {
	if len(ids) == 0 {
		return []model.Event{}, nil
	}
	cur, err := db.events.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongodb: finding events: %w", err)
	}
	return decodeEvents(ctx, cur)
}

// ListEvents returns events matching the filter, newest first. All filter
// clauses are conjunctive.
func (db *DB) ListEvents(ctx context.Context, filter repository.EventFilter) ([]model.Event, error) {
	query := bson.M{}

	if filter.Upcoming {
		// Start of the current UTC day: today's events are still upcoming.
		now := time.Now().UTC()
		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		query["date"] = bson.M{"$gte": startOfDay}
	}

	if filter.Category != "" {
		query["category"] = filter.Category
	}

	if filter.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
		}
	}

	if filter.Near != nil {
		radius := filter.RadiusM
		if radius <= 0 {
			radius = defaultRadiusM
		}
		query["location"] = bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": filter.Near.Coordinates,
				},
				"$maxDistance": radius,
			},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cur, err := db.events.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: listing events: %w", err)
	}
	return decodeEvents(ctx, cur)
}

func (db *DB) ListEventsByOrganizer(ctx context.Context, organizer primitive.ObjectID) ([]model.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := db.events.Find(ctx, bson.M{"organizer": organizer}, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb: listing events by organizer: %w", err)
	}
	return decodeEvents(ctx, cur)
}

// UpdateEvent replaces the editable fields of an event. The interaction
// sets (attendees, likes, comments) are deliberately not written here;
// they belong to their own atomic operations.
func (db *DB) UpdateEvent(ctx context.Context, event *model.Event) error {
	set := bson.M{
		"title":                event.Title,
		"description":          event.Description,
		"category":             event.Category,
		"date":                 event.Date,
		"time":                 event.Time,
		"location":             event.Location,
		"price":                event.Price,
		"isFree":               event.IsFree,
		"capacity":             event.Capacity,
		"hasParking":           event.HasParking,
		"acceptsOnlinePayment": event.AcceptsOnlinePayment,
		"image":                event.Image,
	}

	res, err := db.events.UpdateOne(ctx, bson.M{"_id": event.ID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("mongodb: updating event %s: %w", event.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("event", event.ID.Hex())
	}
	return nil
}

func (db *DB) DeleteEvent(ctx context.Context, id primitive.ObjectID) error {
	res, err := db.events.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongodb: deleting event %s: %w", id.Hex(), err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("event", id.Hex())
	}
	return nil
}

// AddAttendee adds userID to the attendee set, enforcing the capacity
// bound in the same filtered update. The $expr clause compares the current
// attendee count against capacity inside the server, so two racing attends
// on the last seat cannot both match.
//
// A capacity of 0 (or an absent field) means unlimited.
func (db *DB) AddAttendee(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	filter := bson.M{
		"_id":       eventID,
		"attendees": bson.M{"$ne": userID},
		"$expr": bson.M{"$or": bson.A{
			bson.M{"$lte": bson.A{"$capacity", 0}},
			bson.M{"$lt": bson.A{bson.M{"$size": "$attendees"}, "$capacity"}},
		}},
	}

	res, err := db.events.UpdateOne(ctx, filter,
		bson.M{"$addToSet": bson.M{"attendees": userID}},
	)
	if err != nil {
		return false, fmt.Errorf("mongodb: adding attendee: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}

	// The filter rejected the write: missing event, already attending, or
	// at capacity. One read disambiguates.
	event, err := db.GetEventByID(ctx, eventID)
	if err != nil {
		return false, err
	}
	if event.IsAttending(userID) {
		return false, nil
	}
	return false, apperror.Conflict("event is at capacity")
}

// RemoveAttendee removes userID from the attendee set.
func (db *DB) RemoveAttendee(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	res, err := db.events.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{"$pull": bson.M{"attendees": userID}},
	)
	if err != nil {
		return false, fmt.Errorf("mongodb: removing attendee: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, apperror.NotFound("event", eventID.Hex())
	}
	return res.ModifiedCount == 1, nil
}

// ToggleLike flips userID's membership in the like set. Two conditional
// updates cover both directions; whichever filter matches wins, and under
// concurrency each individual request still resolves to exactly one of
// the two outcomes.
func (db *DB) ToggleLike(ctx context.Context, eventID, userID primitive.ObjectID) (bool, int, error) {
	// Try to like first.
	res, err := db.events.UpdateOne(ctx,
		bson.M{"_id": eventID, "likes": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"likes": userID}},
	)
	if err != nil {
		return false, 0, fmt.Errorf("mongodb: liking event: %w", err)
	}

	liked := res.MatchedCount == 1
	if !liked {
		// Already liked (or missing event), so try to unlike.
		res, err = db.events.UpdateOne(ctx,
			bson.M{"_id": eventID, "likes": userID},
			bson.M{"$pull": bson.M{"likes": userID}},
		)
		if err != nil {
			return false, 0, fmt.Errorf("mongodb: unliking event: %w", err)
		}
		if res.MatchedCount == 0 {
			return false, 0, apperror.NotFound("event", eventID.Hex())
		}
	}

	event, err := db.GetEventByID(ctx, eventID)
	if err != nil {
		return false, 0, err
	}
	return liked, len(event.Likes), nil
}

// AddComment appends a comment to the event's embedded list.
func (db *DB) AddComment(ctx context.Context, eventID primitive.ObjectID, comment *model.Comment) error {
	comment.ID = primitive.NewObjectID()
	comment.CreatedAt = time.Now().UTC()

	res, err := db.events.UpdateOne(ctx,
		bson.M{"_id": eventID},
		bson.M{"$push": bson.M{"comments": comment}},
	)
	if err != nil {
		return fmt.Errorf("mongodb: adding comment: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("event", eventID.Hex())
	}
	return nil
}

func decodeEvents(ctx context.Context, cur *mongo.Cursor) ([]model.Event, error) {
	defer cur.Close(ctx)

	events := []model.Event{}
	for cur.Next(ctx) {
		var e model.Event
		if err := cur.Decode(&e); err != nil {
			return nil, fmt.Errorf("mongodb: decoding event: %w", err)
		}
		events = append(events, e)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: iterating events: %w", err)
	}
	return events, nil
}
