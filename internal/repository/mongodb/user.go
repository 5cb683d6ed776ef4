package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dabaher71/Enfiestados-App/internal/apperror"
	"github.com/dabaher71/Enfiestados-App/internal/model"
	"github.com/dabaher71/Enfiestados-App/internal/repository"
)

// Compile-time check that *DB satisfies the interface.
var _ repository.UserRepository = (*DB)(nil)

// CreateUser inserts a new user. The edge sets are initialized to empty arrays
// so later $addToSet/$pull updates never have to special-case a missing
// field. A duplicate email surfaces as apperror.ErrConflict via the unique
// index.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	if user.Interests == nil {
		user.Interests = []string{}
	}
	if user.Categories == nil {
		user.Categories = []string{}
	}
	if user.EventsOrganized == nil {
		user.EventsOrganized = []primitive.ObjectID{}
	}
	if user.EventsAttending == nil {
		user.EventsAttending = []primitive.ObjectID{}
	}
	if user.Followers == nil {
		user.Followers = []primitive.ObjectID{}
	}
	if user.Following == nil {
		user.Following = []primitive.ObjectID{}
	}
	if user.FollowRequests == nil {
		user.FollowRequests = []primitive.ObjectID{}
	}

	res, err := db.users.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("this email is already registered")
		}
		return fmt.Errorf("mongodb: inserting user: %w", err)
	}

	user.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id primitive.ObjectID) (*model.User, error) {
	var user model.User
	err := db.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", id.Hex())
		}
		return nil, fmt.Errorf("mongodb: getting user %s: %w", id.Hex(), err)
	}
	return &user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := db.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("mongodb: getting user by email: %w", err)
	}
	return &user, nil
}

func (db *DB) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	var user model.User
	err := db.users.FindOne(ctx, bson.M{"googleId": googleID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", googleID)
		}
		return nil, fmt.Errorf("mongodb: getting user by google id: %w", err)
	}
	return &user, nil
}

func (db *DB) GetUsersByID(ctx context.Context, ids []primitive.ObjectID) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}

	cur, err := db.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("mongodb: finding users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]model.User, 0, len(ids))
	for cur.Next(ctx) {
		var u model.User
		if err := cur.Decode(&u); err != nil {
			return nil, fmt.Errorf("mongodb: decoding user: %w", err)
		}
		users = append(users, u)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongodb: iterating users: %w", err)
	}
	return users, nil
}

// LinkGoogleID attaches a Google identity to an existing account. The
// avatar is only taken when the account has none, so a linked login never
// clobbers a picture the user chose here.
func (db *DB) LinkGoogleID(ctx context.Context, id primitive.ObjectID, googleID, avatar string) error {
	update := bson.M{
		"$set": bson.M{"googleId": googleID, "updatedAt": time.Now().UTC()},
	}
	res, err := db.users.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("mongodb: linking google id: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", id.Hex())
	}

	if avatar != "" {
		// Separate conditional write: only fill an empty avatar.
		_, err = db.users.UpdateOne(ctx,
			bson.M{"_id": id, "avatar": ""},
			bson.M{"$set": bson.M{"avatar": avatar}},
		)
		if err != nil {
			return fmt.Errorf("mongodb: setting linked avatar: %w", err)
		}
	}
	return nil
}

// UpdateProfile applies a partial profile edit and returns the updated
// document. FindOneAndUpdate avoids the read-then-write race a fetch +
// save would have.
func (db *DB) UpdateProfile(ctx context.Context, id primitive.ObjectID, update repository.ProfileUpdate) (*model.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}
	if update.CoverImage != nil {
		set["coverImage"] = *update.CoverImage
	}
	if update.Bio != nil {
		set["bio"] = *update.Bio
	}
	if update.Interests != nil {
		set["interests"] = update.Interests
	}
	if update.PublicProfile != nil {
		set["perfilPublico"] = *update.PublicProfile
	}

	return db.findOneAndSet(ctx, id, set)
}

// UpdatePreferences applies a partial feed-preferences edit.
func (db *DB) UpdatePreferences(ctx context.Context, id primitive.ObjectID, update repository.PreferencesUpdate) (*model.User, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if update.Location != nil {
		set["location"] = *update.Location
	}
	if update.Categories != nil {
		set["categories"] = update.Categories
	}

	return db.findOneAndSet(ctx, id, set)
}

func (db *DB) findOneAndSet(ctx context.Context, id primitive.ObjectID, set bson.M) (*model.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user model.User
	err := db.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("user", id.Hex())
		}
		return nil, fmt.Errorf("mongodb: updating user %s: %w", id.Hex(), err)
	}
	return &user, nil
}

// Follow adds follower→target to both edge sets as one logical unit.
// $addToSet makes it idempotent, so a double-submitted follow is harmless.
// Any pending request from the same follower is cleared in the same
// update, so an id never sits in followers and followRequests at once
// (a profile can turn public while a request is still pending).
func (db *DB) Follow(ctx context.Context, follower, target primitive.ObjectID) error {
	err := db.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := db.users.UpdateOne(sc,
			bson.M{"_id": target},
			bson.M{
				"$addToSet": bson.M{"followers": follower},
				"$pull":     bson.M{"followRequests": follower},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return apperror.NotFound("user", target.Hex())
		}

		res, err = db.users.UpdateOne(sc,
			bson.M{"_id": follower},
			bson.M{"$addToSet": bson.M{"following": target}},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return apperror.NotFound("user", follower.Hex())
		}
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("mongodb: follow %s -> %s: %w", follower.Hex(), target.Hex(), err)
	}
	return nil
}

// Unfollow removes follower→target from both edge sets. Idempotent.
func (db *DB) Unfollow(ctx context.Context, follower, target primitive.ObjectID) error {
	err := db.withTransaction(ctx, func(sc mongo.SessionContext) error {
		if _, err := db.users.UpdateOne(sc,
			bson.M{"_id": target},
			bson.M{"$pull": bson.M{"followers": follower}},
		); err != nil {
			return err
		}
		_, err := db.users.UpdateOne(sc,
			bson.M{"_id": follower},
			bson.M{"$pull": bson.M{"following": target}},
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("mongodb: unfollow %s -> %s: %w", follower.Hex(), target.Hex(), err)
	}
	return nil
}

// AddFollowRequest records a pending request. The filter rejects the write
// when the request is already pending or the requester already follows the
// target, so the conflict checks and the insert are one atomic step.
func (db *DB) AddFollowRequest(ctx context.Context, requester, target primitive.ObjectID) error {
	filter := bson.M{
		"_id":            target,
		"followRequests": bson.M{"$ne": requester},
		"followers":      bson.M{"$ne": requester},
	}
	res, err := db.users.UpdateOne(ctx, filter,
		bson.M{"$addToSet": bson.M{"followRequests": requester}},
	)
	if err != nil {
		return fmt.Errorf("mongodb: adding follow request: %w", err)
	}
	if res.MatchedCount == 0 {
		// Either the target doesn't exist or the filter rejected the
		// write. Disambiguate with one read.
		if _, err := db.GetUserByID(ctx, target); err != nil {
			return err
		}
		return apperror.Conflict("follow request already pending")
	}
	return nil
}

// RemoveFollowRequest drops a pending request (requester cancel or target
// reject; the mutation is the same either way).
func (db *DB) RemoveFollowRequest(ctx context.Context, requester, target primitive.ObjectID) error {
	res, err := db.users.UpdateOne(ctx,
		bson.M{"_id": target, "followRequests": requester},
		bson.M{"$pull": bson.M{"followRequests": requester}},
	)
	if err != nil {
		return fmt.Errorf("mongodb: removing follow request: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, err := db.GetUserByID(ctx, target); err != nil {
			return err
		}
		return &apperror.AppError{Err: apperror.ErrNotFound, Message: "no pending follow request from this user"}
	}
	return nil
}

// AcceptFollowRequest moves requester from the target's followRequests
// into followers, and adds target to the requester's following, both
// documents inside one transaction, so no intermediate state (requester in
// both sets, or in neither) is ever visible.
func (db *DB) AcceptFollowRequest(ctx context.Context, requester, target primitive.ObjectID) error {
	err := db.withTransaction(ctx, func(sc mongo.SessionContext) error {
		res, err := db.users.UpdateOne(sc,
			bson.M{"_id": target, "followRequests": requester},
			bson.M{
				"$pull":     bson.M{"followRequests": requester},
				"$addToSet": bson.M{"followers": requester},
			},
		)
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return &apperror.AppError{Err: apperror.ErrNotFound, Message: "no pending follow request from this user"}
		}

		_, err = db.users.UpdateOne(sc,
			bson.M{"_id": requester},
			bson.M{"$addToSet": bson.M{"following": target}},
		)
		return err
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("mongodb: accepting follow request: %w", err)
	}
	return nil
}

func (db *DB) AddOrganizedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	return db.updateEventList(ctx, userID, "$addToSet", "eventsOrganized", eventID)
}

func (db *DB) RemoveOrganizedEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	return db.updateEventList(ctx, userID, "$pull", "eventsOrganized", eventID)
}

func (db *DB) AddAttendingEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	return db.updateEventList(ctx, userID, "$addToSet", "eventsAttending", eventID)
}

func (db *DB) RemoveAttendingEvent(ctx context.Context, userID, eventID primitive.ObjectID) error {
	return db.updateEventList(ctx, userID, "$pull", "eventsAttending", eventID)
}

func (db *DB) updateEventList(ctx context.Context, userID primitive.ObjectID, op, field string, eventID primitive.ObjectID) error {
	res, err := db.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{op: bson.M{field: eventID}},
	)
	if err != nil {
		return fmt.Errorf("mongodb: updating %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", userID.Hex())
	}
	return nil
}
