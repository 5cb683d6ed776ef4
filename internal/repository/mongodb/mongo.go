// Package mongodb implements the repository interfaces on MongoDB.
//
// Everything that mutates an id set (followers, attendees, likes, pending
// requests) is written as a single conditional update: the state check
// rides in the filter and the mutation in $addToSet/$pull, so concurrent
// requests cannot interleave a stale read with a write. The one mutation
// that spans two documents, accepting a follow request, runs in a session
// transaction.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	usersColl         = "users"
	eventsColl        = "events"
	notificationsColl = "notifications"
)

// DB wraps the mongo client and implements the repository interfaces.
type DB struct {
	client        *mongo.Client
	users         *mongo.Collection
	events        *mongo.Collection
	notifications *mongo.Collection
}

// Open connects to MongoDB, pings it, and ensures the indexes exist.
//
// Pinging up front turns a bad URI or an unreachable server into an error
// at startup instead of on the first query.
func Open(ctx context.Context, uri, dbName string) (*DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connecting: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: pinging: %w", err)
	}

	database := client.Database(dbName)
	db := &DB{
		client:        client,
		users:         database.Collection(usersColl),
		events:        database.Collection(eventsColl),
		notifications: database.Collection(notificationsColl),
	}

	if err := db.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: ensuring indexes: %w", err)
	}

	return db, nil
}

// Close disconnects the underlying client.
func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

// ensureIndexes creates the indexes the queries depend on. CreateMany is
// idempotent for identical definitions, so this is safe on every startup.
func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("users_email_unique"),
		},
		{
			// Sparse: password-only accounts have no googleId field at all.
			Keys:    bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("users_google_id_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}

	_, err = db.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// 2dsphere powers the $near proximity feed filter.
			Keys:    bson.D{{Key: "location", Value: "2dsphere"}},
			Options: options.Index().SetName("events_location_2dsphere"),
		},
		{
			Keys:    bson.D{{Key: "date", Value: 1}},
			Options: options.Index().SetName("events_date"),
		},
		{
			Keys:    bson.D{{Key: "organizer", Value: 1}},
			Options: options.Index().SetName("events_organizer"),
		},
	})
	if err != nil {
		return fmt.Errorf("events indexes: %w", err)
	}

	_, err = db.notifications.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "recipient", Value: 1},
				{Key: "read", Value: 1},
				{Key: "createdAt", Value: -1},
			},
			Options: options.Index().SetName("notifications_inbox"),
		},
	})
	if err != nil {
		return fmt.Errorf("notifications indexes: %w", err)
	}

	return nil
}

// withTransaction runs fn inside a session transaction.
//
// Requires a replica set (a single-node one is enough; this is how
// MongoDB is deployed for this app; standalone mongod has no transaction
// support).
func (db *DB) withTransaction(ctx context.Context, fn func(ctx mongo.SessionContext) error) error {
	session, err := db.client.StartSession()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}
