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

var _ repository.NotificationRepository = (*DB)(nil)

func (db *DB) CreateNotification(ctx context.Context, n *model.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := db.notifications.InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (db *DB) GetNotificationByID(ctx context.Context, id primitive.ObjectID) (*model.Notification, error) {
	var n model.Notification
	err := db.notifications.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, apperror.NotFound("notification", id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("find notification: %w", err)
	}
	return &n, nil
}

func (db *DB) HasRecentNotification(ctx context.Context, recipient, sender primitive.ObjectID, typ model.NotificationType, event *primitive.ObjectID, since time.Time) (bool, error) {
	filter := bson.M{
		"recipient": recipient,
		"sender":    sender,
		"type":      typ,
		"createdAt": bson.M{"$gte": since},
	}
	if event != nil {
		filter["event"] = *event
	} else {
		filter["event"] = bson.M{"$exists": false}
	}
	count, err := db.notifications.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count recent notifications: %w", err)
	}
	return count > 0, nil
}

func (db *DB) ListNotifications(ctx context.Context, recipient primitive.ObjectID, limit int) ([]model.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := db.notifications.Find(ctx, bson.M{"recipient": recipient}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer cur.Close(ctx)

	notifications := []model.Notification{}
	if err := cur.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return notifications, nil
}

func (db *DB) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := db.notifications.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("notification", id.Hex())
	}
	return nil
}

func (db *DB) MarkAllRead(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	res, err := db.notifications.UpdateMany(ctx,
		bson.M{"recipient": recipient, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return res.ModifiedCount, nil
}

func (db *DB) CountUnread(ctx context.Context, recipient primitive.ObjectID) (int64, error) {
	count, err := db.notifications.CountDocuments(ctx, bson.M{"recipient": recipient, "read": false})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}
