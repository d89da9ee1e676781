package repository

import (
	"context"
	"fmt"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type NotificationRepository struct {
	collection *mongo.Collection
}

func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection("notifications"),
	}
}

// CreateNotification inserts a new notification
func (r *NotificationRepository) CreateNotification(ctx context.Context, notif *models.Notification) error {
	_, err := r.collection.InsertOne(ctx, notif)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert notification")
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// CreateNotificationIfAbsent inserts notif unless a notification matching key
// already exists. It reports whether a new document was written.
func (r *NotificationRepository) CreateNotificationIfAbsent(ctx context.Context, notif *models.Notification, key bson.M) (bool, error) {
	opts := options.Update().SetUpsert(true)
	res, err := r.collection.UpdateOne(ctx, key, bson.M{"$setOnInsert": notif}, opts)
	if err != nil {
		logrus.WithError(err).Error("Failed to upsert notification")
		return false, fmt.Errorf("failed to create notification: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

// GetUserNotifications returns one page of a user's notifications, newest first
func (r *NotificationRepository) GetUserNotifications(ctx context.Context, userID string, skip, limit int64) ([]models.Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "time", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"to_user": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	return notifications, nil
}

// DeleteNotifications removes every notification matching the given fields.
func (r *NotificationRepository) DeleteNotifications(ctx context.Context, toUser string, notifType models.NotificationType, capsuleID primitive.ObjectID) error {
	filter := bson.M{"to_user": toUser, "type": notifType, "time_capsule": capsuleID}
	if _, err := r.collection.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete notifications: %w", err)
	}
	return nil
}

// DeleteCapsuleNotifications removes every notification referencing a capsule.
func (r *NotificationRepository) DeleteCapsuleNotifications(ctx context.Context, capsuleID primitive.ObjectID) error {
	result, err := r.collection.DeleteMany(ctx, bson.M{"time_capsule": capsuleID})
	if err != nil {
		return fmt.Errorf("failed to delete capsule notifications: %w", err)
	}
	logrus.Infof("Deleted %d notifications of capsule %s", result.DeletedCount, capsuleID.Hex())
	return nil
}
