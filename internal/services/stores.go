package services

import (
	"context"
	"io"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CapsuleStore is the capsule persistence used by the services.
// Implemented by repository.CapsuleRepository.
type CapsuleStore interface {
	CreateCapsule(ctx context.Context, capsule *models.TimeCapsule) error
	GetCapsuleByID(ctx context.Context, id primitive.ObjectID) (*models.TimeCapsule, error)
	FindCapsules(ctx context.Context, q repository.CapsuleQuery) ([]models.TimeCapsule, error)
	UpdateCapsule(ctx context.Context, id primitive.ObjectID, owner string, upd repository.CapsuleUpdate) (*models.TimeCapsule, error)
	DeleteCapsule(ctx context.Context, id primitive.ObjectID, owner string) (*models.TimeCapsule, error)
	RemoveAllowedUser(ctx context.Context, id primitive.ObjectID, userID string) error
	AddSubscriber(ctx context.Context, id primitive.ObjectID, userID string) (*models.TimeCapsule, error)
	RemoveSubscriber(ctx context.Context, id primitive.ObjectID, userID string) (*models.TimeCapsule, error)
	SetReaction(ctx context.Context, id primitive.ObjectID, userID string, kind models.ReactionKind) error
	RemoveReaction(ctx context.Context, id primitive.ObjectID, userID string) error
}

// TagStore serves tag aggregations.
type TagStore interface {
	AllTags(ctx context.Context) ([]string, error)
	PopularTags(ctx context.Context, query string, limit int64) ([]repository.TagCount, error)
}

// GroupStore resolves group membership.
type GroupStore interface {
	GetGroupIDsByMember(ctx context.Context, userID string) ([]string, error)
	GetGroupsByIDs(ctx context.Context, ids []string) ([]models.Group, error)
}

// UserStore is the user persistence used by the services.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ToggleFollow(ctx context.Context, followerID, targetID string) (bool, error)
	SetPreferredTags(ctx context.Context, id string, tags []string) error
}

// NotificationStore is the notification persistence.
type NotificationStore interface {
	CreateNotification(ctx context.Context, notif *models.Notification) error
	CreateNotificationIfAbsent(ctx context.Context, notif *models.Notification, key bson.M) (bool, error)
	GetUserNotifications(ctx context.Context, userID string, skip, limit int64) ([]models.Notification, error)
	DeleteNotifications(ctx context.Context, toUser string, notifType models.NotificationType, capsuleID primitive.ObjectID) error
	DeleteCapsuleNotifications(ctx context.Context, capsuleID primitive.ObjectID) error
}

// NotificationSink receives side-effect events.
type NotificationSink interface {
	RecordEvent(ctx context.Context, notif models.Notification) error
}

// BlobStore keeps uploaded capsule contents.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, url string) error
}
