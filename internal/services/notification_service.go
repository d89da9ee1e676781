package services

import (
	"context"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationService struct {
	repo NotificationStore

	Now func() time.Time
}

func NewNotificationService(repo NotificationStore) *NotificationService {
	return &NotificationService{
		repo: repo,
		Now:  time.Now,
	}
}

// RecordEvent stores a notification. Every kind except capsule-opened is
// skipped when an identical one exists; subscription notifications count as
// identical per recipient regardless of capsule or subscriber.
func (s *NotificationService) RecordEvent(ctx context.Context, notif models.Notification) error {
	notif.ID = primitive.NilObjectID
	notif.Time = s.Now()

	if notif.Type == models.NotificationCapsuleOpened {
		return s.repo.CreateNotification(ctx, &notif)
	}

	created, err := s.repo.CreateNotificationIfAbsent(ctx, &notif, dedupeKey(notif))
	if err != nil {
		return err
	}
	if !created {
		logrus.WithFields(logrus.Fields{
			"type":    notif.Type,
			"to_user": notif.ToUser,
		}).Debug("Notification already exists, skipped")
	}
	return nil
}

func dedupeKey(n models.Notification) bson.M {
	key := bson.M{"to_user": n.ToUser, "type": n.Type}
	if n.Type == models.NotificationSubscribed {
		return key
	}
	if n.ByUser != "" {
		key["by_user"] = n.ByUser
	}
	if n.TimeCapsule != nil {
		key["time_capsule"] = *n.TimeCapsule
	}
	if n.Group != nil {
		key["group"] = *n.Group
	}
	return key
}

// GetUserNotifications returns one page of a user's notifications, newest first
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID string, page int) ([]models.Notification, error) {
	page = clampPage(page)
	return s.repo.GetUserNotifications(ctx, userID,
		int64(page)*models.NotificationsPerPage, models.NotificationsPerPage)
}

// RemoveAllowedUserNotification deletes the notice that userID was added to
// a capsule's allow-list.
func (s *NotificationService) RemoveAllowedUserNotification(ctx context.Context, userID string, capsuleID primitive.ObjectID) error {
	return s.repo.DeleteNotifications(ctx, userID, models.NotificationAddedToAllowedUsers, capsuleID)
}

// DeleteCapsuleNotifications removes all notifications about a capsule.
func (s *NotificationService) DeleteCapsuleNotifications(ctx context.Context, capsuleID primitive.ObjectID) error {
	return s.repo.DeleteCapsuleNotifications(ctx, capsuleID)
}
