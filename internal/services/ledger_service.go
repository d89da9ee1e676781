package services

import (
	"context"
	"errors"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/internal/visibility"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// LedgerService keeps the subscriptions and reactions stored on capsules.
// Every change is a single conditional update on the capsule document, so
// concurrent toggles by the same user cannot leave duplicate entries.
type LedgerService struct {
	capsules      CapsuleStore
	groups        GroupStore
	notifications NotificationSink
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(capsules CapsuleStore, groups GroupStore, notifications NotificationSink) *LedgerService {
	return &LedgerService{
		capsules:      capsules,
		groups:        groups,
		notifications: notifications,
	}
}

// ToggleSubscription subscribes userID to the capsule, or unsubscribes if
// already subscribed, and returns the new state. Subscribing requires the
// capsule to be visible to the user; unsubscribing does not.
func (s *LedgerService) ToggleSubscription(ctx context.Context, capsuleID, userID string) (bool, error) {
	capsule, err := s.load(ctx, capsuleID)
	if err != nil {
		return false, err
	}

	if containsString(capsule.SubscribedUsers, userID) {
		_, err := s.capsules.RemoveSubscriber(ctx, capsule.ID, userID)
		if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
			return false, err
		}
		logger.Log.WithFields(logrus.Fields{"capsule_id": capsuleID, "user": userID}).Info("Unsubscribed from capsule")
		return false, nil
	}

	if err := s.authorize(ctx, capsule, userID); err != nil {
		return false, err
	}

	if _, err := s.capsules.AddSubscriber(ctx, capsule.ID, userID); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Subscribed concurrently by another request of the same user.
			return true, nil
		}
		return false, err
	}
	logger.Log.WithFields(logrus.Fields{"capsule_id": capsuleID, "user": userID}).Info("Subscribed to capsule")

	if capsule.Owner != userID {
		capsuleRef := capsule.ID
		err := s.notifications.RecordEvent(ctx, models.Notification{
			Type:        models.NotificationSubscribed,
			ToUser:      capsule.Owner,
			ByUser:      userID,
			TimeCapsule: &capsuleRef,
		})
		if err != nil {
			logger.Log.WithError(err).Warn("Failed to record subscription notification")
		}
	}
	return true, nil
}

// SetReaction replaces the user's reaction with value, or clears it when
// value is the remove sentinel. Unknown values are rejected.
func (s *LedgerService) SetReaction(ctx context.Context, capsuleID, userID, value string) error {
	kind, ok := models.ParseReaction(value)
	if !ok {
		return ErrValidation.New("unknown reaction %q", value)
	}

	capsule, err := s.load(ctx, capsuleID)
	if err != nil {
		return err
	}

	if kind == models.ReactionRemove {
		return notFound(s.capsules.RemoveReaction(ctx, capsule.ID, userID), "capsule")
	}

	if err := s.authorize(ctx, capsule, userID); err != nil {
		return err
	}
	if err := s.capsules.SetReaction(ctx, capsule.ID, userID, kind); err != nil {
		return notFound(err, "capsule")
	}

	logger.Log.WithFields(logrus.Fields{
		"capsule_id": capsuleID,
		"user":       userID,
		"reaction":   kind,
	}).Info("Reaction set")
	return nil
}

func (s *LedgerService) load(ctx context.Context, capsuleID string) (*models.TimeCapsule, error) {
	objID, err := parseObjectID(capsuleID)
	if err != nil {
		return nil, err
	}
	capsule, err := s.capsules.GetCapsuleByID(ctx, objID)
	if err != nil {
		return nil, notFound(err, "capsule")
	}
	return capsule, nil
}

func (s *LedgerService) authorize(ctx context.Context, capsule *models.TimeCapsule, userID string) error {
	var groupIDs []string
	if len(capsule.AllowedGroups) > 0 && capsule.Owner != userID {
		var err error
		if groupIDs, err = s.groups.GetGroupIDsByMember(ctx, userID); err != nil {
			return err
		}
	}
	if !visibility.IsVisible(capsule, userID, groupIDs) {
		return ErrNotFound.New("capsule not found or not yours")
	}
	return nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
