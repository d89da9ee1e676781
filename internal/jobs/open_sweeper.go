package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PendingCapsules is the capsule store as seen by the sweeper.
type PendingCapsules interface {
	FindPendingOpen(ctx context.Context, now time.Time) ([]models.TimeCapsule, error)
	MarkOpenNotificationSent(ctx context.Context, ids []primitive.ObjectID) error
}

// Groups resolves the groups a capsule is shared with.
type Groups interface {
	GetGroupsByIDs(ctx context.Context, ids []string) ([]models.Group, error)
}

// Notifier records notifications.
type Notifier interface {
	RecordEvent(ctx context.Context, notif models.Notification) error
}

// OpenSweeper announces capsules whose open date has passed. Each capsule
// moves once from pending to notified: recipients are notified first and the
// flag is set afterwards, so a capsule whose fan-out failed is retried on the
// next run.
type OpenSweeper struct {
	Capsules      PendingCapsules
	Groups        Groups
	Notifications Notifier

	Now func() time.Time
}

// NewOpenSweeper creates a new instance of OpenSweeper
func NewOpenSweeper(capsules PendingCapsules, groups Groups, notifications Notifier) *OpenSweeper {
	return &OpenSweeper{
		Capsules:      capsules,
		Groups:        groups,
		Notifications: notifications,
		Now:           time.Now,
	}
}

// RunOnce performs a single sweep.
func (s *OpenSweeper) RunOnce(ctx context.Context) error {
	pending, err := s.Capsules.FindPendingOpen(ctx, s.Now())
	if err != nil {
		return fmt.Errorf("failed to fetch pending capsules: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	done := make([]primitive.ObjectID, 0, len(pending))
	var failed int
	for i := range pending {
		if err := s.announce(ctx, &pending[i]); err != nil {
			failed++
			logrus.WithError(err).WithField("capsule_id", pending[i].ID.Hex()).Error("Failed to announce opened capsule")
			continue
		}
		done = append(done, pending[i].ID)
	}

	if err := s.Capsules.MarkOpenNotificationSent(ctx, done); err != nil {
		return fmt.Errorf("failed to mark capsules opened: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"opened": len(done),
		"failed": failed,
	}).Info("Capsule opening sweep completed")
	return nil
}

func (s *OpenSweeper) announce(ctx context.Context, c *models.TimeCapsule) error {
	recipients, err := s.recipients(ctx, c)
	if err != nil {
		return err
	}

	capsuleRef := c.ID
	for _, user := range recipients {
		err := s.Notifications.RecordEvent(ctx, models.Notification{
			Type:        models.NotificationCapsuleOpened,
			ToUser:      user,
			TimeCapsule: &capsuleRef,
		})
		if err != nil {
			return fmt.Errorf("failed to notify %s: %w", user, err)
		}
	}
	return nil
}

// recipients returns the owner, the allowed users and the members of the
// allowed groups, each once, in that order.
func (s *OpenSweeper) recipients(ctx context.Context, c *models.TimeCapsule) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}

	add(c.Owner)
	for _, u := range c.AllowedUsers {
		add(u)
	}
	if len(c.AllowedGroups) > 0 {
		groups, err := s.Groups.GetGroupsByIDs(ctx, c.AllowedGroups)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch groups: %w", err)
		}
		byID := make(map[string]models.Group, len(groups))
		for _, g := range groups {
			byID[g.ID.Hex()] = g
		}
		for _, id := range c.AllowedGroups {
			for _, u := range byID[id].Users {
				add(u)
			}
		}
	}
	return out, nil
}
