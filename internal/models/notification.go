package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationType tags what triggered a notification.
type NotificationType string

const (
	NotificationAddedToGroup        NotificationType = "addedToGroup"
	NotificationAddedToAllowedUsers NotificationType = "addedToAllowedUsers"
	NotificationSharedWithGroup     NotificationType = "capsuleSharedWithGroup"
	NotificationSubscribed          NotificationType = "subscribedToTimeCapsule"
	NotificationFollow              NotificationType = "follow"
	NotificationCapsuleOpened       NotificationType = "timeCapsuleOpened"
)

const NotificationsPerPage = 20

type Notification struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Type        NotificationType    `bson:"type" json:"type"`
	ToUser      string              `bson:"to_user" json:"toUser"`
	ByUser      string              `bson:"by_user,omitempty" json:"byUser,omitempty"`
	TimeCapsule *primitive.ObjectID `bson:"time_capsule,omitempty" json:"timeCapsule,omitempty"`
	Group       *primitive.ObjectID `bson:"group,omitempty" json:"group,omitempty"`
	Read        bool                `bson:"read" json:"read"`
	Time        time.Time           `bson:"time" json:"time"`
}
