package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Limits applied when a capsule is created or updated.
const (
	CapsuleNameMinLen     = 3
	CapsuleNameMaxLen     = 32
	DescriptionMaxLen     = 1000
	MaxTags               = 5
	MaxAllowedUsers       = 100
	MaxAllowedGroups      = 10
	MaxContentFiles       = 10
	MaxContentFileSize    = 10 << 20
	DefaultBackgroundType = 0
)

// Location is a geographic point attached to a capsule.
type Location struct {
	Lat float64 `bson:"lat" json:"lat"`
	Lon float64 `bson:"lon" json:"lon"`
}

// Content is one uploaded item of a capsule.
type Content struct {
	URL      string `bson:"url" json:"url"`
	MimeType string `bson:"mime_type" json:"mimeType"`
}

// Reaction is a single ledger entry; a user holds at most one per capsule.
type Reaction struct {
	UserID   string       `bson:"user_id" json:"userId"`
	Reaction ReactionKind `bson:"reaction" json:"reaction"`
}

// TimeCapsule is the stored capsule document.
type TimeCapsule struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner                string             `bson:"owner" json:"owner"`
	Name                 string             `bson:"name" json:"name"`
	Description          string             `bson:"description" json:"description"`
	Location             Location           `bson:"location" json:"location"`
	BackgroundType       int                `bson:"background_type" json:"backgroundType"`
	Contents             []Content          `bson:"contents" json:"contents"`
	CreateDate           time.Time          `bson:"create_date" json:"createDate"`
	OpenDate             time.Time          `bson:"open_date" json:"openDate"`
	IsPrivate            bool               `bson:"is_private" json:"isPrivate"`
	AllowedUsers         []string           `bson:"allowed_users" json:"allowedUsers"`
	AllowedGroups        []string           `bson:"allowed_groups" json:"allowedGroups"`
	Tags                 []string           `bson:"tags" json:"tags"`
	SubscribedUsers      []string           `bson:"subscribed_users" json:"-"`
	Reactions            []Reaction         `bson:"reactions" json:"-"`
	OpenNotificationSent bool               `bson:"open_notification_sent" json:"-"`
}

// HasRestrictions reports whether the capsule carries a user or group allow-list.
func (c *TimeCapsule) HasRestrictions() bool {
	return len(c.AllowedUsers) > 0 || len(c.AllowedGroups) > 0
}

// IsOpened reports whether the capsule's open date has been reached at now.
func (c *TimeCapsule) IsOpened(now time.Time) bool {
	return !now.Before(c.OpenDate)
}

// OwnerRef is the minimal owner reference exposed with a capsule.
type OwnerRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ReactionCount is one entry of a capsule's reaction tally.
type ReactionCount struct {
	Reaction ReactionKind `json:"reaction"`
	Count    int          `json:"count"`
}

// CapsuleView is the per-viewer projection of a capsule. Contents is nil
// (and omitted from JSON) until the capsule is opened.
type CapsuleView struct {
	ID             primitive.ObjectID `json:"id"`
	Owner          OwnerRef           `json:"owner"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Location       Location           `json:"location"`
	BackgroundType int                `json:"backgroundType"`
	Contents       *[]Content         `json:"contents,omitempty"`
	CreateDate     time.Time          `json:"createDate"`
	OpenDate       time.Time          `json:"openDate"`
	IsPrivate      bool               `json:"isPrivate"`
	AllowedUsers   []string           `json:"allowedUsers"`
	AllowedGroups  []string           `json:"allowedGroups"`
	Tags           []string           `json:"tags"`
	IsOpened       bool               `json:"isOpened"`
	IsSubscribed   bool               `json:"isSubscribed"`
	MyReaction     ReactionKind       `json:"myReaction"`
	ReactionsLean  []ReactionCount    `json:"reactionsLean"`
}

// CapsuleStatus narrows a feed to opened or closed capsules.
type CapsuleStatus string

const (
	StatusAny    CapsuleStatus = ""
	StatusOpened CapsuleStatus = "opened"
	StatusClosed CapsuleStatus = "closed"
)

// ParseStatus maps a query value to a status; unknown values mean no filter.
func ParseStatus(s string) CapsuleStatus {
	switch s {
	case "opened", "open":
		return StatusOpened
	case "closed":
		return StatusClosed
	default:
		return StatusAny
	}
}
