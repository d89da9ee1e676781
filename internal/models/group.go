package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	GroupNameMinLen = 1
	GroupNameMaxLen = 24
	MaxGroupMembers = 100
)

// Group is a named set of users that capsules can be shared with.
type Group struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name  string             `bson:"name" json:"name"`
	Owner string             `bson:"owner" json:"owner"`
	Users []string           `bson:"users" json:"users"`
}
