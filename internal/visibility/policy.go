// Package visibility decides whether a capsule may be shown to a viewer.
//
// IsVisible and Filter express the same rule: IsVisible checks a capsule that
// is already in memory, Filter narrows a store query. Both must change
// together.
package visibility

import (
	"github.com/Dias221467/TimeCapsule/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// IsVisible reports whether viewerID may see c. An empty viewerID is a guest.
// The owner always sees their capsule; a private capsule is hidden from
// everyone else; a public capsule without allow-lists is visible to all; a
// public capsule with allow-lists is visible only to listed users and to
// members of listed groups.
func IsVisible(c *models.TimeCapsule, viewerID string, viewerGroupIDs []string) bool {
	if viewerID != "" && c.Owner == viewerID {
		return true
	}
	if c.IsPrivate {
		return false
	}
	if !c.HasRestrictions() {
		return true
	}
	if viewerID == "" {
		return false
	}
	if contains(c.AllowedUsers, viewerID) {
		return true
	}
	for _, g := range viewerGroupIDs {
		if contains(c.AllowedGroups, g) {
			return true
		}
	}
	return false
}

// Unrestricted matches public capsules with empty allow-lists.
func Unrestricted() bson.M {
	return bson.M{
		"is_private":       false,
		"allowed_users.0":  bson.M{"$exists": false},
		"allowed_groups.0": bson.M{"$exists": false},
	}
}

// Filter returns a query that matches exactly the capsules IsVisible accepts
// for the viewer.
func Filter(viewerID string, viewerGroupIDs []string) bson.M {
	if viewerID == "" {
		return Unrestricted()
	}

	clauses := bson.A{
		Unrestricted(),
		bson.M{"owner": viewerID},
		bson.M{"is_private": false, "allowed_users": viewerID},
	}
	if len(viewerGroupIDs) > 0 {
		clauses = append(clauses, bson.M{
			"is_private":     false,
			"allowed_groups": bson.M{"$in": viewerGroupIDs},
		})
	}
	return bson.M{"$or": clauses}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
