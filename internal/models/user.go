package models

import "time"

// User is an account known to the service. The id comes from the external
// identity provider.
type User struct {
	ID              string    `bson:"_id" json:"id"`
	Name            string    `bson:"name" json:"name"`
	Email           string    `bson:"email" json:"email"`
	FollowedByUsers []string  `bson:"followed_by_users" json:"-"`
	FollowingUsers  []string  `bson:"following_users" json:"-"`
	PreferredTags   []string  `bson:"preferred_tags" json:"preferredTags"`
	ProfileImageURL string    `bson:"profile_image_url,omitempty" json:"profileImageUrl,omitempty"`
	CreatedAt       time.Time `bson:"created_at" json:"createdAt"`
}

// Ref returns the minimal reference used in capsule views.
func (u *User) Ref() OwnerRef {
	return OwnerRef{ID: u.ID, Name: u.Name}
}

// PublicUser is the profile shape returned to other users.
type PublicUser struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	ProfileImageURL string   `json:"profileImageUrl,omitempty"`
	PreferredTags   []string `json:"preferredTags"`
	Followers       int      `json:"followers"`
	Following       int      `json:"following"`
	IsFollowedByMe  bool     `json:"isFollowedByMe"`
}
