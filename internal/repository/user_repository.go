package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserRepository handles database operations related to users.
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection("users"),
	}
}

// CreateUser inserts a new user into the database.
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.CreatedAt = time.Now()
	if user.FollowedByUsers == nil {
		user.FollowedByUsers = []string{}
	}
	if user.FollowingUsers == nil {
		user.FollowingUsers = []string{}
	}
	if user.PreferredTags == nil {
		user.PreferredTags = []string{}
	}

	if _, err := r.collection.InsertOne(ctx, user); err != nil {
		logrus.WithError(err).Error("Failed to insert user into database")
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	logrus.WithField("userID", user.ID).Info("User inserted successfully")
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"userID": id,
			"error":  err,
		}).Warn("Failed to find user by ID")
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}
	return &user, nil
}

// GetUsersByIDs fetches the users with the given ids. Unknown ids are skipped.
func (r *UserRepository) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch users by IDs: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// ToggleFollow makes followerID follow targetID, or unfollow if already
// following, and reports the resulting state. Each side is a conditional
// set update; the two documents are not updated atomically together.
func (r *UserRepository) ToggleFollow(ctx context.Context, followerID, targetID string) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": followerID, "following_users": bson.M{"$ne": targetID}},
		bson.M{"$addToSet": bson.M{"following_users": targetID}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to follow user: %w", err)
	}

	if res.MatchedCount == 1 {
		if _, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": targetID},
			bson.M{"$addToSet": bson.M{"followed_by_users": followerID}},
		); err != nil {
			return false, fmt.Errorf("failed to add follower: %w", err)
		}
		return true, nil
	}

	res, err = r.collection.UpdateOne(ctx,
		bson.M{"_id": followerID},
		bson.M{"$pull": bson.M{"following_users": targetID}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to unfollow user: %w", err)
	}
	if res.MatchedCount == 0 {
		return false, mongo.ErrNoDocuments
	}
	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": targetID},
		bson.M{"$pull": bson.M{"followed_by_users": followerID}},
	); err != nil {
		return false, fmt.Errorf("failed to remove follower: %w", err)
	}
	return false, nil
}

// SetPreferredTags replaces a user's preferred tags.
func (r *UserRepository) SetPreferredTags(ctx context.Context, id string, tags []string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"preferred_tags": tags}},
	)
	if err != nil {
		return fmt.Errorf("failed to save preferred tags: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	logrus.WithField("userID", id).Info("Preferred tags updated")
	return nil
}
