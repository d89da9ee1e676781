package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/models"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CapsuleRepository handles database operations on time capsules.
type CapsuleRepository struct {
	collection *mongo.Collection
}

// NewCapsuleRepository creates a new instance of CapsuleRepository.
func NewCapsuleRepository(db *mongo.Database) *CapsuleRepository {
	return &CapsuleRepository{
		collection: db.Collection("time_capsules"),
	}
}

// CapsuleUpdate holds the owner-editable fields. Nil fields are left as is.
type CapsuleUpdate struct {
	Name          *string
	AllowedUsers  []string
	AllowedGroups []string
}

// CreateCapsule inserts a capsule. The caller assigns the id.
func (r *CapsuleRepository) CreateCapsule(ctx context.Context, capsule *models.TimeCapsule) error {
	if _, err := r.collection.InsertOne(ctx, capsule); err != nil {
		logger.Log.WithError(err).Error("Failed to insert capsule")
		return fmt.Errorf("failed to insert capsule: %w", err)
	}

	logger.Log.WithField("capsule_id", capsule.ID.Hex()).Info("Capsule created successfully")
	return nil
}

// GetCapsuleByID fetches a capsule by its id.
func (r *CapsuleRepository) GetCapsuleByID(ctx context.Context, id primitive.ObjectID) (*models.TimeCapsule, error) {
	var capsule models.TimeCapsule
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&capsule)
	if err != nil {
		return nil, fmt.Errorf("failed to find capsule %s: %w", id.Hex(), err)
	}
	return &capsule, nil
}

// FindCapsules runs a capsule listing query.
func (r *CapsuleRepository) FindCapsules(ctx context.Context, q CapsuleQuery) ([]models.TimeCapsule, error) {
	opts := options.Find().SetSort(bson.D{{Key: "create_date", Value: -1}})
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}

	cursor, err := r.collection.Find(ctx, q.Filter(), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch capsules: %w", err)
	}
	defer cursor.Close(ctx)

	capsules := []models.TimeCapsule{}
	if err := cursor.All(ctx, &capsules); err != nil {
		return nil, fmt.Errorf("failed to decode capsules: %w", err)
	}
	return capsules, nil
}

// UpdateCapsule applies an owner edit and returns the updated document.
// A capsule not owned by owner is reported as mongo.ErrNoDocuments.
func (r *CapsuleRepository) UpdateCapsule(ctx context.Context, id primitive.ObjectID, owner string, upd CapsuleUpdate) (*models.TimeCapsule, error) {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.AllowedUsers != nil {
		set["allowed_users"] = upd.AllowedUsers
	}
	if upd.AllowedGroups != nil {
		set["allowed_groups"] = upd.AllowedGroups
	}

	filter := bson.M{"_id": id, "owner": owner}
	if len(set) == 0 {
		var capsule models.TimeCapsule
		if err := r.collection.FindOne(ctx, filter).Decode(&capsule); err != nil {
			return nil, fmt.Errorf("failed to find capsule %s: %w", id.Hex(), err)
		}
		return &capsule, nil
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var capsule models.TimeCapsule
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&capsule)
	if err != nil {
		return nil, fmt.Errorf("failed to update capsule %s: %w", id.Hex(), err)
	}

	logger.Log.WithField("capsule_id", id.Hex()).Info("Capsule updated successfully")
	return &capsule, nil
}

// DeleteCapsule removes an owned capsule and returns what was deleted.
func (r *CapsuleRepository) DeleteCapsule(ctx context.Context, id primitive.ObjectID, owner string) (*models.TimeCapsule, error) {
	var capsule models.TimeCapsule
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id, "owner": owner}).Decode(&capsule)
	if err != nil {
		return nil, fmt.Errorf("failed to delete capsule %s: %w", id.Hex(), err)
	}

	logger.Log.WithField("capsule_id", id.Hex()).Info("Capsule deleted successfully")
	return &capsule, nil
}

// RemoveAllowedUser takes userID off a capsule's allow-list. It reports
// mongo.ErrNoDocuments if the user was not on the list.
func (r *CapsuleRepository) RemoveAllowedUser(ctx context.Context, id primitive.ObjectID, userID string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "allowed_users": userID},
		bson.M{"$pull": bson.M{"allowed_users": userID}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove allowed user: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// AddSubscriber adds userID to the subscribers unless already present and
// returns the capsule after the update. mongo.ErrNoDocuments means the
// capsule is missing or the user was already subscribed.
func (r *CapsuleRepository) AddSubscriber(ctx context.Context, id primitive.ObjectID, userID string) (*models.TimeCapsule, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": id, "subscribed_users": bson.M{"$ne": userID}},
		bson.M{"$addToSet": bson.M{"subscribed_users": userID}},
	)
}

// RemoveSubscriber removes userID from the subscribers if present.
// mongo.ErrNoDocuments means the capsule is missing or the user was not
// subscribed.
func (r *CapsuleRepository) RemoveSubscriber(ctx context.Context, id primitive.ObjectID, userID string) (*models.TimeCapsule, error) {
	return r.findOneAndUpdate(ctx,
		bson.M{"_id": id, "subscribed_users": userID},
		bson.M{"$pull": bson.M{"subscribed_users": userID}},
	)
}

// SetReaction replaces any reaction by userID with kind in a single update.
func (r *CapsuleRepository) SetReaction(ctx context.Context, id primitive.ObjectID, userID string, kind models.ReactionKind) error {
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"reactions": bson.M{"$concatArrays": bson.A{
				bson.M{"$filter": bson.M{
					"input": bson.M{"$ifNull": bson.A{"$reactions", bson.A{}}},
					"cond":  bson.M{"$ne": bson.A{"$$this.user_id", userID}},
				}},
				bson.A{bson.M{"user_id": userID, "reaction": kind}},
			}},
		}}},
	}

	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return fmt.Errorf("failed to set reaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// RemoveReaction clears any reaction by userID.
func (r *CapsuleRepository) RemoveReaction(ctx context.Context, id primitive.ObjectID, userID string) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$pull": bson.M{"reactions": bson.M{"user_id": userID}}},
	)
	if err != nil {
		return fmt.Errorf("failed to remove reaction: %w", err)
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// FindPendingOpen returns capsules whose open date is before now and whose
// opening has not been announced yet.
func (r *CapsuleRepository) FindPendingOpen(ctx context.Context, now time.Time) ([]models.TimeCapsule, error) {
	filter := bson.M{
		"open_date":              bson.M{"$lt": now},
		"open_notification_sent": bson.M{"$ne": true},
	}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending capsules: %w", err)
	}
	defer cursor.Close(ctx)

	var capsules []models.TimeCapsule
	if err := cursor.All(ctx, &capsules); err != nil {
		return nil, fmt.Errorf("failed to decode pending capsules: %w", err)
	}
	return capsules, nil
}

// MarkOpenNotificationSent flags the given capsules as announced.
func (r *CapsuleRepository) MarkOpenNotificationSent(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"open_notification_sent": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark capsules opened: %w", err)
	}

	logrus.WithField("count", res.ModifiedCount).Info("Capsules marked as opened")
	return nil
}

// AllTags returns every distinct tag used on unrestricted public capsules.
func (r *CapsuleRepository) AllTags(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "tags", CapsuleQuery{UnrestrictedOnly: true}.Filter())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tags: %w", err)
	}

	tags := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags, nil
}

// TagCount is a tag with the number of capsules using it.
type TagCount struct {
	Tag   string `bson:"_id" json:"tag"`
	Count int    `bson:"count" json:"count"`
}

// PopularTags returns the most used tags. When query is not empty only tags
// containing it, case-insensitively, are considered.
func (r *CapsuleRepository) PopularTags(ctx context.Context, query string, limit int64) ([]TagCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: CapsuleQuery{UnrestrictedOnly: true}.Filter()}},
		{{Key: "$unwind", Value: "$tags"}},
	}
	if query != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{"tags": containsRegex(query)}}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$group", Value: bson.M{"_id": "$tags", "count": bson.M{"$sum": 1}}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	)

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tags: %w", err)
	}
	defer cursor.Close(ctx)

	tags := []TagCount{}
	if err := cursor.All(ctx, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}

func (r *CapsuleRepository) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*models.TimeCapsule, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var capsule models.TimeCapsule
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&capsule)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			logger.Log.WithError(err).Error("Failed to update capsule subscribers")
		}
		return nil, err
	}
	return &capsule, nil
}
