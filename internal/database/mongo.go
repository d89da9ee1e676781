package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/TimeCapsule/internal/config"
	"github.com/Dias221467/TimeCapsule/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectDB opens the MongoDB client, verifies it with a ping and returns the
// configured database.
func ConnectDB(cfg *config.Config) (*mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Log.WithField("db", cfg.DBName).Info("Connected to MongoDB")
	return client.Database(cfg.DBName), nil
}

// EnsureIndexes creates the indexes the feeds, the sweeper and the
// notification dedupe lookups rely on. Creating an existing index is a no-op.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		"time_capsules": {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "create_date", Value: -1}}},
			{Keys: bson.D{{Key: "is_private", Value: 1}, {Key: "create_date", Value: -1}}},
			{Keys: bson.D{{Key: "open_notification_sent", Value: 1}, {Key: "open_date", Value: 1}}},
			{Keys: bson.D{{Key: "subscribed_users", Value: 1}}},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
		},
		"groups": {
			{Keys: bson.D{{Key: "users", Value: 1}}},
		},
		"notifications": {
			{Keys: bson.D{{Key: "to_user", Value: 1}, {Key: "time", Value: -1}}},
			{Keys: bson.D{{Key: "to_user", Value: 1}, {Key: "type", Value: 1}}},
		},
	}

	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
