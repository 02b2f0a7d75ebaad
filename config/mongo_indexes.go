package config

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	posts := db.Collection("blog_posts")
	_, err := posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// slug uniqueness closes the race between two cron-triggered generations
		{
			Keys: bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().
				SetName("uniq_slug").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "published_at", Value: -1}},
			Options: options.Index().SetName("by_status_published"),
		},
	})
	return err
}
