package rss

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"inkwell/db"
	"inkwell/models"
	"inkwell/mq"
	"inkwell/rdx"
	"inkwell/utils"
)

var ErrNotFound = errors.New("rss source not found")

const seenTTL = 7 * 24 * time.Hour

// MongoSourceStore reads feed sources from the rsssources collection.
type MongoSourceStore struct{}

func (MongoSourceStore) ByID(ctx context.Context, id string) (models.RssSource, error) {
	var source models.RssSource
	err := db.RssSourcesCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&source)
	if err == mongo.ErrNoDocuments {
		return models.RssSource{}, ErrNotFound
	}
	return source, err
}

func (MongoSourceStore) ListActive(ctx context.Context) ([]models.RssSource, error) {
	cur, err := db.RssSourcesCollection.Find(ctx, bson.M{"isStopped": false})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var sources []models.RssSource
	if err := cur.All(ctx, &sources); err != nil {
		return nil, err
	}
	return sources, nil
}

// MongoPostSink inserts ingested posts, with a redis cache in front of the
// natural-key existence check.
type MongoPostSink struct{}

func (MongoPostSink) Exists(ctx context.Context, field, value string) (bool, error) {
	key := seenKey(field, value)
	if v, err := rdx.Get(ctx, key); err == nil && v != "" {
		return true, nil
	}

	count, err := db.PostsCollection.CountDocuments(ctx, bson.M{bsonField(field): value})
	if err != nil {
		return false, err
	}
	if count > 0 {
		if err := rdx.Set(ctx, key, "1", seenTTL); err != nil {
			log.Printf("cache seen key %s: %v", key, err)
		}
		return true, nil
	}
	return false, nil
}

func (MongoPostSink) Insert(ctx context.Context, p models.Post, blocks []models.Block) error {
	if _, err := db.PostsCollection.InsertOne(ctx, p); err != nil {
		return err
	}
	if len(blocks) > 0 {
		docs := make([]interface{}, len(blocks))
		for i, b := range blocks {
			docs[i] = b
		}
		if _, err := db.BlocksCollection.InsertMany(ctx, docs); err != nil {
			return err
		}
	}

	if p.Title != "" {
		if err := rdx.Set(ctx, seenKey("title", p.Title), "1", seenTTL); err != nil {
			log.Printf("cache seen key for %s: %v", p.ID, err)
		}
	}
	if p.ExternalID != "" {
		if err := rdx.Set(ctx, seenKey("guid", p.ExternalID), "1", seenTTL); err != nil {
			log.Printf("cache seen key for %s: %v", p.ID, err)
		}
	}

	mq.Emit(ctx, "post-created", models.Index{
		EntityType: "post",
		Method:     "POST",
		EntityId:   p.ID,
		Title:      p.Title,
	})
	return nil
}

func seenKey(field, value string) string {
	return "rss:seen:" + field + ":" + utils.EncrypIt(value)
}

func bsonField(field string) string {
	switch field {
	case "guid", "externalId":
		return "externalId"
	default:
		return field
	}
}
