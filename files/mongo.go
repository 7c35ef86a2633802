package files

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"inkwell/db"
	"inkwell/models"
)

// MongoMediaStore persists media records in the media collection.
type MongoMediaStore struct{}

func (MongoMediaStore) Insert(ctx context.Context, m models.Media) error {
	_, err := db.MediaCollection.InsertOne(ctx, m)
	return err
}

func (MongoMediaStore) ByID(ctx context.Context, id string) (models.Media, error) {
	var m models.Media
	err := db.MediaCollection.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return models.Media{}, ErrNotFound
	}
	return m, err
}

func (MongoMediaStore) Delete(ctx context.Context, id string) error {
	_, err := db.MediaCollection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
