package mixins

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inkwell/db"
	"inkwell/models"
)

// MongoMixinStore reads mixins and settings from their collections.
type MongoMixinStore struct{}

func (MongoMixinStore) Setting(ctx context.Context, concatType string) (models.MixinSetting, error) {
	var setting models.MixinSetting
	err := db.MixinSettingsCollection.FindOne(ctx, bson.M{"concatType": concatType}).Decode(&setting)
	if err == mongo.ErrNoDocuments {
		return models.MixinSetting{}, ErrInvalidConcatType
	}
	return setting, err
}

func (MongoMixinStore) Visible(ctx context.Context, concatType string, skip, limit int64) ([]models.Mixin, error) {
	filter := bson.M{
		"concatTypes": concatType,
		"status":      models.MixinVisible,
	}
	// ties on orderPercentage break by ID for deterministic paging
	opts := options.Find().
		SetSort(bson.D{{Key: "orderPercentage", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(skip).
		SetLimit(limit)

	cur, err := db.MixinsCollection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var mixins []models.Mixin
	if err := cur.All(ctx, &mixins); err != nil {
		return nil, err
	}
	return mixins, nil
}
