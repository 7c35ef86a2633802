package posts

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"inkwell/db"
	"inkwell/models"
)

// MongoBlockStore keeps blocks in their own collection keyed by post ID.
type MongoBlockStore struct{}

func (MongoBlockStore) ListByPost(ctx context.Context, postID string) ([]models.Block, error) {
	cur, err := db.BlocksCollection.Find(ctx, bson.M{"postId": postID},
		options.Find().SetSort(bson.M{"order": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var blocks []models.Block
	if err := cur.All(ctx, &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

func (MongoBlockStore) Insert(ctx context.Context, b models.Block) error {
	_, err := db.BlocksCollection.InsertOne(ctx, b)
	return err
}

func (MongoBlockStore) Update(ctx context.Context, b models.Block) error {
	_, err := db.BlocksCollection.ReplaceOne(ctx, bson.M{"_id": b.ID}, b)
	return err
}

func (MongoBlockStore) Delete(ctx context.Context, id string) error {
	_, err := db.BlocksCollection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (MongoBlockStore) DeleteByPost(ctx context.Context, postID string) error {
	_, err := db.BlocksCollection.DeleteMany(ctx, bson.M{"postId": postID})
	return err
}

func (MongoBlockStore) SetOrder(ctx context.Context, id string, order int) error {
	_, err := db.BlocksCollection.UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"order": order}})
	return err
}
