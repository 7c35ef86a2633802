package db

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	PostsCollection         *mongo.Collection
	BlocksCollection        *mongo.Collection
	MediaCollection         *mongo.Collection
	TagsCollection          *mongo.Collection
	MixinsCollection        *mongo.Collection
	MixinSettingsCollection *mongo.Collection
	RssSourcesCollection    *mongo.Collection
	Client                  *mongo.Client
)

// Initialize MongoDB connection
func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "inkwell"
	}

	var err error
	Client, err = mongo.Connect(context.TODO(), options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}

	PostsCollection = Client.Database(dbName).Collection("posts")
	BlocksCollection = Client.Database(dbName).Collection("blocks")
	MediaCollection = Client.Database(dbName).Collection("media")
	TagsCollection = Client.Database(dbName).Collection("tags")
	MixinsCollection = Client.Database(dbName).Collection("mixins")
	MixinSettingsCollection = Client.Database(dbName).Collection("mixinsettings")
	RssSourcesCollection = Client.Database(dbName).Collection("rsssources")
}
