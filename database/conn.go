package database

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func NewMongoDBConnection(ctx context.Context, dbUri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(dbUri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return client, nil
}

// ProofsCollection returns the collection holding completed proof sets,
// keyed by display txid.
func ProofsCollection(client *mongo.Client, database string) *mongo.Collection {
	return client.Database(database).Collection("proofs")
}
