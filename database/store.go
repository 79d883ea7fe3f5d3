// Package database persists completed proof sets in MongoDB so they survive
// restarts. Proofs for confirmed transactions are immutable, which makes
// every write an idempotent upsert.
package database

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"btc-prover/pkg/prover"
)

// MongoStore implements prover.Store over a single collection.
type MongoStore struct {
	proofs *mongo.Collection
}

func NewMongoStore(proofs *mongo.Collection) *MongoStore {
	return &MongoStore{proofs: proofs}
}

func (s *MongoStore) Get(ctx context.Context, txid string) (*prover.ProofSet, error) {
	var doc proofDocument
	err := s.proofs.FindOne(ctx, bson.D{{Key: "_id", Value: txid}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toProofSet()
}

func (s *MongoStore) Put(ctx context.Context, proof *prover.ProofSet) error {
	doc := newProofDocument(proof)
	_, err := s.proofs.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: doc.ID}},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) Delete(ctx context.Context, txid string) error {
	_, err := s.proofs.DeleteOne(ctx, bson.D{{Key: "_id", Value: txid}})
	return err
}

func (s *MongoStore) Clear(ctx context.Context) error {
	_, err := s.proofs.DeleteMany(ctx, bson.D{})
	return err
}
