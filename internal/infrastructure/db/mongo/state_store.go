package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const stateCollection = "client_state"

// StateStore is a KeyValueStore backed by a MongoDB collection, one document
// per key.
type StateStore struct {
	coll      *mongo.Collection
	namespace string
}

func NewStateStore(db *mongo.Database, namespace string) *StateStore {
	return &StateStore{coll: db.Collection(stateCollection), namespace: namespace}
}

type stateDoc struct {
	ID        string `bson:"_id"`
	Value     string `bson:"value"`
	UpdatedAt int64  `bson:"updated_at"`
}

func (s *StateStore) Get(ctx context.Context, key string) (string, bool, error) {
	var doc stateDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": s.docID(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("state get %s: %w", key, err)
	}
	return doc.Value, true, nil
}

// Set upserts the key; concurrent writers are last-write-wins.
func (s *StateStore) Set(ctx context.Context, key, value string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": s.docID(key)},
		bson.M{"$set": bson.M{"value": value, "updated_at": time.Now().UTC().Unix()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("state set %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": s.docID(key)}); err != nil {
		return fmt.Errorf("state delete %s: %w", key, err)
	}
	return nil
}

func (s *StateStore) Ping(ctx context.Context) error {
	return s.coll.Database().Client().Ping(ctx, nil)
}

func (s *StateStore) docID(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}
