// internal/database/mongodb.go
package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// KVDocument represents the MongoDB document structure for one stored key
type KVDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

type MongoStore struct {
	Client  *mongo.Client
	Entries *mongo.Collection
}

func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Ping the database to verify connection
	if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	log.Println("Successfully connected to MongoDB!")

	return &MongoStore{
		Client:  client,
		Entries: client.Database(database).Collection("kv"),
	}, nil
}

func (m *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc KVDocument
	err := m.Entries.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, newKeyNotFoundError(key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %v", key, err)
	}
	return []byte(doc.Value), nil
}

func (m *MongoStore) Put(ctx context.Context, key string, value []byte) error {
	opts := options.Update().SetUpsert(true)
	update := bson.M{"$set": KVDocument{
		Key:       key,
		Value:     string(value),
		UpdatedAt: time.Now(),
	}}

	if _, err := m.Entries.UpdateOne(ctx, bson.M{"_id": key}, update, opts); err != nil {
		return fmt.Errorf("failed to write key %s: %v", key, err)
	}
	return nil
}

func (m *MongoStore) Delete(ctx context.Context, key string) error {
	if _, err := m.Entries.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete key %s: %v", key, err)
	}
	return nil
}

func (m *MongoStore) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
