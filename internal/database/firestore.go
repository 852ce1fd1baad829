package database

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreCollection = "kv"

// FirestoreStore keeps each key as a document of the "kv" collection.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %v", err)
	}

	log.Printf("Connected to Firestore project %s", projectID)
	return &FirestoreStore{client: client}, nil
}

func (f *FirestoreStore) Get(ctx context.Context, key string) ([]byte, error) {
	snap, err := f.client.Collection(firestoreCollection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, newKeyNotFoundError(key, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read key %s: %v", key, err)
	}

	value, err := snap.DataAt("value")
	if err != nil {
		return nil, fmt.Errorf("failed to read value of key %s: %v", key, err)
	}
	text, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T for key %s", value, key)
	}
	return []byte(text), nil
}

func (f *FirestoreStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := f.client.Collection(firestoreCollection).Doc(key).Set(ctx, map[string]interface{}{
		"value":     string(value),
		"updatedAt": firestore.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to write key %s: %v", key, err)
	}
	return nil
}

func (f *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := f.client.Collection(firestoreCollection).Doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete key %s: %v", key, err)
	}
	return nil
}

func (f *FirestoreStore) Close(ctx context.Context) error {
	return f.client.Close()
}
