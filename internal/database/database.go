// internal/database/database.go
package database

import (
	"context"
	"fmt"

	"quickexpert/internal/config"
	"quickexpert/internal/utils"
)

// KVStore is the local key-value store backing user inboxes, the shared user
// directory and local accounts. Values are opaque JSON documents.
type KVStore interface {
	// Get returns an AppError with code ErrKeyNotFound when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close(ctx context.Context) error
}

func newKeyNotFoundError(key string, origin error) *utils.AppError {
	return utils.NewAppError(utils.ErrKeyNotFound, "key not found: "+key, origin)
}

// Open connects the backend selected by cfg.Type.
func Open(ctx context.Context, cfg *config.StorageConfig) (KVStore, error) {
	switch cfg.Type {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageMongo:
		return NewMongoStore(ctx, cfg.URI, cfg.Database)
	case config.StoragePostgres:
		return NewPostgresStore(ctx, cfg.URI)
	case config.StorageSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.StorageFirestore:
		return NewFirestoreStore(ctx, cfg.ProjectID, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", cfg.Type)
	}
}
