package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"quickexpert/internal/models"
	"quickexpert/internal/utils"
)

const (
	inboxKeyPrefix = "inbox_"
	UsersKey       = "all_users"
)

// InboxKey returns the storage key of a user's inbox.
func InboxKey(userID string) string {
	return inboxKeyPrefix + userID
}

// InboxRepository reads and writes inboxes and the shared user list.
// A missing or corrupt document reads as an empty value and a log line. Any
// other read failure is returned as ErrDatabase alongside the empty value, so
// callers that write back can tell a stand-in from real data.
type InboxRepository struct {
	store KVStore
}

func NewInboxRepository(store KVStore) *InboxRepository {
	return &InboxRepository{store: store}
}

// LoadInbox returns the persisted conversations of userID with unread counters
// recomputed. The inbox is never nil; when err is non-nil it is an empty
// stand-in that must not be persisted.
func (r *InboxRepository) LoadInbox(ctx context.Context, userID string) (*models.Inbox, error) {
	var conversations []*models.Conversation
	if err := r.loadJSON(ctx, InboxKey(userID), &conversations); err != nil {
		log.Printf("InboxRepository: using empty inbox for user %s: %v", userID, err)
		if !utils.IsErrorCode(err, utils.ErrCorruptData) {
			return models.NewInbox(userID, nil), err
		}
		conversations = nil
	}

	kept := conversations[:0]
	for _, c := range conversations {
		if c != nil {
			kept = append(kept, c)
		}
	}
	return models.NewInbox(userID, kept), nil
}

// SaveInbox persists the conversations of inbox that contain at least one message.
func (r *InboxRepository) SaveInbox(ctx context.Context, inbox *models.Inbox) error {
	return r.saveJSON(ctx, InboxKey(inbox.OwnerID), inbox.Persistable())
}

// LoadUsers follows the LoadInbox contract for the all_users document.
func (r *InboxRepository) LoadUsers(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := r.loadJSON(ctx, UsersKey, &users); err != nil {
		log.Printf("InboxRepository: using empty user list: %v", err)
		if !utils.IsErrorCode(err, utils.ErrCorruptData) {
			return []*models.User{}, err
		}
		return []*models.User{}, nil
	}

	kept := users[:0]
	for _, u := range users {
		if u != nil && u.ID != "" {
			kept = append(kept, u)
		}
	}
	return kept, nil
}

func (r *InboxRepository) SaveUsers(ctx context.Context, users []*models.User) error {
	return r.saveJSON(ctx, UsersKey, users)
}

func (r *InboxRepository) loadJSON(ctx context.Context, key string, target interface{}) error {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrKeyNotFound) {
			return nil
		}
		return utils.NewAppError(utils.ErrDatabase, "failed to read "+key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return utils.NewAppError(utils.ErrCorruptData, "corrupt document "+key, err)
	}
	return nil
}

func (r *InboxRepository) saveJSON(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %v", key, err)
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to persist "+key, err)
	}
	return nil
}
