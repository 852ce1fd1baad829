// Package engine is the typed entry point to the conversation store. Every
// call is a request to one of the store's actors, bounded by a timeout.
package engine

import (
	"context"
	"log"
	"strings"
	"time"

	"quickexpert/internal/database"
	"quickexpert/internal/engine/actors"
	"quickexpert/internal/identity"
	"quickexpert/internal/models"
	"quickexpert/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Engine coordinates communication between actors
type Engine struct {
	system        *actor.ActorSystem
	conversations *actor.PID
	users         *actor.PID
	timeout       time.Duration
	metrics       *utils.MetricsCollector
}

// Options configures NewEngine. Zero values fall back to defaults.
type Options struct {
	DeliveryDelay  time.Duration
	RequestTimeout time.Duration
	Notifier       actors.Notifier
}

func NewEngine(system *actor.ActorSystem, repo *database.InboxRepository, metrics *utils.MetricsCollector, opts Options) *Engine {
	context := system.Root

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}

	// Spawn conversation actor
	conversationProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewConversationActor(repo, opts.Notifier, opts.DeliveryDelay, metrics)
	})
	conversationPID := context.Spawn(conversationProps)

	// Spawn user actor
	userProps := actor.PropsFromProducer(func() actor.Actor {
		return actors.NewUserActor(repo, metrics)
	})
	userPID := context.Spawn(userProps)

	return &Engine{
		system:        system,
		conversations: conversationPID,
		users:         userPID,
		timeout:       opts.RequestTimeout,
		metrics:       metrics,
	}
}

// GetConversationActor returns the PID of the conversation actor
func (e *Engine) GetConversationActor() *actor.PID {
	return e.conversations
}

// GetUserActor returns the PID of the user actor
func (e *Engine) GetUserActor() *actor.PID {
	return e.users
}

// Stop stops both actors and waits for them to finish.
func (e *Engine) Stop() {
	if err := e.system.Root.StopFuture(e.conversations).Wait(); err != nil {
		log.Printf("Engine: conversation actor did not stop cleanly: %v", err)
	}
	if err := e.system.Root.StopFuture(e.users).Wait(); err != nil {
		log.Printf("Engine: user actor did not stop cleanly: %v", err)
	}
}

// AttachIdentity wires the store to an identity observer: a sign-in registers
// the user and opens their inbox, a sign-out closes it and marks them offline.
func (e *Engine) AttachIdentity(observer identity.Observer) func() {
	return observer.Subscribe(func(event identity.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		switch event.Kind {
		case identity.SignedIn:
			if _, err := e.RegisterUser(ctx, event.User); err != nil {
				log.Printf("Engine: failed to register %s: %v", event.User.ID, err)
				return
			}
			if _, err := e.OpenInbox(ctx, event.User.ID); err != nil {
				log.Printf("Engine: failed to open inbox of %s: %v", event.User.ID, err)
			}

		case identity.SignedOut:
			if err := e.CloseInbox(ctx, event.User.ID); err != nil {
				log.Printf("Engine: failed to close inbox of %s: %v", event.User.ID, err)
			}
			if err := e.SetOffline(ctx, event.User.ID); err != nil && !utils.IsErrorCode(err, utils.ErrUserNotFound) {
				log.Printf("Engine: failed to mark %s offline: %v", event.User.ID, err)
			}
		}
	})
}

// LoadInbox reads the persisted inbox of ownerID, bypassing the in-memory copy.
func (e *Engine) LoadInbox(ctx context.Context, ownerID string) ([]*models.Conversation, error) {
	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.LoadInboxMsg{OwnerID: ownerID})
	if err != nil {
		return nil, err
	}
	return result.([]*models.Conversation), nil
}

// OpenInbox caches the inbox of ownerID and returns its unread total.
func (e *Engine) OpenInbox(ctx context.Context, ownerID string) (int, error) {
	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.OpenInboxMsg{OwnerID: ownerID})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (e *Engine) CloseInbox(ctx context.Context, ownerID string) error {
	_, err := e.request(ctx, e.conversations, "ConversationActor", &actors.CloseInboxMsg{OwnerID: ownerID})
	return err
}

// OpenInboxCount is the number of inboxes currently cached in memory.
func (e *Engine) OpenInboxCount(ctx context.Context) (int, error) {
	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.GetOpenInboxCountMsg{})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

func (e *Engine) RegisterUser(ctx context.Context, user identity.User) (*models.User, error) {
	result, err := e.request(ctx, e.users, "UserActor", &actors.RegisterUserMsg{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		AvatarURL:   user.AvatarURL,
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

func (e *Engine) SetOffline(ctx context.Context, userID string) error {
	_, err := e.request(ctx, e.users, "UserActor", &actors.SetPresenceMsg{UserID: userID, Online: false})
	return err
}

func (e *Engine) ListUsers(ctx context.Context) ([]*models.User, error) {
	result, err := e.request(ctx, e.users, "UserActor", &actors.GetUsersMsg{})
	if err != nil {
		return nil, err
	}
	return result.([]*models.User), nil
}

func (e *Engine) GetUser(ctx context.Context, userID string) (*models.User, error) {
	result, err := e.request(ctx, e.users, "UserActor", &actors.GetUserMsg{UserID: userID})
	if err != nil {
		return nil, err
	}
	return result.(*models.User), nil
}

// CreateOrGetConversation returns the owner's conversation with counterpartID,
// creating an unsaved empty one when needed. The counterpart must be registered.
func (e *Engine) CreateOrGetConversation(ctx context.Context, ownerID, counterpartID string) (*models.Conversation, error) {
	if ownerID == counterpartID {
		return nil, utils.NewAppError(utils.ErrSelfMessage, "cannot start a conversation with yourself", nil)
	}
	counterpart, err := e.GetUser(ctx, counterpartID)
	if err != nil {
		return nil, err
	}

	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.CreateOrGetConversationMsg{
		OwnerID:     ownerID,
		Counterpart: counterpart.AsParticipant(),
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Conversation), nil
}

// SendMessage delivers text from senderID to receiverID. Blank text is a
// no-op and returns a nil message without error.
func (e *Engine) SendMessage(ctx context.Context, senderID, receiverID, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if senderID == receiverID {
		return nil, utils.NewAppError(utils.ErrSelfMessage, "cannot send a message to yourself", nil)
	}

	receiver, err := e.GetUser(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	sender := e.participant(ctx, senderID)

	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.SendMessageMsg{
		Sender:   sender,
		Receiver: receiver.AsParticipant(),
		Text:     text,
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Message), nil
}

// MarkConversationRead marks incoming unread messages as read and returns how many changed.
func (e *Engine) MarkConversationRead(ctx context.Context, ownerID, counterpartID string) (int, error) {
	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.MarkConversationReadMsg{
		OwnerID:       ownerID,
		CounterpartID: counterpartID,
	})
	if err != nil {
		return 0, err
	}
	return result.(*actors.MarkReadResult).Updated, nil
}

func (e *Engine) ListConversations(ctx context.Context, ownerID string) ([]*models.Conversation, error) {
	return e.SearchConversations(ctx, ownerID, "")
}

// SearchConversations lists conversations whose counterpart name contains query.
func (e *Engine) SearchConversations(ctx context.Context, ownerID, query string) ([]*models.Conversation, error) {
	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.ListConversationsMsg{
		OwnerID: ownerID,
		Query:   query,
	})
	if err != nil {
		return nil, err
	}
	return result.([]*models.Conversation), nil
}

func (e *Engine) GetConversation(ctx context.Context, ownerID, counterpartID string) (*models.Conversation, error) {
	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.GetConversationMsg{
		OwnerID:       ownerID,
		CounterpartID: counterpartID,
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Conversation), nil
}

func (e *Engine) TotalUnread(ctx context.Context, ownerID string) (int, error) {
	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.TotalUnreadMsg{OwnerID: ownerID})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}

// PatchConversation applies a JSON merge patch to the counterpart metadata.
func (e *Engine) PatchConversation(ctx context.Context, ownerID, counterpartID string, patch []byte) (*models.Conversation, error) {
	result, err := e.request(ctx, e.conversations, "ConversationActor", &actors.PatchConversationMsg{
		OwnerID:       ownerID,
		CounterpartID: counterpartID,
		Patch:         patch,
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.Conversation), nil
}

// participant resolves display metadata for userID, falling back to the bare id.
func (e *Engine) participant(ctx context.Context, userID string) models.Participant {
	user, err := e.GetUser(ctx, userID)
	if err != nil {
		return models.Participant{ID: userID, DisplayName: userID}
	}
	return user.AsParticipant()
}

func (e *Engine) request(ctx context.Context, pid *actor.PID, name string, msg interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.NewActorTimeoutError(name, err)
	}

	timeout := e.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	result, err := e.system.Root.RequestFuture(pid, msg, timeout).Result()
	if err != nil {
		log.Printf("Engine: request %T to %s failed: %v", msg, name, err)
		return nil, utils.NewActorTimeoutError(name, err)
	}
	if err, ok := result.(error); ok {
		return nil, err
	}
	return result, nil
}
