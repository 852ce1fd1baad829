package actors

import (
	stdctx "context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"quickexpert/internal/database"
	"quickexpert/internal/models"
	"quickexpert/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	jsonpatch "github.com/evanphx/json-patch/v5"
)

const storeTimeout = 5 * time.Second

// Message types for ConversationActor
type (
	LoadInboxMsg struct {
		OwnerID string
	}

	OpenInboxMsg struct {
		OwnerID string
	}

	CloseInboxMsg struct {
		OwnerID string
	}

	CreateOrGetConversationMsg struct {
		OwnerID     string
		Counterpart models.Participant
	}

	// SendMessageMsg carries both participants already resolved, so the
	// actor can build each side's conversation without a directory lookup.
	SendMessageMsg struct {
		Sender   models.Participant
		Receiver models.Participant
		Text     string
	}

	MarkConversationReadMsg struct {
		OwnerID       string
		CounterpartID string
	}

	ListConversationsMsg struct {
		OwnerID string
		Query   string
	}

	GetConversationMsg struct {
		OwnerID       string
		CounterpartID string
	}

	TotalUnreadMsg struct {
		OwnerID string
	}

	PatchConversationMsg struct {
		OwnerID       string
		CounterpartID string
		Patch         []byte
	}

	GetOpenInboxCountMsg struct{}

	markDeliveredMsg struct {
		OwnerID       string
		CounterpartID string
		MessageID     string
	}
)

// MarkReadResult reports how many incoming messages changed to read.
type MarkReadResult struct {
	ConversationID string `json:"conversationId"`
	Updated        int    `json:"updated"`
}

// Event types pushed to connected clients.
const (
	EventMessageNew       = "message.new"
	EventMessageStatus    = "message.status"
	EventConversationRead = "conversation.read"
)

type Event struct {
	Type           string                `json:"type"`
	ConversationID string                `json:"conversationId"`
	Message        *models.Message       `json:"message,omitempty"`
	MessageID      string                `json:"messageId,omitempty"`
	Status         *models.MessageStatus `json:"status,omitempty"`
	Count          int                   `json:"count,omitempty"`
}

// Notifier pushes events to a user's live connections.
type Notifier interface {
	Notify(userID string, event interface{})
}

// ConversationActor owns every inbox mutation. Inboxes of signed-in users are
// cached in memory; everything else is read from and written to storage.
type ConversationActor struct {
	repo          *database.InboxRepository
	inboxes       map[string]*models.Inbox
	pending       map[string]*time.Timer
	notifier      Notifier
	deliveryDelay time.Duration
	metrics       *utils.MetricsCollector
}

func NewConversationActor(repo *database.InboxRepository, notifier Notifier, deliveryDelay time.Duration, metrics *utils.MetricsCollector) actor.Actor {
	return &ConversationActor{
		repo:          repo,
		inboxes:       make(map[string]*models.Inbox),
		pending:       make(map[string]*time.Timer),
		notifier:      notifier,
		deliveryDelay: deliveryDelay,
		metrics:       metrics,
	}
}

func (a *ConversationActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *LoadInboxMsg:
		a.handleLoadInbox(context, msg)
	case *OpenInboxMsg:
		a.handleOpenInbox(context, msg)
	case *CloseInboxMsg:
		a.handleCloseInbox(context, msg)
	case *CreateOrGetConversationMsg:
		a.handleCreateOrGet(context, msg)
	case *SendMessageMsg:
		a.handleSendMessage(context, msg)
	case *markDeliveredMsg:
		a.handleMarkDelivered(msg)
	case *MarkConversationReadMsg:
		a.handleMarkRead(context, msg)
	case *ListConversationsMsg:
		a.handleListConversations(context, msg)
	case *GetConversationMsg:
		a.handleGetConversation(context, msg)
	case *TotalUnreadMsg:
		inbox, _ := a.openInbox(msg.OwnerID)
		context.Respond(inbox.TotalUnread())
	case *PatchConversationMsg:
		a.handlePatchConversation(context, msg)
	case *GetOpenInboxCountMsg:
		context.Respond(len(a.inboxes))
	case *actor.Stopping:
		for key, timer := range a.pending {
			timer.Stop()
			delete(a.pending, key)
		}
	}
}

func (a *ConversationActor) handleLoadInbox(context actor.Context, msg *LoadInboxMsg) {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
	defer cancel()

	inbox, _ := a.repo.LoadInbox(ctx, msg.OwnerID)
	context.Respond(cloneAll(inbox.Sorted()))
}

func (a *ConversationActor) handleOpenInbox(context actor.Context, msg *OpenInboxMsg) {
	inbox, _ := a.openInbox(msg.OwnerID)
	log.Printf("ConversationActor: opened inbox of %s with %d conversations", msg.OwnerID, len(inbox.Conversations))
	context.Respond(inbox.TotalUnread())
}

// Closing only forgets the cached copy; storage and pending delivery timers
// are left alone.
func (a *ConversationActor) handleCloseInbox(context actor.Context, msg *CloseInboxMsg) {
	_, existed := a.inboxes[msg.OwnerID]
	delete(a.inboxes, msg.OwnerID)
	context.Respond(existed)
}

func (a *ConversationActor) handleCreateOrGet(context actor.Context, msg *CreateOrGetConversationMsg) {
	if msg.Counterpart.ID == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "counterpart id is required", nil))
		return
	}
	if msg.Counterpart.ID == msg.OwnerID {
		context.Respond(utils.NewAppError(utils.ErrSelfMessage, "cannot start a conversation with yourself", nil))
		return
	}

	inbox, _ := a.openInbox(msg.OwnerID)
	conversation, created := inbox.Ensure(msg.Counterpart, time.Now())
	if created {
		log.Printf("ConversationActor: created empty conversation %s", conversation.ID)
	}
	context.Respond(conversation.Clone())
}

func (a *ConversationActor) handleSendMessage(context actor.Context, msg *SendMessageMsg) {
	startTime := time.Now()

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		context.Respond((*models.Message)(nil))
		return
	}
	if msg.Sender.ID == "" || msg.Receiver.ID == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "sender and receiver are required", nil))
		return
	}
	if msg.Sender.ID == msg.Receiver.ID {
		context.Respond(utils.NewAppError(utils.ErrSelfMessage, "cannot send a message to yourself", nil))
		return
	}

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
	defer cancel()

	// Sender side
	senderInbox, err := a.openInbox(msg.Sender.ID)
	if err != nil {
		context.Respond(err)
		return
	}
	conversation, created := senderInbox.Ensure(msg.Receiver, startTime)
	message := models.NewMessage(msg.Sender.ID, msg.Sender.DisplayName, text, startTime)
	conversation.Messages = append(conversation.Messages, message)
	conversation.RecomputeUnread(msg.Sender.ID)

	if err := a.repo.SaveInbox(ctx, senderInbox); err != nil {
		conversation.Messages = conversation.Messages[:len(conversation.Messages)-1]
		if created {
			senderInbox.Remove(msg.Receiver.ID)
		}
		log.Printf("ConversationActor: failed to persist sender inbox %s: %v", msg.Sender.ID, err)
		context.Respond(err)
		return
	}

	// Receiver side. Not atomic with the write above and never rolled back.
	a.deliverToReceiver(ctx, msg.Sender, msg.Receiver.ID, message.ReceiverCopy())

	a.scheduleDelivered(context, msg.Sender.ID, msg.Receiver.ID, message.ID)

	a.metrics.AddOperationLatency("send_message", time.Since(startTime))
	out := *message
	context.Respond(&out)
}

func (a *ConversationActor) deliverToReceiver(ctx stdctx.Context, sender models.Participant, receiverID string, copyMsg *models.Message) {
	inbox, cached := a.inboxes[receiverID]
	if !cached {
		var err error
		if inbox, err = a.repo.LoadInbox(ctx, receiverID); err != nil {
			log.Printf("ConversationActor: receiver copy of %s for %s skipped: %v", copyMsg.ID, receiverID, err)
			return
		}
	}

	conversation, _ := inbox.Ensure(sender, copyMsg.Timestamp.Time)
	conversation.Messages = append(conversation.Messages, copyMsg)
	conversation.RecomputeUnread(receiverID)

	if err := a.repo.SaveInbox(ctx, inbox); err != nil {
		log.Printf("ConversationActor: receiver copy of %s for %s not persisted: %v", copyMsg.ID, receiverID, err)
		return
	}

	a.notify(receiverID, &Event{
		Type:           EventMessageNew,
		ConversationID: conversation.ID,
		Message:        copyMsg,
		Count:          conversation.UnreadCount,
	})
}

// scheduleDelivered posts markDeliveredMsg back to this actor after the
// configured delay, so the transition runs in the mailbox like any other write.
func (a *ConversationActor) scheduleDelivered(context actor.Context, ownerID, counterpartID, messageID string) {
	deliver := &markDeliveredMsg{OwnerID: ownerID, CounterpartID: counterpartID, MessageID: messageID}
	self := context.Self()

	if a.deliveryDelay <= 0 {
		context.Send(self, deliver)
		return
	}

	root := context.ActorSystem().Root
	a.pending[messageID] = time.AfterFunc(a.deliveryDelay, func() {
		root.Send(self, deliver)
	})
}

func (a *ConversationActor) handleMarkDelivered(msg *markDeliveredMsg) {
	delete(a.pending, msg.MessageID)

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
	defer cancel()

	inbox, cached := a.inboxes[msg.OwnerID]
	if !cached {
		var err error
		if inbox, err = a.repo.LoadInbox(ctx, msg.OwnerID); err != nil {
			log.Printf("ConversationActor: delivered status of %s skipped: %v", msg.MessageID, err)
			return
		}
	}

	conversation := inbox.Find(msg.CounterpartID)
	if conversation == nil {
		log.Printf("ConversationActor: conversation for delivered message %s is gone", msg.MessageID)
		return
	}
	message := conversation.FindMessage(msg.MessageID)
	if message == nil || message.Status != models.StatusSent {
		return
	}

	message.Status = models.StatusDelivered
	if err := a.repo.SaveInbox(ctx, inbox); err != nil {
		log.Printf("ConversationActor: delivered status of %s not persisted: %v", msg.MessageID, err)
	}

	status := models.StatusDelivered
	a.notify(msg.OwnerID, &Event{
		Type:           EventMessageStatus,
		ConversationID: conversation.ID,
		MessageID:      message.ID,
		Status:         &status,
	})
}

func (a *ConversationActor) handleMarkRead(context actor.Context, msg *MarkConversationReadMsg) {
	startTime := time.Now()

	inbox, err := a.openInbox(msg.OwnerID)
	if err != nil {
		context.Respond(err)
		return
	}
	conversation := inbox.Find(msg.CounterpartID)
	if conversation == nil {
		context.Respond(utils.NewConversationNotFoundError(models.ConversationID(msg.OwnerID, msg.CounterpartID)))
		return
	}

	updated := 0
	for _, m := range conversation.Messages {
		if m.SenderID != msg.OwnerID && m.Status == models.StatusUnread {
			m.Status = models.StatusRead
			updated++
		}
	}
	conversation.RecomputeUnread(msg.OwnerID)

	if updated > 0 {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
		defer cancel()
		if err := a.repo.SaveInbox(ctx, inbox); err != nil {
			log.Printf("ConversationActor: read state of %s not persisted: %v", conversation.ID, err)
		}
		a.notify(msg.OwnerID, &Event{
			Type:           EventConversationRead,
			ConversationID: conversation.ID,
			Count:          updated,
		})
	}

	a.metrics.AddOperationLatency("mark_read", time.Since(startTime))
	context.Respond(&MarkReadResult{ConversationID: conversation.ID, Updated: updated})
}

func (a *ConversationActor) handleListConversations(context actor.Context, msg *ListConversationsMsg) {
	inbox, _ := a.openInbox(msg.OwnerID)
	context.Respond(cloneAll(inbox.Search(msg.Query)))
}

func (a *ConversationActor) handleGetConversation(context actor.Context, msg *GetConversationMsg) {
	inbox, _ := a.openInbox(msg.OwnerID)
	conversation := inbox.Find(msg.CounterpartID)
	if conversation == nil {
		context.Respond(utils.NewConversationNotFoundError(models.ConversationID(msg.OwnerID, msg.CounterpartID)))
		return
	}
	context.Respond(conversation.Clone())
}

// handlePatchConversation applies an RFC 7386 merge patch to the counterpart
// metadata of one conversation. The counterpart id is fixed.
func (a *ConversationActor) handlePatchConversation(context actor.Context, msg *PatchConversationMsg) {
	inbox, err := a.openInbox(msg.OwnerID)
	if err != nil {
		context.Respond(err)
		return
	}
	conversation := inbox.Find(msg.CounterpartID)
	if conversation == nil {
		context.Respond(utils.NewConversationNotFoundError(models.ConversationID(msg.OwnerID, msg.CounterpartID)))
		return
	}

	original, err := json.Marshal(conversation.Counterpart)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidPatch, "failed to encode counterpart", err))
		return
	}
	patched, err := jsonpatch.MergePatch(original, msg.Patch)
	if err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidPatch, "invalid merge patch", err))
		return
	}

	var counterpart models.Participant
	if err := json.Unmarshal(patched, &counterpart); err != nil {
		context.Respond(utils.NewAppError(utils.ErrInvalidPatch, "patched counterpart is malformed", err))
		return
	}
	if counterpart.ID != conversation.Counterpart.ID {
		context.Respond(utils.NewAppError(utils.ErrInvalidPatch, "counterpart id cannot be changed", nil))
		return
	}

	conversation.Counterpart = counterpart
	if len(conversation.Messages) > 0 {
		ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
		defer cancel()
		if err := a.repo.SaveInbox(ctx, inbox); err != nil {
			log.Printf("ConversationActor: patch of %s not persisted: %v", conversation.ID, err)
		}
	}
	context.Respond(conversation.Clone())
}

// openInbox returns the cached inbox of ownerID, loading it on first use.
// When storage could not be read the empty stand-in is returned uncached
// together with the error; readers may show it, writers must not save it.
func (a *ConversationActor) openInbox(ownerID string) (*models.Inbox, error) {
	if inbox, ok := a.inboxes[ownerID]; ok {
		return inbox, nil
	}

	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
	defer cancel()

	inbox, err := a.repo.LoadInbox(ctx, ownerID)
	if err != nil {
		return inbox, err
	}
	a.inboxes[ownerID] = inbox
	return inbox, nil
}

func (a *ConversationActor) notify(userID string, event *Event) {
	if a.notifier == nil {
		return
	}
	a.notifier.Notify(userID, event)
}

func cloneAll(conversations []*models.Conversation) []*models.Conversation {
	out := make([]*models.Conversation, len(conversations))
	for i, c := range conversations {
		out[i] = c.Clone()
	}
	return out
}
