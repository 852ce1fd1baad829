package models

import (
	"sort"
	"strings"
	"time"
)

// Participant is the display metadata of a conversation counterpart.
type Participant struct {
	ID           string `json:"id"`
	DisplayName  string `json:"displayName"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
	PresenceText string `json:"presenceText,omitempty"`
}

// Conversation is one user's local copy of a pairwise thread.
type Conversation struct {
	ID          string      `json:"id"`
	Counterpart Participant `json:"counterpart"`
	Messages    []*Message  `json:"messages"`
	CreatedAt   Timestamp   `json:"createdAt"`

	// UnreadCount is a cache of CountUnread; it is recomputed on load and
	// after every mutation and never trusted from storage.
	UnreadCount int `json:"unreadCount"`
}

// ConversationID is "<ownerId>_<counterpartId>", so the two copies of one
// thread carry different ids.
func ConversationID(ownerID, counterpartID string) string {
	return ownerID + "_" + counterpartID
}

func NewConversation(ownerID string, counterpart Participant, at time.Time) *Conversation {
	return &Conversation{
		ID:          ConversationID(ownerID, counterpart.ID),
		Counterpart: counterpart,
		Messages:    []*Message{},
		CreatedAt:   NewTimestamp(at),
	}
}

func (c *Conversation) CountUnread(ownerID string) int {
	count := 0
	for _, m := range c.Messages {
		if m.SenderID != ownerID && m.Status == StatusUnread {
			count++
		}
	}
	return count
}

func (c *Conversation) RecomputeUnread(ownerID string) {
	c.UnreadCount = c.CountUnread(ownerID)
}

// LastActivity is the last message's timestamp, or the creation time of an empty conversation.
func (c *Conversation) LastActivity() time.Time {
	if n := len(c.Messages); n > 0 {
		return c.Messages[n-1].Timestamp.Time
	}
	return c.CreatedAt.Time
}

func (c *Conversation) LastMessage() *Message {
	if n := len(c.Messages); n > 0 {
		return c.Messages[n-1]
	}
	return nil
}

func (c *Conversation) FindMessage(messageID string) *Message {
	for _, m := range c.Messages {
		if m.ID == messageID {
			return m
		}
	}
	return nil
}

// Inbox is the list of conversations owned by one user.
type Inbox struct {
	OwnerID       string
	Conversations []*Conversation
}

func NewInbox(ownerID string, conversations []*Conversation) *Inbox {
	inbox := &Inbox{OwnerID: ownerID, Conversations: conversations}
	if inbox.Conversations == nil {
		inbox.Conversations = []*Conversation{}
	}
	inbox.RecomputeUnread()
	return inbox
}

func (in *Inbox) Find(counterpartID string) *Conversation {
	id := ConversationID(in.OwnerID, counterpartID)
	for _, c := range in.Conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Ensure returns the conversation with counterpart, creating an empty one if absent.
func (in *Inbox) Ensure(counterpart Participant, at time.Time) (*Conversation, bool) {
	if c := in.Find(counterpart.ID); c != nil {
		return c, false
	}
	c := NewConversation(in.OwnerID, counterpart, at)
	in.Conversations = append(in.Conversations, c)
	return c, true
}

func (in *Inbox) RecomputeUnread() {
	for _, c := range in.Conversations {
		if c.Messages == nil {
			c.Messages = []*Message{}
		}
		c.RecomputeUnread(in.OwnerID)
	}
}

func (in *Inbox) TotalUnread() int {
	total := 0
	for _, c := range in.Conversations {
		total += c.UnreadCount
	}
	return total
}

// Sorted returns the conversations by last activity, most recent first.
func (in *Inbox) Sorted() []*Conversation {
	out := make([]*Conversation, len(in.Conversations))
	copy(out, in.Conversations)
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].LastActivity(), out[j].LastActivity()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Search filters Sorted by a case-insensitive substring of the counterpart's name.
func (in *Inbox) Search(query string) []*Conversation {
	sorted := in.Sorted()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return sorted
	}
	out := make([]*Conversation, 0, len(sorted))
	for _, c := range sorted {
		if strings.Contains(strings.ToLower(c.Counterpart.DisplayName), query) {
			out = append(out, c)
		}
	}
	return out
}

// Persistable drops conversations that have no messages yet.
func (in *Inbox) Persistable() []*Conversation {
	out := make([]*Conversation, 0, len(in.Conversations))
	for _, c := range in.Conversations {
		if len(c.Messages) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy safe to hand outside the owning actor.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	cp.Messages = make([]*Message, len(c.Messages))
	for i, m := range c.Messages {
		msg := *m
		cp.Messages[i] = &msg
	}
	return &cp
}

// Remove drops the conversation with counterpartID, if present.
func (in *Inbox) Remove(counterpartID string) {
	id := ConversationID(in.OwnerID, counterpartID)
	for i, c := range in.Conversations {
		if c.ID == id {
			in.Conversations = append(in.Conversations[:i], in.Conversations[i+1:]...)
			return
		}
	}
}
