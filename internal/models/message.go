package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the delivery state of one copy of a message.
type MessageStatus int

const (
	StatusSent MessageStatus = iota + 1
	StatusDelivered
	StatusRead
	StatusUnread
)

var statusNames = map[MessageStatus]string{
	StatusSent:      "sent",
	StatusDelivered: "delivered",
	StatusRead:      "read",
	StatusUnread:    "unread",
}

func (s MessageStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("MessageStatus(%d)", int(s))
}

func (s MessageStatus) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown message status %d", int(s))
	}
	return []byte(name), nil
}

func (s *MessageStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseMessageStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseMessageStatus(value string) (MessageStatus, error) {
	for status, name := range statusNames {
		if name == value {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown message status %q", value)
}

// Message is one copy of a direct message. The sender and the receiver each
// hold their own copy, so the two Status values can differ.
type Message struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	SenderID   string        `json:"senderId"`
	SenderName string        `json:"senderName"`
	Timestamp  Timestamp     `json:"timestamp"`
	Status     MessageStatus `json:"status"`
}

// NewMessageID returns a UUIDv7: a millisecond timestamp followed by random bits.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewMessage builds the sender-side copy of a message.
func NewMessage(senderID, senderName, text string, at time.Time) *Message {
	return &Message{
		ID:         NewMessageID(),
		Text:       text,
		SenderID:   senderID,
		SenderName: senderName,
		Timestamp:  NewTimestamp(at),
		Status:     StatusSent,
	}
}

// ReceiverCopy returns the copy stored in the receiver's inbox.
func (m *Message) ReceiverCopy() *Message {
	cp := *m
	cp.Status = StatusUnread
	return &cp
}
