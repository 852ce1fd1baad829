// Package identity connects the messaging core to an authentication service.
// The core only sees sign-in and sign-out transitions of a current user.
package identity

import (
	"context"
	"sync"
)

// User is what the identity service knows about a signed-in account.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarURL   string `json:"avatarUrl"`
}

type EventKind int

const (
	SignedIn EventKind = iota + 1
	SignedOut
)

func (k EventKind) String() string {
	switch k {
	case SignedIn:
		return "signed-in"
	case SignedOut:
		return "signed-out"
	default:
		return "unknown"
	}
}

// Event is one authentication state transition.
type Event struct {
	Kind EventKind
	User User
}

// Observer yields authentication transitions to subscribers.
type Observer interface {
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Verifier turns a bearer token into the user it was issued to.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// Session is an in-process Observer. Sign-in and sign-out calls are published
// synchronously to every subscriber in subscription order.
type Session struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]func(Event)
	order       []int
	active      map[string]User
}

func NewSession() *Session {
	return &Session{
		subscribers: make(map[int]func(Event)),
		active:      make(map[string]User),
	}
}

func (s *Session) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	s.order = append(s.order, id)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// SignIn records user as signed in and publishes a SignedIn event. Every call
// publishes, so repeated sign-ins refresh presence downstream.
func (s *Session) SignIn(user User) {
	s.mu.Lock()
	s.active[user.ID] = user
	s.mu.Unlock()
	s.publish(Event{Kind: SignedIn, User: user})
}

// SignOut publishes a SignedOut event if user is currently signed in.
func (s *Session) SignOut(user User) bool {
	s.mu.Lock()
	known, ok := s.active[user.ID]
	delete(s.active, user.ID)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.publish(Event{Kind: SignedOut, User: known})
	return true
}

// Current returns the signed-in user with the given id.
func (s *Session) Current(userID string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.active[userID]
	return user, ok
}

func (s *Session) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

func (s *Session) publish(event Event) {
	s.mu.RLock()
	handlers := make([]func(Event), 0, len(s.order))
	for _, id := range s.order {
		handlers = append(handlers, s.subscribers[id])
	}
	s.mu.RUnlock()

	for _, fn := range handlers {
		fn(event)
	}
}
