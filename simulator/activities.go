package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"quickexpert/internal/models"
)

var phrases = []string{
	"Hi, are you available this week?",
	"Thanks for the help!",
	"Could you review my contract?",
	"Let's schedule a call.",
	"What is your hourly rate?",
	"I sent the files over.",
	"Sounds good to me.",
}

func (s *EnhancedSimulator) SimulateActivities(ctx context.Context) {
	log.Printf("Starting activities simulation...")

	var wg sync.WaitGroup
	activities := []struct {
		name string
		rate float64
		run  func(context.Context, *rand.Rand) error
	}{
		{"send message", s.config.MessageRate, s.simulateSendMessage},
		{"read conversation", s.config.ReadRate, s.simulateReadConversation},
		{"poll unread", s.config.UnreadPollRate, s.simulateUnreadPoll},
	}

	for _, activity := range activities {
		if activity.rate <= 0 {
			continue
		}
		activity := activity
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runAtRate(ctx, activity.name, activity.rate, activity.run)
		}()
	}

	wg.Wait()
}

// runAtRate calls fn at ratePerUser times per user per minute across all users.
func (s *EnhancedSimulator) runAtRate(ctx context.Context, name string, ratePerUser float64, fn func(context.Context, *rand.Rand) error) {
	perMinute := ratePerUser * float64(max(s.config.NumUsers, 1))
	interval := time.Duration(float64(time.Minute) / perMinute)
	if interval < time.Millisecond {
		interval = time.Millisecond
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx, rng); err != nil && ctx.Err() == nil {
				log.Printf("Simulator: %s failed: %v", name, err)
			}
		}
	}
}

// pickPair returns a connected sender and a receiver chosen with a Zipf
// distribution, so a few users receive most of the traffic.
func (s *EnhancedSimulator) pickPair(rng *rand.Rand) (*SimulatedUser, *SimulatedUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.users) < 2 {
		return nil, nil, false
	}
	sender := s.users[rng.Intn(len(s.users))]
	if !sender.IsConnected {
		return nil, nil, false
	}

	zipf := rand.NewZipf(rng, s.config.ZipfS, 1, uint64(len(s.users)-1))
	receiver := s.users[int(zipf.Uint64())]
	if receiver == sender {
		return nil, nil, false
	}
	return sender, receiver, true
}

func (s *EnhancedSimulator) pickConnected(rng *rand.Rand) (*SimulatedUser, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.users) == 0 {
		return nil, false
	}
	user := s.users[rng.Intn(len(s.users))]
	return user, user.IsConnected
}

func (s *EnhancedSimulator) simulateSendMessage(ctx context.Context, rng *rand.Rand) error {
	sender, receiver, ok := s.pickPair(rng)
	if !ok {
		return nil
	}

	text := phrases[rng.Intn(len(phrases))]
	_, err := s.makeRequest(ctx, http.MethodPost, "/conversations/"+receiver.ID+"/messages", sender.Token, map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("send from %s to %s: %v", sender.ID, receiver.ID, err)
	}

	s.stats.mu.Lock()
	s.stats.MessagesSent++
	s.stats.mu.Unlock()
	return nil
}

// simulateReadConversation opens the user's inbox and reads the first thread with unread messages.
func (s *EnhancedSimulator) simulateReadConversation(ctx context.Context, rng *rand.Rand) error {
	user, ok := s.pickConnected(rng)
	if !ok {
		return nil
	}

	body, err := s.makeRequest(ctx, http.MethodGet, "/conversations", user.Token, nil)
	if err != nil {
		return err
	}
	var conversations []*models.Conversation
	if err := json.Unmarshal(body, &conversations); err != nil {
		return fmt.Errorf("failed to parse conversations: %v", err)
	}

	for _, conversation := range conversations {
		if conversation.UnreadCount == 0 {
			continue
		}
		if _, err := s.makeRequest(ctx, http.MethodPost, "/conversations/"+conversation.Counterpart.ID+"/read", user.Token, nil); err != nil {
			return err
		}
		s.stats.mu.Lock()
		s.stats.ConversationsRead++
		s.stats.mu.Unlock()
		return nil
	}
	return nil
}

func (s *EnhancedSimulator) simulateUnreadPoll(ctx context.Context, rng *rand.Rand) error {
	user, ok := s.pickConnected(rng)
	if !ok {
		return nil
	}
	if _, err := s.makeRequest(ctx, http.MethodGet, "/conversations/unread", user.Token, nil); err != nil {
		return err
	}

	s.stats.mu.Lock()
	s.stats.UnreadPolls++
	s.stats.mu.Unlock()
	return nil
}
