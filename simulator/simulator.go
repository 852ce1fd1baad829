package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type SimConfig struct {
	NumUsers        int
	SimulationTime  time.Duration
	MessageRate     float64 // messages per user per minute
	ReadRate        float64 // conversation reads per user per minute
	UnreadPollRate  float64 // unread polls per user per minute
	DisconnectRate  float64
	ReconnectRate   float64
	ZipfS           float64
	EngineURL       string
	MetricsInterval time.Duration
}

type SimulationStats struct {
	mu                sync.RWMutex
	StartTime         time.Time
	TotalRequests     int64
	SuccessRequests   int64
	FailedRequests    int64
	AverageLatency    time.Duration
	ActiveUsers       int
	MessagesSent      int
	ConversationsRead int
	UnreadPolls       int
	RequestLatencies  []time.Duration
}

// SimulatedUser is one signed-up account driven by the simulator
type SimulatedUser struct {
	ID          string
	Email       string
	DisplayName string
	Token       string
	IsConnected bool
	LastActive  time.Time
}

type EnhancedSimulator struct {
	config SimConfig
	stats  *SimulationStats
	users  []*SimulatedUser
	client *http.Client
	mu     sync.RWMutex
}

func NewEnhancedSimulator(config SimConfig) *EnhancedSimulator {
	if config.ZipfS <= 1 {
		config.ZipfS = 1.07
	}
	if config.MetricsInterval <= 0 {
		config.MetricsInterval = 10 * time.Second
	}
	return &EnhancedSimulator{
		config: config,
		stats: &SimulationStats{
			StartTime:        time.Now(),
			RequestLatencies: make([]time.Duration, 0),
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *EnhancedSimulator) Run(ctx context.Context) error {
	log.Printf("Starting enhanced simulation...")

	if err := s.createInitialUsers(ctx); err != nil {
		return fmt.Errorf("initialization failed: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.SimulateActivities(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	return nil
}

func (s *EnhancedSimulator) createInitialUsers(ctx context.Context) error {
	log.Printf("Creating %d users...", s.config.NumUsers)
	runID := time.Now().UnixNano()

	users := make([]*SimulatedUser, 0, s.config.NumUsers)
	for i := 0; i < s.config.NumUsers; i++ {
		user := &SimulatedUser{
			Email:       fmt.Sprintf("user_%d_%d@test.com", runID, i),
			DisplayName: fmt.Sprintf("User %d", i),
		}

		var err error
		for retries := 0; retries < 3; retries++ {
			if err = s.signUp(ctx, user); err == nil {
				break
			}
			backoffDuration := time.Duration(math.Pow(2, float64(retries))) * 100 * time.Millisecond
			log.Printf("Retry %d for user %s after %v delay", retries+1, user.Email, backoffDuration)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoffDuration):
			}
		}
		if err != nil {
			return fmt.Errorf("failed to create user %s: %v", user.Email, err)
		}
		users = append(users, user)
	}

	s.mu.Lock()
	s.users = users
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.ActiveUsers = len(users)
	s.stats.mu.Unlock()

	log.Printf("Created %d users", len(users))
	return nil
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (s *EnhancedSimulator) signUp(ctx context.Context, user *SimulatedUser) error {
	resp, err := s.makeRequest(ctx, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":       user.Email,
		"password":    "testpass123",
		"displayName": user.DisplayName,
	})
	if err != nil {
		return err
	}
	return s.applyAuth(user, resp)
}

func (s *EnhancedSimulator) login(ctx context.Context, user *SimulatedUser) error {
	resp, err := s.makeRequest(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    user.Email,
		"password": "testpass123",
	})
	if err != nil {
		return err
	}
	return s.applyAuth(user, resp)
}

func (s *EnhancedSimulator) applyAuth(user *SimulatedUser, body []byte) error {
	var result authResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse auth response: %v", err)
	}
	if result.Token == "" || result.User.ID == "" {
		return fmt.Errorf("auth response without token or user id")
	}
	user.ID = result.User.ID
	user.Token = result.Token
	user.IsConnected = true
	user.LastActive = time.Now()
	return nil
}

func (s *EnhancedSimulator) makeRequest(ctx context.Context, method, endpoint, token string, data interface{}) ([]byte, error) {
	var body []byte
	var err error

	if data != nil {
		body, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+endpoint, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("request failed with status: %d", resp.StatusCode)
	}
	s.recordRequestMetrics(start, err)

	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// simulateConnectivity signs users out and back in at the configured rates.
func (s *EnhancedSimulator) simulateConnectivity(ctx context.Context) {
	log.Printf("Starting connectivity simulation...")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			for _, user := range s.users {
				if user.IsConnected {
					if rand.Float64() < s.config.DisconnectRate {
						if _, err := s.makeRequest(ctx, http.MethodPost, "/auth/logout", user.Token, nil); err == nil {
							user.IsConnected = false
						}
					}
				} else if rand.Float64() < s.config.ReconnectRate {
					if err := s.login(ctx, user); err != nil {
						log.Printf("Note: Failed to login user %s: %v", user.Email, err)
					}
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *EnhancedSimulator) recordRequestMetrics(start time.Time, err error) {
	s.stats.mu.Lock()
	defer s.stats.mu.Unlock()

	latency := time.Since(start)
	s.stats.TotalRequests++
	s.stats.RequestLatencies = append(s.stats.RequestLatencies, latency)

	if err != nil {
		s.stats.FailedRequests++
	} else {
		s.stats.SuccessRequests++
	}

	totalLatency := s.stats.AverageLatency * time.Duration(s.stats.TotalRequests-1)
	s.stats.AverageLatency = (totalLatency + latency) / time.Duration(s.stats.TotalRequests)
}

func (s *EnhancedSimulator) collectMetrics(ctx context.Context) {
	log.Printf("Starting metrics collection...")
	ticker := time.NewTicker(s.config.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics := s.GetMetrics()
			log.Printf("Simulation Metrics (%.1f seconds elapsed):", time.Since(s.stats.StartTime).Seconds())
			log.Printf("- Request Rate: %.2f req/sec", metrics.RequestsPerSecond)
			log.Printf("- Average Latency: %v", metrics.AverageLatency)
			log.Printf("- Active Users: %d/%d", metrics.ActiveUsers, metrics.TotalUsers)
			log.Printf("- Messages Sent: %d", metrics.MessagesSent)
			log.Printf("- Conversations Read: %d", metrics.ConversationsRead)
			log.Printf("- Failed Requests: %d", metrics.ErrorCount)
		}
	}
}

// SimulationMetrics holds the metrics of the simulation
type SimulationMetrics struct {
	TotalUsers        int
	ActiveUsers       int
	MessagesSent      int
	ConversationsRead int
	UnreadPolls       int
	AverageLatency    time.Duration
	ErrorCount        int
	RequestsPerSecond float64
}

// GetMetrics returns the current simulation metrics
func (s *EnhancedSimulator) GetMetrics() SimulationMetrics {
	s.mu.RLock()
	totalUsers := len(s.users)
	activeUsers := 0
	for _, user := range s.users {
		if user.IsConnected {
			activeUsers++
		}
	}
	s.mu.RUnlock()

	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	elapsed := time.Since(s.stats.StartTime)
	requestRate := float64(s.stats.TotalRequests) / elapsed.Seconds()

	return SimulationMetrics{
		TotalUsers:        totalUsers,
		ActiveUsers:       activeUsers,
		MessagesSent:      s.stats.MessagesSent,
		ConversationsRead: s.stats.ConversationsRead,
		UnreadPolls:       s.stats.UnreadPolls,
		AverageLatency:    s.stats.AverageLatency,
		ErrorCount:        int(s.stats.FailedRequests),
		RequestsPerSecond: requestRate,
	}
}
