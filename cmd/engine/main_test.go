package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quickexpert/internal/config"
	"quickexpert/internal/engine/actors"
	"quickexpert/internal/handlers"
	"quickexpert/internal/models"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:  &config.ServerConfig{Host: "127.0.0.1", Port: 0, MetricsEnabled: true, RequestTimeout: 2 * time.Second},
		Storage: &config.StorageConfig{Type: config.StorageSQLite, Path: t.TempDir() + "/quickexpert.db"},
		Auth: &config.AuthConfig{
			Provider:  config.AuthLocal,
			JWTSecret: "integration-secret",
			TokenTTL:  time.Hour,
		},
		Messaging:      &config.MessagingConfig{DeliveryDelay: 20 * time.Millisecond},
		AllowedOrigins: []string{"*"},
	}
}

func postJSON(t *testing.T, url, token string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func signUp(t *testing.T, baseURL, email, name string) handlers.AuthResponse {
	t.Helper()
	resp := postJSON(t, baseURL+"/auth/signup", "", handlers.SignUpRequest{Email: email, Password: "password123", DisplayName: name})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var auth handlers.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	return auth
}

func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()
	app, err := newApplication(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(ctx) })

	srv := httptest.NewServer(app.handler)
	t.Cleanup(srv.Close)

	// Step 1: two users sign up
	ann := signUp(t, srv.URL, "ann@example.com", "Ann")
	ben := signUp(t, srv.URL, "ben@example.com", "Ben")

	// Step 2: Ben and Ann open push channels
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token="
	benConn, _, err := ws.DefaultDialer.Dial(wsURL+ben.Token, nil)
	require.NoError(t, err)
	defer benConn.Close()
	annConn, _, err := ws.DefaultDialer.Dial(wsURL+ann.Token, nil)
	require.NoError(t, err)
	defer annConn.Close()

	// Registration with the hub is asynchronous.
	time.Sleep(50 * time.Millisecond)

	// Step 3: Ann writes to Ben
	resp := postJSON(t, srv.URL+"/conversations/"+ben.User.ID+"/messages", ann.Token, handlers.SendMessageRequest{Text: "hello"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var sent models.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sent))
	resp.Body.Close()

	// Step 4: Ben is pushed the new message
	benConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var incoming actors.Event
	require.NoError(t, benConn.ReadJSON(&incoming))
	assert.Equal(t, actors.EventMessageNew, incoming.Type)
	require.NotNil(t, incoming.Message)
	assert.Equal(t, sent.ID, incoming.Message.ID)
	assert.Equal(t, models.StatusUnread, incoming.Message.Status)

	// Step 5: Ann is told the message was delivered
	annConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var status actors.Event
	require.NoError(t, annConn.ReadJSON(&status))
	assert.Equal(t, actors.EventMessageStatus, status.Type)
	assert.Equal(t, sent.ID, status.MessageID)
	require.NotNil(t, status.Status)
	assert.Equal(t, models.StatusDelivered, *status.Status)

	// Step 6: Ben reads the conversation
	resp = postJSON(t, srv.URL+"/conversations/"+ann.User.ID+"/read", ben.Token, struct{}{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/conversations/unread", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+ben.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var unread map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&unread))
	resp.Body.Close()
	assert.Equal(t, 0, unread["unread"])
}

func TestRestartKeepsInboxes(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	app, err := newApplication(ctx, cfg)
	require.NoError(t, err)
	srv := httptest.NewServer(app.handler)

	ann := signUp(t, srv.URL, "ann@example.com", "Ann")
	ben := signUp(t, srv.URL, "ben@example.com", "Ben")
	resp := postJSON(t, srv.URL+"/conversations/"+ben.User.ID+"/messages", ann.Token, handlers.SendMessageRequest{Text: "still there?"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	srv.Close()
	app.Close(ctx)

	app, err = newApplication(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close(ctx) })
	srv = httptest.NewServer(app.handler)
	t.Cleanup(srv.Close)

	resp = postJSON(t, srv.URL+"/auth/login", "", handlers.LoginRequest{Email: "ben@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var auth handlers.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/conversations", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+auth.Token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var conversations []*models.Conversation
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&conversations))
	require.Len(t, conversations, 1)
	assert.Equal(t, "still there?", conversations[0].Messages[0].Text)
	assert.Equal(t, 1, conversations[0].UnreadCount)
}
