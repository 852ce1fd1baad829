package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quickexpert/internal/database"
	"quickexpert/internal/directory"
	"quickexpert/internal/engine"
	"quickexpert/internal/identity"
	"quickexpert/internal/models"
	"quickexpert/internal/utils"
	"quickexpert/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *chi.Mux
	server *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := database.NewMemoryStore()
	metrics := utils.NewMetricsCollector()
	hub := websocket.NewHub()
	go hub.Run(ctx)

	eng := engine.NewEngine(actor.NewActorSystem(), database.NewInboxRepository(store), metrics, engine.Options{
		DeliveryDelay:  10 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
		Notifier:       hub,
	})
	t.Cleanup(eng.Stop)

	session := identity.NewSession()
	t.Cleanup(eng.AttachIdentity(session))

	local := identity.NewLocalProvider(store, "handler-test-secret", time.Hour)
	dir, err := directory.Load()
	require.NoError(t, err)

	s := NewServer(eng, session, local, local, dir, hub, metrics)
	return &testServer{router: s.Routes(), server: s}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) signUp(t *testing.T, email, name string) AuthResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/signup", "", SignUpRequest{
		Email:       email,
		Password:    "password123",
		DisplayName: name,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target), rec.Body.String())
}

func TestMessagingFlow(t *testing.T) {
	ts := newTestServer(t)
	ann := ts.signUp(t, "ann@example.com", "Ann")
	ben := ts.signUp(t, "ben@example.com", "Ben")

	rec := ts.do(t, http.MethodPost, "/conversations/"+ben.User.ID+"/messages", ann.Token, SendMessageRequest{Text: "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent models.Message
	decode(t, rec, &sent)
	assert.Equal(t, "hello", sent.Text)
	assert.Equal(t, "Ann", sent.SenderName)
	assert.Equal(t, models.StatusSent, sent.Status)

	rec = ts.do(t, http.MethodGet, "/conversations", ben.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox []*models.Conversation
	decode(t, rec, &inbox)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.ConversationID(ben.User.ID, ann.User.ID), inbox[0].ID)
	assert.Equal(t, 1, inbox[0].UnreadCount)

	rec = ts.do(t, http.MethodGet, "/conversations/unread", ben.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var unread map[string]int
	decode(t, rec, &unread)
	assert.Equal(t, 1, unread["unread"])

	rec = ts.do(t, http.MethodPost, "/conversations/"+ann.User.ID+"/read", ben.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var read map[string]int
	decode(t, rec, &read)
	assert.Equal(t, 1, read["updated"])

	rec = ts.do(t, http.MethodGet, "/conversations/unread", ben.Token, nil)
	decode(t, rec, &unread)
	assert.Equal(t, 0, unread["unread"])

	assert.Eventually(t, func() bool {
		rec := ts.do(t, http.MethodGet, "/conversations/"+ben.User.ID, ann.Token, nil)
		var conversation models.Conversation
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &conversation) != nil {
			return false
		}
		return len(conversation.Messages) == 1 && conversation.Messages[0].Status == models.StatusDelivered
	}, 2*time.Second, 20*time.Millisecond)

	rec = ts.do(t, http.MethodGet, "/conversations?q=ben", ann.Token, nil)
	decode(t, rec, &inbox)
	assert.Len(t, inbox, 1)
	rec = ts.do(t, http.MethodGet, "/conversations?q=nobody", ann.Token, nil)
	decode(t, rec, &inbox)
	assert.Empty(t, inbox)
}

func TestSendMessageEdgeCases(t *testing.T) {
	ts := newTestServer(t)
	ann := ts.signUp(t, "ann@example.com", "Ann")
	ben := ts.signUp(t, "ben@example.com", "Ben")

	rec := ts.do(t, http.MethodPost, "/conversations/"+ben.User.ID+"/messages", ann.Token, SendMessageRequest{Text: "   "})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodPost, "/conversations/"+ann.User.ID+"/messages", ann.Token, SendMessageRequest{Text: "me"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/conversations/ghost/messages", ann.Token, SendMessageRequest{Text: "boo"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/conversations/"+ben.User.ID+"/messages", ann.Token, []byte("{"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/conversations/"+ben.User.ID, ann.Token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/conversations", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStartAndPatchConversation(t *testing.T) {
	ts := newTestServer(t)
	ann := ts.signUp(t, "ann@example.com", "Ann")
	ben := ts.signUp(t, "ben@example.com", "Ben")

	rec := ts.do(t, http.MethodPost, "/conversations", ann.Token, StartConversationRequest{CounterpartID: ben.User.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conversation models.Conversation
	decode(t, rec, &conversation)
	assert.Empty(t, conversation.Messages)
	assert.Equal(t, "Ben", conversation.Counterpart.DisplayName)
	assert.Equal(t, "online", conversation.Counterpart.PresenceText)

	rec = ts.do(t, http.MethodPatch, "/conversations/"+ben.User.ID, ann.Token, []byte(`{"displayName":"Benjamin"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &conversation)
	assert.Equal(t, "Benjamin", conversation.Counterpart.DisplayName)

	rec = ts.do(t, http.MethodPatch, "/conversations/"+ben.User.ID, ann.Token, []byte(`{"id":"someone-else"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/conversations", ann.Token, StartConversationRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ann := ts.signUp(t, "ann@example.com", "Ann")

	rec := ts.do(t, http.MethodPost, "/auth/signup", "", SignUpRequest{Email: "ann@example.com", Password: "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ann@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ann@example.com", Password: "password123"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/auth/session", "", SessionRequest{Token: ann.Token})
	require.Equal(t, http.StatusOK, rec.Code)
	var session AuthResponse
	decode(t, rec, &session)
	assert.Equal(t, ann.User.ID, session.User.ID)

	rec = ts.do(t, http.MethodPost, "/auth/logout", ann.Token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/users/"+ann.User.ID, ann.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	decode(t, rec, &user)
	assert.False(t, user.Online)
	assert.Equal(t, "Ann", user.DisplayName)

	rec = ts.do(t, http.MethodGet, "/users", ann.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []*models.User
	decode(t, rec, &users)
	assert.Len(t, users, 1)
}

func TestDirectoryEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/directory?role=jobseeker", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profiles []directory.Profile
	decode(t, rec, &profiles)
	assert.Len(t, profiles, 3)

	rec = ts.do(t, http.MethodGet, "/directory?role=wizard", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/directory/recruiter/4?text=Hello", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile ProfileResponse
	decode(t, rec, &profile)
	assert.Equal(t, "Eleanor Pena", profile.Name)
	assert.Equal(t, "https://wa.me/34612345678?text=Hello", profile.ContactLink)

	rec = ts.do(t, http.MethodGet, "/directory/expert/4", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)
	ts.signUp(t, "ann@example.com", "Ann")

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, float64(1), health["open_inboxes"])
	assert.Equal(t, float64(1), health["signed_in"])

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "requests_total")
}
