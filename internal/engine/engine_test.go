package engine

import (
	"context"
	"testing"
	"time"

	"quickexpert/internal/database"
	"quickexpert/internal/identity"
	"quickexpert/internal/models"
	"quickexpert/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *identity.Session) {
	t.Helper()
	system := actor.NewActorSystem()
	repo := database.NewInboxRepository(database.NewMemoryStore())
	e := NewEngine(system, repo, utils.NewMetricsCollector(), Options{
		DeliveryDelay:  10 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
	})
	t.Cleanup(e.Stop)

	session := identity.NewSession()
	unsubscribe := e.AttachIdentity(session)
	t.Cleanup(unsubscribe)
	return e, session
}

func TestSignInRegistersAndOpensInbox(t *testing.T) {
	ctx := context.Background()
	e, session := newTestEngine(t)

	alice := identity.User{ID: "alice", DisplayName: "Alice", Email: "alice@example.com"}
	session.SignIn(alice)

	user, err := e.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, user.Online)
	assert.Equal(t, "Alice", user.DisplayName)

	open, err := e.OpenInboxCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	session.SignOut(alice)

	open, err = e.OpenInboxCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, open)

	user, err = e.GetUser(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, user.Online)
}

func TestConversationRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, session := newTestEngine(t)

	session.SignIn(identity.User{ID: "a", DisplayName: "Ann"})
	session.SignIn(identity.User{ID: "b", DisplayName: "Ben"})

	message, err := e.SendMessage(ctx, "a", "b", "hello")
	require.NoError(t, err)
	require.NotNil(t, message)
	assert.Equal(t, "Ann", message.SenderName)

	conversation, err := e.GetConversation(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, "b_a", conversation.ID)
	assert.Equal(t, "Ann", conversation.Counterpart.DisplayName)
	assert.Equal(t, 1, conversation.UnreadCount)

	total, err := e.TotalUnread(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	updated, err := e.MarkConversationRead(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	total, err = e.TotalUnread(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	assert.Eventually(t, func() bool {
		stored, err := e.LoadInbox(ctx, "a")
		return err == nil && len(stored) == 1 && stored[0].Messages[0].Status == models.StatusDelivered
	}, time.Second, 10*time.Millisecond)

	results, err := e.SearchConversations(ctx, "a", "be")
	require.NoError(t, err)
	assert.Len(t, results, 1)

	results, err = e.SearchConversations(ctx, "a", "zed")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	e, session := newTestEngine(t)
	session.SignIn(identity.User{ID: "a", DisplayName: "Ann"})

	message, err := e.SendMessage(ctx, "a", "b", "   ")
	assert.NoError(t, err)
	assert.Nil(t, message)

	_, err = e.SendMessage(ctx, "a", "a", "hi me")
	assert.True(t, utils.IsErrorCode(err, utils.ErrSelfMessage))

	_, err = e.SendMessage(ctx, "a", "ghost", "anyone?")
	assert.True(t, utils.IsErrorCode(err, utils.ErrUserNotFound))

	_, err = e.CreateOrGetConversation(ctx, "a", "ghost")
	assert.True(t, utils.IsErrorCode(err, utils.ErrUserNotFound))

	conversations, err := e.ListConversations(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, conversations)
}

func TestCancelledContextIsReported(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.TotalUnread(ctx, "a")
	assert.True(t, utils.IsErrorCode(err, utils.ErrActorTimeout))
}
