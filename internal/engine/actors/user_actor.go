package actors

import (
	stdctx "context"
	"log"
	"time"

	"quickexpert/internal/database"
	"quickexpert/internal/models"
	"quickexpert/internal/utils"

	"github.com/asynkron/protoactor-go/actor"
)

// Message types for UserActor
type (
	RegisterUserMsg struct {
		ID          string
		DisplayName string
		Email       string
		AvatarURL   string
	}

	SetPresenceMsg struct {
		UserID string
		Online bool
	}

	GetUsersMsg struct{}

	GetUserMsg struct {
		UserID string
	}
)

// UserActor owns the shared registered-user directory stored under all_users.
// Entries are created on first sign-in and never removed.
type UserActor struct {
	repo    *database.InboxRepository
	users   []*models.User
	byID    map[string]*models.User
	loaded  bool
	metrics *utils.MetricsCollector
}

func NewUserActor(repo *database.InboxRepository, metrics *utils.MetricsCollector) actor.Actor {
	return &UserActor{
		repo:    repo,
		byID:    make(map[string]*models.User),
		metrics: metrics,
	}
}

func (a *UserActor) Receive(context actor.Context) {
	switch msg := context.Message().(type) {
	case *actor.Started:
		a.load()

	case *RegisterUserMsg:
		a.handleRegister(context, msg)

	case *SetPresenceMsg:
		a.handleSetPresence(context, msg)

	case *GetUsersMsg:
		a.load()
		users := make([]*models.User, len(a.users))
		for i, u := range a.users {
			cp := *u
			users[i] = &cp
		}
		context.Respond(users)

	case *GetUserMsg:
		a.load()
		user, exists := a.byID[msg.UserID]
		if !exists {
			context.Respond(utils.NewUserNotFoundError(msg.UserID))
			return
		}
		cp := *user
		context.Respond(&cp)
	}
}

// handleRegister upserts the user with presence online. Repeated calls only
// refresh the display metadata and lastSeen; CreatedAt is kept.
func (a *UserActor) handleRegister(context actor.Context, msg *RegisterUserMsg) {
	startTime := time.Now()
	a.load()

	if msg.ID == "" {
		context.Respond(utils.NewAppError(utils.ErrInvalidInput, "user id is required", nil))
		return
	}

	now := models.Now()
	user, exists := a.byID[msg.ID]
	if !exists {
		user = &models.User{ID: msg.ID, CreatedAt: now}
		a.byID[msg.ID] = user
		a.users = append(a.users, user)
		log.Printf("UserActor: registered new user %s", msg.ID)
	}
	user.DisplayName = msg.DisplayName
	user.Email = msg.Email
	user.AvatarURL = msg.AvatarURL
	user.Online = true
	user.LastSeen = now

	a.persist()

	a.metrics.AddOperationLatency("register_user", time.Since(startTime))
	cp := *user
	context.Respond(&cp)
}

func (a *UserActor) handleSetPresence(context actor.Context, msg *SetPresenceMsg) {
	a.load()

	user, exists := a.byID[msg.UserID]
	if !exists {
		context.Respond(utils.NewUserNotFoundError(msg.UserID))
		return
	}
	user.Online = msg.Online
	user.LastSeen = models.Now()
	a.persist()

	cp := *user
	context.Respond(&cp)
}

// load merges the persisted directory into memory once. A failed read leaves
// the actor unloaded, so later calls retry and nothing is written back.
func (a *UserActor) load() {
	if a.loaded {
		return
	}
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
	defer cancel()

	stored, err := a.repo.LoadUsers(ctx)
	if err != nil {
		return
	}
	for _, u := range stored {
		if _, dup := a.byID[u.ID]; dup {
			continue
		}
		a.byID[u.ID] = u
		a.users = append(a.users, u)
	}
	a.loaded = true
	log.Printf("UserActor: loaded %d registered users", len(a.users))
}

func (a *UserActor) persist() {
	if !a.loaded {
		log.Printf("UserActor: user directory not persisted, stored copy could not be read")
		return
	}
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), storeTimeout)
	defer cancel()

	if err := a.repo.SaveUsers(ctx, a.users); err != nil {
		log.Printf("UserActor: failed to persist user directory: %v", err)
	}
}
