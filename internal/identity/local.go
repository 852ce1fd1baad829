package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"quickexpert/internal/database"
	"quickexpert/internal/models"
	"quickexpert/internal/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	accountsKey       = "auth_accounts"
	tokenIssuer       = "quickexpert-api"
	minPasswordLength = 6
)

// Claims represents the JWT claims issued by the local provider
type Claims struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type account struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	DisplayName  string           `json:"displayName"`
	AvatarURL    string           `json:"avatarUrl,omitempty"`
	PasswordHash string           `json:"passwordHash"`
	CreatedAt    models.Timestamp `json:"createdAt"`
}

func (a *account) user() *User {
	return &User{ID: a.ID, DisplayName: a.DisplayName, Email: a.Email, AvatarURL: a.AvatarURL}
}

// LocalProvider is an email/password identity service for deployments
// without Firebase. Accounts live in the same key-value store as inboxes.
type LocalProvider struct {
	mu       sync.Mutex
	store    database.KVStore
	secret   []byte
	tokenTTL time.Duration
}

func NewLocalProvider(store database.KVStore, secret string, tokenTTL time.Duration) *LocalProvider {
	return &LocalProvider{
		store:    store,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// SignUp creates an account and returns its user together with a fresh token.
func (p *LocalProvider) SignUp(ctx context.Context, email, password, displayName string) (*User, string, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, "", utils.NewAppError(utils.ErrInvalidInput, "a valid email is required", nil)
	}
	if len(password) < minPasswordLength {
		return nil, "", utils.NewAppError(utils.ErrInvalidInput,
			fmt.Sprintf("password must be at least %d characters", minPasswordLength), nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %v", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	accounts, err := p.loadAccounts(ctx)
	if err != nil {
		return nil, "", err
	}
	for _, a := range accounts {
		if a.Email == email {
			return nil, "", utils.NewAppError(utils.ErrUserAlreadyExists, "email already registered", nil)
		}
	}

	if strings.TrimSpace(displayName) == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	acct := &account{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: string(hash),
		CreatedAt:    models.Now(),
	}
	accounts = append(accounts, acct)
	if err := p.saveAccounts(ctx, accounts); err != nil {
		return nil, "", err
	}

	log.Printf("LocalProvider: created account %s for %s", acct.ID, acct.Email)

	token, err := p.issueToken(acct)
	if err != nil {
		return nil, "", err
	}
	return acct.user(), token, nil
}

// SignIn checks the credentials and returns the user with a fresh token.
func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*User, string, error) {
	email = normalizeEmail(email)

	p.mu.Lock()
	accounts, err := p.loadAccounts(ctx)
	p.mu.Unlock()
	if err != nil {
		return nil, "", err
	}

	for _, acct := range accounts {
		if acct.Email != email {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
			break
		}
		token, err := p.issueToken(acct)
		if err != nil {
			return nil, "", err
		}
		return acct.user(), token, nil
	}

	return nil, "", utils.NewAppError(utils.ErrInvalidCredentials, "Invalid credentials", nil)
}

// Verify validates a token issued by this provider.
func (p *LocalProvider) Verify(ctx context.Context, tokenString string) (*User, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return p.secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
	)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid token", nil)
	}

	return &User{ID: claims.UserID, DisplayName: claims.DisplayName, Email: claims.Email}, nil
}

func (p *LocalProvider) issueToken(acct *account) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:      acct.ID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   acct.ID,
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %v", err)
	}
	return tokenString, nil
}

func (p *LocalProvider) loadAccounts(ctx context.Context) ([]*account, error) {
	data, err := p.store.Get(ctx, accountsKey)
	if err != nil {
		if utils.IsErrorCode(err, utils.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, utils.NewAppError(utils.ErrDatabase, "failed to load accounts", err)
	}

	var accounts []*account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, utils.NewAppError(utils.ErrCorruptData, "corrupt account list", err)
	}
	return accounts, nil
}

func (p *LocalProvider) saveAccounts(ctx context.Context, accounts []*account) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return err
	}
	if err := p.store.Put(ctx, accountsKey, data); err != nil {
		return utils.NewAppError(utils.ErrDatabase, "failed to save accounts", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsCredentialError reports whether err came from a failed sign-in or a bad token.
func IsCredentialError(err error) bool {
	var appErr *utils.AppError
	return errors.As(err, &appErr) && utils.IsAuthError(appErr)
}
