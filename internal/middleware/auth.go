package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"quickexpert/internal/identity"
)

// Define a custom context key type to avoid collisions
type contextKey string

// UserKey is the key used to store the authenticated user in the context
const UserKey contextKey = "user"

// SetUserInContext saves the authenticated user in the request context
func SetUserInContext(ctx context.Context, user *identity.User) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUserFromContext retrieves the authenticated user from the context
func GetUserFromContext(ctx context.Context) (*identity.User, bool) {
	user, ok := ctx.Value(UserKey).(*identity.User)
	return user, ok && user != nil
}

// Authenticator rejects requests without a token the verifier accepts. The
// token is read from the Authorization header, then from the "token" query
// parameter, which browsers need for websocket upgrades.
func Authenticator(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := FindToken(r)
			if token == "" {
				http.Error(w, "Authorization token required", http.StatusUnauthorized)
				return
			}

			user, err := verifier.Verify(r.Context(), token)
			if err != nil {
				log.Printf("Auth: rejected token for %s %s: %v", r.Method, r.URL.Path, err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetUserInContext(r.Context(), user)))
		})
	}
}

// FindToken returns the bearer token of r, or "".
func FindToken(r *http.Request) string {
	return findToken(r, tokenFromHeader, tokenFromQuery)
}

func tokenFromHeader(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) > 7 && strings.ToUpper(bearer[0:6]) == "BEARER" {
		return strings.TrimSpace(bearer[7:])
	}
	return ""
}

func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get("token")
}

func findToken(r *http.Request, findTokenFns ...func(r *http.Request) string) string {
	var tokenString string
	for _, fn := range findTokenFns {
		tokenString = fn(r)
		if tokenString != "" {
			break
		}
	}
	return tokenString
}
