package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"quickexpert/internal/identity"
	"quickexpert/internal/utils"

	"github.com/stretchr/testify/assert"
)

type staticVerifier map[string]*identity.User

func (v staticVerifier) Verify(ctx context.Context, token string) (*identity.User, error) {
	if user, ok := v[token]; ok {
		return user, nil
	}
	return nil, utils.NewAppError(utils.ErrInvalidToken, "unknown token", nil)
}

func TestAuthenticator(t *testing.T) {
	verifier := staticVerifier{"good": {ID: "u1", DisplayName: "Una"}}
	handler := Authenticator(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUserFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(user.ID))
	}))

	tests := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"bearer header", "Bearer good", "", http.StatusOK},
		{"lowercase scheme", "bearer good", "", http.StatusOK},
		{"query parameter", "", "good", http.StatusOK},
		{"missing token", "", "", http.StatusUnauthorized},
		{"unknown token", "Bearer bad", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/conversations"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "u1", rec.Body.String())
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORSMiddleware(DefaultCORSConfig([]string{"https://quickexpert.example"}))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))

	req := httptest.NewRequest(http.MethodOptions, "/conversations", nil)
	req.Header.Set("Origin", "https://quickexpert.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "https://quickexpert.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEqual(t, http.StatusTeapot, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/conversations", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
