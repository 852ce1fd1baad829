package identity

import (
	"context"
	"fmt"
	"log"

	"quickexpert/internal/utils"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// SetupFirebase initializes the Firebase app for the given project.
func SetupFirebase(ctx context.Context, projectID, credentialsFile string) (*firebase.App, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %v", err)
	}
	return app, nil
}

// FirebaseVerifier accepts Firebase ID tokens issued to the web client.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase Auth client: %v", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*User, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrInvalidToken, "invalid Firebase ID token", err)
	}

	user := &User{ID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		user.DisplayName = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		user.AvatarURL = picture
	}

	if user.DisplayName == "" || user.AvatarURL == "" {
		record, err := v.client.GetUser(ctx, token.UID)
		if err != nil {
			log.Printf("FirebaseVerifier: profile lookup for %s failed: %v", token.UID, err)
			return user, nil
		}
		if user.DisplayName == "" {
			user.DisplayName = record.DisplayName
		}
		if user.AvatarURL == "" {
			user.AvatarURL = record.PhotoURL
		}
		if user.Email == "" {
			user.Email = record.Email
		}
	}

	return user, nil
}
