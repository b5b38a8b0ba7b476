package firebase

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"investor-portal/pkg/config"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

var ErrMissingCredentials = errors.New("missing Firebase credentials: set FIREBASE_PROJECT_ID, FIREBASE_CLIENT_EMAIL and FIREBASE_PRIVATE_KEY, or FIREBASE_SERVICE_ACCOUNT")

var scopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/firebase",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/userinfo.email",
}

// App wraps a single Firebase Admin app. Build one per process in main and
// hand its clients to the components that need them.
type App struct {
	app       *firebase.App
	ProjectID string
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	var opts []option.ClientOption
	projectID := cfg.FirebaseProjectID

	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	} else {
		raw, err := CredentialsJSON(cfg)
		if err != nil {
			return nil, err
		}
		creds, err := google.CredentialsFromJSON(ctx, raw, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Firebase credentials: %w", err)
		}
		if creds.ProjectID != "" {
			projectID = creds.ProjectID
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	var fbConfig *firebase.Config
	if projectID != "" {
		fbConfig = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	return &App{app: app, ProjectID: projectID}, nil
}

func (a *App) Auth(ctx context.Context) (*auth.Client, error) {
	client, err := a.app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get auth client: %w", err)
	}
	return client, nil
}

func (a *App) Firestore(ctx context.Context) (*firestore.Client, error) {
	client, err := a.app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get firestore client: %w", err)
	}
	return client, nil
}

type serviceAccount struct {
	Type                    string `json:"type"`
	ProjectID               string `json:"project_id"`
	PrivateKeyID            string `json:"private_key_id"`
	PrivateKey              string `json:"private_key"`
	ClientEmail             string `json:"client_email"`
	ClientID                string `json:"client_id"`
	AuthURI                 string `json:"auth_uri"`
	TokenURI                string `json:"token_uri"`
	AuthProviderX509CertURL string `json:"auth_provider_x509_cert_url"`
}

// CredentialsJSON assembles a service-account JSON document from the
// individual env values, falling back to FIREBASE_SERVICE_ACCOUNT given
// either as raw JSON or base64.
func CredentialsJSON(cfg *config.Config) ([]byte, error) {
	if cfg.FirebaseProjectID != "" && cfg.FirebaseClientEmail != "" && cfg.FirebasePrivateKey != "" {
		key := normalizePrivateKey(cfg.FirebasePrivateKey)
		if !strings.Contains(key, "BEGIN PRIVATE KEY") || !strings.Contains(key, "END PRIVATE KEY") {
			return nil, errors.New("FIREBASE_PRIVATE_KEY appears to be invalid: expected BEGIN PRIVATE KEY and END PRIVATE KEY markers")
		}
		return json.Marshal(serviceAccount{
			Type:                    "service_account",
			ProjectID:               cfg.FirebaseProjectID,
			PrivateKeyID:            cfg.FirebasePrivateKeyID,
			PrivateKey:              key,
			ClientEmail:             cfg.FirebaseClientEmail,
			ClientID:                cfg.FirebaseClientID,
			AuthURI:                 "https://accounts.google.com/o/oauth2/auth",
			TokenURI:                "https://oauth2.googleapis.com/token",
			AuthProviderX509CertURL: "https://www.googleapis.com/oauth2/v1/certs",
		})
	}

	raw := strings.TrimSpace(cfg.FirebaseServiceAccount)
	if raw == "" {
		return nil, ErrMissingCredentials
	}
	if !strings.HasPrefix(raw, "{") {
		decoded, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode FIREBASE_SERVICE_ACCOUNT: %w", err)
		}
		raw = string(decoded)
	}
	if !json.Valid([]byte(raw)) {
		return nil, errors.New("failed to parse FIREBASE_SERVICE_ACCOUNT: invalid JSON")
	}
	return []byte(raw), nil
}

// Keys pasted into env files usually carry literal "\n" sequences.
func normalizePrivateKey(key string) string {
	key = strings.ReplaceAll(key, `\n`, "\n")
	return strings.ReplaceAll(key, `\\`, `\`)
}
