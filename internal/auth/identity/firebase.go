package identity

import (
	"context"
	"fmt"
	"strings"

	authdomain "investor-portal/internal/auth/domain"

	"firebase.google.com/go/v4/auth"
)

// FirebaseProvider verifies Firebase ID tokens and looks up accounts.
type FirebaseProvider struct {
	client *auth.Client
}

func NewFirebaseProvider(client *auth.Client) *FirebaseProvider {
	return &FirebaseProvider{client: client}
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, idToken string) (*authdomain.Principal, error) {
	token, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	email, _ := token.Claims["email"].(string)
	return &authdomain.Principal{
		UID:   token.UID,
		Email: strings.ToLower(strings.TrimSpace(email)),
	}, nil
}

func (p *FirebaseProvider) UserExists(ctx context.Context, email string) (bool, error) {
	_, err := p.client.GetUserByEmail(ctx, email)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
