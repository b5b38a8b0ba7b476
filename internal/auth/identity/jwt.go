package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "investor-portal/internal/auth/domain"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserLookup reports whether an account is known for the email.
type UserLookup func(ctx context.Context, email string) (bool, error)

// JWTProvider is a self-contained identity provider signing HS256 tokens.
// It serves local development and deployments without Firebase Auth.
type JWTProvider struct {
	secret []byte
	issuer string
	expiry time.Duration
	lookup UserLookup
}

func NewJWTProvider(secret, issuer string, expiry time.Duration, lookup UserLookup) *JWTProvider {
	return &JWTProvider{secret: []byte(secret), issuer: issuer, expiry: expiry, lookup: lookup}
}

func (p *JWTProvider) Issue(uid, email string) (string, error) {
	if uid == "" {
		return "", errors.New("uid is required")
	}
	now := time.Now()
	claims := Claims{
		Email: strings.ToLower(strings.TrimSpace(email)),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

func (p *JWTProvider) VerifyToken(_ context.Context, tokenString string) (*authdomain.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(p.issuer))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &authdomain.Principal{UID: claims.Subject, Email: claims.Email}, nil
}

func (p *JWTProvider) UserExists(ctx context.Context, email string) (bool, error) {
	if p.lookup == nil {
		return false, nil
	}
	return p.lookup(ctx, email)
}
