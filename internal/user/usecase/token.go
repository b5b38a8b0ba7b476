package usecase

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid unsubscribe token")

// TokenSigner issues unsubscribe tokens of the form
// base64url("<email>:<base64url(hmac-sha256(secret, email))>").
type TokenSigner struct {
	secret []byte
}

func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

func (s *TokenSigner) Sign(email string) string {
	payload := email + ":" + s.signature(email)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// Verify returns the email the token was issued for.
func (s *TokenSigner) Verify(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return "", ErrInvalidToken
	}
	// Emails never contain ':', and the signature alphabet excludes it.
	email, sig, ok := strings.Cut(string(raw), ":")
	if !ok || email == "" || sig == "" {
		return "", ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(s.signature(email))) {
		return "", ErrInvalidToken
	}
	return email, nil
}

func (s *TokenSigner) signature(email string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(email))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
