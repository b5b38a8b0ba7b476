package usecase

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	s := NewTokenSigner("s3cret")
	email, err := s.Verify(s.Sign("alice@gmail.com"))
	require.NoError(t, err)
	assert.Equal(t, "alice@gmail.com", email)
}

func TestTokenSigner_Rejects(t *testing.T) {
	s := NewTokenSigner("s3cret")
	good := s.Sign("alice@gmail.com")
	raw, err := base64.RawURLEncoding.DecodeString(good)
	require.NoError(t, err)
	_, sig, _ := cutColon(string(raw))

	tampered := []byte(good)
	tampered[0] ^= 0x01

	cases := map[string]string{
		"tampered":        string(tampered),
		"mismatched":      base64.RawURLEncoding.EncodeToString([]byte("bob@gmail.com:" + sig)),
		"other secret":    NewTokenSigner("other").Sign("alice@gmail.com"),
		"not base64":      "%%%",
		"no separator":    base64.RawURLEncoding.EncodeToString([]byte("alice@gmail.com")),
		"empty signature": base64.RawURLEncoding.EncodeToString([]byte("alice@gmail.com:")),
	}
	for name, token := range cases {
		_, err := s.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}
}

func cutColon(s string) (string, string, bool) {
	for i := range s {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
