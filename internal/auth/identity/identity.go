package identity

import "errors"

var ErrInvalidToken = errors.New("invalid or expired token")
