package impl

import "errors"

var (
	ErrEmptyPassword  = errors.New("empty password")
	ErrPasswordLength = errors.New("password too short")
	ErrInvalidToken   = errors.New("invalid token")
	ErrSessionExpired = errors.New("session expired or revoked")
)
