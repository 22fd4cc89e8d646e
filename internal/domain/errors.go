package domain

import "errors"

var (
	ErrValidation         = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email must be unique")
	ErrUserNotFound       = errors.New("user not found")
	ErrCodeNotFound       = errors.New("code not found")
	ErrCodeExpired        = errors.New("code expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user not active")
	ErrPasswordIncorrect  = errors.New("password incorrect")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
)
