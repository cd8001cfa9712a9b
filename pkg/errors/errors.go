package bazaar_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidState  = errors.New("invalid state transition")
	ErrExpired       = errors.New("offer expired")
	ErrValidation    = errors.New("invalid input")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
