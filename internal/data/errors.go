package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrSessionNotFound    = errors.New("session not found")
	ErrTokenNotFound      = errors.New("pre-auth token not found")
	ErrPermissionNotFound = errors.New("permission not found")
)
