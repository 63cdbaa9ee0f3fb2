package service

import "errors"

var (
	// ErrEmptyMessage rejects a notification without text.
	ErrEmptyMessage = errors.New(`"message" attribute cannot be empty`)
	// ErrInvalidInput wraps every other request validation failure.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNoTargets is returned by a broadcast that resolved no host.
	ErrNoTargets = errors.New("no target hosts resolved")
	// ErrInvalidCredentials is returned by a failed login.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken is returned for a token that parsed but is not valid.
	ErrInvalidToken = errors.New("invalid token")
)
