package gntp

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedEncryption = errors.New("gntp: unsupported encryption algorithm")
	ErrUnsupportedHash       = errors.New("gntp: unsupported hash algorithm")
	ErrKeyTooShort           = errors.New("gntp: hash algorithm too short for encryption key")
	ErrPasswordRequired      = errors.New("gntp: password required")
	ErrResponseTooLarge      = errors.New("gntp: response too large")
)

// ValidationError reports a request field rejected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("gntp: invalid %s: %s", e.Field, e.Reason)
}

// ProtocolError reports bytes that do not form a valid GNTP message.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gntp: protocol error: %s: %v", e.Reason, e.Err)
	}
	return "gntp: protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolErrorf(format string, args ...any) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}
