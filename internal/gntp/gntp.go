// Package gntp implements the wire side of the Growl Notification Transport
// Protocol: building REGISTER and NOTIFY requests, decoding responses and
// moving raw message bytes over a Transport.
package gntp

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ProtocolName = "GNTP"
	Version      = "1.0"
	DefaultPort  = 23053

	// ResourceScheme prefixes header values that point at a binary resource
	// carried in the same message.
	ResourceScheme = "x-growl-resource://"
)

// Action is the request verb in a GNTP info line.
type Action string

const (
	ActionRegister  Action = "REGISTER"
	ActionNotify    Action = "NOTIFY"
	ActionSubscribe Action = "SUBSCRIBE"
)

// Status is the response directive in a GNTP info line.
type Status string

const (
	StatusOK       Status = "-OK"
	StatusError    Status = "-ERROR"
	StatusCallback Status = "-CALLBACK"
)

// Header keys.
const (
	HeaderApplicationName          = "Application-Name"
	HeaderApplicationIcon          = "Application-Icon"
	HeaderNotificationsCount       = "Notifications-Count"
	HeaderNotificationName         = "Notification-Name"
	HeaderNotificationDisplayName  = "Notification-Display-Name"
	HeaderNotificationEnabled      = "Notification-Enabled"
	HeaderNotificationIcon         = "Notification-Icon"
	HeaderNotificationID           = "Notification-ID"
	HeaderNotificationTitle        = "Notification-Title"
	HeaderNotificationText         = "Notification-Text"
	HeaderNotificationSticky       = "Notification-Sticky"
	HeaderNotificationPriority     = "Notification-Priority"
	HeaderNotificationCoalescingID = "Notification-Coalescing-ID"
	HeaderCallbackContext          = "Notification-Callback-Context"
	HeaderCallbackContextType      = "Notification-Callback-Context-Type"
	HeaderCallbackTarget           = "Notification-Callback-Target"
	HeaderCallbackResult           = "Notification-Callback-Result"
	HeaderResponseAction           = "Response-Action"
	HeaderErrorCode                = "Error-Code"
	HeaderErrorDescription         = "Error-Description"
	HeaderOriginMachineName        = "Origin-Machine-Name"
	HeaderOriginSoftwareName       = "Origin-Software-Name"
	HeaderIdentifier               = "Identifier"
	HeaderLength                   = "Length"
)

// Error codes a GNTP server may return in Error-Code.
const (
	ErrCodeReserved              = 100
	ErrCodeTimedOut              = 200
	ErrCodeNetworkFailure        = 201
	ErrCodeInvalidRequest        = 300
	ErrCodeUnknownProtocol       = 301
	ErrCodeUnknownVersion        = 302
	ErrCodeRequiredHeaderMissing = 303
	ErrCodeNotAuthorized         = 400
	ErrCodeUnknownApplication    = 401
	ErrCodeUnknownNotification   = 402
	ErrCodeAlreadyProcessed      = 403
	ErrCodeNotificationDisabled  = 404
	ErrCodeInternalServerError   = 500
)

// Priority is the Notification-Priority value.
type Priority int

const (
	PriorityVeryLow   Priority = -2
	PriorityModerate  Priority = -1
	PriorityNormal    Priority = 0
	PriorityHigh      Priority = 1
	PriorityEmergency Priority = 2
)

func (p Priority) String() string {
	switch p {
	case PriorityVeryLow:
		return "very low"
	case PriorityModerate:
		return "moderate"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityEmergency:
		return "emergency"
	}
	return strconv.Itoa(int(p))
}

// Valid reports whether p is one of the five defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityVeryLow && p <= PriorityEmergency
}

// ParsePriority accepts a level name ("very low", "low", "moderate",
// "normal", "high", "emergency") or its integer value. Empty input is normal.
func ParsePriority(raw string) (Priority, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch strings.NewReplacer("_", " ", "-", " ").Replace(s) {
	case "":
		return PriorityNormal, nil
	case "very low", "verylow", "low":
		return PriorityVeryLow, nil
	case "moderate":
		return PriorityModerate, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "emergency":
		return PriorityEmergency, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !Priority(n).Valid() {
		return PriorityNormal, &ValidationError{Field: HeaderNotificationPriority, Reason: fmt.Sprintf("unknown priority %q", raw)}
	}
	return Priority(n), nil
}
